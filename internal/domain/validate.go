/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidationErrors collects every problem found in a menu.
type ValidationErrors []string

func (v ValidationErrors) Error() string {
	if len(v) == 1 {
		return "invalid menu: " + v[0]
	}
	return fmt.Sprintf("invalid menu (%d problems): %s", len(v), strings.Join(v, "; "))
}

// Validate checks the document invariants and the required action payloads.
// It returns nil or a ValidationErrors value.
func (m Menu) Validate() error {
	var errs ValidationErrors
	if !m.Size.Valid() {
		errs = append(errs, fmt.Sprintf("size %dx%d must be positive", m.Size.Width, m.Size.Height))
	}
	if n := utf8.RuneCountInString(m.ChatBarText); n > MaxChatBarText {
		errs = append(errs, fmt.Sprintf("chat bar text has %d characters, at most %d allowed", n, MaxChatBarText))
	}
	if len(m.Regions) > MaxRegions {
		errs = append(errs, fmt.Sprintf("%d regions, at most %d allowed", len(m.Regions), MaxRegions))
	}
	seen := make(map[string]struct{}, len(m.Regions))
	for i, r := range m.Regions {
		label := fmt.Sprintf("area %d", i+1)
		if r.ID != "" {
			if _, dup := seen[r.ID]; dup {
				errs = append(errs, fmt.Sprintf("%s: duplicate id %q", label, r.ID))
			}
			seen[r.ID] = struct{}{}
		}
		if m.Size.Valid() && !r.Bounds.Within(m.Size) {
			b := r.Bounds
			errs = append(errs, fmt.Sprintf("%s: bounds (%d,%d %dx%d) outside canvas", label, b.X, b.Y, b.Width, b.Height))
		}
		if err := validateAction(r.Action); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", label, err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
