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

// This file defines the core data model of a rich menu document.
// The JSON shape of Menu is the exported file format and, unchanged, the request body
// the messaging platform expects when a menu is created.

import (
	"strings"

	"github.com/google/uuid"
)

const (
	// MaxRegions is the platform limit of tappable areas per menu.
	MaxRegions = 10
	// MaxChatBarText is the maximum length (in runes) of the collapsed menu bar label.
	MaxChatBarText = 14
	// MinRegionSide is the smallest width/height (exclusive) a drawn region must exceed.
	MinRegionSide = 20
	// DefaultActionURI is the placeholder link assigned to freshly drawn regions.
	DefaultActionURI = "https://example.com"
)

// Size is the logical pixel size of the menu image.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

var (
	// SizeFull is the large (two row) menu preset.
	SizeFull = Size{Width: 2500, Height: 1686}
	// SizeCompact is the small (single row) menu preset.
	SizeCompact = Size{Width: 2500, Height: 843}
)

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool { return s.Width > 0 && s.Height > 0 }

// SizePreset resolves a preset name ("full" or "compact"); empty means full.
func SizePreset(name string) (Size, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "full":
		return SizeFull, true
	case "compact":
		return SizeCompact, true
	}
	return Size{}, false
}

// PresetName is the inverse of SizePreset; custom sizes have no name.
func (s Size) PresetName() string {
	switch s {
	case SizeFull:
		return "full"
	case SizeCompact:
		return "compact"
	}
	return ""
}

// Bounds is a rectangle in logical canvas coordinates.
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (b Bounds) Right() int  { return b.X + b.Width }
func (b Bounds) Bottom() int { return b.Y + b.Height }

// Within reports whether b lies completely inside a canvas of the given size.
func (b Bounds) Within(s Size) bool {
	return b.X >= 0 && b.Y >= 0 && b.Width >= 0 && b.Height >= 0 &&
		b.Right() <= s.Width && b.Bottom() <= s.Height
}

// Region is a tappable area of the menu. ID is editor-local and never serialized.
type Region struct {
	ID     string `json:"-"`
	Bounds Bounds `json:"bounds"`
	Action Action `json:"action"`
}

// Menu is the whole rich menu document.
type Menu struct {
	Size        Size     `json:"size"`
	Selected    bool     `json:"selected"`
	Name        string   `json:"name"`
	ChatBarText string   `json:"chatBarText"`
	Regions     []Region `json:"areas"`
}

// NewMenu returns the document the editor starts with.
func NewMenu() Menu {
	return Menu{
		Size:        SizeFull,
		Selected:    true,
		Name:        "My Rich Menu",
		ChatBarText: "Menu",
		Regions:     []Region{},
	}
}

// NewRegionID returns a fresh, unique region identifier.
func NewRegionID() string { return "area-" + uuid.NewString() }

// Clone returns a deep copy of the menu. Actions are values, so copying the slice is enough.
func (m Menu) Clone() Menu {
	out := m
	out.Regions = append([]Region(nil), m.Regions...)
	if out.Regions == nil {
		out.Regions = []Region{}
	}
	return out
}

// IndexOf returns the position of the region with the given id, or -1.
func (m Menu) IndexOf(id string) int {
	for i, r := range m.Regions {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// Equal reports structural equality of two menus, ignoring editor-local region ids.
func Equal(a, b Menu) bool {
	if a.Size != b.Size || a.Selected != b.Selected || a.Name != b.Name || a.ChatBarText != b.ChatBarText {
		return false
	}
	if len(a.Regions) != len(b.Regions) {
		return false
	}
	for i := range a.Regions {
		if a.Regions[i].Bounds != b.Regions[i].Bounds {
			return false
		}
		if a.Regions[i].Action != b.Regions[i].Action {
			return false
		}
	}
	return true
}
