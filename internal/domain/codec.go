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
	"encoding/json"
	"fmt"
)

// actionWire is the flat JSON record the platform uses for every action kind.
type actionWire struct {
	Type        ActionType `json:"type"`
	URI         string     `json:"uri,omitempty"`
	Data        string     `json:"data,omitempty"`
	Text        string     `json:"text,omitempty"`
	DisplayText string     `json:"displayText,omitempty"`
	Mode        PickerMode `json:"mode,omitempty"`
	Initial     string     `json:"initial,omitempty"`
	Max         string     `json:"max,omitempty"`
	Min         string     `json:"min,omitempty"`
}

func toWire(a Action) (actionWire, error) {
	switch v := a.(type) {
	case URIAction:
		return actionWire{Type: ActionURI, URI: v.URI}, nil
	case PostbackAction:
		return actionWire{Type: ActionPostback, Data: v.Data, DisplayText: v.DisplayText}, nil
	case MessageAction:
		return actionWire{Type: ActionMessage, Text: v.Text}, nil
	case DateTimePickerAction:
		return actionWire{Type: ActionDateTimePicker, Mode: v.Mode, Data: v.Data, Initial: v.Initial, Max: v.Max, Min: v.Min}, nil
	case nil:
		return actionWire{}, fmt.Errorf("region has no action")
	default:
		return actionWire{}, fmt.Errorf("unsupported action %T", a)
	}
}

func (w actionWire) action() (Action, error) {
	switch w.Type {
	case ActionURI:
		return URIAction{URI: w.URI}, nil
	case ActionPostback:
		return PostbackAction{Data: w.Data, DisplayText: w.DisplayText}, nil
	case ActionMessage:
		return MessageAction{Text: w.Text}, nil
	case ActionDateTimePicker:
		return DateTimePickerAction{Mode: w.Mode, Data: w.Data, Initial: w.Initial, Max: w.Max, Min: w.Min}, nil
	default:
		return nil, fmt.Errorf("unknown action type %q", w.Type)
	}
}

type regionWire struct {
	Bounds Bounds     `json:"bounds"`
	Action actionWire `json:"action"`
}

// MarshalJSON writes {bounds, action}; the editor-local ID is not part of the format.
func (r Region) MarshalJSON() ([]byte, error) {
	aw, err := toWire(r.Action)
	if err != nil {
		return nil, err
	}
	return json.Marshal(regionWire{Bounds: r.Bounds, Action: aw})
}

// UnmarshalJSON reads a region and assigns it a fresh ID.
func (r *Region) UnmarshalJSON(b []byte) error {
	var w regionWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	a, err := w.Action.action()
	if err != nil {
		return err
	}
	*r = Region{ID: NewRegionID(), Bounds: w.Bounds, Action: a}
	return nil
}

// menuAlias drops the methods of Menu to avoid recursion.
type menuAlias Menu

// MarshalJSON always writes "areas" as an array, never null.
func (m Menu) MarshalJSON() ([]byte, error) {
	a := menuAlias(m)
	if a.Regions == nil {
		a.Regions = []Region{}
	}
	return json.Marshal(a)
}

// Marshal encodes the menu as the indented export document.
func Marshal(m Menu) ([]byte, error) {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal menu: %w", err)
	}
	return b, nil
}

// Unmarshal decodes an export document. Regions get fresh ids.
func Unmarshal(b []byte) (Menu, error) {
	var m Menu
	if err := json.Unmarshal(b, &m); err != nil {
		return Menu{}, fmt.Errorf("parse menu: %w", err)
	}
	if m.Regions == nil {
		m.Regions = []Region{}
	}
	return m, nil
}
