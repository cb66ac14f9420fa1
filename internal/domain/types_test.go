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
	"errors"
	"strings"
	"testing"
)

func sampleMenu() Menu {
	m := NewMenu()
	m.Regions = []Region{
		{ID: NewRegionID(), Bounds: Bounds{X: 0, Y: 0, Width: 1250, Height: 843}, Action: URIAction{URI: "https://example.com/shop"}},
		{ID: NewRegionID(), Bounds: Bounds{X: 1250, Y: 0, Width: 1250, Height: 843}, Action: PostbackAction{Data: "action=buy&item=001", DisplayText: "Buy"}},
		{ID: NewRegionID(), Bounds: Bounds{X: 0, Y: 843, Width: 1250, Height: 843}, Action: MessageAction{Text: "hello"}},
		{ID: NewRegionID(), Bounds: Bounds{X: 1250, Y: 843, Width: 1250, Height: 843}, Action: DateTimePickerAction{Mode: PickerDateTime, Data: "action=schedule", Min: "2025-01-01T00:00"}},
	}
	return m
}

func TestMenuJSONRoundTrip(t *testing.T) {
	m := sampleMenu()
	b, err := Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := Unmarshal(b)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !Equal(m, got) {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", m, got)
	}
	for i, r := range got.Regions {
		if r.ID == "" || r.ID == m.Regions[i].ID {
			t.Fatalf("region %d should carry a fresh id, got %q", i, r.ID)
		}
	}
	b2, err := Marshal(got)
	if err != nil {
		t.Fatalf("marshal again: %v", err)
	}
	if string(b) != string(b2) {
		t.Fatalf("export not stable:\n%s\n---\n%s", b, b2)
	}
}

func TestMenuWireShape(t *testing.T) {
	m := sampleMenu()
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("decode raw: %v", err)
	}
	for _, k := range []string{"size", "selected", "name", "chatBarText", "areas"} {
		if _, ok := raw[k]; !ok {
			t.Fatalf("missing key %q in %s", k, b)
		}
	}
	areas := raw["areas"].([]any)
	first := areas[0].(map[string]any)
	if _, ok := first["id"]; ok {
		t.Fatalf("region id must not be exported: %v", first)
	}
	act := first["action"].(map[string]any)
	if act["type"] != "uri" || act["uri"] != "https://example.com/shop" {
		t.Fatalf("unexpected uri action: %v", act)
	}
	if _, ok := act["text"]; ok {
		t.Fatalf("uri action leaked text field: %v", act)
	}
	msg := areas[2].(map[string]any)["action"].(map[string]any)
	if len(msg) != 2 || msg["text"] != "hello" {
		t.Fatalf("message action should carry only type and text: %v", msg)
	}
}

func TestEmptyMenuExportsAreasArray(t *testing.T) {
	m := Menu{Size: SizeCompact, Name: "x"}
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"areas":[]`) {
		t.Fatalf("expected empty areas array, got %s", b)
	}
}

func TestUnmarshalRejectsUnknownActionType(t *testing.T) {
	doc := `{"size":{"width":2500,"height":843},"selected":false,"name":"n","chatBarText":"c",
		"areas":[{"bounds":{"x":0,"y":0,"width":100,"height":100},"action":{"type":"camera"}}]}`
	if _, err := Unmarshal([]byte(doc)); err == nil || !strings.Contains(err.Error(), "camera") {
		t.Fatalf("expected unknown action type error, got %v", err)
	}
}

func TestChangeActionTypeDropsFields(t *testing.T) {
	a := Action(URIAction{URI: "https://example.com"})
	a = ChangeActionType(a, ActionMessage)
	msg, ok := a.(MessageAction)
	if !ok {
		t.Fatalf("expected MessageAction, got %T", a)
	}
	if msg != (MessageAction{}) {
		t.Fatalf("expected empty message action, got %+v", msg)
	}
	w, err := toWire(a)
	if err != nil {
		t.Fatalf("toWire: %v", err)
	}
	if w.URI != "" {
		t.Fatalf("uri leaked into message action: %+v", w)
	}

	pb := ChangeActionType(PostbackAction{Data: "d", DisplayText: "t"}, ActionDateTimePicker)
	dt, ok := pb.(DateTimePickerAction)
	if !ok || dt.Data != "" || dt.Mode != PickerDate {
		t.Fatalf("expected empty date picker in date mode, got %#v", pb)
	}

	same := ChangeActionType(PostbackAction{Data: "keep"}, ActionPostback)
	if same.(PostbackAction).Data != "keep" {
		t.Fatalf("switching to the same type must keep fields, got %#v", same)
	}
}

func TestParseActionType(t *testing.T) {
	for _, s := range []string{"uri", "POSTBACK", " message ", "datetimepicker"} {
		if _, err := ParseActionType(s); err != nil {
			t.Fatalf("ParseActionType(%q): %v", s, err)
		}
	}
	if _, err := ParseActionType("location"); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}

func TestValidate(t *testing.T) {
	if err := sampleMenu().Validate(); err != nil {
		t.Fatalf("sample menu should be valid: %v", err)
	}

	m := sampleMenu()
	m.ChatBarText = "this label is far too long"
	m.Regions[0].Bounds.X = 2000 // 2000+1250 > 2500
	m.Regions[1].ID = m.Regions[2].ID
	m.Regions[2].Action = MessageAction{}
	err := m.Validate()
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	if len(verrs) != 4 {
		t.Fatalf("expected 4 problems, got %d: %v", len(verrs), verrs)
	}

	many := NewMenu()
	for i := 0; i < MaxRegions+1; i++ {
		many.Regions = append(many.Regions, Region{ID: NewRegionID(), Bounds: Bounds{Width: 30, Height: 30}, Action: DefaultAction()})
	}
	if err := many.Validate(); err == nil || !strings.Contains(err.Error(), "at most 10") {
		t.Fatalf("expected capacity error, got %v", err)
	}
}

func TestBoundsWithin(t *testing.T) {
	s := SizeCompact
	cases := []struct {
		b    Bounds
		want bool
	}{
		{Bounds{0, 0, 2500, 843}, true},
		{Bounds{1, 0, 2500, 843}, false},
		{Bounds{-1, 0, 10, 10}, false},
		{Bounds{100, 800, 10, 43}, true},
		{Bounds{100, 800, 10, 44}, false},
	}
	for _, c := range cases {
		if got := c.b.Within(s); got != c.want {
			t.Fatalf("%+v.Within(%v) = %v, want %v", c.b, s, got, c.want)
		}
	}
}

func TestSizePreset(t *testing.T) {
	for name, want := range map[string]Size{"": SizeFull, "full": SizeFull, " Compact ": SizeCompact} {
		got, ok := SizePreset(name)
		if !ok || got != want {
			t.Fatalf("SizePreset(%q) = %v, %v; want %v", name, got, ok, want)
		}
	}
	if _, ok := SizePreset("square"); ok {
		t.Fatalf("unknown preset accepted")
	}
	if SizeCompact.PresetName() != "compact" || (Size{Width: 10, Height: 10}).PresetName() != "" {
		t.Fatalf("unexpected preset names")
	}
}
