/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"richmenu/internal/domain"
)

func sampleMenu() domain.Menu {
	m := domain.NewMenu()
	m.Name = "Spring Sale"
	m.Regions = []domain.Region{
		{ID: domain.NewRegionID(), Bounds: domain.Bounds{X: 0, Y: 0, Width: 1250, Height: 1686}, Action: domain.URIAction{URI: "https://example.com/sale"}},
		{ID: domain.NewRegionID(), Bounds: domain.Bounds{X: 1250, Y: 0, Width: 1250, Height: 1686}, Action: domain.DateTimePickerAction{Mode: domain.PickerTime, Data: "slot"}},
	}
	return m
}

func TestSaveAndOpenMenu(t *testing.T) {
	path := filepath.Join(t.TempDir(), "menu.json")
	m := sampleMenu()
	if err := SaveMenu(path, m); err != nil {
		t.Fatalf("SaveMenu error: %v", err)
	}
	got, fromBackup, err := OpenMenu(path)
	if err != nil {
		t.Fatalf("OpenMenu error: %v", err)
	}
	if fromBackup {
		t.Fatalf("expected the primary file to be used")
	}
	if !domain.Equal(m, got) {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", m, got)
	}
	b, _ := os.ReadFile(path)
	if !strings.HasSuffix(string(b), "}\n") || !strings.Contains(string(b), "\n  \"size\"") {
		t.Fatalf("expected indented JSON with trailing newline, got %q", b)
	}
}

func TestSaveCreatesTimestampedBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "menu.json")
	m := sampleMenu()
	if err := SaveMenu(path, m); err != nil {
		t.Fatalf("SaveMenu error: %v", err)
	}
	m.Name = "changed"
	if err := SaveMenu(path, m); err != nil {
		t.Fatalf("SaveMenu error: %v", err)
	}
	ents, err := os.ReadDir(filepath.Join(dir, BackupsDirName))
	if err != nil {
		t.Fatalf("read backups dir: %v", err)
	}
	var bakCount int
	for _, e := range ents {
		if strings.HasPrefix(e.Name(), "menu.json.") && strings.HasSuffix(e.Name(), ".bak") {
			bakCount++
		}
	}
	if bakCount != 1 {
		t.Fatalf("expected one backup file, found %d", bakCount)
	}
	// no temp files left behind
	all, _ := os.ReadDir(dir)
	for _, e := range all {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestOpenFallsBackToLatestBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "menu.json")
	m := sampleMenu()
	if err := SaveMenu(path, m); err != nil {
		t.Fatalf("SaveMenu error: %v", err)
	}
	if err := SaveMenu(path, m); err != nil {
		t.Fatalf("SaveMenu error: %v", err)
	}
	if err := os.WriteFile(path, []byte("{ not json"), 0o644); err != nil {
		t.Fatalf("corrupt file: %v", err)
	}
	got, fromBackup, err := OpenMenu(path)
	if err != nil {
		t.Fatalf("OpenMenu error: %v", err)
	}
	if !fromBackup || got.Name != "Spring Sale" {
		t.Fatalf("expected backup copy, got fromBackup=%v name=%q", fromBackup, got.Name)
	}
}

func TestOpenWithoutBackupFails(t *testing.T) {
	_, _, err := OpenMenu(filepath.Join(t.TempDir(), "missing.json"))
	if err == nil {
		t.Fatalf("expected error for a missing file without backups")
	}
}

func TestImportRejectsSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"missing areas":     `{"size":{"width":2500,"height":843},"selected":true,"name":"n","chatBarText":"c"}`,
		"unknown action":    `{"size":{"width":2500,"height":843},"selected":true,"name":"n","chatBarText":"c","areas":[{"bounds":{"x":0,"y":0,"width":10,"height":10},"action":{"type":"camera"}}]}`,
		"chat bar too long": `{"size":{"width":2500,"height":843},"selected":true,"name":"n","chatBarText":"fifteen chars!!","areas":[]}`,
		"negative x":        `{"size":{"width":2500,"height":843},"selected":true,"name":"n","chatBarText":"c","areas":[{"bounds":{"x":-1,"y":0,"width":10,"height":10},"action":{"type":"message","text":"t"}}]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Import([]byte(doc))
			var se *SchemaError
			if !errors.As(err, &se) || len(se.Problems) == 0 {
				t.Fatalf("expected schema error, got %v", err)
			}
		})
	}
	if _, err := Import([]byte("nope")); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestImportAcceptsOriginalExport(t *testing.T) {
	doc := `{
  "size": {"width": 2500, "height": 1686},
  "selected": true,
  "name": "My Rich Menu",
  "chatBarText": "Menu",
  "areas": [
    {"bounds": {"x": 0, "y": 0, "width": 833, "height": 843}, "action": {"type": "postback", "data": "action=buy", "displayText": "Buy"}},
    {"bounds": {"x": 833, "y": 0, "width": 833, "height": 843}, "action": {"type": "datetimepicker", "data": "d", "mode": "datetime"}}
  ]
}`
	m, err := Import([]byte(doc))
	if err != nil {
		t.Fatalf("Import error: %v", err)
	}
	if len(m.Regions) != 2 || m.Regions[0].ID == "" || m.Regions[0].ID == m.Regions[1].ID {
		t.Fatalf("expected two regions with fresh ids, got %+v", m.Regions)
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("imported menu invalid: %v", err)
	}
}

func TestDefaultFileName(t *testing.T) {
	cases := map[string]string{
		"My Rich Menu": "My Rich Menu.json",
		"":             "rich-menu.json",
		"  ":           "rich-menu.json",
		"a/b:c":        "a-b-c.json",
		"..":           "rich-menu.json",
	}
	for name, want := range cases {
		m := domain.NewMenu()
		m.Name = name
		if got := DefaultFileName(m); got != want {
			t.Fatalf("DefaultFileName(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestAutosaveCrash(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "autosave")
	p, err := AutosaveCrash(dir, sampleMenu())
	if err != nil {
		t.Fatalf("AutosaveCrash error: %v", err)
	}
	m, _, err := OpenMenu(p)
	if err != nil || len(m.Regions) != 2 {
		t.Fatalf("autosave not readable: %v", err)
	}
}
