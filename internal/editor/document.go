/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package editor holds the in-memory menu document and the pointer gesture
// state machine that turns canvas events into region changes.
// Both types are owned by the UI goroutine and are not safe for concurrent use.
package editor

import (
	"encoding/json"
	"log/slog"
	"time"
	"unicode/utf8"

	"richmenu/internal/domain"
	applog "richmenu/internal/log"
	"richmenu/internal/undo"
)

// Document is the single owner of the menu being edited.
// Every change replaces the whole document value; callers only ever receive copies.
type Document struct {
	menu       domain.Menu
	selectedID string
	history    *undo.Manager
	listeners  []func(domain.Menu)
	now        func() time.Time
	log        *slog.Logger
}

// NewDocument starts editing a copy of m.
func NewDocument(m domain.Menu) *Document {
	return &Document{
		menu: m.Clone(),
		history: undo.NewManager(undo.Config{
			MaxBytes:    4 * 1024 * 1024,
			MaxDepth:    100,
			MinInterval: 400 * time.Millisecond,
		}),
		now: time.Now,
		log: applog.WithComponent("editor"),
	}
}

// OnChange registers fn to be called with the new document after every change.
func (d *Document) OnChange(fn func(domain.Menu)) {
	if fn != nil {
		d.listeners = append(d.listeners, fn)
	}
}

// Menu returns a snapshot of the whole document.
func (d *Document) Menu() domain.Menu { return d.menu.Clone() }

// Size is the logical canvas size.
func (d *Document) Size() domain.Size { return d.menu.Size }

// Regions returns a copy of the region sequence.
func (d *Document) Regions() []domain.Region { return d.menu.Clone().Regions }

// Len is the current region count.
func (d *Document) Len() int { return len(d.menu.Regions) }

// Region looks a region up by id.
func (d *Document) Region(id string) (domain.Region, bool) {
	if i := d.menu.IndexOf(id); i >= 0 {
		return d.menu.Regions[i], true
	}
	return domain.Region{}, false
}

// Replace swaps in a whole new document (e.g. after import) and clears the selection.
func (d *Document) Replace(m domain.Menu) {
	d.selectedID = ""
	d.step(func() { d.commit(m.Clone()) })
}

// ReplaceRegions swaps the whole region sequence. Callers keep the capacity and
// bounds invariants. A selected region that is no longer present is deselected.
func (d *Document) ReplaceRegions(regions []domain.Region) {
	next := d.menu.Clone()
	next.Regions = append([]domain.Region{}, regions...)
	d.commit(next)
}

// UpdateRegion replaces the region with the same id. It reports false if the id is unknown.
func (d *Document) UpdateRegion(r domain.Region) bool {
	i := d.menu.IndexOf(r.ID)
	if i < 0 {
		return false
	}
	regions := d.Regions()
	regions[i] = r
	d.ReplaceRegions(regions)
	return true
}

// RemoveRegion deletes a region by id. Deleting the selected region clears the selection.
func (d *Document) RemoveRegion(id string) bool {
	if d.menu.IndexOf(id) < 0 {
		return false
	}
	regions := make([]domain.Region, 0, len(d.menu.Regions))
	for _, r := range d.menu.Regions {
		if r.ID != id {
			regions = append(regions, r)
		}
	}
	d.step(func() { d.ReplaceRegions(regions) })
	return true
}

// SetAction replaces the action of a region.
func (d *Document) SetAction(id string, a domain.Action) bool {
	r, ok := d.Region(id)
	if !ok || a == nil {
		return false
	}
	r.Action = a
	return d.UpdateRegion(r)
}

// ChangeActionType switches the action kind of a region, dropping every field of the old kind.
func (d *Document) ChangeActionType(id string, t domain.ActionType) bool {
	r, ok := d.Region(id)
	if !ok {
		return false
	}
	ok = false
	d.step(func() { ok = d.SetAction(id, domain.ChangeActionType(r.Action, t)) })
	return ok
}

// SetSize changes the canvas size. Regions are moved (and if needed shrunk) to stay inside.
func (d *Document) SetSize(s domain.Size) {
	if !s.Valid() || s == d.menu.Size {
		return
	}
	next := d.menu.Clone()
	next.Size = s
	for i := range next.Regions {
		next.Regions[i].Bounds = fitBounds(next.Regions[i].Bounds, s)
	}
	d.step(func() { d.commit(next) })
}

func (d *Document) SetName(name string) {
	next := d.menu.Clone()
	next.Name = name
	d.commit(next)
}

// SetChatBarText stores at most domain.MaxChatBarText runes.
func (d *Document) SetChatBarText(text string) {
	if utf8.RuneCountInString(text) > domain.MaxChatBarText {
		text = string([]rune(text)[:domain.MaxChatBarText])
	}
	next := d.menu.Clone()
	next.ChatBarText = text
	d.commit(next)
}

func (d *Document) SetSelected(v bool) {
	next := d.menu.Clone()
	next.Selected = v
	d.step(func() { d.commit(next) })
}

// Select marks the region with the given id as selected. It never changes the document.
func (d *Document) Select(id string) bool {
	if d.menu.IndexOf(id) < 0 {
		return false
	}
	d.selectedID = id
	return true
}

func (d *Document) ClearSelection() { d.selectedID = "" }

// SelectedID is the id of the selected region or "".
func (d *Document) SelectedID() string { return d.selectedID }

// Selected returns the selected region, if any.
func (d *Document) Selected() (domain.Region, bool) {
	if d.selectedID == "" {
		return domain.Region{}, false
	}
	return d.Region(d.selectedID)
}

// CanUndo and CanRedo report whether history steps are available.
func (d *Document) CanUndo() bool { return d.history.CanUndo() }
func (d *Document) CanRedo() bool { return d.history.CanRedo() }

// Undo restores the document from before the last change.
func (d *Document) Undo() bool {
	cur, err := encodeEntry(d.menu)
	if err != nil {
		d.log.Error("encode history entry failed", slog.Any("err", err))
		return false
	}
	s, ok := d.history.Undo(undo.Snapshot{Blob: cur, TS: d.now()})
	if !ok {
		return false
	}
	return d.restore(s.Blob)
}

// Redo re-applies the last undone change.
func (d *Document) Redo() bool {
	cur, err := encodeEntry(d.menu)
	if err != nil {
		d.log.Error("encode history entry failed", slog.Any("err", err))
		return false
	}
	s, ok := d.history.Redo(undo.Snapshot{Blob: cur, TS: d.now()})
	if !ok {
		return false
	}
	return d.restore(s.Blob)
}

func (d *Document) restore(blob []byte) bool {
	m, err := decodeEntry(blob)
	if err != nil {
		d.log.Error("decode history entry failed", slog.Any("err", err))
		return false
	}
	d.swap(m)
	return true
}

// EndBurst ends the current run of coalesced changes (a drag or typing in a field).
func (d *Document) EndBurst() { d.history.EndBurst() }

// step applies fn as one undo step of its own, never merged with its neighbours.
func (d *Document) step(fn func()) {
	d.history.EndBurst()
	fn()
	d.history.EndBurst()
}

// commit records the current document in the history and swaps in next.
func (d *Document) commit(next domain.Menu) {
	if blob, err := encodeEntry(d.menu); err == nil {
		d.history.Push(undo.Snapshot{Blob: blob, TS: d.now()})
	} else {
		d.log.Warn("history snapshot skipped", slog.Any("err", err))
	}
	d.swap(next)
}

func (d *Document) swap(next domain.Menu) {
	d.menu = next
	if d.selectedID != "" && d.menu.IndexOf(d.selectedID) < 0 {
		d.selectedID = ""
	}
	for _, fn := range d.listeners {
		fn(d.menu.Clone())
	}
}

// historyEntry keeps region ids next to the wire document, which does not carry them.
type historyEntry struct {
	Menu json.RawMessage `json:"menu"`
	IDs  []string        `json:"ids"`
}

func encodeEntry(m domain.Menu) ([]byte, error) {
	doc, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(m.Regions))
	for i, r := range m.Regions {
		ids[i] = r.ID
	}
	return json.Marshal(historyEntry{Menu: doc, IDs: ids})
}

func decodeEntry(b []byte) (domain.Menu, error) {
	var e historyEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return domain.Menu{}, err
	}
	m, err := domain.Unmarshal(e.Menu)
	if err != nil {
		return domain.Menu{}, err
	}
	for i := range m.Regions {
		if i < len(e.IDs) && e.IDs[i] != "" {
			m.Regions[i].ID = e.IDs[i]
		}
	}
	return m, nil
}

// fitBounds moves b inside a canvas of size s, shrinking it only when it is larger than the canvas.
func fitBounds(b domain.Bounds, s domain.Size) domain.Bounds {
	b.Width = clampInt(b.Width, 0, s.Width)
	b.Height = clampInt(b.Height, 0, s.Height)
	b.X = clampInt(b.X, 0, s.Width-b.Width)
	b.Y = clampInt(b.Y, 0, s.Height-b.Height)
	return b
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
