/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package undo

import (
	"testing"
	"time"
)

func snap(s string, ts time.Time) Snapshot { return Snapshot{Blob: []byte(s), TS: ts} }

func TestUndoRedoBasic(t *testing.T) {
	m := NewManager(Config{MaxBytes: 1024 * 1024, MaxDepth: 10, MinInterval: 10 * time.Millisecond})
	t0 := time.Now()
	m.Push(snap("a", t0))
	m.Push(snap("b", t0.Add(20*time.Millisecond)))
	if _, depth, _ := m.Stats(); depth != 2 {
		t.Fatalf("expected 2 undo steps, got %d", depth)
	}
	s, ok := m.Undo(snap("c", t0.Add(time.Second)))
	if !ok || string(s.Blob) != "b" {
		t.Fatalf("undo expected 'b', got ok=%v blob=%q", ok, string(s.Blob))
	}
	if !m.CanRedo() {
		t.Fatalf("expected redo to be available")
	}
	s, ok = m.Redo(snap("b", t0.Add(2*time.Second)))
	if !ok || string(s.Blob) != "c" {
		t.Fatalf("redo expected 'c', got ok=%v blob=%q", ok, string(s.Blob))
	}
	s, ok = m.Undo(snap("c", t0.Add(3*time.Second)))
	if !ok || string(s.Blob) != "b" {
		t.Fatalf("second undo expected 'b', got ok=%v blob=%q", ok, string(s.Blob))
	}
}

func TestPushClearsRedo(t *testing.T) {
	m := NewManager(Config{})
	t0 := time.Now()
	m.Push(snap("a", t0))
	if _, ok := m.Undo(snap("b", t0.Add(time.Second))); !ok {
		t.Fatalf("undo failed")
	}
	m.Push(snap("a", t0.Add(2*time.Second)))
	if m.CanRedo() {
		t.Fatalf("a new change must invalidate redo")
	}
}

func TestCoalesceKeepsStateBeforeBurst(t *testing.T) {
	m := NewManager(Config{MinInterval: 50 * time.Millisecond})
	t0 := time.Now()
	m.Push(snap("before-drag", t0))
	for i := 1; i <= 5; i++ {
		m.Push(snap("mid-drag", t0.Add(time.Duration(i*10)*time.Millisecond)))
	}
	if _, depth, _ := m.Stats(); depth != 1 {
		t.Fatalf("expected burst to coalesce into 1 step, got %d", depth)
	}
	s, ok := m.Undo(snap("after-drag", t0.Add(time.Second)))
	if !ok || string(s.Blob) != "before-drag" {
		t.Fatalf("expected state before the burst, got ok=%v blob=%q", ok, string(s.Blob))
	}
}

func TestCaps(t *testing.T) {
	m := NewManager(Config{MaxBytes: 1024, MaxDepth: 2, MinInterval: time.Millisecond})
	t0 := time.Now()
	for i := 0; i < 10; i++ {
		m.Push(snap("xxxxx", t0.Add(time.Duration(i)*time.Second)))
	}
	if _, depth, _ := m.Stats(); depth != 2 {
		t.Fatalf("expected MaxDepth cap to limit to 2, got %d", depth)
	}

	small := NewManager(Config{MaxBytes: 8})
	small.Push(snap("xxxx", t0))
	small.Push(snap("yyyy", t0.Add(time.Second)))
	small.Push(snap("zzzz", t0.Add(2*time.Second)))
	tb, depth, _ := small.Stats()
	if tb > 8 || depth != 2 {
		t.Fatalf("expected byte cap to prune oldest, got bytes=%d depth=%d", tb, depth)
	}
}

func TestClear(t *testing.T) {
	m := NewManager(Config{})
	m.Push(snap("abcdef", time.Now()))
	m.Clear()
	tb, u, r := m.Stats()
	if tb != 0 || u != 0 || r != 0 || m.CanUndo() {
		t.Fatalf("expected empty history, got bytes=%d undo=%d redo=%d", tb, u, r)
	}
}

func TestEndBurstSeparatesSteps(t *testing.T) {
	m := NewManager(Config{MinInterval: time.Second})
	t0 := time.Now()
	m.Push(snap("a", t0))
	m.Push(snap("b", t0.Add(10*time.Millisecond)))
	m.EndBurst()
	m.Push(snap("c", t0.Add(20*time.Millisecond)))
	if _, depth, _ := m.Stats(); depth != 2 {
		t.Fatalf("expected 2 undo steps, got %d", depth)
	}
	s, ok := m.Undo(snap("d", t0.Add(30*time.Millisecond)))
	if !ok || string(s.Blob) != "c" {
		t.Fatalf("undo expected 'c', got ok=%v blob=%q", ok, string(s.Blob))
	}
}
