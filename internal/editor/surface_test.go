/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package editor

import (
	"math"
	"testing"
	"time"

	"richmenu/internal/domain"
)

type fixedLayout struct {
	rect ScreenRect
	ok   bool
}

func (l *fixedLayout) Rect() (ScreenRect, bool) { return l.rect, l.ok }

// binarySurface uses a 1024x512 canvas shown at half size so coordinate math is exact.
func binarySurface(regions ...domain.Region) (*Document, *Surface, *fixedLayout) {
	m := domain.NewMenu()
	m.Size = domain.Size{Width: 1024, Height: 512}
	m.Regions = regions
	d := NewDocument(m)
	d.now = tickingClock()
	l := &fixedLayout{rect: ScreenRect{Left: 0, Top: 0, Width: 512, Height: 256}, ok: true}
	return d, NewSurface(d, l), l
}

func TestCreateRegionByDrag(t *testing.T) {
	// full canvas displayed at half size, offset inside the window
	d := newTestDocument()
	l := &fixedLayout{rect: ScreenRect{Left: 10, Top: 20, Width: 1250, Height: 843}, ok: true}
	s := NewSurface(d, l)

	s.PointerDown(Point{X: 10 + 50, Y: 20 + 50})
	if s.State() != Creating {
		t.Fatalf("expected creating, got %v", s.State())
	}
	s.PointerMove(Point{X: 10 + 200, Y: 20 + 150})
	if b, ok := s.Draft(); !ok || b.Width != 300 {
		t.Fatalf("unexpected draft %+v %v", b, ok)
	}
	s.PointerUp()

	if d.Len() != 1 {
		t.Fatalf("expected one region, got %d", d.Len())
	}
	r := d.Regions()[0]
	want := domain.Bounds{X: 100, Y: 100, Width: 300, Height: 200}
	if r.Bounds != want {
		t.Fatalf("bounds = %+v, want %+v", r.Bounds, want)
	}
	if a, ok := r.Action.(domain.URIAction); !ok || a.URI != domain.DefaultActionURI {
		t.Fatalf("expected default uri action, got %#v", r.Action)
	}
	if d.SelectedID() != r.ID {
		t.Fatalf("new region should be selected")
	}
	if s.State() != Idle {
		t.Fatalf("expected idle after pointer up, got %v", s.State())
	}
}

func TestCreateDragAnyDirection(t *testing.T) {
	d, s, _ := binarySurface()
	s.PointerDown(Point{X: 200, Y: 200})
	s.PointerMove(Point{X: 100, Y: 150})
	s.PointerUp()
	got := d.Regions()[0].Bounds
	want := domain.Bounds{X: 200, Y: 300, Width: 200, Height: 100}
	if got != want {
		t.Fatalf("bounds = %+v, want %+v", got, want)
	}
}

func TestCreateThreshold(t *testing.T) {
	cases := []struct {
		name   string
		dx, dy float64 // screen pixels, scale 2
		want   int
	}{
		{"exactly twenty", 10, 10, 0},
		{"wide but flat", 200, 10, 0},
		{"just above", 10.5, 10.5, 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			d, s, _ := binarySurface()
			s.PointerDown(Point{X: 100, Y: 100})
			s.PointerMove(Point{X: 100 + c.dx, Y: 100 + c.dy})
			s.PointerUp()
			if d.Len() != c.want {
				t.Fatalf("regions = %d, want %d", d.Len(), c.want)
			}
		})
	}
}

func TestCreateClampsToCanvas(t *testing.T) {
	d, s, _ := binarySurface()
	s.PointerDown(Point{X: 400, Y: 200})
	s.PointerMove(Point{X: 9000, Y: -50})
	s.PointerUp()
	got := d.Regions()[0].Bounds
	want := domain.Bounds{X: 800, Y: 0, Width: 224, Height: 400}
	if got != want {
		t.Fatalf("bounds = %+v, want %+v", got, want)
	}
	if !got.Within(d.Size()) {
		t.Fatalf("region escaped the canvas: %+v", got)
	}
}

func TestCreateIgnoredAtCapacity(t *testing.T) {
	var regions []domain.Region
	for i := 0; i < domain.MaxRegions; i++ {
		regions = append(regions, region(i*30, 0, 25, 25))
	}
	d, s, _ := binarySurface(regions...)
	s.PointerDown(Point{X: 100, Y: 100})
	if s.State() != Idle {
		t.Fatalf("pointer down at capacity must be ignored, state %v", s.State())
	}
	s.PointerMove(Point{X: 200, Y: 200})
	s.PointerUp()
	if d.Len() != domain.MaxRegions {
		t.Fatalf("region count changed: %d", d.Len())
	}
}

func TestCreateAbortsWithoutLayout(t *testing.T) {
	d, s, l := binarySurface()
	l.ok = false
	s.PointerDown(Point{X: 10, Y: 10})
	if s.State() != Idle {
		t.Fatalf("unmeasured canvas must not start a gesture")
	}
	l.ok = true
	l.rect.Width = 0
	s.PointerDown(Point{X: 10, Y: 10})
	if s.State() != Idle || d.Len() != 0 {
		t.Fatalf("zero-sized canvas must not start a gesture")
	}
}

func TestCreatedIDsAreUnique(t *testing.T) {
	d, s, _ := binarySurface()
	for i := 0; i < domain.MaxRegions+2; i++ {
		x := float64(i * 40)
		s.PointerDown(Point{X: x, Y: 0})
		s.PointerMove(Point{X: x + 30, Y: 30})
		s.PointerUp()
	}
	if d.Len() != domain.MaxRegions {
		t.Fatalf("expected the canvas to stop at %d regions, got %d", domain.MaxRegions, d.Len())
	}
	seen := map[string]bool{}
	for _, r := range d.Regions() {
		if seen[r.ID] {
			t.Fatalf("duplicate id %s", r.ID)
		}
		seen[r.ID] = true
	}
	if err := d.Menu().Validate(); err != nil {
		t.Fatalf("document invalid: %v", err)
	}
}

func TestDragRegion(t *testing.T) {
	r := region(0, 0, 200, 100)
	d := newTestDocument(r)
	l := &fixedLayout{rect: ScreenRect{Left: 0, Top: 0, Width: 1250, Height: 843}, ok: true}
	s := NewSurface(d, l)

	s.RegionPointerDown(r.ID, Point{X: 40, Y: 30})
	if s.State() != Dragging || d.SelectedID() != r.ID {
		t.Fatalf("expected dragging the selected region, state %v", s.State())
	}
	s.PointerMove(Point{X: 65, Y: 55})
	got, _ := d.Region(r.ID)
	want := domain.Bounds{X: 50, Y: 50, Width: 200, Height: 100}
	if got.Bounds != want {
		t.Fatalf("bounds = %+v, want %+v", got.Bounds, want)
	}
	s.PointerMove(Point{X: -500, Y: -500})
	got, _ = d.Region(r.ID)
	if got.Bounds.X != 0 || got.Bounds.Y != 0 {
		t.Fatalf("drag must clamp at the origin, got %+v", got.Bounds)
	}
	s.PointerMove(Point{X: 5000, Y: 5000})
	got, _ = d.Region(r.ID)
	if got.Bounds.X != 2500-200 || got.Bounds.Y != 1686-100 {
		t.Fatalf("drag must clamp at the far edge, got %+v", got.Bounds)
	}
	s.PointerUp()
	if s.State() != Idle || d.Len() != 1 {
		t.Fatalf("drag must not create regions")
	}
}

func TestDragCarriesSubUnitMotion(t *testing.T) {
	r := region(100, 100, 50, 50)
	d, s, l := binarySurface(r)
	// canvas shown at four times its size: one screen pixel is a quarter unit
	l.rect = ScreenRect{Width: 4096, Height: 2048}
	s.RegionPointerDown(r.ID, Point{X: 400, Y: 400})
	for i := 1; i <= 4; i++ {
		s.PointerMove(Point{X: 400 + float64(i), Y: 400})
	}
	got, _ := d.Region(r.ID)
	if got.Bounds.X != 101 || got.Bounds.Y != 100 {
		t.Fatalf("four quarter-unit moves should add up to one unit, got %+v", got.Bounds)
	}
}

func TestDragRecomputesScaleEachEvent(t *testing.T) {
	r := region(0, 0, 100, 100)
	d, s, l := binarySurface(r)
	s.RegionPointerDown(r.ID, Point{X: 10, Y: 10})
	s.PointerMove(Point{X: 20, Y: 10}) // scale 2
	l.rect = ScreenRect{Width: 1024, Height: 512}
	s.PointerMove(Point{X: 30, Y: 10}) // window resized, scale 1
	got, _ := d.Region(r.ID)
	if got.Bounds.X != 30 {
		t.Fatalf("x = %d, want 30", got.Bounds.X)
	}
}

func TestResizeRegion(t *testing.T) {
	r := region(100, 100, 200, 200)
	d, s, _ := binarySurface(r)
	s.HandlePointerDown(r.ID, CornerSE, Point{X: 150, Y: 150})
	if s.State() != Resizing {
		t.Fatalf("expected resizing, got %v", s.State())
	}
	s.PointerMove(Point{X: 200, Y: 175})
	got, _ := d.Region(r.ID)
	if want := (domain.Bounds{X: 100, Y: 100, Width: 300, Height: 250}); got.Bounds != want {
		t.Fatalf("bounds = %+v, want %+v", got.Bounds, want)
	}
	// collapsing keeps a minimum size anchored at the fixed corner
	s.PointerMove(Point{X: 51, Y: 51})
	got, _ = d.Region(r.ID)
	if want := (domain.Bounds{X: 100, Y: 100, Width: 21, Height: 21}); got.Bounds != want {
		t.Fatalf("bounds = %+v, want %+v", got.Bounds, want)
	}
	// past the canvas edge
	s.PointerMove(Point{X: 9999, Y: 9999})
	got, _ = d.Region(r.ID)
	if want := (domain.Bounds{X: 100, Y: 100, Width: 924, Height: 412}); got.Bounds != want {
		t.Fatalf("bounds = %+v, want %+v", got.Bounds, want)
	}
	s.PointerUp()
}

func TestResizeFromNorthWestCrossesOver(t *testing.T) {
	r := region(100, 100, 200, 200)
	d, s, _ := binarySurface(r)
	s.HandlePointerDown(r.ID, CornerNW, Point{X: 50, Y: 50})
	s.PointerMove(Point{X: 250, Y: 250})
	got, _ := d.Region(r.ID)
	if want := (domain.Bounds{X: 300, Y: 300, Width: 200, Height: 200}); got.Bounds != want {
		t.Fatalf("bounds = %+v, want %+v", got.Bounds, want)
	}
}

func TestDeleteDuringGesture(t *testing.T) {
	a, b := region(0, 0, 100, 100), region(200, 0, 100, 100)
	d, s, _ := binarySurface(a, b)
	s.RegionPointerDown(a.ID, Point{X: 10, Y: 10})
	if !s.Delete(a.ID) {
		t.Fatalf("delete failed")
	}
	if s.State() != Idle || d.SelectedID() != "" || d.Len() != 1 {
		t.Fatalf("state %v selected %q len %d", s.State(), d.SelectedID(), d.Len())
	}
	s.PointerMove(Point{X: 100, Y: 100})
	if got, _ := d.Region(b.ID); got.Bounds.X != 200 {
		t.Fatalf("other region moved: %+v", got.Bounds)
	}
	if s.Delete(a.ID) {
		t.Fatalf("deleting twice must report false")
	}
}

func TestDeleteUnselectedKeepsSelection(t *testing.T) {
	a, b := region(0, 0, 100, 100), region(200, 0, 100, 100)
	d, s, _ := binarySurface(a, b)
	s.RegionPointerDown(a.ID, Point{X: 10, Y: 10})
	s.PointerUp()
	if !s.Delete(b.ID) {
		t.Fatalf("delete failed")
	}
	if d.SelectedID() != a.ID || d.Len() != 1 {
		t.Fatalf("selected %q len %d", d.SelectedID(), d.Len())
	}
}

func TestCancelDropsDraft(t *testing.T) {
	d, s, _ := binarySurface()
	s.PointerDown(Point{X: 0, Y: 0})
	s.PointerMove(Point{X: 100, Y: 100})
	s.Cancel()
	s.PointerUp()
	if d.Len() != 0 {
		t.Fatalf("cancelled draft was committed")
	}
}

func TestOverlays(t *testing.T) {
	a, b := region(0, 0, 512, 256), region(512, 256, 256, 128)
	d, s, _ := binarySurface(a, b)
	d.Select(b.ID)
	s.PointerDown(Point{X: 0, Y: 0})
	s.PointerMove(Point{X: 128, Y: 64})

	ov := s.Overlays()
	if len(ov) != 3 {
		t.Fatalf("expected 2 regions and a draft, got %d", len(ov))
	}
	if ov[0].Label != "Area 1" || ov[0].Style != StyleNormal || ov[0].Width != 50 || ov[0].Height != 50 {
		t.Fatalf("unexpected first overlay %+v", ov[0])
	}
	if ov[1].Label != "Area 2" || ov[1].Style != StyleSelected || ov[1].Left != 50 || ov[1].Width != 25 {
		t.Fatalf("unexpected second overlay %+v", ov[1])
	}
	if ov[2].Style != StyleDraft || math.Abs(ov[2].Width-25) > 1e-9 {
		t.Fatalf("unexpected draft overlay %+v", ov[2])
	}
}

func TestHitTestAndPress(t *testing.T) {
	a, b := region(0, 0, 400, 400), region(200, 200, 200, 200)
	d, s, _ := binarySurface(a, b)

	if h := s.HitTest(Point{X: 150, Y: 150}); h.ID != b.ID || h.Handle {
		t.Fatalf("topmost region should win, got %+v", h)
	}
	if h := s.HitTest(Point{X: 400, Y: 10}); h.OnRegion {
		t.Fatalf("expected empty canvas, got %+v", h)
	}

	d.Select(b.ID)
	h := s.HitTest(Point{X: 201, Y: 199})
	if !h.Handle || h.Corner != CornerSE || h.ID != b.ID {
		t.Fatalf("expected south-east handle, got %+v", h)
	}

	s.Press(Point{X: 201, Y: 199})
	if s.State() != Resizing {
		t.Fatalf("press on handle should resize, got %v", s.State())
	}
	s.PointerUp()
	s.Press(Point{X: 20, Y: 20})
	if s.State() != Dragging || d.SelectedID() != a.ID {
		t.Fatalf("press on region should drag it, got %v %q", s.State(), d.SelectedID())
	}
	s.PointerUp()
	s.Press(Point{X: 450, Y: 20})
	if s.State() != Creating || d.SelectedID() != "" {
		t.Fatalf("press on empty canvas should start creating, got %v", s.State())
	}
}

func TestUndoCreatedRegion(t *testing.T) {
	d, s, _ := binarySurface()
	s.PointerDown(Point{X: 0, Y: 0})
	s.PointerMove(Point{X: 50, Y: 50})
	s.PointerUp()
	id := d.Regions()[0].ID
	if !d.Undo() || d.Len() != 0 || d.SelectedID() != "" {
		t.Fatalf("undo should remove the created region and its selection")
	}
	if !d.Redo() {
		t.Fatalf("redo failed")
	}
	if _, ok := d.Region(id); !ok {
		t.Fatalf("redo should restore the region with its id")
	}
}

func TestEachGestureIsOneUndoStep(t *testing.T) {
	d, s, _ := binarySurface()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return base }

	// create 0,0 200x200, then drag it right by 100 within the same instant
	s.PointerDown(Point{X: 0, Y: 0})
	s.PointerMove(Point{X: 100, Y: 100})
	s.PointerUp()
	if d.Len() != 1 {
		t.Fatalf("region not created")
	}
	id := d.Regions()[0].ID
	s.RegionPointerDown(id, Point{X: 10, Y: 10})
	s.PointerMove(Point{X: 30, Y: 10})
	s.PointerMove(Point{X: 60, Y: 10})
	s.PointerUp()

	if !d.Undo() {
		t.Fatalf("undo failed")
	}
	got, ok := d.Region(id)
	if !ok || got.Bounds.X != 0 {
		t.Fatalf("undo should revert only the drag: %+v %v", got.Bounds, ok)
	}
	if !d.Undo() || d.Len() != 0 {
		t.Fatalf("second undo should remove the created region, len=%d", d.Len())
	}
}
