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
	"log/slog"
	"math"

	"richmenu/internal/domain"
	applog "richmenu/internal/log"
)

// Point is a pointer position in screen pixels, or a position in logical canvas units.
type Point struct{ X, Y float64 }

// ScreenRect is where the canvas is currently displayed, in screen pixels.
type ScreenRect struct{ Left, Top, Width, Height float64 }

// Layout measures the displayed canvas. ok is false while the canvas has not been laid out yet.
type Layout interface {
	Rect() (r ScreenRect, ok bool)
}

// LayoutFunc adapts a function to Layout.
type LayoutFunc func() (ScreenRect, bool)

func (f LayoutFunc) Rect() (ScreenRect, bool) { return f() }

// State is the gesture currently in progress.
type State int

const (
	Idle State = iota
	Creating
	Dragging
	Resizing
)

func (s State) String() string {
	switch s {
	case Creating:
		return "creating"
	case Dragging:
		return "dragging"
	case Resizing:
		return "resizing"
	default:
		return "idle"
	}
}

// Corner identifies a resize handle.
type Corner int

const (
	CornerNW Corner = iota
	CornerNE
	CornerSW
	CornerSE
)

// fRect is an unrounded rectangle in logical units.
type fRect struct{ X, Y, W, H float64 }

// Surface converts pointer events on the canvas into region create, move and resize operations
// on a Document. The screen to canvas scale is measured again on every event.
type Surface struct {
	doc    *Document
	layout Layout
	log    *slog.Logger

	state State
	// Creating: anchor in logical units and the live draft rectangle
	anchor Point
	draft  fRect
	// Dragging/Resizing: region under the pointer
	targetID string
	// Dragging: last pointer position in screen pixels and the unsnapped, unrounded origin
	last       Point
	rawX, rawY float64
	// Resizing: the corner that stays put, in logical units
	fixed Point

	snap   SnapOptions
	guides []Guide
}

// NewSurface wires a gesture surface to a document and the canvas measurement.
func NewSurface(doc *Document, layout Layout) *Surface {
	return &Surface{doc: doc, layout: layout, log: applog.WithComponent("canvas")}
}

// SetSnap changes how dragged regions snap; the zero value turns snapping off.
func (s *Surface) SetSnap(opt SnapOptions) { s.snap = opt }

// Snap returns the current snapping options.
func (s *Surface) Snap() SnapOptions { return s.snap }

// Guides returns the alignment lines of the last snapped move while dragging.
func (s *Surface) Guides() []Guide {
	if s.state != Dragging {
		return nil
	}
	return s.guides
}

// State returns the current gesture.
func (s *Surface) State() State { return s.state }

// Draft returns the in-progress rectangle while creating.
func (s *Surface) Draft() (domain.Bounds, bool) {
	if s.state != Creating {
		return domain.Bounds{}, false
	}
	return roundRect(s.draft), true
}

// PointerDown starts drawing a new region at p (screen pixels) over empty canvas.
// It is ignored when the menu already holds domain.MaxRegions regions.
func (s *Surface) PointerDown(p Point) {
	s.reset()
	if s.doc.Len() >= domain.MaxRegions {
		s.log.Debug("create ignored, region limit reached", slog.Int("regions", s.doc.Len()))
		return
	}
	lp, ok := s.toLogical(p)
	if !ok {
		return
	}
	s.state = Creating
	s.anchor = lp
	s.draft = fRect{X: lp.X, Y: lp.Y}
}

// RegionPointerDown starts moving the region with the given id. The event belongs to the
// region, so it never starts a new region.
func (s *Surface) RegionPointerDown(id string, p Point) {
	s.reset()
	r, ok := s.doc.Region(id)
	if !ok || !s.doc.Select(id) {
		return
	}
	s.rawX, s.rawY = float64(r.Bounds.X), float64(r.Bounds.Y)
	s.state = Dragging
	s.targetID = id
	s.last = p
}

// HandlePointerDown starts resizing the region from the given corner.
func (s *Surface) HandlePointerDown(id string, c Corner, p Point) {
	s.reset()
	r, ok := s.doc.Region(id)
	if !ok {
		return
	}
	s.doc.Select(id)
	b := r.Bounds
	// the corner opposite to the grabbed handle stays fixed
	switch c {
	case CornerNW:
		s.fixed = Point{X: float64(b.Right()), Y: float64(b.Bottom())}
	case CornerNE:
		s.fixed = Point{X: float64(b.X), Y: float64(b.Bottom())}
	case CornerSW:
		s.fixed = Point{X: float64(b.Right()), Y: float64(b.Y)}
	default:
		s.fixed = Point{X: float64(b.X), Y: float64(b.Y)}
	}
	s.state = Resizing
	s.targetID = id
	s.last = p
}

// PointerMove advances the current gesture.
func (s *Surface) PointerMove(p Point) {
	switch s.state {
	case Creating:
		s.moveDraft(p)
	case Dragging:
		s.moveRegion(p)
	case Resizing:
		s.resizeRegion(p)
	}
}

// PointerUp ends the current gesture. A draft becomes a region only if both sides
// exceed domain.MinRegionSide.
func (s *Surface) PointerUp() {
	if s.state == Creating {
		s.commitDraft()
	}
	s.reset()
}

// Cancel drops the current gesture without committing a draft.
func (s *Surface) Cancel() { s.reset() }

// Delete removes a region. It is a region-level action and never starts a gesture.
func (s *Surface) Delete(id string) bool {
	if s.targetID == id {
		s.reset()
	}
	ok := s.doc.RemoveRegion(id)
	if ok {
		s.log.Info("region deleted", slog.String("id", id), slog.Int("regions", s.doc.Len()))
	}
	return ok
}

// reset also closes the history burst, so each gesture is its own undo step.
func (s *Surface) reset() {
	s.doc.EndBurst()
	s.state = Idle
	s.targetID = ""
	s.draft = fRect{}
	s.rawX, s.rawY = 0, 0
	s.guides = nil
}

func (s *Surface) moveDraft(p Point) {
	cur, ok := s.toLogical(p)
	if !ok {
		return
	}
	s.draft = fRect{
		X: math.Min(s.anchor.X, cur.X),
		Y: math.Min(s.anchor.Y, cur.Y),
		W: math.Abs(cur.X - s.anchor.X),
		H: math.Abs(cur.Y - s.anchor.Y),
	}
}

func (s *Surface) commitDraft() {
	if s.draft.W <= domain.MinRegionSide || s.draft.H <= domain.MinRegionSide {
		s.log.Debug("draft discarded", slog.Float64("w", s.draft.W), slog.Float64("h", s.draft.H))
		return
	}
	if s.doc.Len() >= domain.MaxRegions {
		return
	}
	r := domain.Region{
		ID:     domain.NewRegionID(),
		Bounds: fitBounds(roundRect(s.draft), s.doc.Size()),
		Action: domain.DefaultAction(),
	}
	regions := append(s.doc.Regions(), r)
	s.doc.ReplaceRegions(regions)
	s.doc.Select(r.ID)
	s.log.Info("region created", slog.String("id", r.ID), slog.Int("x", r.Bounds.X), slog.Int("y", r.Bounds.Y),
		slog.Int("w", r.Bounds.Width), slog.Int("h", r.Bounds.Height))
}

func (s *Surface) moveRegion(p Point) {
	r, ok := s.doc.Region(s.targetID)
	if !ok {
		s.reset()
		return
	}
	rect, ok := s.measure()
	if !ok {
		return
	}
	size := s.doc.Size()
	scaleX := float64(size.Width) / rect.Width
	scaleY := float64(size.Height) / rect.Height

	s.rawX = clampFloat(s.rawX+(p.X-s.last.X)*scaleX, 0, float64(size.Width-r.Bounds.Width))
	s.rawY = clampFloat(s.rawY+(p.Y-s.last.Y)*scaleY, 0, float64(size.Height-r.Bounds.Height))
	s.last = p

	b := r.Bounds
	b.X, b.Y = int(math.Round(s.rawX)), int(math.Round(s.rawY))
	if s.snap.Enabled() {
		b, s.guides = SnapBounds(b, s.otherBounds(r.ID), size, s.snap)
	}
	nx, ny := b.X, b.Y
	if nx == r.Bounds.X && ny == r.Bounds.Y {
		return
	}
	r.Bounds.X, r.Bounds.Y = nx, ny
	s.doc.UpdateRegion(r)
}

func (s *Surface) otherBounds(id string) []domain.Bounds {
	regions := s.doc.Regions()
	out := make([]domain.Bounds, 0, len(regions))
	for _, r := range regions {
		if r.ID != id {
			out = append(out, r.Bounds)
		}
	}
	return out
}

func (s *Surface) resizeRegion(p Point) {
	r, ok := s.doc.Region(s.targetID)
	if !ok {
		s.reset()
		return
	}
	cur, ok := s.toLogical(p)
	if !ok {
		return
	}
	s.last = p
	size := s.doc.Size()
	minSide := float64(domain.MinRegionSide + 1)
	x0, w := span(s.fixed.X, cur.X, minSide, float64(size.Width))
	y0, h := span(s.fixed.Y, cur.Y, minSide, float64(size.Height))
	b := fitBounds(roundRect(fRect{X: x0, Y: y0, W: w, H: h}), size)
	if b == r.Bounds {
		return
	}
	r.Bounds = b
	s.doc.UpdateRegion(r)
}

// span returns the start and length between a fixed and a moving coordinate,
// at least minLen long and kept inside [0, limit].
func span(fixed, moving, minLen, limit float64) (start, length float64) {
	start = math.Min(fixed, moving)
	length = math.Abs(moving - fixed)
	if length < minLen {
		length = minLen
		if moving < fixed {
			start = fixed - minLen
		} else {
			start = fixed
		}
	}
	start = clampFloat(start, 0, math.Max(0, limit-length))
	return start, length
}

// measure returns the current screen rectangle of the canvas, rejecting empty layouts.
func (s *Surface) measure() (ScreenRect, bool) {
	if s.layout == nil {
		return ScreenRect{}, false
	}
	rect, ok := s.layout.Rect()
	if !ok || rect.Width <= 0 || rect.Height <= 0 {
		return ScreenRect{}, false
	}
	return rect, true
}

// toLogical maps a screen position to canvas units, clamped to the canvas.
func (s *Surface) toLogical(p Point) (Point, bool) {
	rect, ok := s.measure()
	if !ok {
		return Point{}, false
	}
	size := s.doc.Size()
	lp := ScreenToLogical(p, rect, size)
	lp.X = clampFloat(lp.X, 0, float64(size.Width))
	lp.Y = clampFloat(lp.Y, 0, float64(size.Height))
	return lp, true
}

// ScreenToLogical scales a screen position linearly into canvas units, per axis.
func ScreenToLogical(p Point, rect ScreenRect, size domain.Size) Point {
	return Point{
		X: (p.X - rect.Left) / rect.Width * float64(size.Width),
		Y: (p.Y - rect.Top) / rect.Height * float64(size.Height),
	}
}

func roundRect(r fRect) domain.Bounds {
	return domain.Bounds{
		X:      int(math.Round(r.X)),
		Y:      int(math.Round(r.Y)),
		Width:  int(math.Round(r.W)),
		Height: int(math.Round(r.H)),
	}
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
