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
	"fmt"

	"richmenu/internal/domain"
)

// OverlayStyle selects how a region rectangle is drawn.
type OverlayStyle int

const (
	StyleNormal OverlayStyle = iota
	StyleSelected
	StyleDraft
)

// Overlay is a region rectangle ready to draw on top of the canvas image.
// Geometry is in percent of the canvas so it scales with the displayed size.
type Overlay struct {
	ID     string
	Label  string
	Left   float64
	Top    float64
	Width  float64
	Height float64
	Style  OverlayStyle
}

// HandleSize is the hit area of a resize handle in screen pixels.
const HandleSize = 8.0

// AreaLabel is the 1-based display name of the region at index i.
func AreaLabel(i int) string { return fmt.Sprintf("Area %d", i+1) }

// Overlays lists one entry per region in document order, followed by the draft while creating.
func (s *Surface) Overlays() []Overlay {
	size := s.doc.Size()
	sel := s.doc.SelectedID()
	regions := s.doc.Regions()
	out := make([]Overlay, 0, len(regions)+1)
	for i, r := range regions {
		o := percentOverlay(r.Bounds, size)
		o.ID = r.ID
		o.Label = AreaLabel(i)
		if r.ID == sel {
			o.Style = StyleSelected
		}
		out = append(out, o)
	}
	if b, ok := s.Draft(); ok {
		o := percentOverlay(b, size)
		o.Style = StyleDraft
		out = append(out, o)
	}
	return out
}

func percentOverlay(b domain.Bounds, size domain.Size) Overlay {
	if !size.Valid() {
		return Overlay{}
	}
	w, h := float64(size.Width), float64(size.Height)
	return Overlay{
		Left:   float64(b.X) / w * 100,
		Top:    float64(b.Y) / h * 100,
		Width:  float64(b.Width) / w * 100,
		Height: float64(b.Height) / h * 100,
	}
}

// Hit is the result of HitTest.
type Hit struct {
	ID       string
	Handle   bool
	Corner   Corner
	OnRegion bool
}

// HitTest finds what lies under a screen position: a resize handle of the selected
// region first, then the topmost region. The zero Hit means empty canvas.
func (s *Surface) HitTest(p Point) Hit {
	rect, ok := s.measure()
	if !ok {
		return Hit{}
	}
	size := s.doc.Size()
	toScreen := func(x, y int) Point {
		return Point{
			X: rect.Left + float64(x)/float64(size.Width)*rect.Width,
			Y: rect.Top + float64(y)/float64(size.Height)*rect.Height,
		}
	}
	if r, ok := s.doc.Selected(); ok {
		b := r.Bounds
		corners := []struct {
			c  Corner
			pt Point
		}{
			{CornerNW, toScreen(b.X, b.Y)},
			{CornerNE, toScreen(b.Right(), b.Y)},
			{CornerSW, toScreen(b.X, b.Bottom())},
			{CornerSE, toScreen(b.Right(), b.Bottom())},
		}
		for _, c := range corners {
			if abs(p.X-c.pt.X) <= HandleSize/2 && abs(p.Y-c.pt.Y) <= HandleSize/2 {
				return Hit{ID: r.ID, Handle: true, Corner: c.c, OnRegion: true}
			}
		}
	}
	regions := s.doc.Regions()
	for i := len(regions) - 1; i >= 0; i-- {
		b := regions[i].Bounds
		tl, br := toScreen(b.X, b.Y), toScreen(b.Right(), b.Bottom())
		if p.X >= tl.X && p.X <= br.X && p.Y >= tl.Y && p.Y <= br.Y {
			return Hit{ID: regions[i].ID, OnRegion: true}
		}
	}
	return Hit{}
}

// Press routes a pointer press to the gesture HitTest finds under p.
func (s *Surface) Press(p Point) {
	h := s.HitTest(p)
	switch {
	case h.Handle:
		s.HandlePointerDown(h.ID, h.Corner, p)
	case h.OnRegion:
		s.RegionPointerDown(h.ID, p)
	default:
		s.doc.ClearSelection()
		s.PointerDown(p)
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
