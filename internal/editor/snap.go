/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

// Snapping of a dragged region against the canvas border and the other regions.
// Pure functions over logical units so they can be tested without a frontend.

import "richmenu/internal/domain"

// SnapOptions controls region snapping while dragging. The zero value disables it.
type SnapOptions struct {
	// Threshold is the largest distance, in logical canvas units, that still snaps.
	Threshold int
	Edges     bool
	Centers   bool
}

// Enabled reports whether any snapping applies.
func (o SnapOptions) Enabled() bool { return o.Threshold > 0 && (o.Edges || o.Centers) }

// DefaultSnap snaps edges and centers within 24 units (about 1% of a full size menu).
var DefaultSnap = SnapOptions{Threshold: 24, Edges: true, Centers: true}

// GuideKind tells which features lined up.
type GuideKind int

const (
	GuideEdge GuideKind = iota
	GuideCenter
)

// Guide is an alignment line to draw while a snapped drag is in progress.
// Vertical guides sit at x = Pos and run from From to To along y; horizontal ones the other way.
type Guide struct {
	Vertical bool
	Kind     GuideKind
	Pos      int
	From, To int
}

type snapCandidate struct {
	delta int
	guide Guide
	found bool
}

func (c *snapCandidate) consider(delta, threshold int, g Guide) {
	d := iabs(delta)
	if d > threshold {
		return
	}
	if !c.found || d < iabs(c.delta) {
		c.delta, c.guide, c.found = delta, g, true
	}
}

// SnapBounds aligns moving to the nearest edge or center of the anchors, independently on each axis.
// The canvas itself always counts as an anchor. The size of moving never changes.
func SnapBounds(moving domain.Bounds, anchors []domain.Bounds, size domain.Size, opt SnapOptions) (domain.Bounds, []Guide) {
	if !opt.Enabled() {
		return moving, nil
	}
	all := make([]domain.Bounds, 0, len(anchors)+1)
	all = append(all, domain.Bounds{Width: size.Width, Height: size.Height})
	all = append(all, anchors...)

	var bx, by snapCandidate
	mL, mR, mCX := moving.X, moving.Right(), moving.X+moving.Width/2
	mT, mB, mCY := moving.Y, moving.Bottom(), moving.Y+moving.Height/2
	for _, a := range all {
		aL, aR, aCX := a.X, a.Right(), a.X+a.Width/2
		aT, aB, aCY := a.Y, a.Bottom(), a.Y+a.Height/2
		vert := func(x int, k GuideKind) Guide {
			return Guide{Vertical: true, Kind: k, Pos: x, From: min(mT, aT), To: max(mB, aB)}
		}
		horiz := func(y int, k GuideKind) Guide {
			return Guide{Kind: k, Pos: y, From: min(mL, aL), To: max(mR, aR)}
		}
		if opt.Edges {
			bx.consider(mL-aL, opt.Threshold, vert(aL, GuideEdge))
			bx.consider(mR-aR, opt.Threshold, vert(aR, GuideEdge))
			bx.consider(mL-aR, opt.Threshold, vert(aR, GuideEdge))
			bx.consider(mR-aL, opt.Threshold, vert(aL, GuideEdge))
			by.consider(mT-aT, opt.Threshold, horiz(aT, GuideEdge))
			by.consider(mB-aB, opt.Threshold, horiz(aB, GuideEdge))
			by.consider(mT-aB, opt.Threshold, horiz(aB, GuideEdge))
			by.consider(mB-aT, opt.Threshold, horiz(aT, GuideEdge))
		}
		if opt.Centers {
			bx.consider(mCX-aCX, opt.Threshold, vert(aCX, GuideCenter))
			by.consider(mCY-aCY, opt.Threshold, horiz(aCY, GuideCenter))
		}
	}

	out := moving
	var guides []Guide
	if bx.found {
		out.X -= bx.delta
		guides = append(guides, bx.guide)
	}
	if by.found {
		out.Y -= by.delta
		guides = append(guides, by.guide)
	}
	// a snap never pushes the region off the canvas
	out = fitBounds(out, size)
	return out, guides
}

func iabs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
