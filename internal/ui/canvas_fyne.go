//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"image"
	"image/color"
	"math"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"richmenu/internal/domain"
	"richmenu/internal/editor"
)

// canvasPadding keeps the menu image off the widget edges so corner handles stay grabbable.
const canvasPadding = 16

var (
	colBackdrop       = color.RGBA{R: 30, G: 30, B: 34, A: 255}
	colPaper          = color.RGBA{R: 243, G: 244, B: 246, A: 255}
	colFrame          = color.RGBA{R: 20, G: 20, B: 20, A: 255}
	colRegionFill     = color.NRGBA{R: 59, G: 130, B: 246, A: 64}
	colRegionStroke   = color.RGBA{R: 37, G: 99, B: 235, A: 255}
	colSelectedFill   = color.NRGBA{R: 16, G: 185, B: 129, A: 72}
	colSelectedStroke = color.RGBA{R: 5, G: 150, B: 105, A: 255}
	colDraftFill      = color.NRGBA{R: 251, G: 191, B: 36, A: 48}
	colDraftStroke    = color.RGBA{R: 217, G: 119, B: 6, A: 255}
	colLabel          = color.RGBA{R: 30, G: 58, B: 138, A: 255}
	colGuide          = color.RGBA{R: 236, G: 72, B: 153, A: 255}
)

// MenuCanvas shows the menu image with one rectangle per region and turns mouse input
// into editor gestures. It is also the editor.Layout of its own surface.
type MenuCanvas struct {
	widget.BaseWidget

	doc     *editor.Document
	surface *editor.Surface
	bg      image.Image

	// OnGesture is called after every pointer event that may have changed the document
	// or the selection.
	OnGesture func()
}

func NewMenuCanvas(doc *editor.Document) *MenuCanvas {
	mc := &MenuCanvas{doc: doc}
	mc.surface = editor.NewSurface(doc, mc)
	mc.ExtendBaseWidget(mc)
	return mc
}

// Surface exposes the gesture state machine (delete, cancel).
func (mc *MenuCanvas) Surface() *editor.Surface { return mc.surface }

// SetBackground replaces the menu image; nil shows a plain canvas.
func (mc *MenuCanvas) SetBackground(img image.Image) {
	mc.bg = img
	mc.Refresh()
}

// Rect is the displayed canvas rectangle in widget coordinates.
func (mc *MenuCanvas) Rect() (editor.ScreenRect, bool) {
	return fitRect(mc.Size(), mc.doc.Size())
}

// fitRect letterboxes a canvas of logical size s into area, centered.
func fitRect(area fyne.Size, s domain.Size) (editor.ScreenRect, bool) {
	if !s.Valid() {
		return editor.ScreenRect{}, false
	}
	availW := float64(area.Width) - 2*canvasPadding
	availH := float64(area.Height) - 2*canvasPadding
	if availW <= 0 || availH <= 0 {
		return editor.ScreenRect{}, false
	}
	scale := math.Min(availW/float64(s.Width), availH/float64(s.Height))
	w, h := float64(s.Width)*scale, float64(s.Height)*scale
	return editor.ScreenRect{
		Left:   (float64(area.Width) - w) / 2,
		Top:    (float64(area.Height) - h) / 2,
		Width:  w,
		Height: h,
	}, true
}

func toPoint(p fyne.Position) editor.Point { return editor.Point{X: float64(p.X), Y: float64(p.Y)} }

// MinSize keeps the canvas usable in a narrow window.
func (mc *MenuCanvas) MinSize() fyne.Size { return fyne.NewSize(480, 360) }

// Cursor shows a crosshair: every press either draws or grabs something.
func (mc *MenuCanvas) Cursor() desktop.Cursor { return desktop.CrosshairCursor }

func (mc *MenuCanvas) MouseDown(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary {
		return
	}
	mc.surface.Press(toPoint(e.Position))
	mc.changed()
}

func (mc *MenuCanvas) MouseUp(_ *desktop.MouseEvent) {
	if mc.surface.State() == editor.Idle {
		return
	}
	mc.surface.PointerUp()
	mc.changed()
}

func (mc *MenuCanvas) MouseIn(_ *desktop.MouseEvent) {}

func (mc *MenuCanvas) MouseMoved(e *desktop.MouseEvent) {
	if mc.surface.State() == editor.Idle {
		return
	}
	mc.surface.PointerMove(toPoint(e.Position))
	mc.changed()
}

// MouseOut aborts a gesture in progress; a half drawn region is dropped.
func (mc *MenuCanvas) MouseOut() {
	if mc.surface.State() == editor.Idle {
		return
	}
	mc.surface.Cancel()
	mc.changed()
}

func (mc *MenuCanvas) changed() {
	mc.Refresh()
	if mc.OnGesture != nil {
		mc.OnGesture()
	}
}

func (mc *MenuCanvas) CreateRenderer() fyne.WidgetRenderer {
	backdrop := canvas.NewRectangle(colBackdrop)
	paper := canvas.NewRectangle(colPaper)
	img := canvas.NewImageFromImage(nil)
	img.FillMode = canvas.ImageFillStretch
	img.ScaleMode = canvas.ImageScaleSmooth
	frame := canvas.NewRectangle(color.Transparent)
	frame.StrokeColor = colFrame
	frame.StrokeWidth = 1

	objs := []fyne.CanvasObject{backdrop, paper, img, frame}
	r := &menuCanvasRenderer{mc: mc, backdrop: backdrop, paper: paper, image: img, frame: frame}
	// one slot per region plus the draft
	for i := 0; i < domain.MaxRegions+1; i++ {
		rect := canvas.NewRectangle(colRegionFill)
		rect.StrokeWidth = 2
		rect.Hide()
		label := canvas.NewText("", colLabel)
		label.TextSize = 12
		label.TextStyle = fyne.TextStyle{Bold: true}
		label.Hide()
		r.rects = append(r.rects, rect)
		r.labels = append(r.labels, label)
		objs = append(objs, rect, label)
	}
	for i := range r.handles {
		h := canvas.NewRectangle(colSelectedStroke)
		h.Hide()
		r.handles[i] = h
		objs = append(objs, h)
	}
	// at most one guide per axis
	for i := range r.guides {
		g := canvas.NewLine(colGuide)
		g.StrokeWidth = 1
		g.Hide()
		r.guides[i] = g
		objs = append(objs, g)
	}
	r.objects = objs
	return r
}

type menuCanvasRenderer struct {
	mc       *MenuCanvas
	objects  []fyne.CanvasObject
	backdrop *canvas.Rectangle
	paper    *canvas.Rectangle
	image    *canvas.Image
	frame    *canvas.Rectangle
	rects    []*canvas.Rectangle
	labels   []*canvas.Text
	handles  [4]*canvas.Rectangle
	guides   [2]*canvas.Line
}

func (r *menuCanvasRenderer) Destroy()                     {}
func (r *menuCanvasRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *menuCanvasRenderer) MinSize() fyne.Size           { return r.mc.MinSize() }
func (r *menuCanvasRenderer) Refresh()                     { r.Layout(r.mc.Size()); canvas.Refresh(r.mc) }

func (r *menuCanvasRenderer) Layout(size fyne.Size) {
	r.backdrop.Resize(size)
	r.backdrop.Move(fyne.NewPos(0, 0))

	rect, ok := fitRect(size, r.mc.doc.Size())
	if !ok {
		r.paper.Hide()
		r.image.Hide()
		r.frame.Hide()
		for i := range r.rects {
			r.rects[i].Hide()
			r.labels[i].Hide()
		}
		r.hideHandles()
		r.placeGuides(rect, nil)
		return
	}
	pos := fyne.NewPos(float32(rect.Left), float32(rect.Top))
	sz := fyne.NewSize(float32(rect.Width), float32(rect.Height))
	for _, o := range []fyne.CanvasObject{r.paper, r.image, r.frame} {
		o.Move(pos)
		o.Resize(sz)
		o.Show()
	}
	if r.mc.bg != nil {
		if r.image.Image != r.mc.bg {
			r.image.Image = r.mc.bg
			r.image.Refresh()
		}
	} else {
		r.image.Hide()
	}

	overlays := r.mc.surface.Overlays()
	r.hideHandles()
	for i := range r.rects {
		if i >= len(overlays) {
			r.rects[i].Hide()
			r.labels[i].Hide()
			continue
		}
		o := overlays[i]
		x := rect.Left + o.Left/100*rect.Width
		y := rect.Top + o.Top/100*rect.Height
		w := o.Width / 100 * rect.Width
		h := o.Height / 100 * rect.Height

		box := r.rects[i]
		switch o.Style {
		case editor.StyleSelected:
			box.FillColor, box.StrokeColor = colSelectedFill, colSelectedStroke
			r.placeHandles(x, y, w, h)
		case editor.StyleDraft:
			box.FillColor, box.StrokeColor = colDraftFill, colDraftStroke
		default:
			box.FillColor, box.StrokeColor = colRegionFill, colRegionStroke
		}
		box.Move(fyne.NewPos(float32(x), float32(y)))
		box.Resize(fyne.NewSize(float32(w), float32(h)))
		box.Show()
		box.Refresh()

		label := r.labels[i]
		if o.Label == "" {
			label.Hide()
			continue
		}
		label.Text = o.Label
		label.Move(fyne.NewPos(float32(x)+6, float32(y)+4))
		label.Show()
		label.Refresh()
	}
	r.placeGuides(rect, r.mc.surface.Guides())
}

// placeGuides draws snap guides, converting logical positions to screen pixels.
func (r *menuCanvasRenderer) placeGuides(rect editor.ScreenRect, guides []editor.Guide) {
	size := r.mc.doc.Size()
	for i, line := range r.guides {
		if i >= len(guides) || !size.Valid() {
			line.Hide()
			continue
		}
		g := guides[i]
		sx := func(v int) float32 { return float32(rect.Left + float64(v)/float64(size.Width)*rect.Width) }
		sy := func(v int) float32 { return float32(rect.Top + float64(v)/float64(size.Height)*rect.Height) }
		if g.Vertical {
			line.Position1 = fyne.NewPos(sx(g.Pos), sy(g.From))
			line.Position2 = fyne.NewPos(sx(g.Pos), sy(g.To))
		} else {
			line.Position1 = fyne.NewPos(sx(g.From), sy(g.Pos))
			line.Position2 = fyne.NewPos(sx(g.To), sy(g.Pos))
		}
		line.Show()
		line.Refresh()
	}
}

func (r *menuCanvasRenderer) placeHandles(x, y, w, h float64) {
	hs := float32(editor.HandleSize)
	corners := [4][2]float64{{x, y}, {x + w, y}, {x, y + h}, {x + w, y + h}}
	for i, c := range corners {
		r.handles[i].Resize(fyne.NewSize(hs, hs))
		r.handles[i].Move(fyne.NewPos(float32(c[0])-hs/2, float32(c[1])-hs/2))
		r.handles[i].Show()
	}
}

func (r *menuCanvasRenderer) hideHandles() {
	for _, h := range r.handles {
		h.Hide()
	}
}
