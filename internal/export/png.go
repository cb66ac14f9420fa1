/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"

	"richmenu/internal/domain"
)

// maxPixels caps the rendered preview so a bad scale cannot allocate gigabytes.
const maxPixels = 8192

// PNGOptions controls raster preview rendering.
// - Scale: output pixels per logical unit; 0 means 1 (full logical resolution)
// - HideLabels: skip the "Area N" captions
// - Fill/Stroke: overlay colors; defaults match the editor overlays
//
//nolint:revive // clarity is preferred
type PNGOptions struct {
	Scale       float64
	HideLabels  bool
	Background  color.Color
	Fill        color.Color
	Stroke      color.Color
	StrokeWidth int
}

var (
	defaultBackground = color.RGBA{R: 243, G: 244, B: 246, A: 255}
	defaultFill       = color.NRGBA{R: 59, G: 130, B: 246, A: 64}
	defaultStroke     = color.RGBA{R: 37, G: 99, B: 235, A: 255}
	labelInk          = color.RGBA{R: 30, G: 58, B: 138, A: 255}
	labelPaper        = color.RGBA{R: 255, G: 255, B: 255, A: 220}
)

func (o PNGOptions) withDefaults() PNGOptions {
	if o.Scale <= 0 {
		o.Scale = 1
	}
	if o.Background == nil {
		o.Background = defaultBackground
	}
	if o.Fill == nil {
		o.Fill = defaultFill
	}
	if o.Stroke == nil {
		o.Stroke = defaultStroke
	}
	if o.StrokeWidth <= 0 {
		o.StrokeWidth = int(math.Max(1, math.Round(4*o.Scale)))
	}
	return o
}

// Render draws the menu preview: bg (optional, stretched to the canvas), one translucent
// rectangle per region and its "Area N" caption.
func Render(m domain.Menu, bg image.Image, opt PNGOptions) (*image.RGBA, error) {
	if !m.Size.Valid() {
		return nil, fmt.Errorf("invalid menu size %dx%d", m.Size.Width, m.Size.Height)
	}
	opt = opt.withDefaults()
	pixW := int(math.Round(float64(m.Size.Width) * opt.Scale))
	pixH := int(math.Round(float64(m.Size.Height) * opt.Scale))
	if pixW <= 0 || pixH <= 0 {
		return nil, errors.New("scale too small for menu size")
	}
	if pixW > maxPixels || pixH > maxPixels {
		return nil, fmt.Errorf("preview %dx%d exceeds %d pixels per side", pixW, pixH, maxPixels)
	}

	img := image.NewRGBA(image.Rect(0, 0, pixW, pixH))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: opt.Background}, image.Point{}, draw.Src)
	if bg != nil {
		xdraw.CatmullRom.Scale(img, img.Bounds(), bg, bg.Bounds(), draw.Over, nil)
	}

	stroke := color.RGBAModel.Convert(opt.Stroke).(color.RGBA)
	for i, r := range m.Regions {
		x0, y0, x1, y1 := pixelRect(r.Bounds, opt.Scale)
		if x1 <= x0 || y1 <= y0 {
			continue
		}
		draw.Draw(img, image.Rect(x0, y0, x1, y1), &image.Uniform{C: opt.Fill}, image.Point{}, draw.Over)
		for k := 0; k < opt.StrokeWidth && x0+k < x1-k && y0+k < y1-k; k++ {
			strokeRect(img, x0+k, y0+k, x1-1-k, y1-1-k, stroke)
		}
		if !opt.HideLabels {
			drawLabel(img, x0+opt.StrokeWidth+2, y0+opt.StrokeWidth+2, regionLabel(i))
		}
	}
	return img, nil
}

// RenderPNG renders the preview and encodes it as PNG to w.
func RenderPNG(w io.Writer, m domain.Menu, bg image.Image, opt PNGOptions) error {
	img, err := Render(m, bg, opt)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// WritePNG renders the preview into a file, creating parent directories.
func WritePNG(path string, m domain.Menu, bg image.Image, opt PNGOptions) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create png: %w", err)
	}
	if err := RenderPNG(f, m, bg, opt); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close png: %w", err)
	}
	return nil
}

// LoadImage decodes a local background image (PNG, JPEG, WebP or BMP).
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

func regionLabel(i int) string { return fmt.Sprintf("Area %d", i+1) }

// pixelRect maps logical bounds to a half-open pixel rectangle.
func pixelRect(b domain.Bounds, scale float64) (x0, y0, x1, y1 int) {
	x0 = int(math.Round(float64(b.X) * scale))
	y0 = int(math.Round(float64(b.Y) * scale))
	x1 = int(math.Round(float64(b.Right()) * scale))
	y1 = int(math.Round(float64(b.Bottom()) * scale))
	return
}

func drawLabel(img *image.RGBA, x, y int, text string) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: img, Src: image.NewUniform(labelInk), Face: face}
	w := d.MeasureString(text).Ceil()
	h := face.Metrics().Height.Ceil()
	box := image.Rect(x, y, x+w+4, y+h+2).Intersect(img.Bounds())
	if box.Empty() {
		return
	}
	draw.Draw(img, box, &image.Uniform{C: labelPaper}, image.Point{}, draw.Over)
	d.Dot = fixed.P(x+2, y+1+face.Metrics().Ascent.Ceil())
	d.DrawString(text)
}

// strokeRect draws a 1px axis-aligned rectangle border inclusive of endpoints.
func strokeRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	// top and bottom
	for x := x0; x <= x1; x++ {
		img.SetRGBA(x, y0, col)
		img.SetRGBA(x, y1, col)
	}
	// left and right
	for y := y0; y <= y1; y++ {
		img.SetRGBA(x0, y, col)
		img.SetRGBA(x1, y, col)
	}
}
