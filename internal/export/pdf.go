/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"richmenu/internal/domain"
)

// PDFOptions controls the layout sheet.
// Units are millimetres on an A4 landscape page. Built-in Helvetica keeps text vector without embedding.
type PDFOptions struct {
	// Background is drawn under the regions when set.
	Background image.Image
	// ImageURL is printed in the header when set.
	ImageURL string
}

const (
	pageW       = 297.0
	margin      = 12.0
	canvasMaxH  = 100.0
	tableRowH   = 6.0
	canvasLineW = 0.3
)

// WritePDF writes a one-page layout sheet: header, scaled canvas with numbered regions and a table of actions.
func WritePDF(path string, m domain.Menu, opt PDFOptions) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	pdf, err := buildPDF(m, opt)
	if err != nil {
		return err
	}
	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// RenderPDF writes the layout sheet to w.
func RenderPDF(w io.Writer, m domain.Menu, opt PDFOptions) error {
	pdf, err := buildPDF(m, opt)
	if err != nil {
		return err
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func buildPDF(m domain.Menu, opt PDFOptions) (*gofpdf.Fpdf, error) {
	if !m.Size.Valid() {
		return nil, fmt.Errorf("invalid menu size %dx%d", m.Size.Width, m.Size.Height)
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr(m.Name), false)
	pdf.SetCreator("richmenu", false)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.AddPage()

	// Header
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 8, tr(m.Name), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	selected := "no"
	if m.Selected {
		selected = "yes"
	}
	pdf.CellFormat(0, 5, tr(fmt.Sprintf("%d x %d  |  chat bar: %q  |  open by default: %s  |  %d area(s)",
		m.Size.Width, m.Size.Height, m.ChatBarText, selected, len(m.Regions))), "", 1, "L", false, 0, "")
	if u := strings.TrimSpace(opt.ImageURL); u != "" {
		pdf.SetTextColor(90, 90, 90)
		pdf.CellFormat(0, 5, tr("image: "+u), "", 1, "L", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	}
	pdf.Ln(3)

	// Canvas scaled into the printable width and at most canvasMaxH tall
	availW := pageW - 2*margin
	scale := math.Min(availW/float64(m.Size.Width), canvasMaxH/float64(m.Size.Height))
	cw := float64(m.Size.Width) * scale
	ch := float64(m.Size.Height) * scale
	cx := margin + (availW-cw)/2
	cy := pdf.GetY()

	if opt.Background != nil {
		var buf bytes.Buffer
		if err := png.Encode(&buf, opt.Background); err != nil {
			return nil, fmt.Errorf("encode background: %w", err)
		}
		imgOpt := gofpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader("background", imgOpt, &buf)
		pdf.ImageOptions("background", cx, cy, cw, ch, false, imgOpt, 0, "")
	} else {
		pdf.SetFillColor(243, 244, 246)
		pdf.Rect(cx, cy, cw, ch, "F")
	}
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(canvasLineW)
	pdf.Rect(cx, cy, cw, ch, "D")

	pdf.SetDrawColor(37, 99, 235)
	pdf.SetLineWidth(0.5)
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetTextColor(30, 58, 138)
	for i, r := range m.Regions {
		x := cx + float64(r.Bounds.X)*scale
		y := cy + float64(r.Bounds.Y)*scale
		w := float64(r.Bounds.Width) * scale
		h := float64(r.Bounds.Height) * scale
		pdf.Rect(x, y, w, h, "D")
		pdf.Text(x+1.5, y+4, fmt.Sprintf("%d", i+1))
	}
	pdf.SetTextColor(0, 0, 0)
	pdf.SetY(cy + ch + 6)

	// Action table
	cols := []struct {
		title string
		w     float64
	}{{"#", 10}, {"Bounds", 50}, {"Action", 35}, {"Details", availW - 95}}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(229, 231, 235)
	for _, c := range cols {
		pdf.CellFormat(c.w, tableRowH+1, c.title, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 9)
	if len(m.Regions) == 0 {
		pdf.CellFormat(availW, tableRowH, "No areas defined.", "1", 1, "L", false, 0, "")
	}
	for i, r := range m.Regions {
		b := r.Bounds
		pdf.CellFormat(cols[0].w, tableRowH, fmt.Sprintf("%d", i+1), "1", 0, "L", false, 0, "")
		pdf.CellFormat(cols[1].w, tableRowH, fmt.Sprintf("%d,%d  %dx%d", b.X, b.Y, b.Width, b.Height), "1", 0, "L", false, 0, "")
		pdf.CellFormat(cols[2].w, tableRowH, tr(ActionLabel(r.Action)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(cols[3].w, tableRowH, tr(fit(pdf, ActionSummary(r.Action), cols[3].w-2)), "1", 1, "L", false, 0, "")
	}
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("build pdf: %w", err)
	}
	return pdf, nil
}

// ActionLabel is the display name of the action kind, "-" for none.
func ActionLabel(a domain.Action) string {
	if a == nil {
		return "-"
	}
	return a.Type().Label()
}

// ActionSummary is a one-line description of the action payload.
func ActionSummary(a domain.Action) string {
	switch v := a.(type) {
	case domain.URIAction:
		return v.URI
	case domain.PostbackAction:
		if v.DisplayText != "" {
			return fmt.Sprintf("data=%s  display=%s", v.Data, v.DisplayText)
		}
		return "data=" + v.Data
	case domain.MessageAction:
		return v.Text
	case domain.DateTimePickerAction:
		parts := []string{"mode=" + string(v.Mode), "data=" + v.Data}
		if v.Initial != "" {
			parts = append(parts, "initial="+v.Initial)
		}
		if v.Min != "" {
			parts = append(parts, "min="+v.Min)
		}
		if v.Max != "" {
			parts = append(parts, "max="+v.Max)
		}
		return strings.Join(parts, "  ")
	default:
		return ""
	}
}

// fit truncates s with an ellipsis so it fits into width mm at the current font.
func fit(pdf *gofpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && pdf.GetStringWidth(string(r)+"...") > width {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}
