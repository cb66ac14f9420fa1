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
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"richmenu/internal/domain"
)

// SVGOptions controls SVG preview output.
// The viewBox is the logical canvas; Scale only sets the width/height attributes.
// ImageURL, when set, is referenced as the background image.
type SVGOptions struct {
	Scale    float64
	ImageURL string
}

// RenderSVG writes a vector preview of the menu to w.
func RenderSVG(w io.Writer, m domain.Menu, opt SVGOptions) error {
	if !m.Size.Valid() {
		return fmt.Errorf("invalid menu size %dx%d", m.Size.Width, m.Size.Height)
	}
	scale := opt.Scale
	if scale <= 0 {
		scale = 1
	}
	W, H := m.Size.Width, m.Size.Height
	pxW := int(math.Round(float64(W) * scale))
	pxH := int(math.Round(float64(H) * scale))

	var buf bytes.Buffer
	var werr error
	wf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(&buf, format, args...)
	}

	wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	wf("<svg xmlns=\"http://www.w3.org/2000/svg\" version=\"1.1\" width=\"%dpx\" height=\"%dpx\" viewBox=\"0 0 %d %d\">\n", pxW, pxH, W, H)
	wf("  <title>%s</title>\n", escText(m.Name))
	wf("  <rect x=\"0\" y=\"0\" width=\"%d\" height=\"%d\" fill=\"#f3f4f6\"/>\n", W, H)
	if u := strings.TrimSpace(opt.ImageURL); u != "" {
		wf("  <image href=\"%s\" x=\"0\" y=\"0\" width=\"%d\" height=\"%d\" preserveAspectRatio=\"none\"/>\n", escAttr(u), W, H)
	}
	for i, r := range m.Regions {
		b := r.Bounds
		wf("  <g id=\"area-%d\">\n", i+1)
		wf("    <rect x=\"%d\" y=\"%d\" width=\"%d\" height=\"%d\" fill=\"#3b82f6\" fill-opacity=\"0.25\" stroke=\"#2563eb\" stroke-width=\"4\"/>\n", b.X, b.Y, b.Width, b.Height)
		wf("    <text x=\"%d\" y=\"%d\" font-family=\"Helvetica, Arial, sans-serif\" font-size=\"36\" fill=\"#1e3a8a\">%s</text>\n", b.X+12, b.Y+44, escText(regionLabel(i)))
		if s := ActionSummary(r.Action); s != "" {
			wf("    <desc>%s: %s</desc>\n", escText(ActionLabel(r.Action)), escText(s))
		}
		wf("  </g>\n")
	}
	wf("</svg>\n")
	if werr != nil {
		return fmt.Errorf("build svg: %w", werr)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteSVG writes the vector preview into a file, creating parent directories.
func WriteSVG(path string, m domain.Menu, opt SVGOptions) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	var buf bytes.Buffer
	if err := RenderSVG(&buf, m, opt); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return nil
}

func escAttr(s string) string {
	// naive escaping sufficient for our simple usage
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '"':
			out = append(out, '&', 'q', 'u', 'o', 't', ';')
		case '&':
			out = append(out, '&', 'a', 'm', 'p', ';')
		case '<':
			out = append(out, '&', 'l', 't', ';')
		case '\n':
			out = append(out, ' ')
		case '\r':
			// skip
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}

func escText(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '&':
			out = append(out, '&', 'a', 'm', 'p', ';')
		case '<':
			out = append(out, '&', 'l', 't', ';')
		case '>':
			out = append(out, '&', 'g', 't', ';')
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}
