/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"richmenu/internal/domain"
	"richmenu/internal/storage"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetWeb   PresetName = "web"
	PresetPrint PresetName = "print"
	PresetShare PresetName = "share"
)

// Formats understood by Batch.
var Formats = []string{"json", "png", "svg", "pdf", "zip"}

// BatchOptions controls a multi-format export of one menu.
//
// Path semantics:
//   - OutDir is created if missing; files are named <base>.<format>.
//   - Base defaults to the menu's default file name without extension.
//
//nolint:revive // keep fields explicit for clarity
type BatchOptions struct {
	Preset     PresetName
	Formats    []string // allowed: json, png, svg, pdf, zip; empty means preset defaults
	OutDir     string
	Base       string
	Scale      float64 // raster/vector preview scale
	Background image.Image
	ImageURL   string
}

// Batch writes the menu in every requested format and returns the written paths.
func Batch(m domain.Menu, opt BatchOptions) ([]string, error) {
	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}
	outDir := opt.OutDir
	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure out dir: %w", err)
	}
	base := strings.TrimSpace(opt.Base)
	if base == "" {
		base = strings.TrimSuffix(storage.DefaultFileName(m), ".json")
	}
	scale := opt.Scale
	if scale <= 0 {
		scale = presetScale(opt.Preset)
	}

	var written []string
	for _, f := range formats {
		f = strings.ToLower(strings.TrimSpace(f))
		out := filepath.Join(outDir, base+"."+f)
		if err := writeFormat(f, out, m, opt, scale); err != nil {
			return written, fmt.Errorf("%s: %w", f, err)
		}
		written = append(written, out)
	}
	return written, nil
}

// WriteFile writes a single export whose format is taken from the path's extension.
// Preset and Scale apply as in Batch; OutDir, Base and Formats are ignored.
func WriteFile(path string, m domain.Menu, opt BatchOptions) error {
	f := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if f == "" {
		return fmt.Errorf("no file extension in %q; use one of %s", path, strings.Join(Formats, ", "))
	}
	scale := opt.Scale
	if scale <= 0 {
		scale = presetScale(opt.Preset)
	}
	return writeFormat(f, path, m, opt, scale)
}

func writeFormat(f, out string, m domain.Menu, opt BatchOptions, scale float64) error {
	switch f {
	case "json":
		return storage.SaveMenu(out, m)
	case "png":
		return WritePNG(out, m, opt.Background, PNGOptions{Scale: scale})
	case "svg":
		return WriteSVG(out, m, SVGOptions{Scale: scale, ImageURL: opt.ImageURL})
	case "pdf":
		return WritePDF(out, m, PDFOptions{Background: opt.Background, ImageURL: opt.ImageURL})
	case "zip":
		return WriteBundle(out, m, BundleOptions{Background: opt.Background, ImageURL: opt.ImageURL, PreviewScale: scale})
	default:
		return fmt.Errorf("unknown format: %s", f)
	}
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetWeb:
		return []string{"json", "png", "svg"}
	case PresetPrint:
		return []string{"pdf", "png"}
	case PresetShare:
		return []string{"zip"}
	default:
		return []string{"json"}
	}
}

func presetScale(p PresetName) float64 {
	switch p {
	case PresetWeb:
		return 0.5
	default:
		return 1
	}
}
