/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"richmenu/internal/domain"
	"richmenu/internal/storage"
	"richmenu/internal/version"
)

// Bundle entry names.
const (
	BundleMenu         = "richmenu.json"
	BundlePreview      = "preview.png"
	BundleVector       = "preview.svg"
	BundleSheet        = "layout.pdf"
	BundleManifestFile = "manifest.json"
)

// BundleOptions controls the share bundle.
//
//nolint:revive // clarity
type BundleOptions struct {
	Background   image.Image
	ImageURL     string
	PreviewScale float64 // raster preview scale; 0 means 0.5
	SkipSheet    bool
}

// BundleManifest describes the archive content.
type BundleManifest struct {
	Name      string    `json:"name"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Areas     int       `json:"areas"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	Files     []string  `json:"files"`
	CreatedAt time.Time `json:"createdAt"`
	Generator string    `json:"generator"`
}

// WriteBundle packages the exchange document, previews and a manifest into a ZIP archive
// that can be handed to someone without the editor.
func WriteBundle(outPath string, m domain.Menu, opt BundleOptions) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if !strings.HasSuffix(strings.ToLower(outPath), ".zip") {
		outPath = outPath + ".zip"
	}
	scale := opt.PreviewScale
	if scale <= 0 {
		scale = 0.5
	}

	zw, f, err := createZip(outPath)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	man := BundleManifest{
		Name:      m.Name,
		Width:     m.Size.Width,
		Height:    m.Size.Height,
		Areas:     len(m.Regions),
		ImageURL:  strings.TrimSpace(opt.ImageURL),
		CreatedAt: time.Now().UTC(),
		Generator: "richmenu " + version.String(),
	}

	doc, err := storage.Export(m)
	if err != nil {
		return err
	}
	if err := addZipFile(zw, BundleMenu, doc); err != nil {
		return fmt.Errorf("zip add menu: %w", err)
	}
	man.Files = append(man.Files, BundleMenu)

	var buf bytes.Buffer
	if err := RenderPNG(&buf, m, opt.Background, PNGOptions{Scale: scale}); err != nil {
		return err
	}
	if err := addZipFile(zw, BundlePreview, buf.Bytes()); err != nil {
		return fmt.Errorf("zip add preview: %w", err)
	}
	man.Files = append(man.Files, BundlePreview)

	buf.Reset()
	if err := RenderSVG(&buf, m, SVGOptions{Scale: scale, ImageURL: opt.ImageURL}); err != nil {
		return err
	}
	if err := addZipFile(zw, BundleVector, buf.Bytes()); err != nil {
		return fmt.Errorf("zip add svg: %w", err)
	}
	man.Files = append(man.Files, BundleVector)

	if !opt.SkipSheet {
		buf.Reset()
		if err := RenderPDF(&buf, m, PDFOptions{Background: opt.Background, ImageURL: opt.ImageURL}); err != nil {
			return err
		}
		if err := addZipFile(zw, BundleSheet, buf.Bytes()); err != nil {
			return fmt.Errorf("zip add sheet: %w", err)
		}
		man.Files = append(man.Files, BundleSheet)
	}

	mb, err := json.MarshalIndent(man, "", "  ")
	if err != nil {
		return fmt.Errorf("build manifest: %w", err)
	}
	if err := addZipFile(zw, BundleManifestFile, mb); err != nil {
		return fmt.Errorf("zip add manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return nil
}

func createZip(outPath string) (*zip.Writer, *os.File, error) {
	// Ensure directory exists
	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return nil, nil, fmt.Errorf("create bundle: %w", err)
	}
	return zip.NewWriter(f), f, nil
}

func addZipFile(zw *zip.Writer, name string, data []byte) error {
	hdr := &zip.FileHeader{Name: name, Method: zip.Deflate, Modified: time.Now()}
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
