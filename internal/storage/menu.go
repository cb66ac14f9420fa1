/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"richmenu/internal/domain"
	applog "richmenu/internal/log"
)

const BackupsDirName = "backups"

//go:embed schema/richmenu.schema.json
var menuSchema []byte

var schemaLoader = gojsonschema.NewBytesLoader(menuSchema)

// SchemaError lists the schema violations of an imported document.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	return "document does not match the rich menu schema: " + strings.Join(e.Problems, "; ")
}

// Export renders the exchange document: indented JSON with a trailing newline.
func Export(m domain.Menu) ([]byte, error) {
	data, err := domain.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal menu: %w", err)
	}
	return append(data, '\n'), nil
}

// Import checks data against the embedded JSON schema and decodes it.
// Every region gets a fresh id.
func Import(data []byte) (domain.Menu, error) {
	res, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return domain.Menu{}, fmt.Errorf("parse menu: %w", err)
	}
	if !res.Valid() {
		se := &SchemaError{}
		for _, e := range res.Errors() {
			se.Problems = append(se.Problems, e.String())
		}
		return domain.Menu{}, se
	}
	return domain.Unmarshal(data)
}

// SaveMenu writes the document to path with transactional semantics and
// keeps a timestamped backup of the previous file in backups/ next to it.
func SaveMenu(path string, m domain.Menu) error {
	l := applog.WithOperation(applog.WithComponent("storage"), "save").With(slog.String("path", path))
	if strings.TrimSpace(path) == "" {
		return errors.New("path is required")
	}
	data, err := Export(m)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	// If a current file exists, copy it to a timestamped backup before replacing
	if _, statErr := os.Stat(path); statErr == nil {
		bdir := filepath.Join(dir, BackupsDirName)
		stamp := time.Now().Format("20060102-150405.000")
		bpath := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(path), stamp))
		if cerr := copyFile(path, bpath); cerr != nil {
			return fmt.Errorf("backup current file: %w", cerr)
		}
	}

	// Transactional write: to temp file in same directory, then rename over target
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(path), os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp file: %w", werr)
	}
	// On Windows, replace by removing destination first if needed
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	if rerr := os.Rename(temp, path); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace file: %w", rerr)
	}
	l.Info("menu saved", slog.Int("regions", len(m.Regions)), slog.Int("bytes", len(data)))
	return nil
}

// OpenMenu loads a document. If the file cannot be read or parsed it falls back to
// the latest backup and reports fromBackup.
func OpenMenu(path string) (m domain.Menu, fromBackup bool, err error) {
	b, err := os.ReadFile(path)
	if err == nil {
		m, err = Import(b)
		if err == nil {
			return m, false, nil
		}
	}
	bm, berr := openFromLatestBackup(path)
	if berr != nil {
		return domain.Menu{}, false, fmt.Errorf("open %s: %w; backup attempt: %v", path, err, berr)
	}
	applog.WithComponent("storage").Warn("opened latest backup", slog.String("path", path), slog.Any("err", err))
	return bm, true, nil
}

var unsafeName = regexp.MustCompile(`[^\p{L}\p{N}._ -]+`)

// DefaultFileName is the suggested export file name: "<name>.json", or "rich-menu.json" for an unnamed menu.
func DefaultFileName(m domain.Menu) string {
	name := strings.TrimSpace(unsafeName.ReplaceAllString(m.Name, "-"))
	name = strings.Trim(name, ".")
	if name == "" {
		name = "rich-menu"
	}
	return name + ".json"
}

// AutosaveCrash writes the document into dir under a timestamped name and returns the path.
func AutosaveCrash(dir string, m domain.Menu) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	data, err := Export(m)
	if err != nil {
		return "", err
	}
	p := filepath.Join(dir, fmt.Sprintf("autosave-%s.json", time.Now().Format("20060102-150405")))
	if err := writeFileSync(p, data); err != nil {
		return "", err
	}
	return p, nil
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}

// openFromLatestBackup opens the newest readable backup of path.
func openFromLatestBackup(path string) (domain.Menu, error) {
	bdir := filepath.Join(filepath.Dir(path), BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return domain.Menu{}, fmt.Errorf("read backups dir: %w", err)
	}
	prefix := filepath.Base(path) + "."
	var candidates []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".bak") {
			candidates = append(candidates, filepath.Join(bdir, name))
		}
	}
	if len(candidates) == 0 {
		return domain.Menu{}, errors.New("no backups found")
	}
	sort.Strings(candidates) // timestamp in name yields lexicographic order
	for i := len(candidates) - 1; i >= 0; i-- {
		b, err := os.ReadFile(candidates[i])
		if err != nil {
			continue
		}
		if m, err := Import(b); err == nil {
			return m, nil
		}
	}
	return domain.Menu{}, errors.New("no readable backup")
}
