/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"richmenu/internal/domain"
	applog "richmenu/internal/log"
	"richmenu/internal/version"
)

// LibraryFileName is the SQLite file holding the recently used documents.
const LibraryFileName = "library.sqlite"

// schemaVersion is the current library schema; bump it with a step in runMigrations.
const schemaVersion = 1

// RecentMenu is one entry of the recently used documents list.
type RecentMenu struct {
	Path     string
	Name     string
	Regions  int
	Width    int
	Height   int
	OpenedAt time.Time
}

// Library remembers the documents the user opened or saved. It is disposable:
// deleting the file only loses the list.
type Library struct {
	db *sql.DB
}

// OpenLibrary opens (creating if needed) the library database in dir.
func OpenLibrary(dir string) (*Library, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "library_open").With(slog.String("dir", dir))
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("library dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create library dir: %w", err)
	}
	uriPath := filepath.ToSlash(filepath.Join(dir, LibraryFileName))
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", uriPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureLibrarySchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure library schema failed", slog.Any("err", err))
		return nil, err
	}
	return &Library{db: db}, nil
}

func (lib *Library) Close() error { return lib.db.Close() }

func ensureLibrarySchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			updated_at  TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS recent_menus (
			path       TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			regions    INTEGER NOT NULL,
			width      INTEGER NOT NULL,
			height     INTEGER NOT NULL,
			opened_at  INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_recent_opened ON recent_menus(opened_at DESC);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = db.ExecContext(ctx, `INSERT INTO version (id, schema, app, updated_at) VALUES(1, ?, ?, ?)`, schemaVersion, version.String(), now)
	case err == nil:
		_, err = db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, version.String(), now)
	}
	if err != nil {
		return fmt.Errorf("version row: %w", err)
	}
	return nil
}

// Touch records that the document at path was just opened or saved.
func (lib *Library) Touch(ctx context.Context, path string, m domain.Menu) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	_, err = lib.db.ExecContext(ctx, `INSERT INTO recent_menus (path, name, regions, width, height, opened_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET name=excluded.name, regions=excluded.regions,
			width=excluded.width, height=excluded.height, opened_at=excluded.opened_at`,
		abs, m.Name, len(m.Regions), m.Size.Width, m.Size.Height, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("touch recent: %w", err)
	}
	return nil
}

// Recent lists up to limit documents, most recent first. Entries whose file is gone are pruned.
func (lib *Library) Recent(ctx context.Context, limit int) ([]RecentMenu, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := lib.db.QueryContext(ctx, `SELECT path, name, regions, width, height, opened_at FROM recent_menus ORDER BY opened_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	var (
		out  []RecentMenu
		gone []string
	)
	for rows.Next() {
		var (
			r  RecentMenu
			ms int64
		)
		if err := rows.Scan(&r.Path, &r.Name, &r.Regions, &r.Width, &r.Height, &ms); err != nil {
			_ = rows.Close()
			return nil, err
		}
		if _, err := os.Stat(r.Path); err != nil {
			gone = append(gone, r.Path)
			continue
		}
		r.OpenedAt = time.UnixMilli(ms)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	for _, p := range gone {
		if _, err := lib.db.ExecContext(ctx, `DELETE FROM recent_menus WHERE path=?`, p); err != nil {
			return nil, fmt.Errorf("prune recent: %w", err)
		}
	}
	return out, nil
}
