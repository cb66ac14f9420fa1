/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	applog "richmenu/internal/log"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

type dialect string

const (
	dialectPostgres dialect = "postgres"
	dialectSQLite   dialect = "sqlite"
)

// placeholder returns the bind parameter for the n-th (1-based) argument.
func (d dialect) placeholder(n int) string {
	if d == dialectPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// AuditEntry is one relayed platform call.
type AuditEntry struct {
	ID         int64     `json:"id"`
	Time       time.Time `json:"ts"`
	RequestID  string    `json:"request_id,omitempty"`
	Action     string    `json:"action"`
	RichMenuID string    `json:"rich_menu_id,omitempty"`
	Status     int       `json:"status"`
	Error      string    `json:"error,omitempty"`
}

// AuditStore keeps the history of relayed calls in PostgreSQL or SQLite.
type AuditStore struct {
	db      *sql.DB
	dialect dialect
	log     *slog.Logger
}

// OpenAudit opens the audit database named by dsn and applies the embedded migrations.
// postgres:// and postgresql:// DSNs use pgx; anything else is a SQLite file path or file: URI.
func OpenAudit(ctx context.Context, dsn string) (*AuditStore, error) {
	l := applog.WithOperation(applog.WithComponent("audit"), "open")
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("audit dsn is required")
	}
	var (
		db  *sql.DB
		d   dialect
		err error
	)
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		d = dialectPostgres
		db, err = sql.Open("pgx", dsn)
	} else {
		d = dialectSQLite
		if !strings.HasPrefix(lower, "file:") {
			dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(dsn))
		}
		db, err = sql.Open("sqlite", dsn)
		if err == nil {
			db.SetMaxOpenConns(1)
			db.SetMaxIdleConns(1)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d, err)
	}

	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d, err)
	}
	if d == dialectSQLite {
		if _, err := db.ExecContext(pctx, "PRAGMA journal_mode=WAL;"); err != nil {
			l.Warn("enable WAL failed", slog.Any("err", err))
		}
	}
	s := &AuditStore{db: db, dialect: d, log: applog.WithComponent("audit")}
	if err := s.applyMigrations(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	l.Info("audit store ready", slog.String("driver", string(d)))
	return s, nil
}

func (s *AuditStore) Close() error { return s.db.Close() }

// Ping checks the database connection for readiness probes.
func (s *AuditStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Record appends an entry. A zero Time is set to now.
func (s *AuditStore) Record(ctx context.Context, e AuditEntry) error {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	p := s.dialect.placeholder
	q := fmt.Sprintf(`INSERT INTO relay_audit (ts_unix_ms, request_id, action, rich_menu_id, status, error) VALUES (%s, %s, %s, %s, %s, %s)`,
		p(1), p(2), p(3), p(4), p(5), p(6))
	if _, err := s.db.ExecContext(ctx, q, e.Time.UnixMilli(), e.RequestID, e.Action, e.RichMenuID, e.Status, e.Error); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *AuditStore) Recent(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	q := fmt.Sprintf(`SELECT id, ts_unix_ms, request_id, action, rich_menu_id, status, error FROM relay_audit ORDER BY ts_unix_ms DESC, id DESC LIMIT %s`,
		s.dialect.placeholder(1))
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()
	var out []AuditEntry
	for rows.Next() {
		var (
			e  AuditEntry
			ms int64
		)
		if err := rows.Scan(&e.ID, &ms, &e.RequestID, &e.Action, &e.RichMenuID, &e.Status, &e.Error); err != nil {
			return nil, err
		}
		e.Time = time.UnixMilli(ms).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// applyMigrations applies the embedded SQL migrations of the store's dialect in filename order
// and records each applied version in schema_migrations.
func (s *AuditStore) applyMigrations(ctx context.Context) error {
	dir := path.Join("migrations", string(s.dialect))
	entries, err := migrationsFS.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if name := e.Name(); strings.HasSuffix(strings.ToLower(name), ".sql") {
			files = append(files, name)
		}
	}
	sort.Strings(files)

	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied := map[int64]bool{}
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("select schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return err
		}
		applied[v] = true
	}
	if err := rows.Close(); err != nil {
		return err
	}

	p := s.dialect.placeholder
	for _, fname := range files {
		version, err := parseVersion(fname)
		if err != nil {
			return err
		}
		if applied[version] {
			continue
		}
		b, err := migrationsFS.ReadFile(path.Join(dir, fname))
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(b)) == "" {
			continue
		}
		s.log.Info("applying migration", slog.String("file", fname))
		if _, err := s.db.ExecContext(ctx, string(b)); err != nil {
			return fmt.Errorf("apply %s: %w", fname, err)
		}
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`INSERT INTO schema_migrations (version, name) VALUES (%s, %s)`, p(1), p(2)), version, fname); err != nil {
			return fmt.Errorf("record %s: %w", fname, err)
		}
	}
	return nil
}

func parseVersion(name string) (int64, error) {
	base := path.Base(name)
	parts := strings.SplitN(base, "_", 2)
	if len(parts) < 2 {
		return 0, errors.New("invalid migration filename: " + name)
	}
	v, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version from %s: %w", name, err)
	}
	return v, nil
}
