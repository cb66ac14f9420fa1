/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic into a crash report and an autosave of the open document.
package crash

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"richmenu/internal/domain"
	applog "richmenu/internal/log"
	"richmenu/internal/storage"
	"richmenu/internal/telemetry"
	"richmenu/internal/version"
)

// exitFn and stderr are swapped out by tests.
var (
	exitFn           = os.Exit
	stderr io.Writer = os.Stderr
)

// ExitCode is the process status after a recovered panic.
const ExitCode = 2

// AutosaveDirName is the subdirectory of Session.Dir receiving autosaved documents.
const AutosaveDirName = "autosave"

// Session describes what to rescue when the process panics.
type Session struct {
	// Dir receives crash reports and autosaves; empty means the OS temp dir.
	Dir string
	// Path is the file the document was opened from, if any.
	Path string
	// Current returns the document being edited; ok is false when nothing is open.
	Current func() (m domain.Menu, ok bool)
}

// Recover must be deferred directly: defer crash.Recover(sess).
// On a panic it writes a report, autosaves the document and exits with ExitCode.
func Recover(s *Session) {
	r := recover()
	if r == nil {
		return
	}
	handle(s, r, debug.Stack())
	exitFn(ExitCode)
}

func handle(s *Session, r any, stack []byte) {
	l := applog.WithComponent("crash")
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	var msg strings.Builder
	if path, err := autosave(s); err != nil {
		l.Error("autosave after crash failed", slog.Any("err", err))
	} else if path != "" {
		l.Info("document autosaved", slog.String("path", path))
		fmt.Fprintf(&msg, "Your rich menu was saved to: %s\n", path)
	}
	report, err := writeReport(s, r, stack)
	if err != nil {
		l.Error("crash report not written", slog.Any("err", err))
		fmt.Fprintf(&msg, "A fatal error occurred: %v\n", r)
	} else {
		fmt.Fprintf(&msg, "A fatal error occurred. A crash report was saved to: %s\n", report)
	}
	fmt.Fprintf(&msg, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
	if _, err := io.WriteString(stderr, msg.String()); err != nil {
		l.Error("crash message not shown", slog.Any("err", err))
	}
}

func (s *Session) dir() string {
	if s == nil || s.Dir == "" {
		return os.TempDir()
	}
	return s.Dir
}

// snapshot reads the current document; a panicking getter counts as nothing open.
func (s *Session) snapshot() (m domain.Menu, ok bool) {
	if s == nil || s.Current == nil {
		return domain.Menu{}, false
	}
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return s.Current()
}

func autosave(s *Session) (string, error) {
	m, ok := s.snapshot()
	if !ok {
		return "", nil
	}
	return storage.AutosaveCrash(filepath.Join(s.dir(), AutosaveDirName), m)
}

// writeReport stores a plain text report and hands it to the opt-in crash upload.
// Action targets (URLs, texts) stay out of the report; only their types are listed.
func writeReport(s *Session, panicVal any, stack []byte) (string, error) {
	dir := s.dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	now := time.Now()
	path := filepath.Join(dir, "crash-"+now.Format("20060102-150405")+".log")

	var buf bytes.Buffer
	buf.WriteString("Rich Menu Builder Crash Report\n")
	fmt.Fprintf(&buf, "Timestamp: %s\n", now.Format(time.RFC3339))
	fmt.Fprintf(&buf, "Version: %s\n", version.String())
	fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if s != nil && s.Path != "" {
		fmt.Fprintf(&buf, "Document: %s\n", s.Path)
	}
	if m, ok := s.snapshot(); ok {
		fmt.Fprintf(&buf, "Canvas: %dx%d, %d area(s)\n", m.Size.Width, m.Size.Height, len(m.Regions))
		for i, r := range m.Regions {
			b := r.Bounds
			kind := "none"
			if r.Action != nil {
				kind = string(r.Action.Type())
			}
			fmt.Fprintf(&buf, "  Area %d: %d,%d %dx%d %s\n", i+1, b.X, b.Y, b.Width, b.Height, kind)
		}
	}
	fmt.Fprintf(&buf, "\nPanic: %v\n\nStack:\n%s\n", panicVal, stack)

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", err
	}
	telemetry.UploadCrash(buf.Bytes())
	return path, nil
}
