/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// lastJSONLine decodes the final record of a JSON log.
func lastJSONLine(t *testing.T, b []byte) (map[string]any, string) {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if last == "" {
		t.Fatal("no log lines")
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(last), &m); err != nil {
		t.Fatalf("not JSON: %v (%q)", err, last)
	}
	return m, last
}

// The file sink and the JSON console sink receive the same enriched record.
func TestInitWritesRotatedJSONFile(t *testing.T) {
	// os.TempDir instead of t.TempDir: Windows refuses to delete the still-open file
	fpath := filepath.Join(os.TempDir(), fmt.Sprintf("rmb_log_%d.json", time.Now().UnixNano()))
	var console bytes.Buffer
	Init(Options{Level: "debug", Format: "json", File: fpath, Console: &console})

	l := WithOperation(WithComponent("relay"), "publish")
	ctx := WithRequestID(context.Background(), "req-7")
	l.InfoContext(ctx, "menu created", slog.String("id", "richmenu-1"), Token("token", "secret-value"))

	b, err := os.ReadFile(fpath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	for name, raw := range map[string][]byte{"file": b, "console": console.Bytes()} {
		m, line := lastJSONLine(t, raw)
		want := map[string]any{
			"app":       "richmenu",
			"component": "relay",
			"op":        "publish",
			"msg":       "menu created",
			"id":        "richmenu-1",
			"req":       "req-7",
			"token":     "present",
		}
		for k, v := range want {
			if m[k] != v {
				t.Fatalf("%s: %s = %v, want %v", name, k, m[k], v)
			}
		}
		if _, ok := m["ver"].(string); !ok {
			t.Fatalf("%s: missing ver", name)
		}
		if strings.Contains(line, "secret-value") {
			t.Fatalf("%s: token leaked: %s", name, line)
		}
	}
}

func TestDebugFilteredAtInfo(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "info", Console: &buf})
	L().Debug("hidden")
	L().Info("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "INF shown") {
		t.Fatalf("unexpected console output %q", out)
	}
}
