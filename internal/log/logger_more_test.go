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
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestFromEnv(t *testing.T) {
	t.Setenv("RMB_LOG_LEVEL", "warn")
	t.Setenv("RMB_LOG_FORMAT", "json")
	t.Setenv("RMB_LOG_SOURCE", "true")
	t.Setenv("RMB_LOG_FILE", "")

	opts := FromEnv()
	if opts.Level != "warn" || opts.Format != "json" || !opts.AddSource || opts.File != "" {
		t.Fatalf("FromEnv mismatch: %+v", opts)
	}
	t.Setenv("RMB_LOG_LEVEL", "")
	if got := FromEnv().Level; got != "info" {
		t.Fatalf("level should default to info, got %q", got)
	}
}

func TestConsoleHandlerLine(t *testing.T) {
	var buf bytes.Buffer
	var h slog.Handler = &consoleHandler{w: &buf, level: slog.LevelWarn}
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("info should be filtered at warn level")
	}

	h = h.WithAttrs([]slog.Attr{slog.String("component", "relay"), slog.String("app", "richmenu"), slog.String("k", "v")})
	h = h.WithGroup("grp")
	r := slog.NewRecord(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), slog.LevelError, "boom", 0)
	r.AddAttrs(slog.Int("n", 42), slog.Float64("pi", 3.14), slog.String("msg", "two words"))
	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{"03:04:05.000 ERR [relay] boom", " k=v", " grp.n=42", " grp.pi=3.14", ` grp.msg="two words"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
	if strings.Contains(out, "app=") {
		t.Fatalf("static fields should stay off the console: %q", out)
	}
}

func TestRedactSecrets(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "debug", Console: &buf})
	l := WithComponent("test").With(slog.String("authorization", "Bearer abc"))
	l.Info("call", slog.String("token", "s3cr3t"), Token("channel_token", "s3cr3t"),
		slog.Group("req", slog.String("access_token", "s3cr3t")))

	out := buf.String()
	if strings.Contains(out, "s3cr3t") || strings.Contains(out, "Bearer abc") {
		t.Fatalf("credential leaked: %q", out)
	}
	if !strings.Contains(out, "token=***") || !strings.Contains(out, "channel_token=present") {
		t.Fatalf("unexpected masking: %q", out)
	}
}

func TestTokenAttr(t *testing.T) {
	if a := Token("tok", "  "); a.Value.String() != "absent" {
		t.Fatalf("blank token should log as absent, got %v", a.Value)
	}
	if a := Token("tok", "abc"); a.Value.String() != "present" {
		t.Fatalf("token should log as present, got %v", a.Value)
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	if RequestID(context.Background()) != "" {
		t.Fatalf("empty context should carry no request id")
	}
	ctx := WithRequestID(context.Background(), "abc")
	if RequestID(ctx) != "abc" {
		t.Fatalf("request id lost")
	}
}

func TestLevelTag(t *testing.T) {
	cases := map[slog.Level]string{
		slog.LevelDebug:     "DBG",
		slog.LevelInfo:      "INF",
		slog.LevelWarn + 1:  "WRN",
		slog.LevelError + 4: "ERR",
	}
	for l, want := range cases {
		if got := levelTag(l); got != want {
			t.Fatalf("levelTag(%v) = %q, want %q", l, got, want)
		}
	}
}
