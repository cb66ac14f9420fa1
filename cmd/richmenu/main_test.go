/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/zalando/go-keyring"

	"richmenu/internal/domain"
	"richmenu/internal/storage"
)

// isolate points config, state and keychain at throwaway locations.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("RMB_CONFIG_DIR", filepath.Join(dir, "config"))
	t.Setenv("RMB_CHANNEL_TOKEN", "")
	t.Setenv("RMB_TELEMETRY_OPT_IN", "")
	keyring.MockInit()
	return dir
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, "", args...)
	if err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out)
	}
	return out
}

func writeMenu(t *testing.T, path string, m domain.Menu) {
	t.Helper()
	if err := storage.SaveMenu(path, m); err != nil {
		t.Fatalf("save: %v", err)
	}
}

func sampleMenu() domain.Menu {
	m := domain.NewMenu()
	m.Name = "Shop"
	m.Regions = []domain.Region{
		{ID: "a", Bounds: domain.Bounds{X: 0, Y: 0, Width: 1250, Height: 843}, Action: domain.URIAction{URI: "https://example.com"}},
		{ID: "b", Bounds: domain.Bounds{X: 1250, Y: 0, Width: 1250, Height: 843}, Action: domain.MessageAction{Text: "hello"}},
	}
	return m
}

func TestVersion(t *testing.T) {
	isolate(t)
	out := mustRun(t, "version")
	if !strings.Contains(out, "Rich Menu Builder") || !strings.Contains(out, "Version:") {
		t.Fatalf("unexpected version output:\n%s", out)
	}
}

func TestNewShowValidate(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "menu.json")

	out := mustRun(t, "new", path, "--name", "Cafe", "--size", "compact", "--chat-bar", "Tap me")
	if !strings.Contains(out, "2500x843") {
		t.Fatalf("expected compact size in %q", out)
	}
	if _, err := run(t, "", "new", path); err == nil {
		t.Fatal("new must refuse to overwrite without --force")
	}

	out = mustRun(t, "show", path)
	for _, want := range []string{"Cafe", "compact", "Tap me", "0/10"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary misses %q:\n%s", want, out)
		}
	}

	out = mustRun(t, "validate", path)
	if !strings.Contains(out, "ok (0 areas)") {
		t.Fatalf("unexpected validate output %q", out)
	}

	out = mustRun(t, "recent")
	if !strings.Contains(out, "Cafe") {
		t.Fatalf("recent list should contain the new menu:\n%s", out)
	}
}

func TestNewRejectsLongChatBar(t *testing.T) {
	dir := isolate(t)
	if _, err := run(t, "", "new", filepath.Join(dir, "m.json"), "--chat-bar", "fifteen letters"); err == nil {
		t.Fatal("expected a validation error")
	}
}

func TestValidateReportsProblems(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte(`{"size":{"width":2500,"height":1686},"areas":"nope"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, "", "validate", path)
	if err == nil {
		t.Fatalf("expected failure, got output %q", out)
	}

	m := sampleMenu()
	m.Regions[1].Bounds.X = 2000
	path = filepath.Join(dir, "outside.json")
	writeMenu(t, path, m)
	out, err = run(t, "", "validate", path)
	if err == nil || !strings.Contains(out, "menu: area 2") {
		t.Fatalf("expected an area problem, got %v\n%s", err, out)
	}
}

func TestPreviewAndExport(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "menu.json")
	writeMenu(t, path, sampleMenu())

	pngPath := filepath.Join(dir, "menu.png")
	mustRun(t, "preview", path, pngPath, "--scale", "0.1")
	f, err := os.Open(pngPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := png.Decode(f); err != nil {
		t.Fatalf("preview is not a PNG: %v", err)
	}

	if _, err := run(t, "", "preview", path, filepath.Join(dir, "menu")); err == nil {
		t.Fatal("preview without extension should fail")
	}

	outDir := filepath.Join(dir, "out")
	out := mustRun(t, "export", path, "--preset", "web", "-o", outDir, "--base", "shop")
	for _, ext := range []string{"json", "png", "svg"} {
		p := filepath.Join(outDir, "shop."+ext)
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("missing %s: %v\n%s", p, err, out)
		}
	}
}

func TestTokenCommands(t *testing.T) {
	isolate(t)
	if out := mustRun(t, "token", "status"); !strings.Contains(out, "No token") {
		t.Fatalf("unexpected status %q", out)
	}
	if _, err := run(t, "secret-token\n", "token", "set"); err != nil {
		t.Fatalf("set from stdin: %v", err)
	}
	out := mustRun(t, "token", "status")
	if !strings.Contains(out, "12 characters") || strings.Contains(out, "secret-token") {
		t.Fatalf("status must report the token without printing it: %q", out)
	}
	mustRun(t, "token", "clear")
	if out := mustRun(t, "token", "status"); !strings.Contains(out, "No token") {
		t.Fatalf("token not cleared: %q", out)
	}
}

func TestConfigShowAndInit(t *testing.T) {
	isolate(t)
	t.Setenv("RMB_PROXY_ENV", "deployed")
	out := mustRun(t, "config", "show")
	if !strings.Contains(out, "proxy_env: deployed") {
		t.Fatalf("env override missing from:\n%s", out)
	}
	mustRun(t, "config", "init")
	if _, err := run(t, "", "config", "init"); err == nil {
		t.Fatal("init must not overwrite without --force")
	}
	p := strings.TrimSpace(mustRun(t, "config", "path"))
	if _, err := os.Stat(p); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
}

func TestPublishDirect(t *testing.T) {
	dir := isolate(t)
	var (
		mu    sync.Mutex
		calls []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, r.Method+" "+r.URL.Path)
		mu.Unlock()
		switch {
		case r.URL.Path == "/img.png":
			img := image.NewRGBA(image.Rect(0, 0, 4, 4))
			img.Set(0, 0, color.White)
			w.Header().Set("Content-Type", "image/png")
			_ = png.Encode(w, img)
		case r.URL.Path == "/v2/bot/richmenu":
			if r.Header.Get("Authorization") != "Bearer tok" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, `{"message":"bad token"}`)
				return
			}
			_, _ = io.WriteString(w, `{"richMenuId":"richmenu-123"}`)
		default:
			_, _ = io.WriteString(w, `{}`)
		}
	}))
	defer srv.Close()
	t.Setenv("RMB_LINE_API_URL", srv.URL)
	t.Setenv("RMB_LINE_DATA_URL", srv.URL)

	path := filepath.Join(dir, "menu.json")
	writeMenu(t, path, sampleMenu())

	out := mustRun(t, "publish", path, "--target", "direct", "--token", "tok", "--image", srv.URL+"/img.png")
	if !strings.Contains(out, "richmenu-123") || !strings.Contains(out, "default") {
		t.Fatalf("unexpected publish output:\n%s", out)
	}
	mu.Lock()
	got := strings.Join(calls, "\n")
	mu.Unlock()
	for _, want := range []string{
		"POST /v2/bot/richmenu",
		"POST /v2/bot/richmenu/richmenu-123/content",
		"POST /v2/bot/user/all/richmenu/richmenu-123",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing call %q in:\n%s", want, got)
		}
	}

	out, err := run(t, "", "publish", path, "--target", "direct", "--token", "wrong", "--image", srv.URL+"/img.png")
	if err == nil || !strings.Contains(out, "step 1 (create)") {
		t.Fatalf("expected a create failure, got %v\n%s", err, out)
	}
}

func TestPublishUnknownTarget(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "menu.json")
	writeMenu(t, path, sampleMenu())
	if _, err := run(t, "", "publish", path, "--target", "moon", "--token", "x", "--image", "https://example.com/a.png"); err == nil {
		t.Fatal("expected an error for an unknown target")
	}
}
