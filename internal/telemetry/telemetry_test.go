/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type collector struct {
	mu      sync.Mutex
	batches []batch
	crashes [][]byte
}

func (c *collector) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		var b batch
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
			t.Errorf("bad batch: %v", err)
		}
		c.mu.Lock()
		c.batches = append(c.batches, b)
		c.mu.Unlock()
	})
	mux.HandleFunc("/crash", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.crashes = append(c.crashes, b)
		c.mu.Unlock()
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func (c *collector) events() []event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []event
	for _, b := range c.batches {
		out = append(out, b.Events...)
	}
	return out
}

func TestClient_EventAndUploadCrash(t *testing.T) {
	var col collector
	srv := col.server(t)

	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events", CrashURL: srv.URL + "/crash", Timeout: 2 * time.Second})
	defer c.Close()
	if !c.Enabled() {
		t.Fatalf("expected client to be enabled")
	}

	c.Event(EventMenuPublished, map[string]any{"regions": 3, "outcome": "default", "token": "secret-token"})
	c.Flush(context.Background())

	got := col.events()
	if len(got) != 1 {
		t.Fatalf("expected one event after flush, got %d", len(got))
	}
	e := got[0]
	if e.Name != EventMenuPublished || e.TS == "" {
		t.Fatalf("unexpected event %+v", e)
	}
	if e.Props["regions"] != float64(3) || e.Props["outcome"] != "default" {
		t.Fatalf("props not forwarded: %v", e.Props)
	}
	if _, leaked := e.Props["token"]; leaked {
		t.Fatalf("token must never be sent: %v", e.Props)
	}
	col.mu.Lock()
	if b := col.batches[0]; b.Version == "" || b.OS == "" {
		t.Fatalf("batch header missing: %+v", b)
	}
	col.mu.Unlock()

	c.UploadCrash([]byte("STACKTRACE"))
	col.mu.Lock()
	n := len(col.crashes)
	col.mu.Unlock()
	if n != 1 {
		t.Fatalf("expected crash upload to be sent, got %d", n)
	}
}

func TestClient_BatchesBySize(t *testing.T) {
	var col collector
	srv := col.server(t)
	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events", BatchSize: 2, Interval: time.Hour})
	for i := 0; i < 5; i++ {
		c.Event(EventMenuExported, map[string]any{"i": i})
	}
	c.Close() // sends the remainder

	if n := len(col.events()); n != 5 {
		t.Fatalf("expected all 5 events delivered, got %d", n)
	}
	col.mu.Lock()
	defer col.mu.Unlock()
	for _, b := range col.batches {
		if len(b.Events) > 2 {
			t.Fatalf("batch exceeds size limit: %d", len(b.Events))
		}
	}
}

func TestClient_DisabledAndEmptyEventName(t *testing.T) {
	var col collector
	srv := col.server(t)

	c := New(Config{OptIn: false, EventsURL: srv.URL + "/events", CrashURL: srv.URL + "/crash"})
	if c.Enabled() {
		t.Fatalf("expected disabled client")
	}
	c.Event("ignored", nil)
	c.UploadCrash([]byte("ignored"))
	c.Close()

	c2 := New(Config{OptIn: true, EventsURL: srv.URL + "/events"})
	c2.Event("", nil)
	c2.Flush(context.Background())
	c2.Close()

	col.mu.Lock()
	defer col.mu.Unlock()
	if len(col.batches) != 0 || len(col.crashes) != 0 {
		t.Fatalf("expected no requests, got %d batches %d crashes", len(col.batches), len(col.crashes))
	}
}

func TestClient_SendErrorsAreSwallowed(t *testing.T) {
	c := New(Config{
		OptIn:        true,
		EventsURL:    "http://127.0.0.1:1/events",
		CrashURL:     "http://127.0.0.1:1/crash",
		Timeout:      50 * time.Millisecond,
		DebugLogging: true,
	})
	c.Event("err", map[string]any{"a": 1})
	c.Flush(context.Background())
	c.UploadCrash([]byte("oops"))
	c.Close()
	// closed clients ignore further calls
	c.Event("late", nil)
	c.Flush(context.Background())
	c.Close()
}

func TestEnabled_DefaultClientAndFromEnv(t *testing.T) {
	t.Setenv("RMB_TELEMETRY_OPT_IN", "true")
	t.Setenv("RMB_TELEMETRY_URL", "http://127.0.0.1:0") // bogus URL but presence enables
	t.Setenv("RMB_CRASH_UPLOAD_URL", "")
	t.Setenv("RMB_TELEMETRY_TIMEOUT_MS", "100")

	cfg := FromEnv()
	if !cfg.OptIn || cfg.EventsURL == "" || cfg.Timeout <= 0 {
		t.Fatalf("FromEnv did not parse correctly: %+v", cfg)
	}

	NewDefault(cfg)
	if !Enabled() {
		t.Fatalf("default Enabled should be true with env config")
	}
}

func TestSanitizeDropsContent(t *testing.T) {
	got := sanitize(map[string]any{
		"regions":   2,
		"selected":  true,
		"imageUrl":  "https://example.com/a.png",
		"menuName":  "Spring",
		"outcome":   "partial",
		"nested":    map[string]any{"a": 1},
		"long_enum": string(make([]byte, 100)),
	})
	if len(got) != 3 || got["regions"] != 2 || got["selected"] != true || got["outcome"] != "partial" {
		t.Fatalf("unexpected sanitized props: %v", got)
	}
}

func TestConfigWithOptIn(t *testing.T) {
	if !(Config{}).WithOptIn(true).OptIn {
		t.Fatalf("config opt-in should enable")
	}
	if !(Config{OptIn: true}).WithOptIn(false).OptIn {
		t.Fatalf("env opt-in must not be cleared by config")
	}
}
