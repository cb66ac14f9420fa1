/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package telemetry sends anonymous, opt-in usage events in small batches and, when
// allowed, crash reports. Nothing is sent unless the user opted in and an endpoint is set.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	applog "richmenu/internal/log"
	"richmenu/internal/version"
)

// Event names.
const (
	EventMenuExported  = "menu_exported"
	EventMenuImported  = "menu_imported"
	EventMenuPublished = "menu_published"
	EventEditorStarted = "editor_started"
)

// Config is read from the environment by FromEnv:
//
//	RMB_TELEMETRY_OPT_IN      1, true, yes or on
//	RMB_TELEMETRY_URL         endpoint for event batches
//	RMB_CRASH_UPLOAD_URL      endpoint for crash reports
//	RMB_TELEMETRY_TIMEOUT_MS  request timeout, 1500 by default
//	RMB_TELEMETRY_DEBUG       log every send attempt
type Config struct {
	OptIn        bool
	EventsURL    string
	CrashURL     string
	Timeout      time.Duration
	DebugLogging bool

	// BatchSize and Interval bound how long events wait in memory.
	BatchSize int
	Interval  time.Duration
}

const (
	defaultTimeout   = 1500 * time.Millisecond
	defaultBatchSize = 20
	defaultInterval  = 5 * time.Second
	queueSize        = 64
)

func FromEnv() Config {
	cfg := Config{
		OptIn:        parseBool(os.Getenv("RMB_TELEMETRY_OPT_IN")),
		EventsURL:    strings.TrimSpace(os.Getenv("RMB_TELEMETRY_URL")),
		CrashURL:     strings.TrimSpace(os.Getenv("RMB_CRASH_UPLOAD_URL")),
		Timeout:      defaultTimeout,
		DebugLogging: os.Getenv("RMB_TELEMETRY_DEBUG") != "",
	}
	if ms := strings.TrimSpace(os.Getenv("RMB_TELEMETRY_TIMEOUT_MS")); ms != "" {
		if v, err := time.ParseDuration(ms + "ms"); err == nil {
			cfg.Timeout = v
		}
	}
	return cfg
}

// WithOptIn enables telemetry when either the environment or the user config opted in.
func (c Config) WithOptIn(optIn bool) Config {
	c.OptIn = c.OptIn || optIn
	return c
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// event is one queued entry; shared fields are sent once per batch.
type event struct {
	Name  string         `json:"name"`
	TS    string         `json:"ts"`
	Props map[string]any `json:"props,omitempty"`
}

type batch struct {
	Version string  `json:"version"`
	OS      string  `json:"os"`
	Arch    string  `json:"arch"`
	Events  []event `json:"events"`
}

// Client queues events without blocking and posts them from one goroutine.
// A full queue drops events; send errors are logged at debug level only.
type Client struct {
	cfg   Config
	log   *slog.Logger
	http  *http.Client
	q     chan event
	flush chan chan struct{}
	done  chan struct{}
	stop  sync.Once
	wg    sync.WaitGroup
}

var (
	defaultMu     sync.Mutex
	defaultClient *Client
)

// NewDefault installs a client built from cfg as the package default and closes the previous one.
func NewDefault(cfg Config) {
	c := New(cfg)
	defaultMu.Lock()
	old := defaultClient
	defaultClient = c
	defaultMu.Unlock()
	old.Close()
}

// current returns the default client, creating a disabled-unless-env one on first use.
func current() *Client {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultClient == nil {
		defaultClient = New(FromEnv())
	}
	return defaultClient
}

// New starts a client. Close stops it.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	c := &Client{
		cfg:   cfg,
		log:   applog.WithComponent("telemetry"),
		http:  &http.Client{Timeout: cfg.Timeout},
		q:     make(chan event, queueSize),
		flush: make(chan chan struct{}),
		done:  make(chan struct{}),
	}
	c.wg.Add(1)
	go c.loop()
	return c
}

// Enabled reports whether events would be sent.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// Enabled reports it for the default client.
func Enabled() bool { return current().Enabled() }

// Event queues an event. Props pass through sanitize first.
func (c *Client) Event(name string, props map[string]any) {
	if !c.Enabled() || name == "" {
		return
	}
	e := event{Name: name, TS: time.Now().UTC().Format(time.RFC3339Nano), Props: sanitize(props)}
	select {
	case c.q <- e:
	case <-c.done:
	default:
		if c.cfg.DebugLogging {
			c.log.Debug("telemetry queue full; event dropped", slog.String("event", name))
		}
	}
}

// Event queues on the default client.
func Event(name string, props map[string]any) { current().Event(name, props) }

var sensitiveKeys = []string{"token", "secret", "url", "uri", "text", "data", "name", "path"}

// sanitize keeps numbers and booleans, and short strings only under keys that cannot carry user content.
func sanitize(props map[string]any) map[string]any {
	if len(props) == 0 {
		return nil
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		switch tv := v.(type) {
		case bool, int, int32, int64, float32, float64, uint, uint32, uint64:
			out[k] = tv
		case string:
			if len(tv) <= 64 && !looksSensitive(k) {
				out[k] = tv
			}
		}
	}
	return out
}

func looksSensitive(key string) bool {
	lk := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lk, s) {
			return true
		}
	}
	return false
}

// Flush sends everything queued so far and waits until that send finished or ctx ends.
func (c *Client) Flush(ctx context.Context) {
	if c == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ack := make(chan struct{})
	select {
	case c.flush <- ack:
	case <-c.done:
		return
	case <-ctx.Done():
		return
	}
	select {
	case <-ack:
	case <-ctx.Done():
	}
}

// Flush flushes the default client.
func Flush(ctx context.Context) { current().Flush(ctx) }

// Close sends what is still queued and stops the client.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.stop.Do(func() { close(c.done) })
	c.wg.Wait()
}

func (c *Client) loop() {
	defer c.wg.Done()
	tick := time.NewTicker(c.cfg.Interval)
	defer tick.Stop()

	var pending []event
	send := func() {
		for len(pending) > 0 {
			n := min(len(pending), c.cfg.BatchSize)
			c.sendBatch(pending[:n])
			pending = pending[n:]
		}
		pending = nil
	}
	drain := func() {
		for {
			select {
			case e := <-c.q:
				pending = append(pending, e)
			default:
				return
			}
		}
	}
	for {
		select {
		case e := <-c.q:
			pending = append(pending, e)
			if len(pending) >= c.cfg.BatchSize {
				send()
			}
		case <-tick.C:
			send()
		case ack := <-c.flush:
			drain()
			send()
			close(ack)
		case <-c.done:
			drain()
			send()
			return
		}
	}
}

func (c *Client) sendBatch(events []event) {
	body, err := json.Marshal(batch{
		Version: version.String(),
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
		Events:  events,
	})
	if err != nil {
		return
	}
	c.post(c.cfg.EventsURL, "application/json", body)
}

func (c *Client) post(url, contentType string, body []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.http.Do(req)
	if err != nil {
		if c.cfg.DebugLogging {
			c.log.Debug("telemetry send failed", slog.Any("err", err))
		}
		return
	}
	_ = resp.Body.Close()
	if c.cfg.DebugLogging {
		c.log.Debug("telemetry sent", slog.Int("status", resp.StatusCode), slog.Int("bytes", len(body)))
	}
}

// UploadCrash posts a crash report when the user opted in and a crash endpoint is set.
// It blocks for at most the configured timeout; the process is usually about to exit.
func (c *Client) UploadCrash(report []byte) {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return
	}
	c.post(c.cfg.CrashURL, "text/plain; charset=utf-8", report)
}

// UploadCrash uploads with the default client.
func UploadCrash(report []byte) { current().UploadCrash(report) }
