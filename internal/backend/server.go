/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package backend is the relay proxy: a small HTTP server that forwards the three
// publish calls to the platform on behalf of clients that cannot call it directly,
// plus a client for that server.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"richmenu/internal/line"
	applog "richmenu/internal/log"
	"richmenu/internal/version"
)

// RelayPath is where the relay endpoint is mounted.
const RelayPath = "/functions/v1/line-richmenu"

const maxBodyBytes = 1 << 20

// Config holds server configuration.
type Config struct {
	Addr            string // http bind address, e.g. ":54321"
	AuditDSN        string // optional; empty disables the audit trail
	LineAPIBaseURL  string
	LineDataBaseURL string
	Timeout         time.Duration // platform call timeout
}

// Server relays publish steps to the platform.
type Server struct {
	line  *line.Client
	audit *AuditStore
	log   *slog.Logger
	mux   *http.ServeMux
}

// NewServer builds the handler tree. audit may be nil.
func NewServer(lc *line.Client, audit *AuditStore) *Server {
	s := &Server{line: lc, audit: audit, log: applog.WithComponent("server"), mux: http.NewServeMux()}
	s.routes()
	return s
}

// Handler returns the root handler with CORS and request logging applied.
func (s *Server) Handler() http.Handler { return s.withRequestLog(withCORS(s.mux)) }

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if s.audit != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := s.audit.Ping(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("db not ready"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	s.mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("richmenu-relay " + version.String()))
	})
	s.mux.HandleFunc(RelayPath, s.handleRelay)
	s.mux.HandleFunc("/api/audit", s.handleAudit)
}

func (s *Server) handleRelay(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	action := q.Get("action")
	if action == "" {
		writeError(w, http.StatusBadRequest, errors.New("Action parameter is required"))
		return
	}
	withAuth(func(w http.ResponseWriter, r *http.Request, token string) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
			return
		}
		switch action {
		case "create":
			s.relayCreate(w, r, token)
		case "upload-image":
			s.relayUpload(w, r, token)
		case "set-default":
			s.relaySetDefault(w, r, token)
		default:
			writeError(w, http.StatusBadRequest, errors.New("Invalid action"))
		}
	})(w, r)
}

func (s *Server) relayCreate(w http.ResponseWriter, r *http.Request, token string) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	_ = r.Body.Close()
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read body: %w", err))
		return
	}
	if len(body) > maxBodyBytes {
		writeError(w, http.StatusRequestEntityTooLarge, errors.New("request body too large"))
		return
	}
	if !json.Valid(body) {
		writeError(w, http.StatusBadRequest, errors.New("request body must be a JSON rich menu"))
		return
	}
	out, err := s.line.CreateRichMenuRaw(r.Context(), token, body)
	if err != nil {
		status := s.fail(w, r, err, "Failed to create rich menu")
		s.record(r, "create", "", status, err)
		return
	}
	var created struct {
		RichMenuID string `json:"richMenuId"`
	}
	_ = json.Unmarshal(out, &created)
	s.record(r, "create", created.RichMenuID, http.StatusOK, nil)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) relayUpload(w http.ResponseWriter, r *http.Request, token string) {
	q := r.URL.Query()
	id, imageURL := q.Get("richMenuId"), q.Get("imageUrl")
	if id == "" || imageURL == "" {
		writeError(w, http.StatusBadRequest, errors.New("richMenuId and imageUrl parameters are required"))
		return
	}
	if err := s.line.UploadRichMenuImage(r.Context(), token, id, imageURL); err != nil {
		status := s.fail(w, r, err, "Failed to upload image")
		s.record(r, "upload-image", id, status, err)
		return
	}
	s.record(r, "upload-image", id, http.StatusOK, nil)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) relaySetDefault(w http.ResponseWriter, r *http.Request, token string) {
	id := r.URL.Query().Get("richMenuId")
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("richMenuId parameter is required"))
		return
	}
	if err := s.line.SetDefaultRichMenu(r.Context(), token, id); err != nil {
		status := s.fail(w, r, err, "Failed to set as default")
		s.record(r, "set-default", id, status, err)
		return
	}
	s.record(r, "set-default", id, http.StatusOK, nil)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// fail maps a platform error to the relay response and returns the status written.
// Remote errors keep their status; the message falls back to "<what>: <status>".
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, what string) int {
	var apiErr *line.APIError
	switch {
	case errors.As(err, &apiErr):
		msg := apiErr.Message
		if msg == "" {
			msg = fmt.Sprintf("%s: %d", what, apiErr.Status)
		}
		writeError(w, apiErr.Status, errors.New(msg))
		return apiErr.Status
	case errors.Is(err, line.ErrImageFetch):
		writeError(w, http.StatusBadRequest, errors.New("Failed to fetch image from URL"))
		return http.StatusBadRequest
	default:
		s.log.ErrorContext(r.Context(), "relay call failed", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, err)
		return http.StatusInternalServerError
	}
}

func (s *Server) record(r *http.Request, action, id string, status int, err error) {
	if s.audit == nil {
		return
	}
	e := AuditEntry{RequestID: applog.RequestID(r.Context()), Action: action, RichMenuID: id, Status: status}
	if err != nil {
		e.Error = err.Error()
	}
	if rerr := s.audit.Record(r.Context(), e); rerr != nil {
		s.log.WarnContext(r.Context(), "audit record failed", slog.Any("err", rerr))
	}
}

// GET /api/audit?limit=N lists recent relay calls.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.audit == nil {
		writeError(w, http.StatusNotFound, errors.New("audit trail disabled"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := s.audit.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if list == nil {
		list = []AuditEntry{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, cfg Config) error {
	l := applog.WithOperation(applog.WithComponent("server"), "run")
	if cfg.Addr == "" {
		cfg.Addr = ":54321"
	}
	var audit *AuditStore
	if strings.TrimSpace(cfg.AuditDSN) != "" {
		a, err := OpenAudit(ctx, cfg.AuditDSN)
		if err != nil {
			return fmt.Errorf("open audit store: %w", err)
		}
		defer func() {
			if err := a.Close(); err != nil {
				l.Warn("audit close", slog.Any("err", err))
			}
		}()
		audit = a
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewServer(line.NewClient(cfg.LineAPIBaseURL, cfg.LineDataBaseURL, cfg.Timeout), audit).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		l.Info("relay listening", slog.String("addr", cfg.Addr), slog.Bool("audit", audit != nil))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		l.Info("relay shutting down")
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// --- Helpers: auth, CORS, logging and JSON ---

// withAuth passes the bearer token on verbatim; the platform decides whether it is valid.
func withAuth(next func(w http.ResponseWriter, r *http.Request, token string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if strings.TrimSpace(auth) == "" {
			writeError(w, http.StatusUnauthorized, errors.New("Authorization header is required"))
			return
		}
		next(w, r, strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")))
	}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := applog.WithRequestID(r.Context(), uuid.NewString())
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))
		s.log.InfoContext(ctx, "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("action", r.URL.Query().Get("action")),
			slog.Int("status", rec.status),
			slog.Duration("took", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
