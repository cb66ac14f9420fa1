/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package line is a small client for the rich menu endpoints of the LINE Messaging API.
package line

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"richmenu/internal/domain"
	applog "richmenu/internal/log"
)

const (
	DefaultAPIBaseURL  = "https://api.line.me"
	DefaultDataBaseURL = "https://api-data.line.me"

	// maxImageBytes is the upload limit of the platform for rich menu images.
	maxImageBytes = 10 << 20
)

// ErrImageFetch means the background image could not be downloaded.
var ErrImageFetch = errors.New("failed to fetch image from URL")

// APIError is a non-2xx answer of the platform.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("line api: HTTP %d", e.Status)
	}
	return fmt.Sprintf("line api: HTTP %d: %s", e.Status, e.Message)
}

func (e *APIError) HTTPStatus() int       { return e.Status }
func (e *APIError) RemoteMessage() string { return e.Message }

// Client talks to the platform directly. The zero value is not usable; use NewClient.
type Client struct {
	APIBaseURL  string
	DataBaseURL string
	HTTP        *http.Client
	log         *slog.Logger
}

// NewClient creates a client. Empty base URLs fall back to the public endpoints.
// A timeout of zero leaves requests bounded only by their context.
func NewClient(apiBaseURL, dataBaseURL string, timeout time.Duration) *Client {
	if strings.TrimSpace(apiBaseURL) == "" {
		apiBaseURL = DefaultAPIBaseURL
	}
	if strings.TrimSpace(dataBaseURL) == "" {
		dataBaseURL = DefaultDataBaseURL
	}
	if timeout < 0 {
		timeout = 0
	}
	return &Client{
		APIBaseURL:  strings.TrimRight(apiBaseURL, "/"),
		DataBaseURL: strings.TrimRight(dataBaseURL, "/"),
		HTTP:        &http.Client{Timeout: timeout},
		log:         applog.WithComponent("line"),
	}
}

type createResponse struct {
	RichMenuID string `json:"richMenuId"`
}

// CreateRichMenu posts the menu document and returns the new rich menu id.
func (c *Client) CreateRichMenu(ctx context.Context, token string, menu domain.Menu) (string, error) {
	body, err := json.Marshal(menu)
	if err != nil {
		return "", fmt.Errorf("encode menu: %w", err)
	}
	var out createResponse
	if err := c.do(ctx, token, http.MethodPost, c.APIBaseURL+"/v2/bot/richmenu", "application/json", bytes.NewReader(body), &out); err != nil {
		return "", err
	}
	return out.RichMenuID, nil
}

// CreateRichMenuRaw forwards an already encoded menu document unchanged and returns
// the platform's response body.
func (c *Client) CreateRichMenuRaw(ctx context.Context, token string, body []byte) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, token, http.MethodPost, c.APIBaseURL+"/v2/bot/richmenu", "application/json", bytes.NewReader(body), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UploadRichMenuImage downloads imageURL and uploads the bytes as the menu background.
func (c *Client) UploadRichMenuImage(ctx context.Context, token, richMenuID, imageURL string) error {
	img, contentType, err := c.FetchImage(ctx, imageURL)
	if err != nil {
		return err
	}
	u := c.DataBaseURL + "/v2/bot/richmenu/" + url.PathEscape(richMenuID) + "/content"
	return c.do(ctx, token, http.MethodPost, u, contentType, bytes.NewReader(img), nil)
}

// FetchImage downloads an image and returns its bytes and content type (image/jpeg when unknown).
func (c *Client) FetchImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrImageFetch, err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrImageFetch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("%w: %s", ErrImageFetch, resp.Status)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrImageFetch, err)
	}
	if len(b) > maxImageBytes {
		return nil, "", fmt.Errorf("%w: image larger than %d bytes", ErrImageFetch, maxImageBytes)
	}
	ct := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if ct == "" {
		ct = "image/jpeg"
	}
	return b, ct, nil
}

// SetDefaultRichMenu makes the menu the default for all users.
func (c *Client) SetDefaultRichMenu(ctx context.Context, token, richMenuID string) error {
	u := c.APIBaseURL + "/v2/bot/user/all/richmenu/" + url.PathEscape(richMenuID)
	return c.do(ctx, token, http.MethodPost, u, "", nil, nil)
}

func (c *Client) do(ctx context.Context, token, method, u, contentType string, body io.Reader, dest any) error {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	c.log.DebugContext(ctx, "line api call",
		slog.String("method", method),
		slog.String("path", req.URL.Path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("took", time.Since(start)),
	)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Message: ErrorMessage(resp.Body, "message")}
	}
	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// ErrorMessage reads a JSON error body and returns the named string field, or "" when absent.
func ErrorMessage(r io.Reader, field string) string {
	b, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil || len(b) == 0 {
		return ""
	}
	var payload map[string]any
	if err := json.Unmarshal(b, &payload); err != nil {
		return ""
	}
	if s, ok := payload[field].(string); ok {
		return s
	}
	return ""
}
