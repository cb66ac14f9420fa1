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
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"richmenu/internal/domain"
	"richmenu/internal/line"
)

// ProxyClient publishes through a relay server instead of calling the platform directly.
// Errors are *line.APIError carrying the relay's status and its "error" message.
type ProxyClient struct {
	// Endpoint is the full relay URL, e.g. http://localhost:54321/functions/v1/line-richmenu.
	Endpoint string
	client   *http.Client
}

// NewProxyClient creates a client for the relay at endpoint. A bare origin gets RelayPath appended.
// Zero timeout means none.
func NewProxyClient(endpoint string, timeout time.Duration) *ProxyClient {
	e := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if u, err := url.Parse(e); err == nil && (u.Path == "" || u.Path == "/") {
		e += RelayPath
	}
	if timeout < 0 {
		timeout = 0
	}
	return &ProxyClient{Endpoint: e, client: &http.Client{Timeout: timeout}}
}

func (c *ProxyClient) doJSON(ctx context.Context, token string, params url.Values, body io.Reader, dest any) error {
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return err
	}
	u.RawQuery = params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &line.APIError{Status: resp.StatusCode, Message: line.ErrorMessage(resp.Body, "error")}
	}
	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// CreateRichMenu sends the menu document to the relay and returns the new id.
func (c *ProxyClient) CreateRichMenu(ctx context.Context, token string, menu domain.Menu) (string, error) {
	b, err := json.Marshal(menu)
	if err != nil {
		return "", err
	}
	var out struct {
		RichMenuID string `json:"richMenuId"`
	}
	if err := c.doJSON(ctx, token, url.Values{"action": {"create"}}, bytes.NewReader(b), &out); err != nil {
		return "", err
	}
	return out.RichMenuID, nil
}

// UploadRichMenuImage asks the relay to fetch imageURL and upload it for the menu.
func (c *ProxyClient) UploadRichMenuImage(ctx context.Context, token, richMenuID, imageURL string) error {
	return c.doJSON(ctx, token, url.Values{
		"action":     {"upload-image"},
		"richMenuId": {richMenuID},
		"imageUrl":   {imageURL},
	}, nil, nil)
}

// SetDefaultRichMenu asks the relay to make the menu the default.
func (c *ProxyClient) SetDefaultRichMenu(ctx context.Context, token, richMenuID string) error {
	return c.doJSON(ctx, token, url.Values{
		"action":     {"set-default"},
		"richMenuId": {richMenuID},
	}, nil, nil)
}
