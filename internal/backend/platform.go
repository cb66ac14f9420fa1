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
	"log/slog"

	"richmenu/internal/config"
	"richmenu/internal/line"
	applog "richmenu/internal/log"
	"richmenu/internal/relay"
)

// PlatformFor picks the publish target configured in cfg: the LINE API itself in direct
// mode, otherwise the relay selected by the proxy environment.
func PlatformFor(cfg config.AppConfig) relay.Platform {
	l := applog.WithComponent("backend")
	if cfg.Relay.Mode == config.ModeDirect {
		l.Debug("platform: direct", slog.String("api", cfg.Line.APIBaseURL))
		return line.NewClient(cfg.Line.APIBaseURL, cfg.Line.DataBaseURL, cfg.Relay.Timeout())
	}
	base := cfg.ProxyBaseURL()
	l.Debug("platform: proxy", slog.String("env", cfg.Relay.ProxyEnv), slog.String("base", base))
	return NewProxyClient(base, cfg.Relay.Timeout())
}
