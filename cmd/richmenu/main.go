/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"richmenu/internal/config"
	"richmenu/internal/crash"
	"richmenu/internal/domain"
	applog "richmenu/internal/log"
	"richmenu/internal/telemetry"
	"richmenu/internal/ui"
	"richmenu/internal/version"
)

var (
	// appCfg and appToken are loaded once before any command runs.
	appCfg   = config.Defaults()
	appToken string

	// session tells crash recovery which document to rescue.
	session = &crash.Session{}
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "richmenu",
		Short: "Design, export and publish LINE rich menus",
		Long: `richmenu - a rich menu builder.

Draw up to ten tappable areas over a menu image, export the menu as JSON
and publish it to the LINE Messaging API, directly or through the relay.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			telemetry.Flush(ctx)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Rich Menu Builder")
			fmt.Fprintf(out, "  Version: %s\n", version.String())
			fmt.Fprintf(out, "  Runtime: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}

	uiCmd := &cobra.Command{
		Use:   "ui [menu.json]",
		Short: "Launch the desktop editor (build with -tags fyne)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			return ui.Run(path)
		},
	}

	root.AddCommand(versionCmd, uiCmd)
	root.AddCommand(menuCommands()...)
	root.AddCommand(publishCommands()...)
	root.AddCommand(tokenCommand(), configCommand())
	return root
}

// setup loads the user config, then configures logging and telemetry from it.
func setup(cmd *cobra.Command, _ []string) error {
	cfg, token, err := config.Load()
	appCfg, appToken = cfg, token
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	l := applog.WithComponent("cli")
	if err != nil {
		l.Warn("config load failed; using defaults", slog.Any("err", err))
	}
	telemetry.NewDefault(telemetry.FromEnv().WithOptIn(cfg.General.TelemetryOptIn))
	if dir, err := config.StateDir(); err == nil {
		session.Dir = dir
	}
	l.Debug("start", slog.String("cmd", cmd.CommandPath()), slog.Bool("token", appToken != ""))
	return nil
}

// track registers the document a command works on for crash autosave.
func track(path string, m domain.Menu) {
	session.Path = path
	session.Current = func() (domain.Menu, bool) { return m, true }
}

func main() {
	defer crash.Recover(session)
	if err := newRootCmd().Execute(); err != nil {
		applog.WithComponent("cli").Error("exited with error", slog.Any("err", err))
		os.Exit(1)
	}
}
