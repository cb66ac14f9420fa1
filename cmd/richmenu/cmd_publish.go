/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"richmenu/internal/backend"
	"richmenu/internal/config"
	"richmenu/internal/relay"
)

func publishCommands() []*cobra.Command {
	var (
		imageURL string
		token    string
		target   string
	)
	publishCmd := &cobra.Command{
		Use:   "publish <menu.json>",
		Short: "Create the menu on LINE, upload its image and set it as default",
		Long: `Publish runs three steps one after the other: create the rich menu, upload
the menu image from --image and, when the menu is marked "open by default",
make it the default menu for all users. A failing last step still leaves the
created menu in place.

The channel access token comes from --token, RMB_CHANNEL_TOKEN or the system
keychain (see "richmenu token set").`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openMenu(cmd, args[0])
			if err != nil {
				return err
			}
			cfg := appCfg
			switch strings.ToLower(target) {
			case "":
			case config.ModeDirect:
				cfg.Relay.Mode = config.ModeDirect
			case config.EnvLocal, config.EnvDeployed:
				cfg.Relay.Mode, cfg.Relay.ProxyEnv = config.ModeProxy, strings.ToLower(target)
			default:
				return fmt.Errorf("unknown target %q (direct, local or deployed)", target)
			}
			req := relay.Request{Menu: m, ImageURL: imageURL, Token: token}
			if req.ImageURL == "" {
				req.ImageURL = appCfg.Editor.ImageURL
			}
			if req.Token == "" {
				req.Token = appToken
			}

			out := cmd.OutOrStdout()
			res, err := relay.NewPublisher(backend.PlatformFor(cfg)).Publish(cmd.Context(), req)
			if err != nil {
				var se *relay.StepError
				if errors.As(err, &se) {
					fmt.Fprintf(cmd.ErrOrStderr(), "step %d (%s) failed\n", int(se.Step), se.Step)
				}
				return err
			}
			fmt.Fprintln(out, res.Status())
			fmt.Fprintln(out, "Rich menu id:", res.RichMenuID)
			if res.Outcome == relay.OutcomePartial && res.DefaultErr != nil {
				fmt.Fprintln(out, "Set default failed:", res.DefaultErr)
			}
			return nil
		},
	}
	publishCmd.Flags().StringVar(&imageURL, "image", "", "publicly reachable menu image URL (default from config)")
	publishCmd.Flags().StringVar(&token, "token", "", "channel access token (default from env or keychain)")
	publishCmd.Flags().StringVar(&target, "target", "", "direct, local or deployed (default from config)")

	var (
		addr     string
		auditDSN string
	)
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay that forwards publish steps to the LINE API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			sc := backend.Config{
				Addr:            appCfg.Server.Addr,
				AuditDSN:        appCfg.Server.AuditDSN,
				LineAPIBaseURL:  appCfg.Line.APIBaseURL,
				LineDataBaseURL: appCfg.Line.DataBaseURL,
				Timeout:         appCfg.Relay.Timeout(),
			}
			if addr != "" {
				sc.Addr = addr
			}
			if auditDSN != "" {
				sc.AuditDSN = auditDSN
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Relay listening on %s%s\n", sc.Addr, backend.RelayPath)
			return backend.Run(ctx, sc)
		},
	}
	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :54321)")
	serveCmd.Flags().StringVar(&auditDSN, "audit-dsn", "", "postgres:// URL or SQLite file for the audit trail")

	var (
		limit  int
		dsn    string
		asJSON bool
	)
	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the latest relayed calls from the audit trail",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dsn == "" {
				dsn = appCfg.Server.AuditDSN
			}
			if dsn == "" {
				return errors.New("no audit store configured (server.audit_dsn or --dsn)")
			}
			store, err := backend.OpenAudit(cmd.Context(), dsn)
			if err != nil {
				return err
			}
			defer store.Close()
			entries, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			for _, e := range entries {
				line := fmt.Sprintf("%s  %-12s %3d  %s", e.Time.Format("2006-01-02 15:04:05"), e.Action, e.Status, e.RichMenuID)
				if e.Error != "" {
					line += "  " + e.Error
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	auditCmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries")
	auditCmd.Flags().StringVar(&dsn, "dsn", "", "audit store (default server.audit_dsn)")
	auditCmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	return []*cobra.Command{publishCmd, serveCmd, auditCmd}
}
