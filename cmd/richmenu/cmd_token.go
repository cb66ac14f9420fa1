/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"richmenu/internal/config"
)

func tokenCommand() *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the channel access token in the system keychain",
	}
	tokenCmd.AddCommand(
		&cobra.Command{
			Use:   "set [token]",
			Short: "Store the token; reads one line from stdin when no argument is given",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var tok string
				if len(args) == 1 {
					tok = args[0]
				} else {
					sc := bufio.NewScanner(cmd.InOrStdin())
					if sc.Scan() {
						tok = sc.Text()
					}
					if err := sc.Err(); err != nil {
						return err
					}
				}
				if err := config.SaveToken(tok); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Token stored.")
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove the stored token",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := config.ClearToken(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Token removed.")
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Report whether a token is available (never prints it)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				tok, err := config.LoadToken()
				if err != nil {
					return err
				}
				if tok == "" {
					fmt.Fprintln(cmd.OutOrStdout(), "No token configured.")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Token configured (%d characters).\n", len(tok))
				return nil
			},
		},
	)
	return tokenCmd
}

func configCommand() *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the user configuration",
	}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective settings to the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := config.ConfigPath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(p); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", p)
			}
			if err := config.Save(appCfg, ""); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Wrote", p)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	cfgCmd.AddCommand(
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file location",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				p, err := config.ConfigPath()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), p)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration (file, defaults and RMB_* overrides)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				b, err := yaml.Marshal(appCfg)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprint(out, string(b))
				if appCfg.Relay.Mode == config.ModeProxy {
					fmt.Fprintf(out, "# relay endpoint: %s\n", appCfg.ProxyBaseURL())
				}
				return nil
			},
		},
		initCmd,
	)
	return cfgCmd
}
