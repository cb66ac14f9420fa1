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
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"richmenu/internal/config"
	"richmenu/internal/domain"
	"richmenu/internal/export"
	"richmenu/internal/line"
	applog "richmenu/internal/log"
	"richmenu/internal/storage"
	"richmenu/internal/telemetry"
)

func menuCommands() []*cobra.Command {
	var (
		newName  string
		newSize  string
		newChat  string
		newForce bool
	)
	newCmd := &cobra.Command{
		Use:   "new <menu.json>",
		Short: "Create an empty rich menu document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := os.Stat(path); err == nil && !newForce {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			m := domain.NewMenu()
			preset := newSize
			if preset == "" {
				preset = appCfg.Editor.SizePreset
			}
			s, ok := domain.SizePreset(preset)
			if !ok {
				return fmt.Errorf("unknown size %q (full or compact)", preset)
			}
			m.Size = s
			if newName != "" {
				m.Name = newName
			}
			if cmd.Flags().Changed("chat-bar") {
				m.ChatBarText = newChat
			}
			if err := m.Validate(); err != nil {
				return err
			}
			if err := storage.SaveMenu(path, m); err != nil {
				return err
			}
			touchRecent(path, m)
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%dx%d)\n", path, m.Size.Width, m.Size.Height)
			return nil
		},
	}
	newCmd.Flags().StringVar(&newName, "name", "", "menu name")
	newCmd.Flags().StringVar(&newSize, "size", "", "canvas size: full or compact (default from config)")
	newCmd.Flags().StringVar(&newChat, "chat-bar", "", "chat bar text (at most 14 characters)")
	newCmd.Flags().BoolVar(&newForce, "force", false, "overwrite an existing file")

	var showJSON bool
	showCmd := &cobra.Command{
		Use:   "show <menu.json>",
		Short: "Print a summary of a rich menu document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openMenu(cmd, args[0])
			if err != nil {
				return err
			}
			if showJSON {
				b, err := storage.Export(m)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(b)
				return err
			}
			printSummary(cmd.OutOrStdout(), m)
			return nil
		},
	}
	showCmd.Flags().BoolVar(&showJSON, "json", false, "print the exported JSON instead of a summary")

	validateCmd := &cobra.Command{
		Use:   "validate <menu.json>",
		Short: "Check a document against the schema and the menu rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			m, err := storage.Import(b)
			var se *storage.SchemaError
			if errors.As(err, &se) {
				for _, p := range se.Problems {
					fmt.Fprintln(out, "schema:", p)
				}
				return fmt.Errorf("%s: %d schema problem(s)", args[0], len(se.Problems))
			}
			if err != nil {
				return err
			}
			if err := m.Validate(); err != nil {
				var ve domain.ValidationErrors
				if errors.As(err, &ve) {
					for _, p := range ve {
						fmt.Fprintln(out, "menu:", p)
					}
				}
				return err
			}
			fmt.Fprintf(out, "%s: ok (%d areas)\n", args[0], len(m.Regions))
			return nil
		},
	}

	var prev previewFlags
	previewCmd := &cobra.Command{
		Use:   "preview <menu.json> <out.png|out.svg|out.pdf|out.zip|out.json>",
		Short: "Render one preview file; the format follows the extension",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openMenu(cmd, args[0])
			if err != nil {
				return err
			}
			opt, err := prev.options(cmd.Context())
			if err != nil {
				return err
			}
			if err := export.WriteFile(args[1], m, opt); err != nil {
				return err
			}
			telemetry.Event(telemetry.EventMenuExported, map[string]any{
				"format":  strings.TrimPrefix(strings.ToLower(filepath.Ext(args[1])), "."),
				"regions": len(m.Regions),
			})
			fmt.Fprintln(cmd.OutOrStdout(), "Wrote", args[1])
			return nil
		},
	}
	prev.bind(previewCmd)

	var (
		exp       previewFlags
		expPreset string
		expFmts   []string
		expOut    string
		expBase   string
	)
	exportCmd := &cobra.Command{
		Use:   "export <menu.json>",
		Short: "Write several formats at once (presets: web, print, share)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openMenu(cmd, args[0])
			if err != nil {
				return err
			}
			opt, err := exp.options(cmd.Context())
			if err != nil {
				return err
			}
			opt.Preset = export.PresetName(expPreset)
			opt.Formats = expFmts
			opt.OutDir = expOut
			opt.Base = expBase
			written, err := export.Batch(m, opt)
			for _, p := range written {
				fmt.Fprintln(cmd.OutOrStdout(), "Wrote", p)
			}
			if err != nil {
				return err
			}
			telemetry.Event(telemetry.EventMenuExported, map[string]any{"preset": expPreset, "files": len(written), "regions": len(m.Regions)})
			return nil
		},
	}
	exp.bind(exportCmd)
	exportCmd.Flags().StringVar(&expPreset, "preset", "", "export preset: web, print or share")
	exportCmd.Flags().StringSliceVar(&expFmts, "format", nil, "formats to write ("+strings.Join(export.Formats, ", ")+"); overrides the preset")
	exportCmd.Flags().StringVarP(&expOut, "out", "o", ".", "output directory")
	exportCmd.Flags().StringVar(&expBase, "base", "", "base file name (default: menu name)")

	var recentLimit int
	recentCmd := &cobra.Command{
		Use:   "recent",
		Short: "List recently opened or saved documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lib, err := openLibrary()
			if err != nil {
				return err
			}
			defer lib.Close()
			items, err := lib.Recent(cmd.Context(), recentLimit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "No recent documents.")
				return nil
			}
			for _, r := range items {
				fmt.Fprintf(out, "%s  %-24s %2d areas  %dx%d  %s\n",
					r.OpenedAt.Format("2006-01-02 15:04"), r.Name, r.Regions, r.Width, r.Height, r.Path)
			}
			return nil
		},
	}
	recentCmd.Flags().IntVarP(&recentLimit, "limit", "n", 10, "number of entries")

	return []*cobra.Command{newCmd, showCmd, validateCmd, previewCmd, exportCmd, recentCmd}
}

// previewFlags are the background options shared by preview and export.
type previewFlags struct {
	scale    float64
	bgFile   string
	imageURL string
	fetch    bool
}

func (f *previewFlags) bind(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.scale, "scale", 0, "preview scale (default 1, web preset 0.5)")
	cmd.Flags().StringVar(&f.bgFile, "bg", "", "local background image (png, jpeg, webp, bmp)")
	cmd.Flags().StringVar(&f.imageURL, "image", "", "menu image URL (default from config)")
	cmd.Flags().BoolVar(&f.fetch, "fetch", false, "download the image URL to draw it as background")
}

func (f *previewFlags) options(ctx context.Context) (export.BatchOptions, error) {
	opt := export.BatchOptions{Scale: f.scale, ImageURL: f.imageURL}
	if opt.ImageURL == "" {
		opt.ImageURL = appCfg.Editor.ImageURL
	}
	switch {
	case f.bgFile != "":
		img, err := export.LoadImage(f.bgFile)
		if err != nil {
			return opt, err
		}
		opt.Background = img
	case f.fetch && opt.ImageURL != "":
		img, err := fetchBackground(ctx, opt.ImageURL)
		if err != nil {
			return opt, err
		}
		opt.Background = img
	}
	return opt, nil
}

// previewFetchTimeout bounds image downloads made only to draw a preview.
const previewFetchTimeout = 20 * time.Second

func fetchBackground(ctx context.Context, u string) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, previewFetchTimeout)
	defer cancel()
	c := line.NewClient(appCfg.Line.APIBaseURL, appCfg.Line.DataBaseURL, 0)
	b, _, err := c.FetchImage(ctx, u)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", u, err)
	}
	return img, nil
}

// openMenu loads a document, warns when a backup had to be used, and records it for
// crash recovery and the recent list.
func openMenu(cmd *cobra.Command, path string) (domain.Menu, error) {
	m, fromBackup, err := storage.OpenMenu(path)
	if err != nil {
		return domain.Menu{}, err
	}
	if fromBackup {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s is unreadable; using its latest backup\n", path)
	}
	track(path, m)
	touchRecent(path, m)
	return m, nil
}

func openLibrary() (*storage.Library, error) {
	dir, err := config.StateDir()
	if err != nil {
		return nil, err
	}
	return storage.OpenLibrary(dir)
}

// touchRecent is best effort; a broken library never fails a command.
func touchRecent(path string, m domain.Menu) {
	lib, err := openLibrary()
	if err != nil {
		applog.WithComponent("cli").Debug("recent list unavailable", slog.Any("err", err))
		return
	}
	defer lib.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := lib.Touch(ctx, path, m); err != nil {
		applog.WithComponent("cli").Debug("recent update failed", slog.Any("err", err))
	}
}

func printSummary(w io.Writer, m domain.Menu) {
	preset := m.Size.PresetName()
	if preset == "" {
		preset = "custom"
	}
	yes := "no"
	if m.Selected {
		yes = "yes"
	}
	fmt.Fprintf(w, "Name:            %s\n", m.Name)
	fmt.Fprintf(w, "Size:            %d x %d (%s)\n", m.Size.Width, m.Size.Height, preset)
	fmt.Fprintf(w, "Chat bar text:   %s\n", m.ChatBarText)
	fmt.Fprintf(w, "Open by default: %s\n", yes)
	fmt.Fprintf(w, "Areas:           %d/%d\n", len(m.Regions), domain.MaxRegions)
	for i, r := range m.Regions {
		b := r.Bounds
		fmt.Fprintf(w, "  %2d. %4d,%-4d %4dx%-4d  %-16s %s\n", i+1, b.X, b.Y, b.Width, b.Height,
			export.ActionLabel(r.Action), export.ActionSummary(r.Action))
	}
	if err := m.Validate(); err != nil {
		fmt.Fprintf(w, "Problems:        %v\n", err)
	}
}
