//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	fstorage "fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"richmenu/internal/backend"
	"richmenu/internal/config"
	"richmenu/internal/crash"
	"richmenu/internal/domain"
	"richmenu/internal/editor"
	"richmenu/internal/export"
	"richmenu/internal/line"
	applog "richmenu/internal/log"
	"richmenu/internal/relay"
	"richmenu/internal/storage"
	"richmenu/internal/telemetry"
	"richmenu/internal/version"
)

// statusTTL is how long a transient status message stays visible.
const statusTTL = 3 * time.Second

// previewTimeout bounds the background download; publishing has no such limit.
const previewTimeout = 20 * time.Second

const (
	sizeFullLabel    = "Full (2500 × 1686)"
	sizeCompactLabel = "Compact (2500 × 843)"

	relayLocalLabel    = "Relay (local)"
	relayDeployedLabel = "Relay (deployed)"
	relayDirectLabel   = "Direct (LINE API)"
)

// Run starts the desktop editor. path, when set, is opened immediately.
func Run(path string) error {
	l := applog.WithComponent("ui")
	l.Info("starting UI", slog.String("version", version.String()))

	cfg, token, err := config.Load()
	if err != nil {
		l.Warn("config load failed; using defaults", slog.Any("err", err))
	}
	stateDir, err := config.StateDir()
	if err != nil {
		l.Warn("state dir unavailable", slog.Any("err", err))
	}

	start := domain.NewMenu()
	if s, ok := domain.SizePreset(cfg.Editor.SizePreset); ok {
		start.Size = s
	}
	doc := editor.NewDocument(start)
	docPath := ""

	sess := &crash.Session{Dir: stateDir, Current: func() (domain.Menu, bool) { return doc.Menu(), true }}
	defer crash.Recover(sess)

	var lib *storage.Library
	if stateDir != "" {
		if lib, err = storage.OpenLibrary(stateDir); err != nil {
			l.Warn("recent documents unavailable", slog.Any("err", err))
		} else {
			defer func() { _ = lib.Close() }()
		}
	}
	telemetry.Event(telemetry.EventEditorStarted, map[string]any{"os": runtime.GOOS})

	fyneApp := app.NewWithID("richmenu")
	applyTheme(fyneApp, cfg.General.Theme)
	w := fyneApp.NewWindow("Rich Menu Builder")
	prefs := fyneApp.Preferences()
	winW := prefs.IntWithFallback("window.width", 1280)
	winH := prefs.IntWithFallback("window.height", 820)
	if winW < 900 {
		winW = 900
	}
	if winH < 600 {
		winH = 600
	}
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	// Status line; transient messages fall back to "Ready"
	status := widget.NewLabel("Ready")
	statusGen := 0
	flash := func(msg string) {
		statusGen++
		gen := statusGen
		status.SetText(msg)
		time.AfterFunc(statusTTL, func() {
			fyne.Do(func() {
				if gen == statusGen {
					status.SetText("Ready")
				}
			})
		})
	}

	menuCanvas := NewMenuCanvas(doc)
	insp := newInspector(doc, menuCanvas.Surface(), func() { flash("Area deleted") })

	updateTitle := func() {
		name := "untitled"
		if docPath != "" {
			name = filepath.Base(docPath)
		}
		w.SetTitle(fmt.Sprintf("Rich Menu Builder - %s", name))
	}
	updateTitle()

	// ----- Settings panel -----
	syncing := false
	sizeSelect := widget.NewSelect([]string{sizeFullLabel, sizeCompactLabel}, func(s string) {
		if syncing {
			return
		}
		if s == sizeCompactLabel {
			doc.SetSize(domain.SizeCompact)
		} else {
			doc.SetSize(domain.SizeFull)
		}
	})
	nameEntry := widget.NewEntry()
	nameEntry.OnChanged = func(s string) {
		if !syncing && s != doc.Menu().Name {
			doc.SetName(s)
		}
	}
	chatEntry := widget.NewEntry()
	chatEntry.Validator = func(s string) error {
		if n := len([]rune(s)); n > domain.MaxChatBarText {
			return fmt.Errorf("at most %d characters (%d)", domain.MaxChatBarText, n)
		}
		return nil
	}
	chatEntry.OnChanged = func(s string) {
		if syncing || s == doc.Menu().ChatBarText {
			return
		}
		doc.SetChatBarText(s)
		if kept := doc.Menu().ChatBarText; kept != s {
			chatEntry.SetText(kept)
		}
	}
	selectedCheck := widget.NewCheck("Open menu by default", func(v bool) {
		if !syncing && v != doc.Menu().Selected {
			doc.SetSelected(v)
		}
	})

	imageEntry := widget.NewEntry()
	imageEntry.SetPlaceHolder("https://example.com/menu.png")
	imageEntry.SetText(cfg.Editor.ImageURL)
	tokenEntry := widget.NewPasswordEntry()
	tokenEntry.SetPlaceHolder("Channel access token")
	tokenEntry.SetText(token)

	syncSettings := func() {
		syncing = true
		defer func() { syncing = false }()
		m := doc.Menu()
		switch m.Size {
		case domain.SizeCompact:
			sizeSelect.SetSelected(sizeCompactLabel)
		case domain.SizeFull:
			sizeSelect.SetSelected(sizeFullLabel)
		default:
			sizeSelect.ClearSelected()
		}
		setText(nameEntry, m.Name)
		setText(chatEntry, m.ChatBarText)
		selectedCheck.SetChecked(m.Selected)
	}

	// Background preview from the image URL or a local file
	fetcher := line.NewClient(cfg.Line.APIBaseURL, cfg.Line.DataBaseURL, 0)
	loadPreviewURL := func(u string) {
		u = strings.TrimSpace(u)
		if u == "" {
			menuCanvas.SetBackground(nil)
			return
		}
		status.SetText("Loading image…")
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), previewTimeout)
			defer cancel()
			img, err := fetchPreview(ctx, fetcher, u)
			fyne.Do(func() {
				if err != nil {
					l.Warn("preview image failed", slog.String("url", u), slog.Any("err", err))
					flash("Could not load image preview")
					return
				}
				menuCanvas.SetBackground(img)
				flash("Image loaded")
			})
		}()
	}
	imageEntry.OnSubmitted = loadPreviewURL

	// ----- Publishing -----
	relayLabel := func(c config.AppConfig) string {
		switch {
		case c.Relay.Mode == config.ModeDirect:
			return relayDirectLabel
		case c.Relay.ProxyEnv == config.EnvDeployed:
			return relayDeployedLabel
		default:
			return relayLocalLabel
		}
	}
	publisher := relay.NewPublisher(backend.PlatformFor(cfg))
	relaySelect := widget.NewSelect([]string{relayLocalLabel, relayDeployedLabel, relayDirectLabel}, func(s string) {
		if publisher.InFlight() {
			return
		}
		switch s {
		case relayDirectLabel:
			cfg.Relay.Mode = config.ModeDirect
		case relayDeployedLabel:
			cfg.Relay.Mode, cfg.Relay.ProxyEnv = config.ModeProxy, config.EnvDeployed
		default:
			cfg.Relay.Mode, cfg.Relay.ProxyEnv = config.ModeProxy, config.EnvLocal
		}
		publisher = relay.NewPublisher(backend.PlatformFor(cfg))
		l.Info("publish target changed", slog.String("target", s))
	})
	relaySelect.SetSelected(relayLabel(cfg))

	var applyBtn *widget.Button
	applyBtn = widget.NewButtonWithIcon("Apply to LINE", theme.UploadIcon(), func() {
		req := relay.Request{
			Menu:     doc.Menu(),
			ImageURL: strings.TrimSpace(imageEntry.Text),
			Token:    strings.TrimSpace(tokenEntry.Text),
		}
		if err := req.Validate(); err != nil {
			dialog.ShowError(err, w)
			return
		}
		applyBtn.Disable()
		status.SetText("Publishing…")
		pub := publisher
		go func() {
			res, err := pub.Publish(context.Background(), req)
			fyne.Do(func() {
				applyBtn.Enable()
				if err != nil {
					l.Error("publish failed", slog.Any("err", err))
					flash("Publish failed")
					dialog.ShowError(err, w)
					return
				}
				flash(res.Status())
				if res.Outcome == relay.OutcomePartial {
					dialog.ShowInformation("Apply to LINE", fmt.Sprintf("%s\n\n%v", res.Status(), res.DefaultErr), w)
				}
			})
		}()
	})
	applyBtn.Importance = widget.HighImportance

	saveTokenBtn := widget.NewButtonWithIcon("Remember", theme.DocumentSaveIcon(), func() {
		if err := config.SaveToken(tokenEntry.Text); err != nil {
			dialog.ShowError(err, w)
			return
		}
		flash("Token stored in the system keychain")
	})
	forgetTokenBtn := widget.NewButtonWithIcon("Forget", theme.ContentClearIcon(), func() {
		if err := config.ClearToken(); err != nil {
			dialog.ShowError(err, w)
			return
		}
		tokenEntry.SetText("")
		flash("Token removed from the system keychain")
	})

	// ----- Files -----
	touchRecent := func(p string) {
		if lib == nil {
			return
		}
		if err := lib.Touch(context.Background(), p, doc.Menu()); err != nil {
			l.Warn("recent update failed", slog.Any("err", err))
		}
	}
	openPath := func(p string) {
		m, fromBackup, err := storage.OpenMenu(p)
		if err != nil {
			l.Error("open failed", slog.String("path", p), slog.Any("err", err))
			dialog.ShowError(err, w)
			return
		}
		doc.Replace(m)
		docPath = p
		sess.Path = p
		updateTitle()
		touchRecent(p)
		if fromBackup {
			dialog.ShowInformation("Open", "The file could not be read; the latest backup was opened instead.", w)
		}
		flash("Opened " + filepath.Base(p))
	}
	saveTo := func(p string) {
		if err := storage.SaveMenu(p, doc.Menu()); err != nil {
			l.Error("save failed", slog.String("path", p), slog.Any("err", err))
			dialog.ShowError(err, w)
			return
		}
		docPath = p
		sess.Path = p
		updateTitle()
		touchRecent(p)
		flash("Saved " + filepath.Base(p))
	}
	jsonFilter := fstorage.NewExtensionFileFilter([]string{".json"})
	saveAs := func() {
		d := dialog.NewFileSave(func(uc fyne.URIWriteCloser, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if uc == nil {
				return
			}
			p := uc.URI().Path()
			_ = uc.Close()
			saveTo(p)
		}, w)
		d.SetFileName(storage.DefaultFileName(doc.Menu()))
		d.SetFilter(jsonFilter)
		d.Show()
	}
	save := func() {
		if docPath == "" {
			saveAs()
			return
		}
		saveTo(docPath)
	}
	openDialog := func() {
		d := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if rc == nil {
				return
			}
			p := rc.URI().Path()
			_ = rc.Close()
			openPath(p)
		}, w)
		d.SetFilter(jsonFilter)
		d.Show()
	}

	exportJSON := func() {
		d := dialog.NewFileSave(func(uc fyne.URIWriteCloser, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if uc == nil {
				return
			}
			defer uc.Close()
			m := doc.Menu()
			b, err := storage.Export(m)
			if err == nil {
				_, err = uc.Write(b)
			}
			if err != nil {
				l.Error("export failed", slog.Any("err", err))
				dialog.ShowError(err, w)
				return
			}
			telemetry.Event(telemetry.EventMenuExported, map[string]any{"format": "json", "regions": len(m.Regions)})
			flash("Exported " + uc.URI().Name())
		}, w)
		d.SetFileName(storage.DefaultFileName(doc.Menu()))
		d.SetFilter(jsonFilter)
		d.Show()
	}
	importJSON := func() {
		d := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if rc == nil {
				return
			}
			defer rc.Close()
			b, err := io.ReadAll(rc)
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			m, err := storage.Import(b)
			if err != nil {
				var se *storage.SchemaError
				if errors.As(err, &se) {
					err = fmt.Errorf("%s is not a rich menu document:\n%s", rc.URI().Name(), strings.Join(se.Problems, "\n"))
				}
				dialog.ShowError(err, w)
				return
			}
			doc.Replace(m)
			telemetry.Event(telemetry.EventMenuImported, map[string]any{"regions": len(m.Regions)})
			flash("Imported " + rc.URI().Name())
		}, w)
		d.SetFilter(jsonFilter)
		d.Show()
	}
	exportPreview := func(ext string) {
		d := dialog.NewFileSave(func(uc fyne.URIWriteCloser, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if uc == nil {
				return
			}
			p := uc.URI().Path()
			_ = uc.Close()
			m := doc.Menu()
			err = export.WriteFile(p, m, export.BatchOptions{
				Background: menuCanvas.bg,
				ImageURL:   strings.TrimSpace(imageEntry.Text),
			})
			if err != nil {
				l.Error("preview export failed", slog.String("path", p), slog.Any("err", err))
				dialog.ShowError(err, w)
				return
			}
			telemetry.Event(telemetry.EventMenuExported, map[string]any{"format": strings.TrimPrefix(ext, "."), "regions": len(m.Regions)})
			flash("Exported " + filepath.Base(p))
		}, w)
		d.SetFileName(strings.TrimSuffix(storage.DefaultFileName(doc.Menu()), ".json") + ext)
		d.SetFilter(fstorage.NewExtensionFileFilter([]string{ext}))
		d.Show()
	}
	loadPreviewFile := func() {
		d := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if rc == nil {
				return
			}
			p := rc.URI().Path()
			_ = rc.Close()
			img, err := export.LoadImage(p)
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			menuCanvas.SetBackground(img)
			flash("Preview image loaded (publishing still uses the image URL)")
		}, w)
		d.SetFilter(fstorage.NewExtensionFileFilter([]string{".png", ".jpg", ".jpeg", ".webp", ".bmp"}))
		d.Show()
	}

	settings := widget.NewCard("Menu", "", container.NewVBox(
		widget.NewForm(
			widget.NewFormItem("Size", sizeSelect),
			widget.NewFormItem("Name", nameEntry),
			widget.NewFormItem("Chat bar text", chatEntry),
			widget.NewFormItem("", selectedCheck),
			widget.NewFormItem("Image URL", imageEntry),
			widget.NewFormItem("Access token", tokenEntry),
			widget.NewFormItem("", container.NewHBox(saveTokenBtn, forgetTokenBtn)),
			widget.NewFormItem("Publish via", relaySelect),
		),
		container.NewGridWithColumns(2,
			widget.NewButtonWithIcon("Export JSON", theme.DownloadIcon(), exportJSON),
			applyBtn,
		),
	))
	side := container.NewVScroll(container.NewVBox(insp.content, settings))

	// ----- Document changes -----
	var undoItem, redoItem *fyne.MenuItem
	refreshHistory := func() {
		if undoItem == nil {
			return
		}
		undoItem.Disabled = !doc.CanUndo()
		redoItem.Disabled = !doc.CanRedo()
		if mm := w.MainMenu(); mm != nil {
			mm.Refresh()
		}
	}
	doc.OnChange(func(domain.Menu) {
		menuCanvas.Refresh()
		insp.Refresh()
		syncSettings()
		refreshHistory()
	})
	menuCanvas.OnGesture = func() { insp.Refresh() }

	deleteSelected := func() {
		if id := doc.SelectedID(); id != "" && menuCanvas.Surface().Delete(id) {
			flash("Area deleted")
		}
	}
	undo := func() {
		if doc.Undo() {
			flash("Undo")
		}
	}
	redo := func() {
		if doc.Redo() {
			flash("Redo")
		}
	}
	newDoc := func() {
		m := domain.NewMenu()
		if s, ok := domain.SizePreset(cfg.Editor.SizePreset); ok {
			m.Size = s
		}
		doc.Replace(m)
		docPath = ""
		sess.Path = ""
		updateTitle()
	}

	// ----- Menus and shortcuts -----
	recentItem := fyne.NewMenuItem("Open Recent", nil)
	buildRecent := func() {
		recentItem.ChildMenu = fyne.NewMenu("")
		if lib == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		items, err := lib.Recent(ctx, 10)
		if err != nil {
			l.Warn("recent list failed", slog.Any("err", err))
			return
		}
		for _, r := range items {
			p := r.Path
			label := fmt.Sprintf("%s  (%d areas)  %s", r.Name, r.Regions, p)
			recentItem.ChildMenu.Items = append(recentItem.ChildMenu.Items, fyne.NewMenuItem(label, func() { openPath(p) }))
		}
	}
	buildRecent()

	newItem := fyne.NewMenuItem("New", newDoc)
	openItem := fyne.NewMenuItem("Open…", openDialog)
	saveItem := fyne.NewMenuItem("Save", save)
	saveItem.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyS, Modifier: fyne.KeyModifierShortcutDefault}
	saveAsItem := fyne.NewMenuItem("Save As…", saveAs)
	importItem := fyne.NewMenuItem("Import JSON…", importJSON)
	exportItem := fyne.NewMenuItem("Export JSON…", exportJSON)
	fileMenu := fyne.NewMenu("File", newItem, openItem, recentItem, fyne.NewMenuItemSeparator(),
		saveItem, saveAsItem, fyne.NewMenuItemSeparator(), importItem, exportItem)

	undoItem = fyne.NewMenuItem("Undo", undo)
	undoItem.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyZ, Modifier: fyne.KeyModifierShortcutDefault}
	redoItem = fyne.NewMenuItem("Redo", redo)
	redoItem.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyZ, Modifier: fyne.KeyModifierShortcutDefault | fyne.KeyModifierShift}
	deleteItem := fyne.NewMenuItem("Delete Area", deleteSelected)
	var snapItem *fyne.MenuItem
	setSnap := func(on bool) {
		if on {
			menuCanvas.Surface().SetSnap(editor.DefaultSnap)
		} else {
			menuCanvas.Surface().SetSnap(editor.SnapOptions{})
		}
		snapItem.Checked = on
		prefs.SetBool("editor.snap", on)
	}
	snapItem = fyne.NewMenuItem("Snap to Areas", func() {
		setSnap(!menuCanvas.Surface().Snap().Enabled())
		if mm := w.MainMenu(); mm != nil {
			mm.Refresh()
		}
	})
	setSnap(prefs.BoolWithFallback("editor.snap", true))
	editMenu := fyne.NewMenu("Edit", undoItem, redoItem, fyne.NewMenuItemSeparator(), deleteItem, snapItem)

	previewMenu := fyne.NewMenu("Preview",
		fyne.NewMenuItem("Load Image From File…", loadPreviewFile),
		fyne.NewMenuItem("Reload Image URL", func() { loadPreviewURL(imageEntry.Text) }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Export PNG…", func() { exportPreview(".png") }),
		fyne.NewMenuItem("Export SVG…", func() { exportPreview(".svg") }),
		fyne.NewMenuItem("Export Layout Sheet (PDF)…", func() { exportPreview(".pdf") }),
		fyne.NewMenuItem("Export Share Bundle (ZIP)…", func() { exportPreview(".zip") }),
	)

	aboutItem := fyne.NewMenuItem("About Rich Menu Builder", func() {
		exe, _ := os.Executable()
		info := fmt.Sprintf("Rich Menu Builder\nVersion: %s\nOS: %s\nArch: %s\nGo: %s\nExecutable: %s\nConfig: %s",
			version.String(), runtime.GOOS, runtime.GOARCH, runtime.Version(), exe, configPathOrNone())
		dialog.ShowInformation("About", info, w)
	})
	w.SetMainMenu(fyne.NewMainMenu(fileMenu, editMenu, previewMenu, fyne.NewMenu("Help", aboutItem)))
	refreshHistory()

	w.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		switch ev.Name {
		case fyne.KeyDelete, fyne.KeyBackspace:
			deleteSelected()
		case fyne.KeyEscape:
			menuCanvas.Surface().Cancel()
			doc.ClearSelection()
			menuCanvas.Refresh()
			insp.Refresh()
		}
	})

	split := container.NewHSplit(menuCanvas, side)
	split.Offset = 0.68
	w.SetContent(container.NewBorder(nil, status, nil, nil, split))

	w.SetCloseIntercept(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		telemetry.Flush(ctx)
		cancel()
		w.Close()
	})

	if path != "" {
		openPath(path)
	}
	syncSettings()
	if strings.TrimSpace(imageEntry.Text) != "" {
		loadPreviewURL(imageEntry.Text)
	}

	w.ShowAndRun()
	return nil
}

// fetchPreview downloads and decodes the menu image for display.
func fetchPreview(ctx context.Context, c *line.Client, u string) (image.Image, error) {
	b, _, err := c.FetchImage(ctx, u)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

func configPathOrNone() string {
	p, err := config.ConfigPath()
	if err != nil {
		return "(none)"
	}
	return p
}

// variantTheme pins the default theme to one variant.
type variantTheme struct {
	fyne.Theme
	variant fyne.ThemeVariant
}

func (t variantTheme) Color(n fyne.ThemeColorName, _ fyne.ThemeVariant) color.Color {
	return t.Theme.Color(n, t.variant)
}

// applyTheme honours general.theme; "system" (or anything else) follows the OS.
func applyTheme(a fyne.App, name string) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "light":
		a.Settings().SetTheme(variantTheme{Theme: theme.DefaultTheme(), variant: theme.VariantLight})
	case "dark":
		a.Settings().SetTheme(variantTheme{Theme: theme.DefaultTheme(), variant: theme.VariantDark})
	}
}
