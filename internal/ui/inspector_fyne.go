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
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"richmenu/internal/domain"
	"richmenu/internal/editor"
)

// inspector edits the action of the selected region. Bounds are shown read-only;
// they change only through the canvas.
type inspector struct {
	doc     *editor.Document
	surface *editor.Surface

	// syncing is set while fields are filled from the document so their change
	// handlers do not write the same values back.
	syncing bool

	title   *widget.Label
	bounds  *widget.Label
	kind    *widget.Select
	deleteB *widget.Button

	uri         *widget.Entry
	pbData      *widget.Entry
	pbDisplay   *widget.Entry
	msgText     *widget.Entry
	pickerData  *widget.Entry
	pickerMode  *widget.Select
	pickerInit  *widget.Entry
	pickerMin   *widget.Entry
	pickerMax   *widget.Entry
	forms       map[domain.ActionType]fyne.CanvasObject
	fields      *fyne.Container
	placeholder *widget.Label
	body        *fyne.Container

	content fyne.CanvasObject
}

func actionTypeLabels() []string {
	out := make([]string, 0, len(domain.ActionTypes))
	for _, t := range domain.ActionTypes {
		out = append(out, t.Label())
	}
	return out
}

func actionTypeForLabel(label string) (domain.ActionType, bool) {
	for _, t := range domain.ActionTypes {
		if t.Label() == label {
			return t, true
		}
	}
	return "", false
}

func pickerModes() []string {
	return []string{string(domain.PickerDate), string(domain.PickerTime), string(domain.PickerDateTime)}
}

func newInspector(doc *editor.Document, surface *editor.Surface, onDeleted func()) *inspector {
	in := &inspector{doc: doc, surface: surface}

	in.title = widget.NewLabelWithStyle("No area selected", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	in.bounds = widget.NewLabel("")
	in.placeholder = widget.NewLabel("Click an area on the canvas, or drag on an empty spot to draw one.")
	in.placeholder.Wrapping = fyne.TextWrapWord

	in.kind = widget.NewSelect(actionTypeLabels(), func(label string) {
		if in.syncing {
			return
		}
		t, ok := actionTypeForLabel(label)
		id := doc.SelectedID()
		if !ok || id == "" {
			return
		}
		doc.ChangeActionType(id, t)
	})

	entry := func(placeholder string) *widget.Entry {
		e := widget.NewEntry()
		e.SetPlaceHolder(placeholder)
		e.OnChanged = func(string) { in.commitFields() }
		return e
	}
	in.uri = entry("https://example.com")
	in.pbData = entry("action=buy&itemid=123")
	in.pbDisplay = entry("Text shown in the chat (optional)")
	in.msgText = entry("Message sent by the user")
	in.pickerData = entry("action=reserve")
	in.pickerInit = entry("Initial value (optional)")
	in.pickerMin = entry("Earliest value (optional)")
	in.pickerMax = entry("Latest value (optional)")
	in.pickerMode = widget.NewSelect(pickerModes(), func(string) { in.commitFields() })

	in.forms = map[domain.ActionType]fyne.CanvasObject{
		domain.ActionURI: widget.NewForm(widget.NewFormItem("URI", in.uri)),
		domain.ActionPostback: widget.NewForm(
			widget.NewFormItem("Data", in.pbData),
			widget.NewFormItem("Display text", in.pbDisplay),
		),
		domain.ActionMessage: widget.NewForm(widget.NewFormItem("Text", in.msgText)),
		domain.ActionDateTimePicker: widget.NewForm(
			widget.NewFormItem("Data", in.pickerData),
			widget.NewFormItem("Mode", in.pickerMode),
			widget.NewFormItem("Initial", in.pickerInit),
			widget.NewFormItem("Min", in.pickerMin),
			widget.NewFormItem("Max", in.pickerMax),
		),
	}
	in.fields = container.NewStack()

	in.deleteB = widget.NewButtonWithIcon("Delete Area", theme.DeleteIcon(), func() {
		if id := doc.SelectedID(); id != "" && surface.Delete(id) {
			if onDeleted != nil {
				onDeleted()
			}
		}
	})
	in.deleteB.Importance = widget.DangerImportance

	in.body = container.NewVBox(
		widget.NewForm(
			widget.NewFormItem("Bounds", in.bounds),
			widget.NewFormItem("Action", in.kind),
		),
		in.fields,
		in.deleteB,
	)
	in.content = widget.NewCard("Area", "", container.NewVBox(in.title, in.placeholder, in.body))
	in.Refresh()
	return in
}

// Refresh shows the selected region, or the placeholder when nothing is selected.
func (in *inspector) Refresh() {
	in.syncing = true
	defer func() { in.syncing = false }()

	r, ok := in.doc.Selected()
	if !ok {
		in.title.SetText("No area selected")
		in.placeholder.Show()
		in.body.Hide()
		return
	}
	in.placeholder.Hide()
	in.body.Show()
	idx := in.doc.Menu().IndexOf(r.ID)
	in.title.SetText(editor.AreaLabel(idx))
	b := r.Bounds
	in.bounds.SetText(fmt.Sprintf("x %d, y %d, %d × %d", b.X, b.Y, b.Width, b.Height))

	t := domain.ActionURI
	if r.Action != nil {
		t = r.Action.Type()
	}
	in.kind.SetSelected(t.Label())
	in.fields.Objects = []fyne.CanvasObject{in.forms[t]}
	in.fields.Refresh()

	switch a := r.Action.(type) {
	case domain.URIAction:
		setText(in.uri, a.URI)
	case domain.PostbackAction:
		setText(in.pbData, a.Data)
		setText(in.pbDisplay, a.DisplayText)
	case domain.MessageAction:
		setText(in.msgText, a.Text)
	case domain.DateTimePickerAction:
		setText(in.pickerData, a.Data)
		in.pickerMode.SetSelected(string(a.Mode))
		setText(in.pickerInit, a.Initial)
		setText(in.pickerMin, a.Min)
		setText(in.pickerMax, a.Max)
	}
}

// setText avoids resetting the cursor of the entry being typed into.
func setText(e *widget.Entry, s string) {
	if e.Text != s {
		e.SetText(s)
	}
}

// commitFields writes the visible fields of the current action kind to the document.
func (in *inspector) commitFields() {
	if in.syncing {
		return
	}
	r, ok := in.doc.Selected()
	if !ok || r.Action == nil {
		return
	}
	var next domain.Action
	switch r.Action.Type() {
	case domain.ActionURI:
		next = domain.URIAction{URI: in.uri.Text}
	case domain.ActionPostback:
		next = domain.PostbackAction{Data: in.pbData.Text, DisplayText: in.pbDisplay.Text}
	case domain.ActionMessage:
		next = domain.MessageAction{Text: in.msgText.Text}
	case domain.ActionDateTimePicker:
		mode := domain.PickerMode(in.pickerMode.Selected)
		if mode == "" {
			mode = domain.PickerDate
		}
		next = domain.DateTimePickerAction{
			Mode:    mode,
			Data:    in.pickerData.Text,
			Initial: in.pickerInit.Text,
			Min:     in.pickerMin.Text,
			Max:     in.pickerMax.Text,
		}
	}
	if next == nil || next == r.Action {
		return
	}
	in.doc.SetAction(r.ID, next)
}
