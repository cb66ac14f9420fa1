/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package domain

import (
	"fmt"
	"strings"
)

// ActionType is the wire tag of an action.
type ActionType string

const (
	ActionURI            ActionType = "uri"
	ActionPostback       ActionType = "postback"
	ActionMessage        ActionType = "message"
	ActionDateTimePicker ActionType = "datetimepicker"
)

// ActionTypes lists all kinds in the order the editor offers them.
var ActionTypes = []ActionType{ActionURI, ActionPostback, ActionMessage, ActionDateTimePicker}

// Label returns the human readable name used in the inspector.
func (t ActionType) Label() string {
	switch t {
	case ActionURI:
		return "Open URL"
	case ActionPostback:
		return "Postback"
	case ActionMessage:
		return "Send Message"
	case ActionDateTimePicker:
		return "Date/Time Picker"
	default:
		return string(t)
	}
}

// ParseActionType accepts a wire tag (case-insensitive).
func ParseActionType(s string) (ActionType, error) {
	t := ActionType(strings.ToLower(strings.TrimSpace(s)))
	for _, k := range ActionTypes {
		if k == t {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown action type %q", s)
}

// PickerMode selects what a date/time picker asks for.
type PickerMode string

const (
	PickerDate     PickerMode = "date"
	PickerTime     PickerMode = "time"
	PickerDateTime PickerMode = "datetime"
)

// PickerModes lists the valid modes.
var PickerModes = []PickerMode{PickerDate, PickerTime, PickerDateTime}

func (m PickerMode) valid() bool {
	return m == PickerDate || m == PickerTime || m == PickerDateTime
}

// Action is the behavior attached to a region. It is a closed set:
// URIAction, PostbackAction, MessageAction and DateTimePickerAction.
// Each case carries only its own fields, so leftovers from another kind cannot exist.
type Action interface {
	Type() ActionType
	isAction()
}

// URIAction opens a link.
type URIAction struct {
	URI string
}

// PostbackAction sends a postback payload to the bot. DisplayText is optional.
type PostbackAction struct {
	Data        string
	DisplayText string
}

// MessageAction sends Text as a chat message from the user.
type MessageAction struct {
	Text string
}

// DateTimePickerAction opens a picker and posts back the chosen value with Data.
// Initial, Min and Max are optional and use the platform's date/time formats.
type DateTimePickerAction struct {
	Mode    PickerMode
	Data    string
	Initial string
	Min     string
	Max     string
}

func (URIAction) Type() ActionType            { return ActionURI }
func (PostbackAction) Type() ActionType       { return ActionPostback }
func (MessageAction) Type() ActionType        { return ActionMessage }
func (DateTimePickerAction) Type() ActionType { return ActionDateTimePicker }

func (URIAction) isAction()            {}
func (PostbackAction) isAction()       {}
func (MessageAction) isAction()        {}
func (DateTimePickerAction) isAction() {}

// DefaultAction is what a newly drawn region starts with.
func DefaultAction() Action { return URIAction{URI: DefaultActionURI} }

// ChangeActionType returns an empty action of kind t.
// Nothing of the previous action carries over; asking for the current kind returns a unchanged.
func ChangeActionType(a Action, t ActionType) Action {
	if a != nil && a.Type() == t {
		return a
	}
	switch t {
	case ActionPostback:
		return PostbackAction{}
	case ActionMessage:
		return MessageAction{}
	case ActionDateTimePicker:
		return DateTimePickerAction{Mode: PickerDate}
	default:
		return URIAction{}
	}
}

// validateAction checks the required payload of each kind.
func validateAction(a Action) error {
	switch v := a.(type) {
	case nil:
		return fmt.Errorf("action is missing")
	case URIAction:
		if strings.TrimSpace(v.URI) == "" {
			return fmt.Errorf("uri is required")
		}
	case PostbackAction:
		if strings.TrimSpace(v.Data) == "" {
			return fmt.Errorf("postback data is required")
		}
	case MessageAction:
		if strings.TrimSpace(v.Text) == "" {
			return fmt.Errorf("message text is required")
		}
	case DateTimePickerAction:
		if !v.Mode.valid() {
			return fmt.Errorf("invalid picker mode %q", v.Mode)
		}
		if strings.TrimSpace(v.Data) == "" {
			return fmt.Errorf("postback data is required")
		}
	default:
		return fmt.Errorf("unsupported action %T", a)
	}
	return nil
}
