/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package relay publishes a menu document to the messaging platform:
// create the menu, upload its background image, then make it the default.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"richmenu/internal/domain"
	applog "richmenu/internal/log"
	"richmenu/internal/telemetry"
)

// Platform is the remote API the publish sequence talks to.
type Platform interface {
	CreateRichMenu(ctx context.Context, token string, menu domain.Menu) (string, error)
	UploadRichMenuImage(ctx context.Context, token, richMenuID, imageURL string) error
	SetDefaultRichMenu(ctx context.Context, token, richMenuID string) error
}

// RemoteError is implemented by platform errors that carry the HTTP status and
// the message of the remote error payload.
type RemoteError interface {
	error
	HTTPStatus() int
	RemoteMessage() string
}

var (
	ErrValidation         = errors.New("invalid publish request")
	ErrCredentialRequired = fmt.Errorf("%w: credential required", ErrValidation)
	ErrImageRequired      = fmt.Errorf("%w: image reference required", ErrValidation)
	ErrNoRegions          = fmt.Errorf("%w: at least one region required", ErrValidation)

	// ErrInFlight is returned while another Publish on the same Publisher has not finished.
	ErrInFlight = errors.New("publish already in progress")
)

// Step numbers the remote calls in order.
type Step int

const (
	StepCreate Step = iota + 1
	StepUpload
	StepSetDefault
)

func (s Step) String() string {
	switch s {
	case StepCreate:
		return "create"
	case StepUpload:
		return "upload-image"
	case StepSetDefault:
		return "set-default"
	default:
		return fmt.Sprintf("step-%d", int(s))
	}
}

// StepError reports the step that stopped the sequence.
// Status is the remote HTTP status, 0 when no response was received.
type StepError struct {
	Step    Step
	Status  int
	Message string
	Err     error
}

func (e *StepError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s failed (HTTP %d): %s", e.Step, e.Status, e.Message)
	}
	return fmt.Sprintf("%s failed: %s", e.Step, e.Message)
}

func (e *StepError) Unwrap() error { return e.Err }

func stepError(step Step, err error) *StepError {
	se := &StepError{Step: step, Err: err}
	var re RemoteError
	if errors.As(err, &re) {
		se.Status = re.HTTPStatus()
		se.Message = strings.TrimSpace(re.RemoteMessage())
	}
	if se.Message == "" {
		se.Message = fmt.Sprintf("failed at step %d", int(step))
		if se.Status == 0 && err != nil {
			se.Message += ": " + err.Error()
		}
	}
	return se
}

// Outcome classifies a completed publish.
type Outcome int

const (
	// OutcomeDefault means the menu was created and set as the default menu.
	OutcomeDefault Outcome = iota + 1
	// OutcomeCreated means the menu was created; it was not meant to become the default.
	OutcomeCreated
	// OutcomePartial means the menu was created but setting it as default failed.
	OutcomePartial
)

// Request is everything one publish needs. Token is never logged.
type Request struct {
	Menu     domain.Menu
	ImageURL string
	Token    string
}

// Result describes a publish that created the menu.
type Result struct {
	RichMenuID string
	Outcome    Outcome
	// DefaultErr is the set-default failure behind OutcomePartial.
	DefaultErr error
	Elapsed    time.Duration
}

// Status is the text shown to the user.
func (r Result) Status() string {
	switch r.Outcome {
	case OutcomeDefault:
		return "Rich menu created and set as default successfully!"
	case OutcomePartial:
		return "Rich menu created successfully! (Not set as default)"
	default:
		return "Rich menu created successfully!"
	}
}

// Publisher runs the publish sequence against a Platform, one invocation at a time.
type Publisher struct {
	platform Platform
	busy     atomic.Bool
	log      *slog.Logger
	// Event reports anonymous usage; defaults to the opt-in telemetry client.
	Event func(name string, props map[string]any)
}

func NewPublisher(p Platform) *Publisher {
	return &Publisher{
		platform: p,
		log:      applog.WithComponent("relay"),
		Event:    telemetry.Event,
	}
}

// Validate checks the preconditions of a publish in order. No network call is made.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Token) == "" {
		return ErrCredentialRequired
	}
	if strings.TrimSpace(r.ImageURL) == "" {
		return ErrImageRequired
	}
	if len(r.Menu.Regions) == 0 {
		return ErrNoRegions
	}
	return nil
}

// InFlight reports whether a publish is running.
func (p *Publisher) InFlight() bool { return p.busy.Load() }

// Publish creates the menu, uploads its image and, when the menu is marked selected,
// makes it the default menu. The steps run strictly one after the other; the first
// failure of create or upload aborts with a *StepError. A failing set-default still
// returns a Result with OutcomePartial.
func (p *Publisher) Publish(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	if !p.busy.CompareAndSwap(false, true) {
		return Result{}, ErrInFlight
	}
	defer p.busy.Store(false)

	start := time.Now()
	l := applog.WithOperation(p.log, "publish").With(
		slog.String("menu", req.Menu.Name),
		slog.Int("regions", len(req.Menu.Regions)),
		applog.Token("token", req.Token),
	)
	token := strings.TrimSpace(req.Token)

	id, err := p.platform.CreateRichMenu(ctx, token, req.Menu)
	if err == nil && strings.TrimSpace(id) == "" {
		err = errors.New("empty rich menu id in response")
	}
	if err != nil {
		se := stepError(StepCreate, err)
		l.Error("create rich menu failed", slog.Int("status", se.Status), slog.Any("err", err))
		return Result{}, se
	}
	l = l.With(slog.String("rich_menu_id", id))
	l.Info("rich menu created")

	if err := p.platform.UploadRichMenuImage(ctx, token, id, strings.TrimSpace(req.ImageURL)); err != nil {
		se := stepError(StepUpload, err)
		l.Error("upload image failed", slog.Int("status", se.Status), slog.Any("err", err))
		return Result{}, se
	}
	l.Info("rich menu image uploaded")

	res := Result{RichMenuID: id, Outcome: OutcomeCreated}
	if req.Menu.Selected {
		if err := p.platform.SetDefaultRichMenu(ctx, token, id); err != nil {
			res.Outcome = OutcomePartial
			res.DefaultErr = stepError(StepSetDefault, err)
			l.Warn("set default rich menu failed", slog.Any("err", err))
		} else {
			res.Outcome = OutcomeDefault
			l.Info("rich menu set as default")
		}
	}
	res.Elapsed = time.Since(start)
	if p.Event != nil {
		p.Event(telemetry.EventMenuPublished, map[string]any{
			"regions": len(req.Menu.Regions),
			"outcome": int(res.Outcome),
		})
	}
	return res, nil
}
