// Package submission drives an application form from validation through a
// single network submission to its terminal submitted state.
package submission

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"blockhost-portal/internal/common/logger"
	"blockhost-portal/internal/forms"
)

type State int

const (
	Editing State = iota
	Validating
	ValidationFailed
	Submitting
	SubmitFailed
	Submitted
)

func (s State) String() string {
	switch s {
	case Editing:
		return "editing"
	case Validating:
		return "validating"
	case ValidationFailed:
		return "validation_failed"
	case Submitting:
		return "submitting"
	case SubmitFailed:
		return "submit_failed"
	case Submitted:
		return "submitted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Status is the coarse view the presentation layer renders.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusSubmitting Status = "submitting"
	StatusSubmitted  Status = "submitted"
	StatusError      Status = "error"
)

const (
	EventSubmit        = "form_submit"
	EventSubmitSuccess = "form_submit_success"
	EventSubmitError   = "form_submit_error"
)

// GenericErrorMessage is shown for any transport failure.
const GenericErrorMessage = "Something went wrong sending your application. Please try again in a moment."

var (
	ErrSubmissionInProgress = errors.New("submission already in progress")
	ErrAlreadySubmitted     = errors.New("form already submitted")
)

// ValidationError lists the fields that failed and why.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "validation failed: " + strings.Join(names, ", ")
}

type Transport interface {
	Submit(ctx context.Context, form forms.FormType, values forms.Values) error
}

type Tracker interface {
	TrackEvent(ctx context.Context, name string, params map[string]interface{})
}

type DraftClearer interface {
	ClearSavedData()
}

type Notifier interface {
	NotifyError(message string)
}

type Config struct {
	Form      forms.FormType
	Values    func() map[string]interface{}
	Transport Transport
	Drafts    DraftClearer
	Tracker   Tracker
	Notifier  Notifier
	Logger    logger.Logger
	// OnTransition, when set, observes every state change in order.
	OnTransition func(from, to State)
}

type Pipeline struct {
	cfg Config

	mu          sync.Mutex
	state       State
	fieldErrors map[string]string
	lastErr     error
}

func New(cfg Config) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoOpLogger()
	}
	return &Pipeline{cfg: cfg, state: Editing}
}

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.state {
	case Validating, Submitting:
		return StatusSubmitting
	case Submitted:
		return StatusSubmitted
	default:
		if p.lastErr != nil {
			return StatusError
		}
		return StatusIdle
	}
}

// FieldErrors returns the messages from the last failed validation.
func (p *Pipeline) FieldErrors() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]string, len(p.fieldErrors))
	for k, v := range p.fieldErrors {
		out[k] = v
	}
	return out
}

type transition struct {
	from, to State
}

// transitionLocked changes state and queues the move for observers. Callers
// hold p.mu and hand the queue to emit after unlocking.
func (p *Pipeline) transitionLocked(moves []transition, to State) []transition {
	moves = append(moves, transition{from: p.state, to: to})
	p.state = to
	return moves
}

func (p *Pipeline) emit(moves []transition) {
	if p.cfg.OnTransition == nil {
		return
	}
	for _, m := range moves {
		p.cfg.OnTransition(m.from, m.to)
	}
}

// Submit validates the current values and, when they pass, sends them once.
// Calls made while a submission is in flight, or after success, do nothing.
// Observers, the notifier, the tracker and the draft store are called
// without the pipeline lock held, so they may read State or Status.
func (p *Pipeline) Submit(ctx context.Context) error {
	p.mu.Lock()
	switch p.state {
	case Validating, Submitting:
		p.mu.Unlock()
		return ErrSubmissionInProgress
	case Submitted:
		p.mu.Unlock()
		return ErrAlreadySubmitted
	}

	moves := p.transitionLocked(nil, Validating)
	p.fieldErrors = nil
	p.lastErr = nil

	values := forms.Values(p.cfg.Values())
	if fieldErrs := forms.Validate(p.cfg.Form, values); fieldErrs != nil {
		p.fieldErrors = fieldErrs
		moves = p.transitionLocked(moves, ValidationFailed)
		moves = p.transitionLocked(moves, Editing)
		p.mu.Unlock()
		p.emit(moves)
		return &ValidationError{Fields: fieldErrs}
	}
	moves = p.transitionLocked(moves, Submitting)
	p.mu.Unlock()
	p.emit(moves)

	summary := forms.Summary(p.cfg.Form, values)
	p.track(ctx, EventSubmit, summary)

	err := p.cfg.Transport.Submit(ctx, p.cfg.Form, values)
	if err != nil {
		p.cfg.Logger.Error("application submission failed", map[string]interface{}{
			"form":  p.cfg.Form.Name(),
			"error": err,
		})
		p.mu.Lock()
		p.lastErr = err
		moves = p.transitionLocked(nil, SubmitFailed)
		moves = p.transitionLocked(moves, Editing)
		p.mu.Unlock()

		p.emit(moves)
		if p.cfg.Notifier != nil {
			p.cfg.Notifier.NotifyError(GenericErrorMessage)
		}
		p.track(ctx, EventSubmitError, map[string]interface{}{"form_name": p.cfg.Form.Name()})
		return err
	}

	if p.cfg.Drafts != nil {
		p.cfg.Drafts.ClearSavedData()
	}
	p.mu.Lock()
	moves = p.transitionLocked(nil, Submitted)
	p.mu.Unlock()

	p.emit(moves)
	p.track(ctx, EventSubmitSuccess, summary)
	return nil
}

func (p *Pipeline) track(ctx context.Context, name string, params map[string]interface{}) {
	if p.cfg.Tracker != nil {
		p.cfg.Tracker.TrackEvent(ctx, name, params)
	}
}
