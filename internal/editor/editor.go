// Package editor drives the create/edit/save/delete flow for one
// availability record. Validation runs before any transition, and a failed
// save or delete keeps the entered values so the user can retry.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/dukerupert/coachcal/internal/model"
)

type State int

const (
	Closed State = iota
	Creating
	Editing
	Saving
	SaveFailed
	Deleting
	DeleteFailed
)

var stateNames = [...]string{"closed", "creating", "editing", "saving", "save_failed", "deleting", "delete_failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

type Tab string

const (
	TabSingle    Tab = Tab(model.KindSingle)
	TabRecurring Tab = Tab(model.KindRecurring)
)

// ParseTab accepts "single" or "recurring".
func ParseTab(s string) (Tab, error) {
	switch Tab(s) {
	case TabSingle, TabRecurring:
		return Tab(s), nil
	}
	return "", fmt.Errorf("editor: unknown tab %q", s)
}

// ErrBusy is returned while a save or delete is in flight.
var ErrBusy = errors.New("editor: save or delete in progress")

// TransitionError reports an action that is not allowed in the current
// state.
type TransitionError struct {
	From   State
	Action string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("editor: cannot %s while %s", e.Action, e.From)
}

// ValidationError carries the per-field failures of a save attempt.
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("editor: validation failed for %v", e.Fields.Fields())
}

// TransportError wraps a persister failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("editor: %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Persister stores and removes records. It owns retry and timeout policy.
type Persister interface {
	Save(ctx context.Context, a model.Availability) error
	Delete(ctx context.Context, id string) error
}

type Option func(*Editor)

// WithIDGenerator replaces uuid.NewString for draft ids.
func WithIDGenerator(fn func() string) Option {
	return func(e *Editor) { e.newID = fn }
}

// WithCoach sets the owner stamped on records created by Open.
func WithCoach(coachID int64) Option {
	return func(e *Editor) { e.coachID = coachID }
}

// Editor is the state machine. The mutex is not held while the persister
// runs, so State and CanSave stay readable during a save.
type Editor struct {
	mu        sync.Mutex
	persister Persister
	newID     func() string
	coachID   int64

	state  State
	origin State
	tab    Tab
	id     string
	form   Form
	errs   FieldErrors
	failed error
}

func New(p Persister, opts ...Option) *Editor {
	e := &Editor{
		persister: p,
		newID:     uuid.NewString,
		state:     Closed,
		tab:       TabSingle,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Open starts creating a new record on the single tab. The draft id is
// fixed until the editor closes.
func (e *Editor) Open() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Closed {
		return &TransitionError{From: e.state, Action: "open"}
	}
	e.state = Creating
	e.origin = Creating
	e.tab = TabSingle
	e.id = e.newID()
	e.form = Form{}
	e.errs = nil
	e.failed = nil
	return nil
}

// OpenEdit starts editing a. The tab follows the record's kind and cannot
// be switched.
func (e *Editor) OpenEdit(a model.Availability) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Closed {
		return &TransitionError{From: e.state, Action: "edit"}
	}
	e.state = Editing
	e.origin = Editing
	e.tab = Tab(a.Kind())
	e.id = a.AvailabilityID()
	if owner := a.Owner(); owner != 0 {
		e.coachID = owner
	}
	e.form = FormFrom(a)
	e.errs = nil
	e.failed = nil
	return nil
}

// SelectTab switches between single and recurring while creating. Errors on
// the previous tab's fields are cleared.
func (e *Editor) SelectTab(t Tab) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Creating {
		return &TransitionError{From: e.state, Action: "switch tab"}
	}
	if _, ok := tabFields[t]; !ok {
		return fmt.Errorf("editor: unknown tab %q", t)
	}
	if t == e.tab {
		return nil
	}
	for _, f := range tabFields[e.tab] {
		delete(e.errs, f)
	}
	e.tab = t
	return nil
}

// SetForm replaces the entered values.
func (e *Editor) SetForm(f Form) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case Creating, Editing, SaveFailed, DeleteFailed:
		e.form = f
		return nil
	case Saving, Deleting:
		return ErrBusy
	default:
		return &TransitionError{From: e.state, Action: "edit form"}
	}
}

// Save validates the form and, when it passes, hands the record to the
// persister. It returns a *ValidationError without changing state, or a
// *TransportError after moving to SaveFailed.
func (e *Editor) Save(ctx context.Context) (model.Availability, error) {
	e.mu.Lock()
	switch e.state {
	case Creating, Editing, SaveFailed:
	case Saving, Deleting:
		e.mu.Unlock()
		return nil, ErrBusy
	default:
		from := e.state
		e.mu.Unlock()
		return nil, &TransitionError{From: from, Action: "save"}
	}

	a, errs := Validate(e.tab, e.id, e.coachID, e.form)
	if len(errs) > 0 {
		e.errs = errs
		e.mu.Unlock()
		return nil, &ValidationError{Fields: errs.clone()}
	}
	e.errs = nil
	e.failed = nil
	e.state = Saving
	e.mu.Unlock()

	err := e.persister.Save(ctx, a)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.state = SaveFailed
		e.failed = err
		return nil, &TransportError{Op: "save", Err: err}
	}
	e.reset()
	return a, nil
}

// Delete removes the record being edited.
func (e *Editor) Delete(ctx context.Context) error {
	e.mu.Lock()
	switch e.state {
	case Editing, DeleteFailed:
	case Saving, Deleting:
		e.mu.Unlock()
		return ErrBusy
	default:
		from := e.state
		e.mu.Unlock()
		return &TransitionError{From: from, Action: "delete"}
	}
	id := e.id
	e.failed = nil
	e.state = Deleting
	e.mu.Unlock()

	err := e.persister.Delete(ctx, id)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.state = DeleteFailed
		e.failed = err
		return &TransportError{Op: "delete", Err: err}
	}
	e.reset()
	return nil
}

// Cancel discards unsaved input and closes the editor.
func (e *Editor) Cancel() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == Saving || e.state == Deleting {
		return ErrBusy
	}
	e.reset()
	return nil
}

// Back leaves a failed state for the state the user came from, keeping the
// form.
func (e *Editor) Back() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case SaveFailed, DeleteFailed:
		e.state = e.origin
		e.failed = nil
		return nil
	case Saving, Deleting:
		return ErrBusy
	default:
		return &TransitionError{From: e.state, Action: "go back"}
	}
}

func (e *Editor) reset() {
	e.state = Closed
	e.origin = Closed
	e.tab = TabSingle
	e.id = ""
	e.form = Form{}
	e.errs = nil
	e.failed = nil
}

func (e *Editor) CanSave() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == Creating || e.state == Editing || e.state == SaveFailed
}

func (e *Editor) CanDelete() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == Editing || e.state == DeleteFailed
}

func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Editor) Tab() Tab {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tab
}

// ID returns the draft or edited record id.
func (e *Editor) ID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.id
}

func (e *Editor) Form() Form {
	e.mu.Lock()
	defer e.mu.Unlock()
	f := e.form
	f.Days = append([]string(nil), e.form.Days...)
	return f
}

// Errors returns a copy of the current field errors.
func (e *Editor) Errors() FieldErrors {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errs.clone()
}

// Err returns the last transport failure, if the editor is in a failed
// state.
func (e *Editor) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failed
}
