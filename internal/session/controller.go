// Package session implements the kiosk screen flow: sign-in, sign-out and
// their success screens, with per-action in-flight guards.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/evcraddock/visitor-kiosk/internal/config"
	"github.com/evcraddock/visitor-kiosk/internal/facility"
	"github.com/evcraddock/visitor-kiosk/internal/geo"
	"github.com/evcraddock/visitor-kiosk/internal/servicenow"
	"github.com/evcraddock/visitor-kiosk/internal/visitor"
)

// State is the current screen.
type State string

// Screens.
const (
	StateSignIn         State = "sign-in"
	StateSignOut        State = "sign-out"
	StateSignInSuccess  State = "sign-in-success"
	StateSignOutSuccess State = "sign-out-success"
)

// Action names a user action that calls the backend.
type Action string

// Backend actions.
const (
	ActionSubmit  Action = "submit"
	ActionSignOut Action = "sign-out"
	ActionRate    Action = "rate"
)

// FieldSignOutName is the field reported when the sign-out name is missing.
const FieldSignOutName = "signOutName"

var (
	// ErrSubmissionPending means the same action is already in flight.
	ErrSubmissionPending = errors.New("submission already in progress")
	// ErrInvalidTransition means the action is not available on the current screen.
	ErrInvalidTransition = errors.New("action not available on this screen")
	// ErrAlreadyRated means the visit has already been rated.
	ErrAlreadyRated = errors.New("visit already rated")
)

// ActionError wraps a backend failure with the action that caused it.
type ActionError struct {
	Action Action
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Action, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// Backend is the record lifecycle the controller drives.
type Backend interface {
	FetchLocations(ctx context.Context) ([]facility.Facility, error)
	SubmitVisitorSignIn(ctx context.Context, sub visitor.Submission) (servicenow.SignInResult, error)
	SubmitVisitorSignOut(ctx context.Context, name string) (servicenow.SignOutResult, error)
	UpdateVisitorRating(ctx context.Context, recordID string, rating int) error
}

// SignInOutcome describes a completed sign-in.
type SignInOutcome struct {
	RecordID     string
	AttachmentID string
	VisitorName  string
	Facility     *facility.Facility
}

// SignOutOutcome describes a completed sign-out.
type SignOutOutcome struct {
	RecordID    string
	VisitorName string
	Facility    *facility.Facility
	ReviewURL   string
	SameDay     bool
	Rating      int
}

// Controller holds one kiosk session. It is safe for concurrent use; no
// backend call is made while the lock is held.
type Controller struct {
	backend Backend
	locator geo.Locator
	cfg     *config.Config
	logger  *slog.Logger

	startOnce    sync.Once
	bootstrapped chan struct{}

	mu            sync.Mutex
	state         State
	form          visitor.Submission
	signOutName   string
	submitting    bool
	signingOut    bool
	rating        bool
	facilities    []facility.Facility
	detected      *facility.Facility
	detectedMiles float64
	signIn        *SignInOutcome
	signOut       *SignOutOutcome
}

// New creates a controller on the sign-in screen. locator may be nil when
// the device position is unavailable.
func New(backend Backend, locator geo.Locator, cfg *config.Config, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		backend:      backend,
		locator:      locator,
		cfg:          cfg,
		logger:       logger,
		bootstrapped: make(chan struct{}),
		state:        StateSignIn,
	}
}

// Start loads the facility directory and detects the nearest facility in
// the background. Only the first call has an effect.
func (c *Controller) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		go c.bootstrap(ctx)
	})
}

// Bootstrapped is closed once facility detection has finished, whatever
// its outcome.
func (c *Controller) Bootstrapped() <-chan struct{} {
	return c.bootstrapped
}

func (c *Controller) bootstrap(ctx context.Context) {
	defer close(c.bootstrapped)

	facilities, err := c.backend.FetchLocations(ctx)
	if err != nil {
		c.logger.Warn("loading facility directory failed", "error", err)
		return
	}

	c.mu.Lock()
	c.facilities = facilities
	c.mu.Unlock()

	if c.locator == nil {
		c.logger.Info("no device position available")
		return
	}
	pos, err := c.locator.CurrentPosition(ctx)
	if err != nil {
		if errors.Is(err, geo.ErrPermissionDenied) {
			c.logger.Info("location permission denied")
		} else {
			c.logger.Warn("getting device position failed", "error", err)
		}
		return
	}

	nearest, miles, ok := facility.Nearest(pos, facilities)
	if !ok {
		c.logger.Info("no facility with coordinates", "facilities", len(facilities))
		return
	}

	c.mu.Lock()
	c.detected = nearest
	c.detectedMiles = miles
	c.mu.Unlock()

	c.logger.Info("facility detected", "facility_id", nearest.ID, "name", nearest.Name, "miles", miles)
}

// State returns the current screen.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetField stores a sign-in form value.
func (c *Controller) SetField(fieldID, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateSignIn {
		return ErrInvalidTransition
	}
	if c.submitting {
		return ErrSubmissionPending
	}
	c.form.Set(fieldID, value)
	return nil
}

// Submit validates the form and signs the visitor in.
func (c *Controller) Submit(ctx context.Context) (*SignInOutcome, error) {
	c.mu.Lock()
	if c.state != StateSignIn {
		c.mu.Unlock()
		return nil, ErrInvalidTransition
	}
	if c.submitting {
		c.mu.Unlock()
		return nil, ErrSubmissionPending
	}
	if err := visitor.Validate(c.form, c.cfg.FormFields); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	sub := c.form.Trimmed()
	detected := c.detected
	if detected != nil {
		sub.FacilityID = detected.ID
	}
	c.submitting = true
	c.mu.Unlock()

	res, err := c.backend.SubmitVisitorSignIn(ctx, sub)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = false
	if err != nil {
		c.logger.Error("sign-in failed", "visitor", sub.VisitorName, "record_id", res.RecordID, "error", err)
		return nil, &ActionError{Action: ActionSubmit, Err: err}
	}

	c.signIn = &SignInOutcome{
		RecordID:     res.RecordID,
		AttachmentID: res.AttachmentID,
		VisitorName:  sub.VisitorName,
		Facility:     detected,
	}
	c.state = StateSignInSuccess
	c.logger.Info("visitor signed in", "visitor", sub.VisitorName, "record_id", res.RecordID)
	out := *c.signIn
	return &out, nil
}

// RequestSignOut switches to the sign-out screen.
func (c *Controller) RequestSignOut() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateSignIn {
		return ErrInvalidTransition
	}
	if c.submitting {
		return ErrSubmissionPending
	}
	c.state = StateSignOut
	return nil
}

// CancelSignOut returns to the sign-in screen.
func (c *Controller) CancelSignOut() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateSignOut {
		return ErrInvalidTransition
	}
	if c.signingOut {
		return ErrSubmissionPending
	}
	c.signOutName = ""
	c.state = StateSignIn
	return nil
}

// SetSignOutName stores the name typed on the sign-out screen.
func (c *Controller) SetSignOutName(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateSignOut {
		return ErrInvalidTransition
	}
	if c.signingOut {
		return ErrSubmissionPending
	}
	c.signOutName = name
	return nil
}

// SignOut closes today's record for the entered name.
func (c *Controller) SignOut(ctx context.Context) (*SignOutOutcome, error) {
	c.mu.Lock()
	if c.state != StateSignOut {
		c.mu.Unlock()
		return nil, ErrInvalidTransition
	}
	if c.signingOut {
		c.mu.Unlock()
		return nil, ErrSubmissionPending
	}
	name := strings.TrimSpace(c.signOutName)
	if name == "" {
		c.mu.Unlock()
		return nil, &visitor.ValidationError{Field: FieldSignOutName, Message: "name is required"}
	}
	c.signingOut = true
	c.mu.Unlock()

	res, err := c.backend.SubmitVisitorSignOut(ctx, name)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.signingOut = false
	if err != nil {
		c.logger.Warn("sign-out failed", "visitor", name, "error", err)
		return nil, &ActionError{Action: ActionSignOut, Err: err}
	}

	f, ok := facility.ByID(c.facilities, res.FacilityID)
	if !ok {
		f = c.detected
	}
	c.signOut = &SignOutOutcome{
		RecordID:    res.RecordID,
		VisitorName: name,
		Facility:    f,
		ReviewURL:   facility.ReviewURL(f),
		SameDay:     res.SameDay,
	}
	c.state = StateSignOutSuccess
	c.logger.Info("visitor signed out", "visitor", name, "record_id", res.RecordID, "same_day", res.SameDay)
	out := *c.signOut
	return &out, nil
}

// Rate records a 1-5 rating for the visit just signed out. A visit can be
// rated once.
func (c *Controller) Rate(ctx context.Context, rating int) error {
	c.mu.Lock()
	if c.state != StateSignOutSuccess || c.signOut == nil {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	if c.rating {
		c.mu.Unlock()
		return ErrSubmissionPending
	}
	if c.signOut.Rating != 0 {
		c.mu.Unlock()
		return ErrAlreadyRated
	}
	recordID := c.signOut.RecordID
	c.rating = true
	c.mu.Unlock()

	err := c.backend.UpdateVisitorRating(ctx, recordID, rating)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.rating = false
	if err != nil {
		c.logger.Warn("rating failed", "record_id", recordID, "error", err)
		return &ActionError{Action: ActionRate, Err: err}
	}
	if c.signOut != nil && c.signOut.RecordID == recordID {
		c.signOut.Rating = rating
	}
	return nil
}

// Done leaves a success screen for a fresh sign-in form.
func (c *Controller) Done() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateSignInSuccess:
		c.form = visitor.Submission{}
		c.signIn = nil
	case StateSignOutSuccess:
		if c.rating {
			return ErrSubmissionPending
		}
		c.signOutName = ""
		c.signOut = nil
	default:
		return ErrInvalidTransition
	}
	c.state = StateSignIn
	return nil
}
