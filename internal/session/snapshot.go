package session

import (
	"errors"

	"github.com/evcraddock/visitor-kiosk/internal/facility"
	"github.com/evcraddock/visitor-kiosk/internal/servicenow"
	"github.com/evcraddock/visitor-kiosk/internal/visitor"
)

// Snapshot is a copy of the session for rendering.
type Snapshot struct {
	State         State
	Form          visitor.Submission
	SignOutName   string
	Submitting    bool
	SigningOut    bool
	Rating        bool
	Located       bool
	Detected      *facility.Facility
	DetectedMiles float64
	SignIn        *SignInOutcome
	SignOut       *SignOutOutcome
}

// Snapshot returns the current session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		State:         c.state,
		Form:          c.form,
		SignOutName:   c.signOutName,
		Submitting:    c.submitting,
		SigningOut:    c.signingOut,
		Rating:        c.rating,
		DetectedMiles: c.detectedMiles,
	}
	if c.form.Extra != nil {
		s.Form.Extra = make(map[string]string, len(c.form.Extra))
		for k, v := range c.form.Extra {
			s.Form.Extra[k] = v
		}
	}
	if c.detected != nil {
		d := *c.detected
		s.Detected = &d
	}
	if c.signIn != nil {
		in := *c.signIn
		s.SignIn = &in
	}
	if c.signOut != nil {
		out := *c.signOut
		s.SignOut = &out
	}
	select {
	case <-c.bootstrapped:
		s.Located = true
	default:
	}
	return s
}

// UserMessage maps an error from a controller action to the configured
// text shown to the visitor.
func (c *Controller) UserMessage(err error) string {
	if err == nil {
		return ""
	}
	m := c.cfg.Messages

	var verr *visitor.ValidationError
	if errors.As(err, &verr) {
		switch verr.Field {
		case visitor.FieldVisitorName, FieldSignOutName:
			return m.ValidationErrorName
		case visitor.FieldVisitingPerson:
			return m.ValidationErrorVisiting
		case visitor.FieldPurpose:
			return m.ValidationErrorPurpose
		case visitor.FieldPhoneNumber:
			return m.ValidationErrorPhone
		case visitor.FieldSignature:
			return m.ValidationErrorSignature
		}
		if m.ValidationErrorRequired != "" {
			return m.ValidationErrorRequired
		}
		return verr.Error()
	}

	switch {
	case errors.Is(err, ErrSubmissionPending):
		return m.SubmitPending
	case errors.Is(err, servicenow.ErrNotFound):
		return m.SignOutNotFound
	case errors.Is(err, servicenow.ErrAlreadySignedOut):
		return m.AlreadySignedOut
	}

	var aerr *ActionError
	if errors.As(err, &aerr) {
		switch aerr.Action {
		case ActionSubmit:
			return m.SubmitError
		case ActionSignOut:
			return m.SignOutError
		case ActionRate:
			return m.RatingError
		}
	}
	return err.Error()
}
