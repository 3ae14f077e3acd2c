package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/evcraddock/visitor-kiosk/internal/config"
	"github.com/evcraddock/visitor-kiosk/internal/geo"
	"github.com/evcraddock/visitor-kiosk/internal/servicenow"
	"github.com/evcraddock/visitor-kiosk/internal/session"
	"github.com/evcraddock/visitor-kiosk/internal/visitor"
)

type pageData struct {
	App        config.App
	Buttons    config.Buttons
	Messages   config.Messages
	Fields     []config.FormField
	Session    session.Snapshot
	Reporting  bool
	Error      string
	ErrorField string
}

// handleIndex renders the session's current screen.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ks := s.sessions.get(w, r)
	s.renderScreen(w, ks, http.StatusOK, nil)
}

// handleSignIn copies the posted form into the session and submits it.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	ks := s.sessions.get(w, r)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	for _, f := range s.config().FormFields {
		if _, ok := r.PostForm[f.ID]; !ok {
			continue
		}
		if err := ks.ctrl.SetField(f.ID, r.PostForm.Get(f.ID)); err != nil {
			s.renderScreen(w, ks, statusFor(err), err)
			return
		}
	}

	if _, err := ks.ctrl.Submit(r.Context()); err != nil {
		s.renderScreen(w, ks, statusFor(err), err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleSignOutStart(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, func(c *session.Controller) error { return c.RequestSignOut() })
}

func (s *Server) handleSignOutCancel(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, func(c *session.Controller) error { return c.CancelSignOut() })
}

func (s *Server) handleDone(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, func(c *session.Controller) error { return c.Done() })
}

// handleSignOut closes today's record for the posted name.
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	ks := s.sessions.get(w, r)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	if err := ks.ctrl.SetSignOutName(r.PostForm.Get("name")); err != nil {
		s.renderScreen(w, ks, statusFor(err), err)
		return
	}
	if _, err := ks.ctrl.SignOut(r.Context()); err != nil {
		s.renderScreen(w, ks, statusFor(err), err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleRate records the star rating for the visit just signed out.
func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	ks := s.sessions.get(w, r)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	rating, err := strconv.Atoi(r.PostForm.Get("rating"))
	if err != nil || rating < 1 || rating > 5 {
		http.Error(w, "Rating must be 1-5", http.StatusBadRequest)
		return
	}
	if err := ks.ctrl.Rate(r.Context(), rating); err != nil {
		s.renderScreen(w, ks, statusFor(err), err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// transition applies a screen change that makes no backend call.
func (s *Server) transition(w http.ResponseWriter, r *http.Request, fn func(*session.Controller) error) {
	ks := s.sessions.get(w, r)
	if err := fn(ks.ctrl); err != nil {
		s.renderScreen(w, ks, statusFor(err), err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) renderScreen(w http.ResponseWriter, ks *kioskSession, status int, actionErr error) {
	cfg := s.config()
	data := pageData{
		App:       cfg.App,
		Buttons:   cfg.Buttons,
		Messages:  cfg.Messages,
		Fields:    cfg.SortedFields(),
		Session:   ks.ctrl.Snapshot(),
		Reporting: ks.reported != nil,
	}
	if actionErr != nil {
		data.Error = ks.ctrl.UserMessage(actionErr)
		var verr *visitor.ValidationError
		if errors.As(actionErr, &verr) {
			data.ErrorField = verr.Field
		}
	}
	s.render(w, status, "kiosk.html", data)
}

// statusFor maps a controller error to an HTTP status.
func statusFor(err error) int {
	var verr *visitor.ValidationError
	var aerr *session.ActionError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrSubmissionPending),
		errors.Is(err, session.ErrInvalidTransition),
		errors.Is(err, session.ErrAlreadyRated),
		errors.Is(err, servicenow.ErrAlreadySignedOut):
		return http.StatusConflict
	case errors.Is(err, servicenow.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &aerr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

var validate = validator.New()

type locationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Denied    bool     `json:"denied"`
}

// valid reports whether the request is a denial or a usable coordinate.
func (l locationRequest) valid() bool {
	if l.Denied {
		return true
	}
	if l.Latitude == nil || l.Longitude == nil {
		return false
	}
	return validate.Var(*l.Latitude, "latitude") == nil && validate.Var(*l.Longitude, "longitude") == nil
}

// handleLocation receives the browser's geolocation result.
func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	ks := s.sessions.get(w, r)

	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if !req.valid() {
		apiError(w, "latitude and longitude are required unless denied", http.StatusBadRequest)
		return
	}
	if ks.reported == nil {
		apiJSON(w, map[string]string{"status": "ignored"}, http.StatusOK)
		return
	}

	if req.Denied {
		ks.reported.Deny()
		apiJSON(w, map[string]string{"status": "denied"}, http.StatusOK)
		return
	}
	ks.reported.Report(geo.Point{Lat: *req.Latitude, Lon: *req.Longitude})
	apiJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

type facilityView struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Miles float64 `json:"miles,omitempty"`
}

type sessionView struct {
	State      session.State `json:"state"`
	Located    bool          `json:"located"`
	Facility   *facilityView `json:"facility,omitempty"`
	Submitting bool          `json:"submitting"`
	SigningOut bool          `json:"signingOut"`
	Rating     bool          `json:"rating"`
	RecordID   string        `json:"recordId,omitempty"`
	Visitor    string        `json:"visitor,omitempty"`
	ReviewURL  string        `json:"reviewUrl,omitempty"`
	SameDay    *bool         `json:"sameDay,omitempty"`
	Rated      int           `json:"rated,omitempty"`
}

// handleSessionState reports the session's screen as JSON. The page polls
// it while facility detection runs.
func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	ks, ok := s.sessions.lookup(r)
	if !ok {
		apiError(w, "no session", http.StatusNotFound)
		return
	}

	snap := ks.ctrl.Snapshot()
	v := sessionView{
		State:      snap.State,
		Located:    snap.Located,
		Submitting: snap.Submitting,
		SigningOut: snap.SigningOut,
		Rating:     snap.Rating,
	}
	if snap.Detected != nil {
		v.Facility = &facilityView{ID: snap.Detected.ID, Name: snap.Detected.Name, Miles: snap.DetectedMiles}
	}
	if in := snap.SignIn; in != nil {
		v.RecordID = in.RecordID
		v.Visitor = in.VisitorName
	}
	if out := snap.SignOut; out != nil {
		sameDay := out.SameDay
		v.RecordID = out.RecordID
		v.Visitor = out.VisitorName
		v.ReviewURL = out.ReviewURL
		v.SameDay = &sameDay
		v.Rated = out.Rating
	}
	apiJSON(w, v, http.StatusOK)
}
