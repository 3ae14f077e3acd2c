package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/evcraddock/visitor-kiosk/internal/config"
	"github.com/evcraddock/visitor-kiosk/internal/facility"
	"github.com/evcraddock/visitor-kiosk/internal/servicenow"
	"github.com/evcraddock/visitor-kiosk/internal/visitor"
)

const testSignature = "data:image/png;base64,iVBORw0KGgo="

type fakeBackend struct {
	mu            sync.Mutex
	facilities    []facility.Facility
	signIns       []visitor.Submission
	signOutNames  []string
	signOutResult servicenow.SignOutResult
	signOutErr    error
	ratings       map[string]int
}

func (f *fakeBackend) FetchLocations(ctx context.Context) ([]facility.Facility, error) {
	return f.facilities, nil
}

func (f *fakeBackend) SubmitVisitorSignIn(ctx context.Context, sub visitor.Submission) (servicenow.SignInResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signIns = append(f.signIns, sub)
	return servicenow.SignInResult{RecordID: "rec-1", AttachmentID: "att-1"}, nil
}

func (f *fakeBackend) SubmitVisitorSignOut(ctx context.Context, name string) (servicenow.SignOutResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOutNames = append(f.signOutNames, name)
	return f.signOutResult, f.signOutErr
}

func (f *fakeBackend) UpdateVisitorRating(ctx context.Context, recordID string, rating int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ratings == nil {
		f.ratings = make(map[string]int)
	}
	f.ratings[recordID] = rating
	return nil
}

func (f *fakeBackend) submissions() []visitor.Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]visitor.Submission(nil), f.signIns...)
}

func (f *fakeBackend) rating(recordID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ratings[recordID]
}

func float(v float64) *float64 { return &v }

func testFacilities() []facility.Facility {
	return []facility.Facility{
		{ID: "loc-a", Name: "Downtown Office", Latitude: float(40.7128), Longitude: float(-74.0060), ReviewURL: "https://example.com/review/a"},
		{ID: "loc-b", Name: "Airport Office", Latitude: float(40.6413), Longitude: float(-73.7781)},
	}
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	return cfg
}

func testServer(t *testing.T, cfg *config.Config, backend *fakeBackend) *Server {
	t.Helper()
	srv, err := NewServer(cfg, backend, Options{})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(srv.Close)
	return srv
}

// kioskClient replays the session cookie across requests.
type kioskClient struct {
	t      *testing.T
	srv    http.Handler
	cookie *http.Cookie
}

func (c *kioskClient) do(method, path string, body string) *httptest.ResponseRecorder {
	c.t.Helper()
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	switch {
	case strings.HasPrefix(body, "{"):
		r.Header.Set("Content-Type", "application/json")
	case body != "":
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if c.cookie != nil {
		r.AddCookie(c.cookie)
	}
	w := httptest.NewRecorder()
	c.srv.ServeHTTP(w, r)
	for _, ck := range w.Result().Cookies() {
		if ck.Name == sessionCookie {
			c.cookie = ck
		}
	}
	return w
}

func (c *kioskClient) post(path string, form url.Values) *httptest.ResponseRecorder {
	c.t.Helper()
	return c.do("POST", path, form.Encode())
}

// waitLocated polls until the session's facility detection has finished.
func (c *kioskClient) waitLocated() {
	c.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		w := c.do("GET", "/api/session", "")
		if strings.Contains(w.Body.String(), `"located":true`) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	c.t.Fatal("facility detection did not finish")
}

func signInForm() url.Values {
	return url.Values{
		"visitorName":    {"Jane Doe"},
		"visitingPerson": {"Bob Smith"},
		"purpose":        {"Meeting"},
		"phoneNumber":    {"555-0100"},
		"signature":      {testSignature},
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t, testConfig(), &fakeBackend{})

	r := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %q, want application/json", ct)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %q, want status ok", w.Body.String())
	}
}

func TestNewServerRequiresCollaborators(t *testing.T) {
	if _, err := NewServer(nil, &fakeBackend{}, Options{}); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := NewServer(testConfig(), nil, Options{}); err == nil {
		t.Error("expected error for nil backend")
	}
}

func TestIndexRendersSignInForm(t *testing.T) {
	srv := testServer(t, testConfig(), &fakeBackend{})
	c := &kioskClient{t: t, srv: srv}

	w := c.do("GET", "/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if c.cookie == nil {
		t.Fatal("expected session cookie")
	}

	body := w.Body.String()
	for _, want := range []string{"Visitor Sign-In", `name="visitorName"`, `type="tel"`, "signature-pad", "Submit Sign-In", `action="/signout/start"`} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in page", want)
		}
	}
	if srv.sessions.count() != 1 {
		t.Errorf("sessions = %d, want 1", srv.sessions.count())
	}

	c.do("GET", "/", "")
	if srv.sessions.count() != 1 {
		t.Errorf("sessions after reuse = %d, want 1", srv.sessions.count())
	}
}

func TestIndexRendersConfiguredFieldTypes(t *testing.T) {
	cfg := testConfig()
	cfg.FormFields = append(cfg.FormFields,
		config.FormField{ID: "department", Type: config.FieldTypeDropdown, Label: "Department", Options: []string{"Sales", "Support"}, Order: 6},
		config.FormField{ID: "notes", Type: config.FieldTypeTextarea, Label: "Notes", Order: 7},
	)
	srv := testServer(t, cfg, &fakeBackend{})
	c := &kioskClient{t: t, srv: srv}

	body := c.do("GET", "/", "").Body.String()
	for _, want := range []string{`<select id="field-department"`, `<option value="Support">`, `<textarea id="field-notes"`} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in page", want)
		}
	}
}

func TestSignInFlow(t *testing.T) {
	cfg := testConfig()
	cfg.Messages.SubmitSuccess = "Welcome aboard"
	cfg.Kiosk.Latitude = float(40.7128)
	cfg.Kiosk.Longitude = float(-74.0060)
	backend := &fakeBackend{facilities: testFacilities()}
	srv := testServer(t, cfg, backend)
	c := &kioskClient{t: t, srv: srv}

	c.do("GET", "/", "")
	c.waitLocated()

	w := c.post("/signin", signInForm())
	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusSeeOther, w.Body.String())
	}

	subs := backend.submissions()
	if len(subs) != 1 {
		t.Fatalf("sign-ins = %d, want 1", len(subs))
	}
	if subs[0].VisitorName != "Jane Doe" || subs[0].Signature != testSignature {
		t.Errorf("submission = %+v", subs[0])
	}
	if subs[0].FacilityID != "loc-a" {
		t.Errorf("facility = %q, want loc-a", subs[0].FacilityID)
	}

	page := c.do("GET", "/", "").Body.String()
	if !strings.Contains(page, cfg.Messages.SubmitSuccess) {
		t.Error("expected success message")
	}
	if !strings.Contains(page, "Downtown Office") {
		t.Error("expected detected facility name")
	}

	if w := c.post("/done", nil); w.Code != http.StatusSeeOther {
		t.Errorf("done status = %d", w.Code)
	}
	if page := c.do("GET", "/", "").Body.String(); !strings.Contains(page, `id="signin-form"`) {
		t.Error("expected fresh sign-in form after done")
	}
}

func TestSignInValidationError(t *testing.T) {
	cfg := testConfig()
	backend := &fakeBackend{}
	srv := testServer(t, cfg, backend)
	c := &kioskClient{t: t, srv: srv}

	form := signInForm()
	form.Del("signature")
	w := c.post("/signin", form)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
	body := w.Body.String()
	if !strings.Contains(body, cfg.Messages.ValidationErrorSignature) {
		t.Error("expected signature validation message")
	}
	if !strings.Contains(body, `value="Jane Doe"`) {
		t.Error("expected entered values to be kept")
	}
	if len(backend.submissions()) != 0 {
		t.Error("backend should not be called for an invalid form")
	}
}

func TestSignOutFlow(t *testing.T) {
	cfg := testConfig()
	backend := &fakeBackend{
		facilities:    testFacilities(),
		signOutResult: servicenow.SignOutResult{RecordID: "rec-9", FacilityID: "loc-a", SameDay: true},
	}
	srv := testServer(t, cfg, backend)
	c := &kioskClient{t: t, srv: srv}

	c.do("GET", "/", "")
	c.do("POST", "/api/location", `{"denied":true}`)
	c.waitLocated()

	if w := c.post("/signout/start", nil); w.Code != http.StatusSeeOther {
		t.Fatalf("start status = %d", w.Code)
	}
	if page := c.do("GET", "/", "").Body.String(); !strings.Contains(page, `id="signout-form"`) {
		t.Fatal("expected sign-out form")
	}

	if w := c.post("/signout", url.Values{"name": {"  Jane Doe "}}); w.Code != http.StatusSeeOther {
		t.Fatalf("sign-out status = %d: %s", w.Code, w.Body.String())
	}
	page := c.do("GET", "/", "").Body.String()
	if !strings.Contains(page, cfg.Messages.SignOutSuccess) {
		t.Error("expected sign-out success message")
	}
	if !strings.Contains(page, "https://example.com/review/a") {
		t.Error("expected facility review link")
	}
	if !strings.Contains(page, `name="rating"`) {
		t.Error("expected rating buttons")
	}

	if w := c.post("/rate", url.Values{"rating": {"4"}}); w.Code != http.StatusSeeOther {
		t.Fatalf("rate status = %d", w.Code)
	}
	if got := backend.rating("rec-9"); got != 4 {
		t.Errorf("rating = %d, want 4", got)
	}
	page = c.do("GET", "/", "").Body.String()
	if !strings.Contains(page, cfg.Messages.RatingThanks) {
		t.Error("expected rating thanks")
	}

	if w := c.post("/rate", url.Values{"rating": {"5"}}); w.Code != http.StatusConflict {
		t.Errorf("second rate status = %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestSignOutErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		message    func(config.Messages) string
	}{
		{"not found", servicenow.ErrNotFound, http.StatusNotFound, func(m config.Messages) string { return m.SignOutNotFound }},
		{"already signed out", servicenow.ErrAlreadySignedOut, http.StatusConflict, func(m config.Messages) string { return m.AlreadySignedOut }},
		{"remote failure", &servicenow.RemoteWriteError{Op: "update", StatusCode: 500}, http.StatusBadGateway, func(m config.Messages) string { return m.SignOutError }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			srv := testServer(t, cfg, &fakeBackend{signOutErr: tt.err})
			c := &kioskClient{t: t, srv: srv}

			c.post("/signout/start", nil)
			w := c.post("/signout", url.Values{"name": {"Jane Doe"}})
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if !strings.Contains(w.Body.String(), tt.message(cfg.Messages)) {
				t.Errorf("expected %q in page", tt.message(cfg.Messages))
			}
			if !strings.Contains(w.Body.String(), `id="signout-form"`) {
				t.Error("expected to stay on the sign-out screen")
			}
		})
	}
}

func TestSignOutRequiresName(t *testing.T) {
	cfg := testConfig()
	srv := testServer(t, cfg, &fakeBackend{})
	c := &kioskClient{t: t, srv: srv}

	c.post("/signout/start", nil)
	w := c.post("/signout", url.Values{"name": {"   "}})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
	if !strings.Contains(w.Body.String(), cfg.Messages.ValidationErrorName) {
		t.Error("expected name validation message")
	}
}

func TestInvalidTransitions(t *testing.T) {
	srv := testServer(t, testConfig(), &fakeBackend{})
	c := &kioskClient{t: t, srv: srv}

	for _, path := range []string{"/done", "/signout/cancel", "/signout"} {
		if w := c.post(path, nil); w.Code != http.StatusConflict {
			t.Errorf("POST %s status = %d, want %d", path, w.Code, http.StatusConflict)
		}
	}

	c.post("/signout/start", nil)
	if w := c.post("/signout/cancel", nil); w.Code != http.StatusSeeOther {
		t.Errorf("cancel status = %d, want %d", w.Code, http.StatusSeeOther)
	}
}

func TestRateRejectsOutOfRange(t *testing.T) {
	srv := testServer(t, testConfig(), &fakeBackend{})
	c := &kioskClient{t: t, srv: srv}

	for _, v := range []string{"0", "6", "abc"} {
		if w := c.post("/rate", url.Values{"rating": {v}}); w.Code != http.StatusBadRequest {
			t.Errorf("rating %q status = %d, want %d", v, w.Code, http.StatusBadRequest)
		}
	}
}

func TestLocationReport(t *testing.T) {
	srv := testServer(t, testConfig(), &fakeBackend{facilities: testFacilities()})
	c := &kioskClient{t: t, srv: srv}

	c.do("GET", "/", "")
	w := c.do("POST", "/api/location", `{"latitude":40.6413,"longitude":-73.7781}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	c.waitLocated()

	state := c.do("GET", "/api/session", "").Body.String()
	if !strings.Contains(state, `"id":"loc-b"`) {
		t.Errorf("session = %s, want facility loc-b", state)
	}
	if !strings.Contains(state, `"state":"sign-in"`) {
		t.Errorf("session = %s, want sign-in state", state)
	}
}

func TestLocationBadRequests(t *testing.T) {
	srv := testServer(t, testConfig(), &fakeBackend{})
	c := &kioskClient{t: t, srv: srv}

	for _, body := range []string{`not json`, `{}`, `{"latitude":91,"longitude":0}`, `{"latitude":10}`} {
		if w := c.do("POST", "/api/location", body); w.Code != http.StatusBadRequest {
			t.Errorf("body %q status = %d, want %d", body, w.Code, http.StatusBadRequest)
		}
	}
}

func TestLocationIgnoredWithFixedPosition(t *testing.T) {
	cfg := testConfig()
	cfg.Kiosk.Latitude = float(40.7128)
	cfg.Kiosk.Longitude = float(-74.0060)
	srv := testServer(t, cfg, &fakeBackend{facilities: testFacilities()})
	c := &kioskClient{t: t, srv: srv}

	w := c.do("POST", "/api/location", `{"latitude":40.6413,"longitude":-73.7781}`)
	if !strings.Contains(w.Body.String(), `"status":"ignored"`) {
		t.Errorf("body = %s, want ignored", w.Body.String())
	}
	c.waitLocated()
	if state := c.do("GET", "/api/session", "").Body.String(); !strings.Contains(state, `"id":"loc-a"`) {
		t.Errorf("session = %s, want facility loc-a", state)
	}
}

func TestSessionStateWithoutCookie(t *testing.T) {
	srv := testServer(t, testConfig(), &fakeBackend{})

	r := httptest.NewRequest("GET", "/api/session", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestStaticAssets(t *testing.T) {
	srv := testServer(t, testConfig(), &fakeBackend{})

	for _, path := range []string{"/static/kiosk.js", "/static/kiosk.css"} {
		r := httptest.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want %d", path, w.Code, http.StatusOK)
		}
	}
}

func TestSessionStorePrunesIdle(t *testing.T) {
	var cancelled []string
	create := func(id string) *kioskSession {
		return &kioskSession{id: id, cancel: func() { cancelled = append(cancelled, id) }}
	}
	st := newSessionStore(create, time.Minute)
	now := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return now }

	first := st.get(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	now = now.Add(2 * time.Minute)
	st.get(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if st.count() != 1 {
		t.Errorf("sessions = %d, want 1", st.count())
	}
	if len(cancelled) != 1 || cancelled[0] != first.id {
		t.Errorf("cancelled = %v, want [%s]", cancelled, first.id)
	}

	st.closeAll()
	if st.count() != 0 || len(cancelled) != 2 {
		t.Errorf("after closeAll: sessions = %d, cancelled = %d", st.count(), len(cancelled))
	}
}
