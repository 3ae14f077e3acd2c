package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/evcraddock/visitor-kiosk/internal/geo"
	"github.com/evcraddock/visitor-kiosk/internal/session"
)

const sessionCookie = "vk_session"

// kioskSession is one browser's screen flow.
type kioskSession struct {
	id       string
	ctrl     *session.Controller
	reported *geo.ReportedLocator // nil when the kiosk position is fixed
	cancel   context.CancelFunc
	lastSeen time.Time
}

type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*kioskSession
	create   func(id string) *kioskSession
	ttl      time.Duration
	now      func() time.Time
}

func newSessionStore(create func(id string) *kioskSession, ttl time.Duration) *sessionStore {
	return &sessionStore{
		sessions: make(map[string]*kioskSession),
		create:   create,
		ttl:      ttl,
		now:      time.Now,
	}
}

// get returns the caller's session, starting a new one when the cookie is
// missing or stale.
func (st *sessionStore) get(w http.ResponseWriter, r *http.Request) *kioskSession {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.now()
	if c, err := r.Cookie(sessionCookie); err == nil {
		if ks, ok := st.sessions[c.Value]; ok {
			ks.lastSeen = now
			return ks
		}
	}

	st.prune(now)
	ks := st.create(uuid.NewString())
	ks.lastSeen = now
	st.sessions[ks.id] = ks

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    ks.id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	return ks
}

// lookup returns an existing session without creating one.
func (st *sessionStore) lookup(r *http.Request) (*kioskSession, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	ks, ok := st.sessions[c.Value]
	if ok {
		ks.lastSeen = st.now()
	}
	return ks, ok
}

// prune ends sessions idle longer than the ttl. Caller holds mu.
func (st *sessionStore) prune(now time.Time) {
	for id, ks := range st.sessions {
		if now.Sub(ks.lastSeen) > st.ttl {
			ks.cancel()
			delete(st.sessions, id)
		}
	}
}

func (st *sessionStore) count() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

func (st *sessionStore) closeAll() {
	st.mu.Lock()
	defer st.mu.Unlock()
	for id, ks := range st.sessions {
		ks.cancel()
		delete(st.sessions, id)
	}
}

// newSession builds a controller with the current configuration and starts
// facility detection. A configured kiosk position is used as is; otherwise
// the browser reports its own.
func (s *Server) newSession(id string) *kioskSession {
	cfg := s.config()
	ks := &kioskSession{id: id}

	var locator geo.Locator
	if cfg.Kiosk.Latitude != nil && cfg.Kiosk.Longitude != nil {
		locator = geo.StaticLocator{Point: &geo.Point{Lat: *cfg.Kiosk.Latitude, Lon: *cfg.Kiosk.Longitude}}
	} else {
		ks.reported = geo.NewReportedLocator()
		locator = ks.reported
	}

	ctx, cancel := context.WithCancel(context.Background())
	ks.cancel = cancel
	ks.ctrl = session.New(s.backend, locator, cfg, s.logger.With("session", id))
	ks.ctrl.Start(ctx)
	return ks
}
