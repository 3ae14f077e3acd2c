package geo

import (
	"context"
	"errors"
	"sync"
)

// ErrPermissionDenied is returned when the device refuses to share its position.
var ErrPermissionDenied = errors.New("location permission denied")

// Locator yields the device's current position once.
type Locator interface {
	CurrentPosition(ctx context.Context) (Point, error)
}

// StaticLocator reports a fixed kiosk position.
// A nil Point means no position was configured.
type StaticLocator struct {
	Point *Point
}

// CurrentPosition returns the configured point or ErrPermissionDenied.
func (l StaticLocator) CurrentPosition(ctx context.Context) (Point, error) {
	if l.Point == nil {
		return Point{}, ErrPermissionDenied
	}
	return *l.Point, nil
}

// ReportedLocator waits for a position pushed from elsewhere, typically a
// browser posting navigator.geolocation results. The first Report or Deny wins.
type ReportedLocator struct {
	once  sync.Once
	done  chan struct{}
	point Point
	err   error
}

// NewReportedLocator creates an unresolved locator.
func NewReportedLocator() *ReportedLocator {
	return &ReportedLocator{done: make(chan struct{})}
}

// Report resolves the locator with p. Later calls are ignored.
func (l *ReportedLocator) Report(p Point) {
	l.once.Do(func() {
		l.point = p
		close(l.done)
	})
}

// Deny resolves the locator with ErrPermissionDenied. Later calls are ignored.
func (l *ReportedLocator) Deny() {
	l.once.Do(func() {
		l.err = ErrPermissionDenied
		close(l.done)
	})
}

// CurrentPosition blocks until the locator is resolved or ctx is done.
func (l *ReportedLocator) CurrentPosition(ctx context.Context) (Point, error) {
	select {
	case <-l.done:
		return l.point, l.err
	case <-ctx.Done():
		return Point{}, ctx.Err()
	}
}
