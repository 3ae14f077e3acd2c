package revision

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/evcraddock/visitor-kiosk/internal/config"
)

// Manager applies versioned edits to a configuration file. Each saved
// version is appended to the document's history and, when a repository is
// set, archived.
type Manager struct {
	path string
	repo *Repository
	now  func() time.Time
	mu   sync.Mutex
}

// NewManager creates a manager for the document at path. repo may be nil.
func NewManager(path string, repo *Repository) *Manager {
	return &Manager{path: path, repo: repo, now: time.Now}
}

// Path returns the managed document path.
func (m *Manager) Path() string { return m.path }

// Current reads the document as stored, without environment overrides.
func (m *Manager) Current() (*config.Config, error) {
	return config.LoadDocument(m.path)
}

// Save replaces the document with next under a bumped version. Version and
// history in next are ignored; redacted secrets keep their stored values.
func (m *Manager) Save(next *config.Config, kind, changes string, source Source) (*config.Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.Current()
	if err != nil {
		return nil, err
	}

	doc := *next
	if doc.ServiceNow.Password == config.RedactedSecret {
		doc.ServiceNow.Password = current.ServiceNow.Password
	}
	if doc.Kiosk.AdminToken == config.RedactedSecret {
		doc.Kiosk.AdminToken = current.Kiosk.AdminToken
	}
	if err := doc.ValidateDocument(); err != nil {
		return nil, err
	}

	doc.Version = current.Version
	doc.VersionHistory = append([]config.VersionEntry(nil), current.VersionHistory...)
	return m.commit(&doc, kind, changes, source)
}

// Increment bumps the version without other changes.
func (m *Manager) Increment(kind string, source Source) (*config.Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.Current()
	if err != nil {
		return nil, err
	}
	if kind == "" {
		kind = config.BumpPatch
	}
	return m.commit(current, kind, fmt.Sprintf("Manual %s version increment", kind), source)
}

// History returns the document's version history, oldest first.
func (m *Manager) History() ([]config.VersionEntry, error) {
	current, err := m.Current()
	if err != nil {
		return nil, err
	}
	return current.VersionHistory, nil
}

// ArchiveCurrent archives the current document if its version is not yet
// in the archive. It reports whether a revision was added.
func (m *Manager) ArchiveCurrent(source Source) (bool, error) {
	if m.repo == nil {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.Current()
	if err != nil {
		return false, err
	}
	if current.Version == "" {
		return false, nil
	}
	if _, err := m.repo.Get(current.Version); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return false, err
	}
	if _, err := m.repo.Archive(current, source); err != nil {
		return false, err
	}
	return true, nil
}

// Revisions lists archived revisions, newest first.
func (m *Manager) Revisions() ([]*Revision, error) {
	if m.repo == nil {
		return nil, nil
	}
	return m.repo.List()
}

// Restore saves an archived version's content as a new patch version.
func (m *Manager) Restore(version string, source Source) (*config.Config, error) {
	if m.repo == nil {
		return nil, fmt.Errorf("no revision archive configured")
	}
	rev, err := m.repo.Get(version)
	if err != nil {
		return nil, err
	}
	old, err := rev.Config()
	if err != nil {
		return nil, err
	}
	return m.Save(old, config.BumpPatch, "Restored version "+version, source)
}

func (m *Manager) commit(doc *config.Config, kind, changes string, source Source) (*config.Config, error) {
	if _, err := config.Bump(doc, kind, changes, m.now()); err != nil {
		return nil, err
	}
	if err := config.Save(m.path, doc); err != nil {
		return nil, err
	}
	if m.repo != nil {
		if _, err := m.repo.Archive(doc, source); err != nil {
			return nil, fmt.Errorf("archiving version %s: %w", doc.Version, err)
		}
	}
	return doc, nil
}
