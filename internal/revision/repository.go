package revision

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/evcraddock/visitor-kiosk/internal/config"
)

// ErrNotFound is returned when no revision has the requested version.
var ErrNotFound = errors.New("revision not found")

// Repository stores configuration revisions.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a revision repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const selectColumns = "id, version, changes, source, document, created_at"

// Add archives a document under version.
func (r *Repository) Add(version, changes string, source Source, document string) (*Revision, error) {
	if version == "" {
		return nil, fmt.Errorf("version is required")
	}
	if !source.IsValid() {
		return nil, fmt.Errorf("invalid revision source: %q", source)
	}

	result, err := r.db.Exec(
		"INSERT INTO config_revisions (version, changes, source, document) VALUES (?, ?, ?, ?)",
		version, changes, source, document,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting revision: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting insert id: %w", err)
	}

	return r.scanOne("SELECT "+selectColumns+" FROM config_revisions WHERE id = ?", id)
}

// Archive stores cfg under its current version, using the latest history
// entry as the change note.
func (r *Repository) Archive(cfg *config.Config, source Source) (*Revision, error) {
	doc, err := config.Marshal("config.yaml", cfg)
	if err != nil {
		return nil, err
	}
	changes := ""
	if n := len(cfg.VersionHistory); n > 0 {
		changes = cfg.VersionHistory[n-1].Changes
	}
	return r.Add(cfg.Version, changes, source, string(doc))
}

// Get returns the revision with the given version.
func (r *Repository) Get(version string) (*Revision, error) {
	rev, err := r.scanOne("SELECT "+selectColumns+" FROM config_revisions WHERE version = ?", version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, version)
	}
	return rev, err
}

// Latest returns the most recently archived revision.
func (r *Repository) Latest() (*Revision, error) {
	rev, err := r.scanOne("SELECT " + selectColumns + " FROM config_revisions ORDER BY id DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rev, err
}

// List returns all revisions newest first, without their documents.
func (r *Repository) List() (revs []*Revision, err error) {
	rows, err := r.db.Query(
		"SELECT id, version, changes, source, created_at FROM config_revisions ORDER BY id DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("listing revisions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	for rows.Next() {
		var rev Revision
		if err := rows.Scan(&rev.ID, &rev.Version, &rev.Changes, &rev.Source, &rev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning revision: %w", err)
		}
		revs = append(revs, &rev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating revisions: %w", err)
	}

	return revs, nil
}

func (r *Repository) scanOne(query string, args ...any) (*Revision, error) {
	var rev Revision
	err := r.db.QueryRow(query, args...).Scan(
		&rev.ID, &rev.Version, &rev.Changes, &rev.Source, &rev.Document, &rev.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("reading revision: %w", err)
	}
	return &rev, nil
}
