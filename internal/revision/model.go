// Package revision archives every saved version of the kiosk configuration
// document so earlier versions can be listed and restored.
package revision

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/evcraddock/visitor-kiosk/internal/config"
)

// Source records where a revision was saved from.
type Source string

const (
	SourceCLI Source = "cli"
	SourceWeb Source = "web"
)

// IsValid checks if a source is recognized.
func (s Source) IsValid() bool {
	return s == SourceCLI || s == SourceWeb
}

// Revision is one archived configuration document.
type Revision struct {
	ID        int64     `json:"id"`
	Version   string    `json:"version"`
	Changes   string    `json:"changes"`
	Source    Source    `json:"source"`
	Document  string    `json:"document,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Config decodes the archived document.
func (r *Revision) Config() (*config.Config, error) {
	var cfg config.Config
	if err := yaml.Unmarshal([]byte(r.Document), &cfg); err != nil {
		return nil, fmt.Errorf("decoding revision %s: %w", r.Version, err)
	}
	return &cfg, nil
}
