package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Version bump kinds.
const (
	BumpMajor = "major"
	BumpMinor = "minor"
	BumpPatch = "patch"
)

const defaultChanges = "Configuration update"

// IncrementVersion bumps a major.minor.patch version string. Missing
// components count as zero.
func IncrementVersion(version, kind string) (string, error) {
	if version == "" {
		version = "0.0.0"
	}
	parts := strings.Split(version, ".")
	if len(parts) > 3 {
		return "", fmt.Errorf("invalid version %q", version)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return "", fmt.Errorf("invalid version %q", version)
		}
		nums[i] = n
	}

	switch kind {
	case BumpMajor:
		nums[0]++
		nums[1], nums[2] = 0, 0
	case BumpMinor:
		nums[1]++
		nums[2] = 0
	case BumpPatch, "":
		nums[2]++
	default:
		return "", fmt.Errorf("invalid bump kind %q: must be major, minor or patch", kind)
	}

	return fmt.Sprintf("%d.%d.%d", nums[0], nums[1], nums[2]), nil
}

// Bump moves cfg to the next version and records the change in its
// history. It returns the new version.
func Bump(cfg *Config, kind, changes string, now time.Time) (string, error) {
	next, err := IncrementVersion(cfg.Version, kind)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(changes) == "" {
		changes = defaultChanges
	}
	cfg.Version = next
	cfg.VersionHistory = append(cfg.VersionHistory, VersionEntry{
		Version:   next,
		Timestamp: now.UTC().Format(time.RFC3339),
		Changes:   changes,
	})
	return next, nil
}

// Marshal encodes cfg as JSON when path ends in .json and YAML otherwise.
func Marshal(path string, cfg *Config) ([]byte, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, errors.Wrap(err, "encode config")
		}
		return append(data, '\n'), nil
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "encode config")
	}
	return data, nil
}

// Save writes cfg to path, replacing the file atomically.
func Save(path string, cfg *Config) error {
	data, err := Marshal(path, cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*")
	if err != nil {
		return errors.Wrap(err, "create temp config")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write config")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close config")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, "replace config")
	}
	return nil
}
