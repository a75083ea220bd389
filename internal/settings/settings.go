// Package settings persists user preferences in a small JSON file next to the
// journal stores.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"coffeetime/internal/models"

	"github.com/rs/zerolog/log"
)

// FileName is the preferences file inside the data directory.
const FileName = "preferences.json"

type fileData struct {
	Appearance    string `json:"appearance"`
	FreshLocation string `json:"freshLocation,omitempty"`
}

// Settings is the loaded preferences file. It is safe for concurrent use.
type Settings struct {
	path string

	mu   sync.RWMutex
	data fileData
}

// Load reads the preferences under dataDir. A missing file yields defaults;
// an unreadable one is logged and also yields defaults.
func Load(dataDir string) *Settings {
	s := &Settings{path: filepath.Join(dataDir, FileName)}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("path", s.path).Msg("Failed to read preferences, using defaults")
		}
		return s
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("Malformed preferences file, using defaults")
		s.data = fileData{}
	}
	return s
}

// Path returns the preferences file location.
func (s *Settings) Path() string {
	return s.path
}

// Appearance returns the stored theme. Unknown values read back as system.
func (s *Settings) Appearance() models.Appearance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := models.ParseAppearance(s.data.Appearance); ok {
		return a
	}
	return models.AppearanceSystem
}

// SetAppearance stores a new theme.
func (s *Settings) SetAppearance(a models.Appearance) error {
	if _, ok := models.ParseAppearance(string(a)); !ok {
		return fmt.Errorf("unknown appearance %q", a)
	}
	return s.update(func(d *fileData) { d.Appearance = string(a) })
}

// FreshLocation returns the fresh store remembered from an earlier run.
func (s *Settings) FreshLocation() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.FreshLocation
}

// SetFreshLocation remembers the fresh store so the next start reopens it.
// An empty location forgets it.
func (s *Settings) SetFreshLocation(path string) error {
	return s.update(func(d *fileData) { d.FreshLocation = path })
}

func (s *Settings) update(fn func(*fileData)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.data
	fn(&next)
	if err := s.write(next); err != nil {
		return err
	}
	s.data = next
	return nil
}

func (s *Settings) write(d fileData) error {
	raw, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	return nil
}
