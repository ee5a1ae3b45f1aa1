// ABOUTME: Saved launch configuration presets persisted to a TOML file
// ABOUTME: Keeps the 50 most recent presets, newest first

package webconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

// MaxPresets caps how many saved configurations are retained.
const MaxPresets = 50

// Preset is one saved launch configuration.
type Preset struct {
	Name          string `toml:"name" json:"name"`
	RepositoryURL string `toml:"repository_url" json:"repository_url"`
	Branch        string `toml:"branch" json:"branch"`
	Model         string `toml:"model" json:"model"`
	Prompt        string `toml:"prompt" json:"prompt"`
	SavedAt       string `toml:"saved_at" json:"saved_at"`
}

// presetFile is the on-disk TOML document shape.
type presetFile struct {
	Presets []Preset `toml:"presets"`
}

// PresetStore persists presets to a TOML file. All operations are
// serialized; the file is rewritten atomically on every save.
type PresetStore struct {
	mu      sync.Mutex
	path    string
	presets []Preset
	now     func() time.Time
}

// NewPresetStore opens (or lazily creates) the preset file at path.
func NewPresetStore(path string) (*PresetStore, error) {
	s := &PresetStore{path: path, now: time.Now}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("reading presets file: %w", err)
	}

	var doc presetFile
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing presets file: %w", err)
	}
	s.presets = doc.Presets
	return s, nil
}

// List returns the saved presets, newest first.
func (s *PresetStore) List() []Preset {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Preset, len(s.presets))
	copy(out, s.presets)
	return out
}

// Save prepends a preset, trims to MaxPresets, and rewrites the file.
func (s *PresetStore) Save(p Preset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.SavedAt == "" {
		p.SavedAt = s.now().UTC().Format(time.RFC3339)
	}

	s.presets = append([]Preset{p}, s.presets...)
	if len(s.presets) > MaxPresets {
		s.presets = s.presets[:MaxPresets]
	}

	return s.flush()
}

// flush writes the preset list to disk via a temp file rename.
// Caller must hold the lock.
func (s *PresetStore) flush() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating presets directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".presets-*.toml")
	if err != nil {
		return fmt.Errorf("creating temp presets file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := toml.NewEncoder(tmp).Encode(presetFile{Presets: s.presets}); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding presets: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp presets file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing presets file: %w", err)
	}
	return nil
}
