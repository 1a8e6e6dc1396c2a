package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Common error messages
const (
	ErrPresetNotFound      = "preset '%s' not found"
	ErrNoPresets           = "no presets available, please add a preset first"
	ErrCannotDeleteCurrent = "cannot delete the currently active preset, please switch to another preset first"
)

// Preset is a named bundle of muxing options. Duration fields are stored
// as strings ("1s", "500ms") so the file stays hand-editable.
type Preset struct {
	DocType            string `toml:"doctype,omitempty"`
	MinClusterDuration string `toml:"min_cluster_duration,omitempty"`
	WritingApp         string `toml:"writing_app,omitempty"`
	Language           string `toml:"language,omitempty"`
}

// presetConfig is the on-disk layout of the preset file.
type presetConfig struct {
	Current string            `toml:"current,omitempty"`
	Presets map[string]Preset `toml:"presets"`
}

// PresetManager manages the preset file.
type PresetManager struct {
	config presetConfig
	path   string
}

// NewPresetManager creates a manager bound to the configured preset path.
func NewPresetManager() *PresetManager {
	return &PresetManager{
		config: presetConfig{Presets: make(map[string]Preset)},
		path:   GetPresetPath(),
	}
}

// Load loads presets from file, creating an empty file on first use.
func (pm *PresetManager) Load() error {
	if _, err := os.Stat(pm.path); os.IsNotExist(err) {
		// File doesn't exist, create empty file
		return pm.Save()
	}

	data, err := os.ReadFile(pm.path)
	if err != nil {
		return fmt.Errorf("failed to read preset file: %v", err)
	}

	if len(data) == 0 {
		pm.config = presetConfig{Presets: make(map[string]Preset)}
		return nil
	}

	if err := toml.Unmarshal(data, &pm.config); err != nil {
		return fmt.Errorf("failed to parse preset file: %v", err)
	}

	if pm.config.Presets == nil {
		pm.config.Presets = make(map[string]Preset)
	}

	return nil
}

// Save saves presets to file.
func (pm *PresetManager) Save() error {
	if err := os.MkdirAll(filepath.Dir(pm.path), 0o755); err != nil {
		return fmt.Errorf("failed to create preset directory: %v", err)
	}

	data, err := toml.Marshal(pm.config)
	if err != nil {
		return fmt.Errorf("failed to serialize preset data: %v", err)
	}

	if err := os.WriteFile(pm.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write preset file: %v", err)
	}

	return nil
}

// Add stores a preset under the given name. The first preset added becomes
// current.
func (pm *PresetManager) Add(name string, p Preset) error {
	if name == "" {
		return errors.New("preset name is empty")
	}
	if err := p.Validate(); err != nil {
		return err
	}

	pm.config.Presets[name] = p
	if pm.config.Current == "" {
		pm.config.Current = name
	}
	return pm.Save()
}

// Use sets the current preset.
func (pm *PresetManager) Use(name string) error {
	if len(pm.config.Presets) == 0 {
		return errors.New(ErrNoPresets)
	}

	if _, exists := pm.config.Presets[name]; !exists {
		return fmt.Errorf(ErrPresetNotFound, name)
	}

	pm.config.Current = name
	return pm.Save()
}

// Remove removes the specified preset.
func (pm *PresetManager) Remove(name string) error {
	if _, exists := pm.config.Presets[name]; !exists {
		return fmt.Errorf(ErrPresetNotFound, name)
	}

	// Check if trying to delete current preset
	if name == pm.config.Current && len(pm.config.Presets) > 1 {
		return errors.New(ErrCannotDeleteCurrent)
	}

	delete(pm.config.Presets, name)

	if name == pm.config.Current {
		pm.config.Current = ""
	}

	return pm.Save()
}

// Get returns a copy of the named preset, or nil if it does not exist.
func (pm *PresetManager) Get(name string) *Preset {
	if p, exists := pm.config.Presets[name]; exists {
		presetCopy := p
		return &presetCopy
	}
	return nil
}

// GetCurrent returns the current preset, or nil when none is set.
func (pm *PresetManager) GetCurrent() *Preset {
	if pm.config.Current == "" {
		return nil
	}
	return pm.Get(pm.config.Current)
}

// CurrentName returns the current preset name.
func (pm *PresetManager) CurrentName() string {
	return pm.config.Current
}

// Names returns all preset names in sorted order.
func (pm *PresetManager) Names() []string {
	names := make([]string, 0, len(pm.config.Presets))
	for name := range pm.config.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of presets.
func (pm *PresetManager) Count() int {
	return len(pm.config.Presets)
}

// Validate checks the preset's field values.
func (p *Preset) Validate() error {
	switch p.DocType {
	case "", "webm", "matroska":
	default:
		return fmt.Errorf("invalid doctype '%s' (expected webm or matroska)", p.DocType)
	}

	if p.MinClusterDuration != "" {
		if _, err := time.ParseDuration(p.MinClusterDuration); err != nil {
			return fmt.Errorf("invalid min_cluster_duration: %v", err)
		}
	}

	return nil
}

// MinCluster returns the parsed minimum cluster duration, zero when unset.
func (p *Preset) MinCluster() time.Duration {
	if p.MinClusterDuration == "" {
		return 0
	}
	d, err := time.ParseDuration(p.MinClusterDuration)
	if err != nil {
		return 0
	}
	return d
}
