// Package layers contains the pluggable registry of feature layers the
// mirror watches, declared in YAML/JSON config files.
package layers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	defaultIDField = "objectid"
	defaultWhere   = "1=1"
)

// configFile represents the structure of the layers configuration file.
type configFile struct {
	Layers []LayerConfig `json:"layers" yaml:"layers"`
}

// LayerConfig represents a single layer entry declared in config files.
type LayerConfig struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	URL     string `json:"url" yaml:"url"`
	IDField string `json:"id_field" yaml:"id_field"`
	Token   string `json:"token" yaml:"token"`
	Where   string `json:"where" yaml:"where"`
	Enabled *bool  `json:"enabled" yaml:"enabled"`
}

// Registry materializes layer definitions loaded from config files.
type Registry struct {
	mu     sync.RWMutex
	layers []LayerConfig
	idx    map[string]LayerConfig
}

// LoadRegistry loads the layer registry from a YAML/JSON file.
func LoadRegistry(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("layers file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open layers file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read layers file: %w", err)
	}

	fileReg, err := parseRegistry(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(fileReg.Layers) == 0 {
		return nil, errors.New("layers file contains no layers entries")
	}

	reg := &Registry{
		layers: make([]LayerConfig, len(fileReg.Layers)),
		idx:    make(map[string]LayerConfig, len(fileReg.Layers)),
	}

	for i := range fileReg.Layers {
		cfg := sanitizeLayerConfig(fileReg.Layers[i])
		if err := validateLayerConfig(cfg); err != nil {
			return nil, fmt.Errorf("layers[%d]: %w", i, err)
		}
		if _, exists := reg.idx[cfg.ID]; exists {
			return nil, fmt.Errorf("duplicate layer id %q", cfg.ID)
		}
		reg.layers[i] = cfg
		reg.idx[cfg.ID] = cfg
	}

	return reg, nil
}

// parseRegistry attempts to decode the layers file content.
func parseRegistry(data []byte, ext string) (configFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var reg configFile
		if err := d.fn(data, &reg); err == nil {
			return reg, nil
		}
	}

	return configFile{}, errors.New("layers file format not recognized (expected YAML or JSON)")
}

// sanitizeLayerConfig trims and defaults the layer config fields.
func sanitizeLayerConfig(cfg LayerConfig) LayerConfig {
	cfg.ID = strings.TrimSpace(cfg.ID)
	cfg.Name = strings.TrimSpace(cfg.Name)
	cfg.URL = strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	cfg.IDField = strings.TrimSpace(cfg.IDField)
	cfg.Token = strings.TrimSpace(cfg.Token)
	cfg.Where = strings.TrimSpace(cfg.Where)

	if cfg.IDField == "" {
		cfg.IDField = defaultIDField
	}
	if cfg.Where == "" {
		cfg.Where = defaultWhere
	}
	if cfg.Name == "" {
		cfg.Name = cfg.ID
	}
	if cfg.Enabled == nil {
		def := true
		cfg.Enabled = &def
	}
	return cfg
}

// validateLayerConfig checks that required fields are present.
func validateLayerConfig(cfg LayerConfig) error {
	if cfg.ID == "" {
		return errors.New("id is required")
	}
	if cfg.URL == "" {
		return fmt.Errorf("url is required for layer %q", cfg.ID)
	}
	return nil
}

// ByID returns the layer config by id.
func (r *Registry) ByID(id string) (LayerConfig, bool) {
	if r == nil {
		return LayerConfig{}, false
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return LayerConfig{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.idx[id]
	return cfg, ok
}

// All returns all configured layers.
func (r *Registry) All() []LayerConfig {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]LayerConfig, len(r.layers))
	copy(out, r.layers)
	return out
}

// Enabled returns layers that are enabled.
func (r *Registry) Enabled() []LayerConfig {
	all := r.All()
	if len(all) == 0 {
		return nil
	}

	out := make([]LayerConfig, 0, len(all))
	for _, cfg := range all {
		if cfg.EnabledValue() {
			out = append(out, cfg)
		}
	}
	return out
}

// EnabledValue returns the enabled flag defaulting to true.
func (cfg LayerConfig) EnabledValue() bool {
	if cfg.Enabled == nil {
		return true
	}
	return *cfg.Enabled
}
