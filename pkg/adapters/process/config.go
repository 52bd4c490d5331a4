package process

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ProcessConfig describes an external command exposed as a tool.
type ProcessConfig struct {
	Name        string            `yaml:"name" json:"name"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`
	Description string            `yaml:"description" json:"description"`
	// Parameters uses the registry declaration syntax, e.g. {"path": "string", "limit": "int?"}.
	Parameters map[string]string `yaml:"parameters" json:"parameters"`
	Timeout    time.Duration     `yaml:"timeout" json:"timeout"`
}

// ConfigFile represents the structure of tools.yaml
type ConfigFile struct {
	Tools []ProcessConfig `yaml:"tools" json:"tools"`
}

// LoadTools reads a tools file (YAML, or JSON by extension). A missing file
// means no tools are configured.
func LoadTools(path string) ([]ProcessConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read tools config: %w", err)
	}
	return ParseTools(data, strings.ToLower(filepath.Ext(path)) == ".json")
}

// ParseTools decodes a tools document and checks every entry.
func ParseTools(data []byte, isJSON bool) ([]ProcessConfig, error) {
	var cfg ConfigFile
	if isJSON {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse tools.json: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse tools.yaml: %w", err)
		}
	}

	seen := make(map[string]bool, len(cfg.Tools))
	var errs []error
	for i, tool := range cfg.Tools {
		switch {
		case tool.Name == "":
			errs = append(errs, fmt.Errorf("tool %d: missing name", i))
		case tool.Command == "":
			errs = append(errs, fmt.Errorf("tool %s: missing command", tool.Name))
		case seen[tool.Name]:
			errs = append(errs, fmt.Errorf("tool %s: defined twice", tool.Name))
		}
		seen[tool.Name] = true
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg.Tools, nil
}
