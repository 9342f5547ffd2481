package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const (
	// AdiDir is the directory name for per-workspace configuration
	AdiDir = ".adi"
	// ConfigFile is the name of the workspace configuration file
	ConfigFile = "config.json"
)

// configSchema validates the workspace config file before it is used.
const configSchema = `{
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"ignore_patterns": {
			"type": "array",
			"items": { "type": "string", "minLength": 1 }
		},
		"max_file_size_bytes": {
			"type": "integer",
			"minimum": 1
		},
		"disable_watcher": {
			"type": "boolean"
		}
	}
}`

// Config holds per-workspace indexing settings.
type Config struct {
	// IgnorePatterns are extra glob patterns excluded from scans.
	IgnorePatterns []string `json:"ignore_patterns,omitempty"`
	// MaxFileSizeBytes skips files larger than this during scans.
	MaxFileSizeBytes int64 `json:"max_file_size_bytes,omitempty"`
	// DisableWatcher turns off the automatic rebuild watcher.
	DisableWatcher bool `json:"disable_watcher,omitempty"`
}

// configPath returns the full path to the workspace config file.
func configPath(root string) string {
	return filepath.Join(root, AdiDir, ConfigFile)
}

// ConfigExists checks if a workspace configuration file exists.
func ConfigExists(root string) bool {
	_, err := os.Stat(configPath(root))
	return !os.IsNotExist(err)
}

// LoadConfig reads and validates the workspace configuration.
// Returns nil and no error if the config file does not exist.
func LoadConfig(root string) (*Config, error) {
	path := configPath(root)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workspace config: %w", err)
	}

	if err := validateConfig(data); err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse workspace config: %w", err)
	}

	return &cfg, nil
}

// validateConfig checks the raw config document against the schema.
func validateConfig(data []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(configSchema)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("failed to validate workspace config: %w", err)
	}
	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return fmt.Errorf("invalid workspace config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// SaveConfig writes the workspace configuration to disk.
// Creates the .adi directory if it doesn't exist.
func SaveConfig(root string, cfg *Config) error {
	adiPath := filepath.Join(root, AdiDir)

	if err := os.MkdirAll(adiPath, 0755); err != nil {
		return fmt.Errorf("failed to create .adi directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal workspace config: %w", err)
	}

	if err := os.WriteFile(configPath(root), data, 0644); err != nil {
		return fmt.Errorf("failed to write workspace config: %w", err)
	}

	return nil
}
