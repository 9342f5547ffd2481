package project

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_Missing(t *testing.T) {
	root := t.TempDir()

	cfg, err := LoadConfig(root)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg != nil {
		t.Errorf("Expected nil config for missing file, got %+v", cfg)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	root := t.TempDir()

	want := &Config{
		IgnorePatterns:   []string{"*.gen.go", "testdata"},
		MaxFileSizeBytes: 1 << 20,
		DisableWatcher:   true,
	}
	if err := SaveConfig(root, want); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}

	if !ConfigExists(root) {
		t.Fatal("ConfigExists() = false after save")
	}

	got, err := LoadConfig(root)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if got == nil {
		t.Fatal("LoadConfig() returned nil config")
	}
	if len(got.IgnorePatterns) != 2 || got.IgnorePatterns[0] != "*.gen.go" {
		t.Errorf("IgnorePatterns = %v, want %v", got.IgnorePatterns, want.IgnorePatterns)
	}
	if got.MaxFileSizeBytes != want.MaxFileSizeBytes {
		t.Errorf("MaxFileSizeBytes = %d, want %d", got.MaxFileSizeBytes, want.MaxFileSizeBytes)
	}
	if !got.DisableWatcher {
		t.Error("DisableWatcher = false, want true")
	}
}

func TestLoadConfig_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown field", `{"ignored": true}`},
		{"wrong type", `{"max_file_size_bytes": "big"}`},
		{"negative size", `{"max_file_size_bytes": -1}`},
		{"empty pattern", `{"ignore_patterns": [""]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			if err := os.MkdirAll(filepath.Join(root, AdiDir), 0755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(filepath.Join(root, AdiDir, ConfigFile), []byte(tt.body), 0644); err != nil {
				t.Fatal(err)
			}

			if _, err := LoadConfig(root); err == nil {
				t.Errorf("LoadConfig() accepted invalid config %q", tt.body)
			}
		})
	}
}
