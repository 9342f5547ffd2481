package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// writeFile creates a file under root, creating parent dirs as needed.
func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestScanner_Scan(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n\nfunc main() {}\n")
	writeFile(t, root, "lib/util.go", "package lib\n\nfunc Add(a, b int) int { return a + b }\n")
	writeFile(t, root, "node_modules/dep/index.js", "function ignored() {}\n")
	writeFile(t, root, "image.png", "not indexable")

	scanner := NewScanner(root, ScannerConfig{})
	output, err := scanner.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if len(output.Files) != 2 {
		t.Fatalf("Got %d files, want 2: %+v", len(output.Files), output.Files)
	}
	// Output is sorted by path.
	if output.Files[0].Path != "lib/util.go" || output.Files[1].Path != "main.go" {
		t.Errorf("File order = [%s, %s], want [lib/util.go, main.go]", output.Files[0].Path, output.Files[1].Path)
	}
	if len(output.Files[0].Symbols) != 1 || output.Files[0].Symbols[0].Name != "Add" {
		t.Errorf("lib/util.go symbols = %+v, want [Add]", output.Files[0].Symbols)
	}
	if output.Files[1].Hash == "" {
		t.Error("main.go hash is empty")
	}
	if len(output.Warnings) != 0 {
		t.Errorf("Got %d warnings, want 0: %v", len(output.Warnings), output.Warnings)
	}
}

func TestScanner_GitignorePatterns(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "generated/\n*.tmp.go\n")
	writeFile(t, root, "main.go", "package main\n")
	writeFile(t, root, "extra.tmp.go", "package main\n")
	writeFile(t, root, "generated/gen.go", "package generated\n")

	scanner := NewScanner(root, ScannerConfig{})
	output, err := scanner.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if len(output.Files) != 1 || output.Files[0].Path != "main.go" {
		t.Errorf("Files = %+v, want only main.go", output.Files)
	}
}

func TestScanner_ExtraIgnorePatterns(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.go", "package main\n")
	writeFile(t, root, "skip.go", "package main\n")

	scanner := NewScanner(root, ScannerConfig{IgnorePatterns: []string{"skip.go"}})
	output, err := scanner.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if len(output.Files) != 1 || output.Files[0].Path != "keep.go" {
		t.Errorf("Files = %+v, want only keep.go", output.Files)
	}
}

func TestScanner_UnparsableFileIsWarning(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "good.go", "package main\n\nfunc OK() {}\n")
	writeFile(t, root, "broken.go", "package {{{\n")

	scanner := NewScanner(root, ScannerConfig{})
	output, err := scanner.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if len(output.Files) != 2 {
		t.Fatalf("Got %d files, want 2 (unparsable file still included)", len(output.Files))
	}
	if len(output.Warnings) != 1 {
		t.Fatalf("Got %d warnings, want 1: %v", len(output.Warnings), output.Warnings)
	}
	if output.Warnings[0].Path != "broken.go" {
		t.Errorf("Warning path = %s, want broken.go", output.Warnings[0].Path)
	}

	broken, ok := findFile(output.Files, "broken.go")
	if !ok {
		t.Fatal("broken.go missing from scan output")
	}
	if len(broken.Symbols) != 0 {
		t.Errorf("broken.go has %d symbols, want 0", len(broken.Symbols))
	}
	if broken.Hash == "" {
		t.Error("broken.go hash is empty; file should still be captured")
	}
}

func TestScanner_MissingRoot(t *testing.T) {
	scanner := NewScanner(filepath.Join(t.TempDir(), "does-not-exist"), ScannerConfig{})

	_, err := scanner.Scan(context.Background())
	var scanErr *ScanError
	if !errors.As(err, &scanErr) {
		t.Fatalf("Scan() error = %v, want *ScanError", err)
	}
}

func TestScanner_RootIsFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "afile", "x")

	scanner := NewScanner(filepath.Join(root, "afile"), ScannerConfig{})
	_, err := scanner.Scan(context.Background())
	var scanErr *ScanError
	if !errors.As(err, &scanErr) {
		t.Fatalf("Scan() error = %v, want *ScanError", err)
	}
}

func TestScanner_Canceled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scanner := NewScanner(root, ScannerConfig{})
	_, err := scanner.Scan(ctx)
	var scanErr *ScanError
	if !errors.As(err, &scanErr) {
		t.Fatalf("Scan() error = %v, want *ScanError", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Scan() error does not wrap context.Canceled: %v", err)
	}
}

func TestScanner_ProgressCallbacks(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n\nfunc A() {}\n")
	writeFile(t, root, "b.go", "package a\n\nfunc B() {}\n\nfunc C() {}\n")

	total := 0
	scanned := 0
	symbols := 0
	scanner := NewScanner(root, ScannerConfig{
		OnDiscover: func(n int) { total = n },
		OnFile: func(f *SourceFile) {
			scanned++
			symbols += len(f.Symbols)
		},
	})

	if _, err := scanner.Scan(context.Background()); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if total != 2 {
		t.Errorf("OnDiscover total = %d, want 2", total)
	}
	if scanned != 2 {
		t.Errorf("OnFile calls = %d, want 2", scanned)
	}
	if symbols != 3 {
		t.Errorf("Symbols via OnFile = %d, want 3", symbols)
	}
}

func TestScanner_MaxFileSize(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "small.go", "package main\n")
	writeFile(t, root, "big.go", "package main\n// "+string(make([]byte, 2048))+"\n")

	scanner := NewScanner(root, ScannerConfig{MaxFileSize: 1024})
	output, err := scanner.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if len(output.Files) != 1 || output.Files[0].Path != "small.go" {
		t.Errorf("Files = %+v, want only small.go", output.Files)
	}
	if len(output.Warnings) != 1 {
		t.Errorf("Got %d warnings, want 1 for oversized file", len(output.Warnings))
	}
}

func findFile(files []SourceFile, path string) (*SourceFile, bool) {
	for i := range files {
		if files[i].Path == path {
			return &files[i], true
		}
	}
	return nil, false
}
