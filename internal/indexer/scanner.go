package indexer

import (
	"bufio"
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	gitignore "github.com/sabhiram/go-gitignore"
)

// DefaultIgnorePatterns are common directories and files to skip.
var DefaultIgnorePatterns = []string{
	".git",
	".adi",
	"node_modules",
	"dist",
	"build",
	"vendor",
	"__pycache__",
	"coverage",
	".next",
	".cache",
	"target",
	"bin",
	"obj",
	".idea",
	".vscode",
	".DS_Store",
}

// ScannerConfig configures scan behavior.
type ScannerConfig struct {
	// MaxConcurrency limits parallel file processing. Default: 4
	MaxConcurrency int
	// IgnorePatterns are extra glob patterns applied to relative paths,
	// on top of DefaultIgnorePatterns and the workspace .gitignore files.
	IgnorePatterns []string
	// MaxFileSize skips files larger than this many bytes. Default: 1 MiB
	MaxFileSize int64
	// LanguageDetector for custom language detection. Default: DefaultLanguageDetector
	LanguageDetector LanguageDetector
	// Parser extracts symbols per file. Default: DefaultParser
	Parser SymbolParser
	// OnDiscover, if set, is called once with the number of candidate files.
	OnDiscover func(total int)
	// OnFile, if set, is called after each file is captured.
	OnFile func(file *SourceFile)
}

// ScanOutput contains the results of one workspace scan.
type ScanOutput struct {
	Files    []SourceFile // sorted by path
	Warnings []ScanWarning
}

// Scanner walks a workspace root and captures indexable source files.
// Each build creates a fresh scanner; a scan is finite and restartable.
type Scanner struct {
	root          string
	config        ScannerConfig
	ignoreMatcher gitignore.IgnoreParser
	langDetector  LanguageDetector
	parser        SymbolParser
}

// NewScanner creates a scanner for the given workspace root.
func NewScanner(root string, config ScannerConfig) *Scanner {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.MaxFileSize <= 0 {
		config.MaxFileSize = 1 << 20
	}
	if config.LanguageDetector == nil {
		config.LanguageDetector = NewDefaultLanguageDetector()
	}
	if config.Parser == nil {
		config.Parser = NewDefaultParser()
	}

	s := &Scanner{
		root:         root,
		config:       config,
		langDetector: config.LanguageDetector,
		parser:       config.Parser,
	}

	allPatterns := make([]string, 0, len(DefaultIgnorePatterns)+len(config.IgnorePatterns))
	allPatterns = append(allPatterns, DefaultIgnorePatterns...)
	allPatterns = append(allPatterns, loadGitignorePatterns(root)...)
	allPatterns = append(allPatterns, config.IgnorePatterns...)
	s.ignoreMatcher = gitignore.CompileIgnoreLines(allPatterns...)

	return s
}

// Scan discovers candidate files and captures each with its symbols.
// Per-file problems become warnings; only root-level failures (root
// missing, unreadable, or context canceled) return a *ScanError.
func (s *Scanner) Scan(ctx context.Context) (*ScanOutput, error) {
	info, err := os.Stat(s.root)
	if err != nil {
		return nil, &ScanError{Root: s.root, Err: err}
	}
	if !info.IsDir() {
		return nil, &ScanError{Root: s.root, Err: fmt.Errorf("not a directory")}
	}

	// Phase 1: enumerate candidate paths so progress has a known total.
	paths, warnings, err := s.discover(ctx)
	if err != nil {
		return nil, err
	}
	if s.config.OnDiscover != nil {
		s.config.OnDiscover(len(paths))
	}

	// Phase 2: worker pool captures file metadata and symbols.
	pathChan := make(chan string, 100)
	resultChan := make(chan SourceFile, 100)
	warnChan := make(chan ScanWarning, 100)

	var wg sync.WaitGroup
	for i := 0; i < s.config.MaxConcurrency; i++ {
		wg.Add(1)
		go s.fileProcessor(ctx, pathChan, resultChan, warnChan, &wg)
	}

	var files []SourceFile
	collectDone := make(chan struct{})
	go func() {
		defer close(collectDone)
		rc, wc := resultChan, warnChan
		for rc != nil || wc != nil {
			select {
			case f, ok := <-rc:
				if !ok {
					rc = nil
					continue
				}
				files = append(files, f)
				if s.config.OnFile != nil {
					s.config.OnFile(&f)
				}
			case w, ok := <-wc:
				if !ok {
					wc = nil
					continue
				}
				warnings = append(warnings, w)
			}
		}
	}()

feed:
	for _, p := range paths {
		select {
		case pathChan <- p:
		case <-ctx.Done():
			break feed
		}
	}
	close(pathChan)
	wg.Wait()
	close(resultChan)
	close(warnChan)
	<-collectDone

	if err := ctx.Err(); err != nil {
		return nil, &ScanError{Root: s.root, Err: err}
	}

	// Deterministic output order regardless of worker scheduling.
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	return &ScanOutput{Files: files, Warnings: warnings}, nil
}

// discover walks the tree and returns relative paths of candidate files.
func (s *Scanner) discover(ctx context.Context) ([]string, []ScanWarning, error) {
	var paths []string
	var warnings []ScanWarning

	walkErr := filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == s.root {
				return err
			}
			warnings = append(warnings, ScanWarning{Path: path, Err: err})
			return nil
		}

		relPath, err := filepath.Rel(s.root, path)
		if err != nil {
			warnings = append(warnings, ScanWarning{Path: path, Err: err})
			return nil
		}
		if relPath == "." {
			return nil
		}

		if s.ignoreMatcher.MatchesPath(relPath) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() || d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		if s.langDetector.Detect(path) == "" {
			return nil
		}

		paths = append(paths, relPath)
		return nil
	})

	if walkErr != nil {
		return nil, nil, &ScanError{Root: s.root, Err: walkErr}
	}
	return paths, warnings, nil
}

// fileProcessor captures files from the path channel.
func (s *Scanner) fileProcessor(ctx context.Context, pathChan <-chan string, resultChan chan<- SourceFile, warnChan chan<- ScanWarning, wg *sync.WaitGroup) {
	defer wg.Done()

	for relPath := range pathChan {
		if ctx.Err() != nil {
			return
		}

		file, warn := s.captureFile(ctx, relPath)
		if warn != nil {
			warnChan <- *warn
		}
		if file != nil {
			resultChan <- *file
		}
	}
}

// captureFile reads one file and extracts its symbols. A parse or read
// failure yields a warning alongside a file record with zero symbols.
func (s *Scanner) captureFile(ctx context.Context, relPath string) (*SourceFile, *ScanWarning) {
	fullPath := filepath.Join(s.root, relPath)

	stat, err := os.Stat(fullPath)
	if err != nil {
		return nil, &ScanWarning{Path: relPath, Err: fmt.Errorf("failed to stat file: %w", err)}
	}
	if stat.Size() > s.config.MaxFileSize {
		return nil, &ScanWarning{Path: relPath, Err: fmt.Errorf("file too large (%d bytes)", stat.Size())}
	}

	lang := s.langDetector.Detect(relPath)
	file := &SourceFile{
		Path:      relPath,
		Lang:      lang,
		SizeBytes: stat.Size(),
		MtimeUnix: stat.ModTime().Unix(),
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		return file, &ScanWarning{Path: relPath, Err: fmt.Errorf("failed to read file: %w", err)}
	}
	file.Hash = fmt.Sprintf("%x", sha256.Sum256(content))

	symbols, err := s.parser.Parse(ctx, relPath, lang, content)
	if err != nil {
		return file, &ScanWarning{Path: relPath, Err: err}
	}
	file.Symbols = symbols

	return file, nil
}

// loadGitignorePatterns loads patterns from .gitignore files in the root.
func loadGitignorePatterns(root string) []string {
	var patterns []string

	rootGitignore := filepath.Join(root, ".gitignore")
	if lines, err := readGitignoreLines(rootGitignore); err == nil {
		patterns = append(patterns, lines...)
	}

	filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || d.Name() != ".gitignore" || path == rootGitignore {
			return nil
		}
		if lines, err := readGitignoreLines(path); err == nil {
			patterns = append(patterns, lines...)
		}
		return nil
	})

	return patterns
}

// readGitignoreLines reads patterns from a .gitignore file.
func readGitignoreLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return lines, nil
}
