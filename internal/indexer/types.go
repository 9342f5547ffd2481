package indexer

import (
	"path/filepath"
	"strings"
)

// Language represents a programming language.
type Language string

const (
	LangGo         Language = "go"
	LangTypeScript Language = "ts"
	LangJavaScript Language = "js"
	LangPython     Language = "python"
	LangRust       Language = "rust"
	LangJava       Language = "java"
	LangC          Language = "c"
	LangCPP        Language = "cpp"
	LangMarkdown   Language = "markdown"
	LangJSON       Language = "json"
	LangYAML       Language = "yaml"
)

// SymbolKind classifies a symbol. The set is closed; parsers must not
// invent new kinds.
type SymbolKind string

const (
	KindFunction SymbolKind = "function"
	KindMethod   SymbolKind = "method"
	KindClass    SymbolKind = "class"
	KindType     SymbolKind = "type"
	KindVariable SymbolKind = "variable"
	KindConstant SymbolKind = "constant"
	KindSection  SymbolKind = "section" // markdown headings
)

// ValidKind reports whether k is one of the known symbol kinds.
func ValidKind(k SymbolKind) bool {
	switch k {
	case KindFunction, KindMethod, KindClass, KindType, KindVariable, KindConstant, KindSection:
		return true
	}
	return false
}

// Symbol is a single named declaration extracted from a source file.
// Symbols are owned by their SourceFile and never shared across snapshots.
type Symbol struct {
	Name      string     `json:"name"`
	Kind      SymbolKind `json:"kind"`
	FilePath  string     `json:"file_path"`
	StartLine int        `json:"start_line"` // 1-indexed
	EndLine   int        `json:"end_line"`   // inclusive
	Signature string     `json:"signature,omitempty"`
}

// SourceFile is one scanned file with its extracted symbols.
// Immutable once captured for a given build.
type SourceFile struct {
	Path      string   `json:"path"` // relative to workspace root
	Lang      Language `json:"lang"`
	Hash      string   `json:"hash"`
	SizeBytes int64    `json:"size_bytes"`
	MtimeUnix int64    `json:"mtime_unix"`
	Symbols   []Symbol `json:"symbols"`
}

// LanguageDetector defines how to detect file languages.
type LanguageDetector interface {
	Detect(path string) Language
}

// DefaultLanguageDetector detects language from file extension.
type DefaultLanguageDetector struct {
	extMap map[string]Language
}

// NewDefaultLanguageDetector creates a new default language detector.
func NewDefaultLanguageDetector() *DefaultLanguageDetector {
	return &DefaultLanguageDetector{
		extMap: map[string]Language{
			".go":   LangGo,
			".ts":   LangTypeScript,
			".tsx":  LangTypeScript,
			".js":   LangJavaScript,
			".jsx":  LangJavaScript,
			".py":   LangPython,
			".rs":   LangRust,
			".java": LangJava,
			".c":    LangC,
			".h":    LangC,
			".cpp":  LangCPP,
			".cc":   LangCPP,
			".hpp":  LangCPP,
			".md":   LangMarkdown,
			".json": LangJSON,
			".yaml": LangYAML,
			".yml":  LangYAML,
		},
	}
}

// Detect detects language from file extension.
func (d *DefaultLanguageDetector) Detect(path string) Language {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := d.extMap[ext]; ok {
		return lang
	}
	return ""
}
