package indexer

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"regexp"
	"strings"
)

// SymbolParser extracts symbol records from a source file. Implementations
// are language-aware and pluggable; a parse failure applies to the whole
// file and is recorded by the scanner as a warning.
type SymbolParser interface {
	// Parse returns the symbols declared in content, in source order.
	Parse(ctx context.Context, path string, lang Language, content []byte) ([]Symbol, error)
}

// DefaultParser provides basic symbol extraction for various languages.
type DefaultParser struct{}

// NewDefaultParser creates a new default parser.
func NewDefaultParser() *DefaultParser {
	return &DefaultParser{}
}

// Parse extracts symbols based on language.
func (p *DefaultParser) Parse(ctx context.Context, path string, lang Language, content []byte) ([]Symbol, error) {
	switch lang {
	case LangGo:
		return p.parseGo(path, content)
	case LangPython:
		return p.parsePython(path, content)
	case LangTypeScript, LangJavaScript:
		return p.parseJavaScript(path, content)
	case LangMarkdown:
		return p.parseMarkdown(path, content)
	default:
		// No symbol model for this language; the file is still indexed
		// by its text content.
		return nil, nil
	}
}

// parseGo uses Go's AST parser to extract top-level declarations.
func (p *DefaultParser) parseGo(path string, content []byte) ([]Symbol, error) {
	fset := token.NewFileSet()
	node, err := parser.ParseFile(fset, path, content, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("go parse failed: %w", err)
	}

	lines := strings.Split(string(content), "\n")
	var symbols []Symbol

	for _, decl := range node.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			startPos := fset.Position(d.Pos())
			endPos := fset.Position(d.End())

			name := d.Name.Name
			kind := KindFunction
			if d.Recv != nil && len(d.Recv.List) > 0 {
				recv := d.Recv.List[0].Type
				name = fmt.Sprintf("(%s).%s", formatType(recv), d.Name.Name)
				kind = KindMethod
			}

			symbols = append(symbols, Symbol{
				Name:      name,
				Kind:      kind,
				FilePath:  path,
				StartLine: startPos.Line,
				EndLine:   endPos.Line,
				Signature: lineAt(lines, startPos.Line),
			})

		case *ast.GenDecl:
			switch d.Tok {
			case token.TYPE:
				for _, spec := range d.Specs {
					ts, ok := spec.(*ast.TypeSpec)
					if !ok {
						continue
					}
					startPos := fset.Position(ts.Pos())
					endPos := fset.Position(ts.End())
					symbols = append(symbols, Symbol{
						Name:      ts.Name.Name,
						Kind:      KindType,
						FilePath:  path,
						StartLine: startPos.Line,
						EndLine:   endPos.Line,
						Signature: lineAt(lines, startPos.Line),
					})
				}
			case token.CONST, token.VAR:
				kind := KindConstant
				if d.Tok == token.VAR {
					kind = KindVariable
				}
				for _, spec := range d.Specs {
					vs, ok := spec.(*ast.ValueSpec)
					if !ok {
						continue
					}
					for _, ident := range vs.Names {
						if ident.Name == "_" {
							continue
						}
						pos := fset.Position(ident.Pos())
						symbols = append(symbols, Symbol{
							Name:      ident.Name,
							Kind:      kind,
							FilePath:  path,
							StartLine: pos.Line,
							EndLine:   fset.Position(vs.End()).Line,
							Signature: lineAt(lines, pos.Line),
						})
					}
				}
			}
		}
	}

	return symbols, nil
}

var (
	pythonDefRe   = regexp.MustCompile(`^def\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	pythonClassRe = regexp.MustCompile(`^class\s+([A-Za-z_][A-Za-z0-9_]*)`)
)

// parsePython extracts top-level defs and classes by line scanning.
func (p *DefaultParser) parsePython(path string, content []byte) ([]Symbol, error) {
	lines := strings.Split(string(content), "\n")
	var symbols []Symbol

	for i, line := range lines {
		if m := pythonDefRe.FindStringSubmatch(line); m != nil {
			symbols = append(symbols, Symbol{
				Name:      m[1],
				Kind:      KindFunction,
				FilePath:  path,
				StartLine: i + 1,
				EndLine:   pythonBlockEnd(lines, i),
				Signature: strings.TrimSpace(line),
			})
		} else if m := pythonClassRe.FindStringSubmatch(line); m != nil {
			symbols = append(symbols, Symbol{
				Name:      m[1],
				Kind:      KindClass,
				FilePath:  path,
				StartLine: i + 1,
				EndLine:   pythonBlockEnd(lines, i),
				Signature: strings.TrimSpace(line),
			})
		}
	}

	return symbols, nil
}

// pythonBlockEnd finds the last indented line belonging to the block that
// starts at line index start.
func pythonBlockEnd(lines []string, start int) int {
	end := start
	for i := start + 1; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "\t") {
			break
		}
		end = i
	}
	return end + 1
}

var (
	jsFuncRe  = regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?function\s+([A-Za-z_$][A-Za-z0-9_$]*)`)
	jsClassRe = regexp.MustCompile(`^\s*(?:export\s+)?class\s+([A-Za-z_$][A-Za-z0-9_$]*)`)
	jsConstRe = regexp.MustCompile(`^\s*(?:export\s+)?const\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*=`)
)

// parseJavaScript extracts functions, classes and top-level consts.
func (p *DefaultParser) parseJavaScript(path string, content []byte) ([]Symbol, error) {
	lines := strings.Split(string(content), "\n")
	var symbols []Symbol

	for i, line := range lines {
		var name string
		var kind SymbolKind
		if m := jsFuncRe.FindStringSubmatch(line); m != nil {
			name, kind = m[1], KindFunction
		} else if m := jsClassRe.FindStringSubmatch(line); m != nil {
			name, kind = m[1], KindClass
		} else if m := jsConstRe.FindStringSubmatch(line); m != nil {
			name, kind = m[1], KindConstant
		} else {
			continue
		}

		symbols = append(symbols, Symbol{
			Name:      name,
			Kind:      kind,
			FilePath:  path,
			StartLine: i + 1,
			EndLine:   i + 1,
			Signature: strings.TrimSpace(line),
		})
	}

	return symbols, nil
}

var markdownHeadingRe = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// parseMarkdown extracts headings as section symbols.
func (p *DefaultParser) parseMarkdown(path string, content []byte) ([]Symbol, error) {
	lines := strings.Split(string(content), "\n")
	var symbols []Symbol

	for i, line := range lines {
		m := markdownHeadingRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		symbols = append(symbols, Symbol{
			Name:      strings.TrimSpace(m[2]),
			Kind:      KindSection,
			FilePath:  path,
			StartLine: i + 1,
			EndLine:   i + 1,
			Signature: strings.TrimSpace(line),
		})
	}

	return symbols, nil
}

// formatType formats an AST type expression as a string.
func formatType(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return "*" + formatType(t.X)
	case *ast.SelectorExpr:
		return formatType(t.X) + "." + t.Sel.Name
	case *ast.IndexExpr:
		return formatType(t.X)
	default:
		return "?"
	}
}

// lineAt returns the 1-indexed line, trimmed, or "" if out of range.
func lineAt(lines []string, n int) string {
	if n < 1 || n > len(lines) {
		return ""
	}
	return strings.TrimSpace(lines[n-1])
}
