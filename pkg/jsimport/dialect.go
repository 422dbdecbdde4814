package jsimport

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"unsafe"

	sitter "github.com/alexaandru/go-tree-sitter-bare"
	"github.com/src-d/enry/v2"

	"github.com/alexaandru/go-sitter-forest/javascript"
	"github.com/alexaandru/go-sitter-forest/tsx"
	"github.com/alexaandru/go-sitter-forest/typescript"
)

// Dialect names the grammar a source unit is parsed with.
type Dialect string

const (
	// DialectTypeScript parses .ts sources. It is the default.
	DialectTypeScript Dialect = "typescript"
	// DialectTSX parses .tsx sources.
	DialectTSX Dialect = "tsx"
	// DialectJavaScript parses .js/.jsx/.mjs/.cjs sources.
	DialectJavaScript Dialect = "javascript"
	// DialectAuto is a configuration value meaning "detect from the file name".
	// It is resolved by DialectForFilename and never reaches a Scanner.
	DialectAuto Dialect = "auto"
)

// ErrUnknownDialect is returned for dialect names with no bound grammar.
var ErrUnknownDialect = errors.New("unknown dialect")

// grammarFuncs maps dialects to their tree-sitter GetLanguage functions.
var grammarFuncs = map[Dialect]func() unsafe.Pointer{
	DialectTypeScript: typescript.GetLanguage,
	DialectTSX:        tsx.GetLanguage,
	DialectJavaScript: javascript.GetLanguage,
}

// extensionDialects resolves well-known extensions without consulting enry.
var extensionDialects = map[string]Dialect{
	".ts":  DialectTypeScript,
	".mts": DialectTypeScript,
	".cts": DialectTypeScript,
	".tsx": DialectTSX,
	".js":  DialectJavaScript,
	".jsx": DialectJavaScript,
	".mjs": DialectJavaScript,
	".cjs": DialectJavaScript,
}

// enryDialects maps enry language names to dialects.
var enryDialects = map[string]Dialect{
	"TypeScript": DialectTypeScript,
	"TSX":        DialectTSX,
	"JavaScript": DialectJavaScript,
}

var grammarCache sync.Map

// Dialects returns the supported dialects in a stable order.
func Dialects() []Dialect {
	return []Dialect{DialectTypeScript, DialectTSX, DialectJavaScript}
}

// ParseDialect validates a dialect name. The empty string selects TypeScript.
func ParseDialect(name string) (Dialect, error) {
	d := Dialect(strings.ToLower(strings.TrimSpace(name)))
	if d == "" {
		return DialectTypeScript, nil
	}

	if d == DialectAuto {
		return d, nil
	}

	if _, ok := grammarFuncs[d]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownDialect, name)
	}

	return d, nil
}

// DialectForFilename picks the dialect for a file, first by extension and
// then by enry language detection. Unknown files fall back to TypeScript.
func DialectForFilename(name string) Dialect {
	ext := strings.ToLower(filepath.Ext(name))
	if d, ok := extensionDialects[ext]; ok {
		return d
	}

	if d, ok := enryDialects[enry.GetLanguage(filepath.Base(name), nil)]; ok {
		return d
	}

	return DialectTypeScript
}

// grammar returns the cached tree-sitter Language for d, or nil.
func grammar(d Dialect) *sitter.Language {
	if cached, ok := grammarCache.Load(d); ok {
		lang, castOK := cached.(*sitter.Language)
		if castOK {
			return lang
		}
	}

	fn, ok := grammarFuncs[d]
	if !ok {
		return nil
	}

	lang := sitter.NewLanguage(fn())
	grammarCache.Store(d, lang)

	return lang
}
