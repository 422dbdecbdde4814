package rewrite

import (
	"fmt"

	"github.com/Sumatoshi-tech/importsplit/pkg/jsimport"
)

// Set holds one Engine per dialect sharing the same Options.
type Set struct {
	engines map[jsimport.Dialect]*Engine
	dialect jsimport.Dialect
}

// NewSet builds engines for every dialect. dialect is the one Resolve
// uses; DialectAuto picks per file name.
func NewSet(dialect jsimport.Dialect, opts Options) (*Set, error) {
	if dialect != jsimport.DialectAuto {
		parsed, err := jsimport.ParseDialect(string(dialect))
		if err != nil {
			return nil, err
		}

		dialect = parsed
	}

	engines := make(map[jsimport.Dialect]*Engine)

	for _, d := range jsimport.Dialects() {
		scanner, err := jsimport.NewScanner(d)
		if err != nil {
			return nil, fmt.Errorf("scanner for %s: %w", d, err)
		}

		engines[d] = New(scanner, opts)
	}

	return &Set{engines: engines, dialect: dialect}, nil
}

// Resolve returns the engine for filename: the fixed dialect's engine, or
// under DialectAuto the one detected from the name.
func (s *Set) Resolve(filename string) *Engine {
	d := s.dialect
	if d == jsimport.DialectAuto {
		d = jsimport.DialectForFilename(filename)
	}

	return s.engines[d]
}

// Dialect returns the configured dialect, possibly DialectAuto.
func (s *Set) Dialect() jsimport.Dialect {
	return s.dialect
}
