package rewrite_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/importsplit/pkg/jsimport"
	"github.com/Sumatoshi-tech/importsplit/pkg/rewrite"
)

func newEngine(t *testing.T, opts rewrite.Options) *rewrite.Engine {
	t.Helper()

	scanner, err := jsimport.NewScanner(jsimport.DialectTypeScript)
	require.NoError(t, err)

	return rewrite.New(scanner, opts)
}

func transform(t *testing.T, src string) rewrite.Result {
	t.Helper()

	result, err := newEngine(t, rewrite.DefaultOptions()).Transform(context.Background(), src)
	require.NoError(t, err)

	return result
}

func TestTransform_Rewrites(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "without spaces",
			in:   "import {something} from 'lodash'",
			want: "import something = require('lodash/something');",
		},
		{
			name: "with spaces",
			in:   "import { something } from 'lodash'",
			want: "import something = require('lodash/something');",
		},
		{
			name: "multiple members",
			in:   "import {something, something2} from 'lodash'",
			want: "import something = require('lodash/something');\nimport something2 = require('lodash/something2');",
		},
		{
			name: "multiple imports",
			in:   "import {something} from 'lodash'\nimport {something2, something3} from 'lodash'",
			want: "import something = require('lodash/something');\n" +
				"import something2 = require('lodash/something2');\n" +
				"import something3 = require('lodash/something3');",
		},
		{
			name: "alias",
			in:   "import {x as y} from 'lodash';",
			want: "import y = require('lodash/x');",
		},
		{
			name: "double quotes",
			in:   `import { map } from "lodash";`,
			want: "import map = require('lodash/map');",
		},
		{
			name: "trailing blank lines preserved",
			in:   "import {a} from 'lodash';\n\n\n",
			want: "import a = require('lodash/a');\n\n\n",
		},
		{
			name: "surrounding code preserved",
			in:   "// header\n\nimport {a} from 'lodash';\n\nconst test = 'somevalue';\n",
			want: "// header\n\nimport a = require('lodash/a');\n\nconst test = 'somevalue';\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := transform(t, tt.in)
			assert.Equal(t, tt.want, result.Output)
			assert.True(t, result.Changed())
		})
	}
}

func TestTransform_Identity(t *testing.T) {
	t.Parallel()

	inputs := map[string]string{
		"namespace":         "import * as _ from 'lodash';",
		"default":           "import _ from 'lodash';",
		"side effect":       "import 'lodash';",
		"subpath":           "import {x} from 'lodash/x';",
		"other module":      "import {something} from 'lodash/something';\nimport {something2} from 'otherModule';\n\nconst test = 'somevalue';\n",
		"scoped variant":    "import { map } from 'lodash-es';",
		"type only":         "import type { Dictionary } from 'lodash';",
		"inline type":       "import { type Dictionary, map } from 'lodash';",
		"empty braces":      "import {} from 'lodash';",
		"default and named": "import _, { map } from 'lodash';",
		"no imports":        "const a = 1;\n\n",
		"empty":             "",
	}

	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			result := transform(t, in)
			assert.Equal(t, in, result.Output)
			assert.False(t, result.Changed())
		})
	}
}

func TestTransform_WhitespaceInsensitive(t *testing.T) {
	t.Parallel()

	compact := transform(t, "import {map,filter as f} from 'lodash';").Output
	spaced := transform(t, "import {  map ,  filter  as  f  } from 'lodash';").Output
	multiline := transform(t, "import {\n\tmap,\n\tfilter as f,\n} from 'lodash';").Output

	assert.Equal(t, compact, spaced)
	assert.Equal(t, compact, multiline)
	assert.Equal(t, "import map = require('lodash/map');\nimport f = require('lodash/filter');", compact)
}

func TestTransform_OneLinePerMemberInOrder(t *testing.T) {
	t.Parallel()

	members := []string{"chunk", "compact", "concat", "difference", "drop"}
	src := "import { " + strings.Join(members, ", ") + " } from 'lodash';"

	result := transform(t, src)
	lines := strings.Split(result.Output, "\n")

	require.Len(t, lines, len(members))

	for i, member := range members {
		assert.Equal(t, "import "+member+" = require('lodash/"+member+"');", lines[i])
	}

	assert.Equal(t, len(members), result.Members())
}

func TestTransform_IdenticalDeclarationsEachRewritten(t *testing.T) {
	t.Parallel()

	src := "import {a} from 'lodash';\nconst x = 1;\nimport {a} from 'lodash';\n"

	result := transform(t, src)

	assert.Equal(t, "import a = require('lodash/a');\nconst x = 1;\nimport a = require('lodash/a');\n", result.Output)
	require.Len(t, result.Edits, 2)
	assert.Less(t, result.Edits[0].Span.Start, result.Edits[1].Span.Start)
}

func TestTransform_NestedImportsAreNotVisited(t *testing.T) {
	t.Parallel()

	src := "declare module 'shim' {\n  import { map } from 'lodash';\n}\n"

	result := transform(t, src)
	assert.Equal(t, src, result.Output)
}

func TestTransform_SyntaxErrorPassesThrough(t *testing.T) {
	t.Parallel()

	src := "import {a, from 'lodash';\nconst ok = 1;\n"

	result := transform(t, src)
	assert.Equal(t, src, result.Output)
}

func transformDialect(t *testing.T, dialect jsimport.Dialect, src string) rewrite.Result {
	t.Helper()

	scanner, err := jsimport.NewScanner(dialect)
	require.NoError(t, err)

	result, err := rewrite.New(scanner, rewrite.DefaultOptions()).Transform(context.Background(), src)
	require.NoError(t, err)

	return result
}

func TestTransform_TrailingCommentWithoutSemicolonPreserved(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "line comment",
			in:   "import {a} from 'lodash' // c\n",
			want: "import a = require('lodash/a'); // c\n",
		},
		{
			name: "block comment before code",
			in:   "import {a} from 'lodash' /* c */\nfoo();\n",
			want: "import a = require('lodash/a'); /* c */\nfoo();\n",
		},
	}

	for _, dialect := range []jsimport.Dialect{jsimport.DialectTypeScript, jsimport.DialectTSX} {
		for _, tt := range tests {
			t.Run(string(dialect)+"/"+tt.name, func(t *testing.T) {
				t.Parallel()

				result := transformDialect(t, dialect, tt.in)
				assert.Equal(t, tt.want, result.Output)
				require.Len(t, result.Edits, 1)
				assert.Equal(t, "import {a} from 'lodash'", result.Edits[0].Original)
			})
		}
	}
}

func TestTransform_ImportAttributesPassThrough(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		dialect jsimport.Dialect
		in      string
	}{
		{name: "typescript with", dialect: jsimport.DialectTypeScript, in: "import { a } from 'lodash' with { type: 'json' };\n"},
		{name: "javascript with", dialect: jsimport.DialectJavaScript, in: "import { a } from 'lodash' with { type: 'json' };\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := transformDialect(t, tt.dialect, tt.in)
			assert.Equal(t, tt.in, result.Output)
			assert.False(t, result.Changed())
		})
	}
}

func TestTransform_IdempotentWithoutQualifyingImports(t *testing.T) {
	t.Parallel()

	src := "import _ from 'lodash';\nimport { x } from 'lodash/x';\n"

	once := transform(t, src).Output
	twice := transform(t, once).Output

	assert.Equal(t, once, twice)
}

func TestTransform_OutputIsStableOnSecondPass(t *testing.T) {
	t.Parallel()

	once := transform(t, "import { map, filter } from 'lodash';\n")
	require.True(t, once.Changed())

	twice := transform(t, once.Output)
	assert.False(t, twice.Changed())
	assert.Equal(t, once.Output, twice.Output)
	assert.Equal(t, 2, twice.Scanned)
}

func TestTransform_CustomTargets(t *testing.T) {
	t.Parallel()

	engine := newEngine(t, rewrite.Options{Targets: []string{"lodash-es", " ramda ", "ramda", ""}})

	assert.Equal(t, []string{"lodash-es", "ramda"}, engine.Targets())

	result, err := engine.Transform(context.Background(),
		"import { map } from 'lodash-es';\nimport { map as rmap } from 'ramda';\nimport { map as lmap } from 'lodash';\n")
	require.NoError(t, err)

	assert.Equal(t,
		"import map = require('lodash-es/map');\nimport rmap = require('ramda/map');\nimport { map as lmap } from 'lodash';\n",
		result.Output)
}

func TestNew_EmptyTargetsFallBackToDefault(t *testing.T) {
	t.Parallel()

	engine := newEngine(t, rewrite.Options{})
	assert.Equal(t, []string{rewrite.DefaultTarget}, engine.Targets())
	assert.Equal(t, jsimport.DialectTypeScript, engine.Dialect())
}

func TestQualifies(t *testing.T) {
	t.Parallel()

	engine := newEngine(t, rewrite.DefaultOptions())
	member := []jsimport.MemberBinding{{SourceName: "map", LocalName: "map"}}

	assert.True(t, engine.Qualifies(jsimport.ImportClause{ModulePath: "lodash", Style: jsimport.StyleNamed, Members: member}))
	assert.False(t, engine.Qualifies(jsimport.ImportClause{ModulePath: "lodash/map", Style: jsimport.StyleNamed, Members: member}))
	assert.False(t, engine.Qualifies(jsimport.ImportClause{ModulePath: "lodash", Style: jsimport.StyleNamed}))
	assert.False(t, engine.Qualifies(jsimport.ImportClause{ModulePath: "lodash", Style: jsimport.StyleDefault, Members: member}))
	assert.False(t, engine.Qualifies(jsimport.ImportClause{ModulePath: "lodash", Style: jsimport.StyleNamed, Members: member, TypeOnly: true}))
	assert.False(t, engine.Qualifies(jsimport.ImportClause{
		ModulePath: "lodash", Style: jsimport.StyleNamed,
		Members: []jsimport.MemberBinding{{SourceName: "A", LocalName: "A", TypeOnly: true}},
	}))	assert.False(t, engine.Qualifies(jsimport.ImportClause{
		ModulePath: "lodash", Style: jsimport.StyleNamed, Members: member, Attributes: true,
	}))
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	got := rewrite.Generate(jsimport.ImportClause{
		ModulePath: "lodash",
		Style:      jsimport.StyleNamed,
		Members: []jsimport.MemberBinding{
			{SourceName: "debounce", LocalName: "debounce"},
			{SourceName: "throttle", LocalName: "t"},
		},
	})

	assert.Equal(t, "import debounce = require('lodash/debounce');\nimport t = require('lodash/throttle');", got)
}
