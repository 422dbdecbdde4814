package batch_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/importsplit/pkg/batch"
	"github.com/Sumatoshi-tech/importsplit/pkg/jsimport"
	"github.com/Sumatoshi-tech/importsplit/pkg/rewrite"
)

const (
	namedSource     = "import { map, filter as f } from 'lodash';\nexport const x = map;\n"
	rewrittenSource = "import map = require('lodash/map');\nimport f = require('lodash/filter');\nexport const x = map;\n"
	plainSource     = "import * as _ from 'lodash';\n"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o640))

	return path
}

func newRunner(t *testing.T, dialect jsimport.Dialect) *batch.Runner {
	t.Helper()

	set, err := rewrite.NewSet(dialect, rewrite.DefaultOptions())
	require.NoError(t, err)

	return &batch.Runner{Engines: set, Workers: 2}
}

func TestRun_ResultsInInputOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	var paths []string
	for i := range 12 {
		content := plainSource
		if i%2 == 0 {
			content = namedSource
		}

		paths = append(paths, writeFile(t, dir, "src/f"+string(rune('a'+i))+".ts", content))
	}

	results, err := newRunner(t, jsimport.DialectAuto).Run(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, results, len(paths))

	for i, res := range results {
		assert.Equal(t, paths[i], res.Path)
		require.NoError(t, res.Err)
		assert.Equal(t, i%2 == 0, res.Changed(), res.Path)
		assert.False(t, res.Written)
	}

	assert.Equal(t, rewrittenSource, results[0].Result.Output)
	assert.Equal(t, "typescript", results[0].Dialect)
}

func TestRun_WriteBackPreservesPermissions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	changed := writeFile(t, dir, "a.ts", namedSource)
	untouched := writeFile(t, dir, "b.ts", plainSource)

	runner := newRunner(t, jsimport.DialectTypeScript)
	runner.Write = true

	results, err := runner.Run(context.Background(), []string{changed, untouched})
	require.NoError(t, err)

	assert.True(t, results[0].Written)
	assert.False(t, results[1].Written)

	got, err := os.ReadFile(changed)
	require.NoError(t, err)
	assert.Equal(t, rewrittenSource, string(got))

	info, err := os.Stat(changed)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())

	got, err = os.ReadFile(untouched)
	require.NoError(t, err)
	assert.Equal(t, plainSource, string(got))
}

func TestRun_PerFileErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := writeFile(t, dir, "good.ts", namedSource)
	big := writeFile(t, dir, "big.ts", namedSource+strings.Repeat("// padding\n", 100))

	runner := newRunner(t, jsimport.DialectTypeScript)
	runner.MaxFileSize = uint64(len(namedSource) + 1)

	results, err := runner.Run(context.Background(), []string{
		good, big, dir, filepath.Join(dir, "missing.ts"), "",
	})
	require.NoError(t, err)

	require.NoError(t, results[0].Err)
	require.ErrorIs(t, results[1].Err, batch.ErrFileTooLarge)
	require.ErrorIs(t, results[2].Err, batch.ErrDirectoryPath)
	require.ErrorIs(t, results[3].Err, os.ErrNotExist)
	require.ErrorIs(t, results[4].Err, batch.ErrEmptyPath)

	assert.True(t, results[0].Changed())
	assert.False(t, results[1].Changed())
}

func TestRun_PanicBecomesFileError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first := writeFile(t, dir, "a.ts", namedSource)
	second := writeFile(t, dir, "b.ts", plainSource)

	runner := &batch.Runner{Workers: 2, Write: true}

	results, err := runner.Run(context.Background(), []string{first, second})
	require.NoError(t, err)
	require.Len(t, results, 2)

	for i, path := range []string{first, second} {
		assert.Equal(t, path, results[i].Path)
		require.ErrorIs(t, results[i].Err, batch.ErrPanic)
		assert.Contains(t, results[i].Err.Error(), path)
		assert.False(t, results[i].Changed())
		assert.False(t, results[i].Written)
	}

	got, readErr := os.ReadFile(first)
	require.NoError(t, readErr)
	assert.Equal(t, namedSource, string(got))
}

func TestRun_BinaryFileIsRefused(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	bin := writeFile(t, dir, "blob.js", "import { map } from 'lodash';\x00\x01\x02")

	results, err := newRunner(t, jsimport.DialectJavaScript).Run(context.Background(), []string{bin})
	require.NoError(t, err)

	require.ErrorIs(t, results[0].Err, batch.ErrBinaryFile)
	assert.Empty(t, results[0].Source)

	got, readErr := os.ReadFile(bin)
	require.NoError(t, readErr)
	assert.Equal(t, "import { map } from 'lodash';\x00\x01\x02", string(got))
}

func TestRun_Empty(t *testing.T) {
	t.Parallel()

	results, err := newRunner(t, jsimport.DialectTypeScript).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRun_CanceledContext(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "a.ts", namedSource)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newRunner(t, jsimport.DialectTypeScript).Run(ctx, []string{path})
	require.ErrorIs(t, err, context.Canceled)
}

func TestFileResult_Diff(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "a.ts", namedSource)

	results, err := newRunner(t, jsimport.DialectTypeScript).Run(context.Background(), []string{path})
	require.NoError(t, err)

	diff := results[0].Diff()
	assert.Contains(t, diff, "-import { map, filter as f } from 'lodash';\n")
	assert.Contains(t, diff, "+import f = require('lodash/filter');\n")

	assert.Empty(t, batch.FileResult{Path: "x.ts"}.Diff())
}

func TestCollect(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "src/app.ts", plainSource)
	writeFile(t, dir, "src/view.TSX", plainSource)
	writeFile(t, dir, "src/lib.mjs", plainSource)
	writeFile(t, dir, "src/readme.md", "# docs")
	writeFile(t, dir, "node_modules/lodash/index.js", plainSource)
	writeFile(t, dir, ".git/hooks/x.js", plainSource)

	files, err := batch.Collect(dir, []string{".ts", ".tsx", ".mjs", ".js"}, true)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dir, "src", "app.ts"),
		filepath.Join(dir, "src", "lib.mjs"),
		filepath.Join(dir, "src", "view.TSX"),
	}, files)

	withVendor, err := batch.Collect(dir, []string{".js"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "node_modules", "lodash", "index.js")}, withVendor)
}

func TestCollect_MissingRoot(t *testing.T) {
	t.Parallel()

	_, err := batch.Collect(filepath.Join(t.TempDir(), "absent"), []string{".ts"}, true)
	require.ErrorIs(t, err, os.ErrNotExist)
}
