package compiler

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usepat/SW-soniccontrol/internal/protocols"
	"github.com/usepat/SW-soniccontrol/internal/schema"
)

func builtinTables(t *testing.T) []schema.ProtocolTable {
	t.Helper()
	var tables []schema.ProtocolTable
	for _, key := range protocols.Keys() {
		table, err := protocols.Table(key)
		require.NoError(t, err)
		tables = append(tables, table)
	}
	return tables
}

func TestExportRoundTripsBuiltinTables(t *testing.T) {
	tables := builtinTables(t)

	src, err := ExportTables("tables", tables...)
	require.NoError(t, err)
	assert.Contains(t, string(src), "package tables")
	assert.Contains(t, string(src), `"mvp_worker/v2.0.0/debug"`)

	loaded, errs := CompileSource("builtin.cue", src, LoadModeCollectAll)
	require.Empty(t, errs)
	require.Len(t, loaded, len(tables))

	byLabel := make(map[string]schema.ProtocolTable, len(loaded))
	for _, lt := range loaded {
		byLabel[lt.Label] = lt.Table
	}
	for _, want := range tables {
		got, ok := byLabel[want.Key().String()]
		require.True(t, ok, want.Key().String())
		assert.Equal(t, want, got, want.Key().String())
	}
}

func TestExportRejectsDuplicateKeys(t *testing.T) {
	tables := builtinTables(t)
	_, err := ExportTables("tables", tables[0], tables[0])
	assert.Error(t, err)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	src, err := ExportTables("tables", builtinTables(t)[5:8]...)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "builtin.cue"), src, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "extra.cue"), []byte("package tables\n\n"+descaleSrc[1:]), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not cue"), 0o644))

	result, errs := LoadDir(dir, LoadModeCollectAll)
	require.Empty(t, errs)
	assert.Equal(t, 2, result.FileCount)
	assert.Len(t, result.Tables, 4)
}

func TestLoadDirCollectsCompileErrors(t *testing.T) {
	dir := t.TempDir()
	src := `package tables

protocol: a: {device: "toaster", version: "v1.0.0"}
protocol: b: {device: "descale", version: "v1.0.0"}
protocol: c: {device: "kettle", version: "v1.0.0"}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.cue"), []byte(src), 0o644))

	result, errs := LoadDir(dir, LoadModeCollectAll)
	require.Len(t, errs, 2)
	assert.Len(t, result.Tables, 1)

	var le *LoadError
	require.True(t, errors.As(errs[0], &le))
	assert.Equal(t, ErrCodeCompile, le.Code)
	assert.Equal(t, "a", le.Table)
	var ce *CompileError
	assert.True(t, errors.As(errs[0], &ce))

	_, errs = LoadDir(dir, LoadModeFailFast)
	assert.Len(t, errs, 1)
}

func TestLoadDirErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
		code  string
	}{
		{
			name:  "missing directory",
			setup: func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope") },
			code:  ErrCodeNotFound,
		},
		{
			name: "not a directory",
			setup: func(t *testing.T) string {
				p := filepath.Join(t.TempDir(), "file.cue")
				require.NoError(t, os.WriteFile(p, []byte("package tables"), 0o644))
				return p
			},
			code: ErrCodeNotFound,
		},
		{
			name:  "no cue files",
			setup: func(t *testing.T) string { return t.TempDir() },
			code:  ErrCodeNoFiles,
		},
		{
			name: "no tables",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.cue"), []byte("package tables\n\nfoo: 1\n"), 0o644))
				return dir
			},
			code: ErrCodeGeneric,
		},
		{
			name: "syntax error",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.cue"), []byte("package tables\n\nprotocol: {\n"), 0o644))
				return dir
			},
			code: ErrCodeLoadFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := LoadDir(tt.setup(t), LoadModeCollectAll)
			require.Len(t, errs, 1)
			var le *LoadError
			require.True(t, errors.As(errs[0], &le))
			assert.Equal(t, tt.code, le.Code)
		})
	}
}

func TestFindCUEFiles(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "root.cue"), []byte("package tables"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "nested.cue"), []byte("package tables"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), []byte("#"), 0o644))

	files, err := FindCUEFiles(dir)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}
