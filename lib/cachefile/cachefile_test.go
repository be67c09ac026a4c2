package cachefile

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T, dir string) *Store {
	t.Helper()
	s := New(Options{Dir: dir, Notice: &bytes.Buffer{}})
	require.NoError(t, s.Open())
	return s
}

func readDoc(t *testing.T, dir string) map[string]any {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(dir, fileName))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	return doc
}

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s := openStore(t, dir)
	s.Put("101", "<p>first</p>")
	s.Put("102", "<p>second</p>")
	require.NoError(t, s.Close())

	reopened := openStore(t, dir)
	defer reopened.Close()

	want := map[string]string{
		"101": "<p>first</p>",
		"102": "<p>second</p>",
	}
	require.Empty(t, cmp.Diff(want, reopened.entries))
}

func TestCloseWithoutMutationPreservesContent(t *testing.T) {
	dir := t.TempDir()

	seed := map[string]any{
		versionKey: SchemaVersion,
		"7":        "<p>seven</p>",
		"42":       "<p>forty-two</p>",
	}
	raw, err := json.Marshal(seed)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, fileName), raw, 0o600))

	s := openStore(t, dir)
	require.NoError(t, s.Close())

	reopened := openStore(t, dir)
	defer reopened.Close()

	fragment, ok := reopened.Get("7")
	require.True(t, ok)
	require.Equal(t, "<p>seven</p>", fragment)
	fragment, ok = reopened.Get("42")
	require.True(t, ok)
	require.Equal(t, "<p>forty-two</p>", fragment)
	require.Equal(t, 2, reopened.Len())
}

func TestVersionMismatchResetsStore(t *testing.T) {
	for name, seed := range map[string]string{
		"newer version":   `{"__version__": 1, "101": "<p>old</p>"}`,
		"missing version": `{"101": "<p>old</p>"}`,
		"non-int version": `{"__version__": "zero", "101": "<p>old</p>"}`,
	} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, fileName), []byte(seed), 0o600))

			s := openStore(t, dir)
			require.Equal(t, 0, s.Len())
			_, ok := s.Get("101")
			require.False(t, ok)
			require.NoError(t, s.Close())

			doc := readDoc(t, dir)
			require.Equal(t, float64(SchemaVersion), doc[versionKey])
			require.NotContains(t, doc, "101")
		})
	}
}

func TestCorruptFileIsAHardError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, fileName), []byte("{not json"), 0o600))

	s := New(Options{Dir: dir, Notice: &bytes.Buffer{}})
	err := s.Open()
	require.Error(t, err)
	require.Contains(t, err.Error(), "corrupt cache file")

	// the failed Open must have released the lock: once the file is
	// repaired a fresh Open acquires without contention
	require.NoError(t, os.WriteFile(filepath.Join(dir, fileName), []byte(`{"__version__": 0}`), 0o600))
	notice := &bytes.Buffer{}
	second := New(Options{Dir: dir, Notice: notice})
	require.NoError(t, second.Open())
	require.Empty(t, notice.String())
	require.NoError(t, second.Close())
}

func TestOverwriteIsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s := openStore(t, dir)
	s.Put("55", "<p>v1</p>")
	s.Put("55", "<p>v2</p>")
	fragment, ok := s.Get("55")
	require.True(t, ok)
	require.Equal(t, "<p>v2</p>", fragment)
	require.Equal(t, 1, s.Len())
	require.NoError(t, s.Close())
}

func TestOpenTwiceFails(t *testing.T) {
	dir := t.TempDir()

	s := openStore(t, dir)
	defer s.Close()

	require.ErrorIs(t, s.Open(), ErrAlreadyLocked)
}

func TestCreatesDirectoryOwnerOnly(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")

	s := openStore(t, dir)
	require.NoError(t, s.Close())

	for _, p := range []string{dir, filepath.Dir(dir)} {
		info, err := os.Stat(p)
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0o700), info.Mode().Perm()&0o700)
		require.Equal(t, os.FileMode(0), info.Mode().Perm()&0o077)
	}
}

func TestPersistLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()

	s := openStore(t, dir)
	s.Put("1", "<p>one</p>")
	require.NoError(t, s.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, fileName, entries[0].Name())
}
