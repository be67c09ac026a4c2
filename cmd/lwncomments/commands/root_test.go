package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunEmptyPasswordFailsBeforeAnyWork(t *testing.T) {
	pw := filepath.Join(t.TempDir(), "pw")
	require.NoError(t, os.WriteFile(pw, []byte("\n"), 0o600))

	*username = "corbet"
	*passwordFile = pw
	t.Cleanup(func() {
		*username = ""
		*passwordFile = ""
	})

	// no base url override is in place: an attempted network call or
	// cache open would not produce this exact error
	err := run(context.Background())
	require.EqualError(t, err, "empty password")
}

func TestExecuteContextReportsExitCode(t *testing.T) {
	rootCmd.SetArgs([]string{})

	// no username configured anywhere: the run fails before doing any
	// work, and the failure surfaces as exit code 1 rather than an exit
	require.Equal(t, 1, ExecuteContext(context.Background()))
}

func TestReadPasswordFromFile(t *testing.T) {
	dir := t.TempDir()

	for name, tc := range map[string]struct {
		contents string
		want     string
	}{
		"single line":       {"hunter2\n", "hunter2"},
		"crlf":              {"hunter2\r\n", "hunter2"},
		"no trailing break": {"hunter2", "hunter2"},
		"first line only":   {"hunter2\nsecond\n", "hunter2"},
		"blank line":        {"\n", ""},
		"empty file":        {"", ""},
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, "pw")
			require.NoError(t, os.WriteFile(path, []byte(tc.contents), 0o600))

			got, err := readPassword(path)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestReadPasswordMissingFile(t *testing.T) {
	_, err := readPassword(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}
