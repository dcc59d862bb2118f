package storage

import (
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveAndOpen(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	rel, err := store.Save("statements/finance.csv", []byte("a,b\n1,2\n"))
	require.NoError(t, err)
	require.Equal(t, "statements/finance.csv", rel)

	file, err := store.Open(rel)
	require.NoError(t, err)
	defer file.Close()

	data, err := io.ReadAll(file)
	require.NoError(t, err)
	require.Equal(t, "a,b\n1,2\n", string(data))
}

func TestLocalStorageConfinesPathsToBaseDir(t *testing.T) {
	base := t.TempDir()
	store, err := NewLocalStorage(base)
	require.NoError(t, err)

	for _, name := range []string{
		"../outside.csv",
		"../../etc/passwd",
		"/etc/passwd",
		"statements/../../outside.csv",
	} {
		resolved := store.Path(name)
		require.True(t, strings.HasPrefix(resolved, base+string(filepath.Separator)),
			"%s resolved outside the base dir: %s", name, resolved)
	}
}
