package history

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/lazyqa/lazyqa/model"
	"github.com/lazyqa/lazyqa/store"
)

func TestLoadEntries(t *testing.T) {
	root := t.TempDir()
	s := store.New(zerolog.Nop(), root)

	identity := model.BuildIdentity{CommitHash: "abc123"}
	for i, dataset := range []string{"alpha", "beta"} {
		c, err := s.OpenCase(model.TestCaseName{Identity: identity, Dataset: dataset})
		require.NoError(t, err)
		status := model.StatusSucceeded
		if i == 1 {
			status = model.StatusFailed
		}
		require.NoError(t, c.Close(status))
	}

	// A directory without a record is skipped, stray files are ignored.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "abc123_0_interrupted"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.txt"), []byte("x"), 0644))

	entries, err := LoadEntries(zerolog.Nop(), root)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		require.Equal(t, "abc123", entry.Record.Name.Identity.CommitHash)
		require.DirExists(t, entry.FullPath)
	}
}

func TestLoadEntriesMissingRoot(t *testing.T) {
	_, err := LoadEntries(zerolog.Nop(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestLoadEntriesSkipsCorruptRecords(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "abc123_0_corrupt")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, store.RecordFileName), []byte("{not json"), 0644))

	entries, err := LoadEntries(zerolog.Nop(), root)
	require.NoError(t, err)
	require.Empty(t, entries)
}
