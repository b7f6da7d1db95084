package gitrepo

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// newScratchRepo initializes a throwaway git repository with one commit
// and returns its path. Tests are skipped when git is not installed.
func newScratchRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	dir := t.TempDir()
	runGit(t, dir, "init", "-q")
	runGit(t, dir, "config", "user.email", "qa@example.com")
	runGit(t, dir, "config", "user.name", "QA")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.cpp"), []byte("int main() {}\n"), 0644))
	runGit(t, dir, "add", "main.cpp")
	runGit(t, dir, "commit", "-q", "-m", "initial commit")
	return dir
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
}

func TestOpenResolvesRoot(t *testing.T) {
	dir := newScratchRepo(t)

	repo, err := Open(dir)
	require.NoError(t, err)
	require.NotEmpty(t, repo.Root())

	// A path to a file inside the repo resolves via its parent.
	fromFile, err := Open(filepath.Join(dir, "main.cpp"))
	require.NoError(t, err)
	require.Equal(t, repo.Root(), fromFile.Root())
}

func TestOpenOutsideRepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	_, err := Open(os.TempDir())
	var stateErr *RepositoryStateError
	require.ErrorAs(t, err, &stateErr)
}

func TestHead(t *testing.T) {
	repo, err := Open(newScratchRepo(t))
	require.NoError(t, err)

	full, err := repo.Head(false)
	require.NoError(t, err)
	require.Len(t, full, 40)

	short, err := repo.Head(true)
	require.NoError(t, err)
	require.True(t, len(short) >= 7 && len(short) < 40)
}

func TestDiffReflectsUncommittedChanges(t *testing.T) {
	dir := newScratchRepo(t)
	repo, err := Open(dir)
	require.NoError(t, err)

	clean, err := repo.Diff()
	require.NoError(t, err)
	require.Empty(t, clean)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.cpp"), []byte("int main() { return 1; }\n"), 0644))

	dirty, err := repo.Diff()
	require.NoError(t, err)
	require.Contains(t, string(dirty), "main.cpp")
}

func TestTrackedFiles(t *testing.T) {
	repo, err := Open(newScratchRepo(t))
	require.NoError(t, err)

	files, err := repo.TrackedFiles()
	require.NoError(t, err)
	require.Equal(t, []string{"main.cpp"}, files)
}
