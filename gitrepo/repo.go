package gitrepo

// This file contains the git integration used to identify the source
// state that produced a binary: commit hash, uncommitted changes, and
// patches against the main branch.

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// RepositoryStateError reports that the source identity could not be
// determined, e.g. because the path is not inside a git work tree.
type RepositoryStateError struct {
	Path string
	Err  error
}

func (e *RepositoryStateError) Error() string {
	return fmt.Sprintf("cannot determine repository state for %q: %v", e.Path, e.Err)
}

func (e *RepositoryStateError) Unwrap() error { return e.Err }

// Repo exposes the version-control queries the QA tooling needs.
type Repo struct {
	root string
}

// Open resolves the repository containing path. Files are resolved via
// their parent directory. Returns a RepositoryStateError when the path
// does not lead into a git work tree.
func Open(path string) (*Repo, error) {
	dir := path
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		dir = filepath.Dir(path)
	}

	out, err := git(dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, &RepositoryStateError{Path: path, Err: err}
	}
	return &Repo{root: out}, nil
}

// Root returns the repository's top-level directory.
func (r *Repo) Root() string { return r.root }

// Head returns the commit hash of HEAD, abbreviated when short is set.
func (r *Repo) Head(short bool) (string, error) {
	args := []string{"rev-parse"}
	if short {
		args = append(args, "--short")
	}
	args = append(args, "HEAD")

	out, err := git(r.root, args...)
	if err != nil {
		return "", &RepositoryStateError{Path: r.root, Err: err}
	}
	return out, nil
}

// Diff returns the uncommitted changes of the work tree as a patch.
// An empty result means the tree is clean.
// TODO: include untracked files via `git add -N` once the comparison
// tooling can handle creation hunks.
func (r *Repo) Diff() ([]byte, error) {
	out, err := gitRaw(r.root, "diff")
	if err != nil {
		return nil, fmt.Errorf("failed to get uncommitted changes: %w", err)
	}
	return out, nil
}

// TrackedFiles lists the paths tracked by git, relative to the repo root.
func (r *Repo) TrackedFiles() ([]string, error) {
	out, err := git(r.root, "ls-files")
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked files: %w", err)
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// MergeBase returns the merge base of two commits.
func (r *Repo) MergeBase(commit1, commit2 string) (string, error) {
	out, err := git(r.root, "merge-base", commit1, commit2)
	if err != nil {
		return "", fmt.Errorf("failed to get merge base of %s and %s: %w", commit1, commit2, err)
	}
	return out, nil
}

// GuessMainBranch guesses whether master or main is the main development
// branch. Remote refs are probed first; `git ls-remote` is avoided since
// it would hit the network.
func (r *Repo) GuessMainBranch() (string, error) {
	for _, guess := range []string{"origin/master", "origin/main", "master", "main"} {
		if _, err := git(r.root, "show-branch", guess); err == nil {
			return guess, nil
		}
	}
	return "", fmt.Errorf("could not guess main branch in repo %q", r.root)
}

// BranchPatch returns the commits from `from` (exclusive) to HEAD as a
// single patch. Empty when HEAD carries no commits past `from`.
func (r *Repo) BranchPatch(from string) ([]byte, error) {
	out, err := gitRaw(r.root, "format-patch", from+"..HEAD", "--stdout")
	if err != nil {
		return nil, fmt.Errorf("failed to get branch patch from %s: %w", from, err)
	}
	return out, nil
}

func git(dir string, args ...string) (string, error) {
	out, err := gitRaw(dir, args...)
	return strings.TrimSpace(string(out)), err
}

func gitRaw(dir string, args ...string) ([]byte, error) {
	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("git %s: %w (stderr: %s)",
				strings.Join(args, " "), err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return out, nil
}
