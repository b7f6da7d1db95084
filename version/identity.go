// Package version computes build identities for QA runs and detects
// stale binaries. An identity is the pair (commit hash, dirty index):
// the index disambiguates builds taken from the same commit with
// different uncommitted changes. Indices are derived by scanning the
// output root at query time; no counter state is kept anywhere.
package version

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/go-diff/diff"

	"github.com/lazyqa/lazyqa/model"
	"github.com/lazyqa/lazyqa/naming"
	"github.com/lazyqa/lazyqa/store"
)

// Source is the version-control query interface the identifier consumes.
// *gitrepo.Repo implements it.
type Source interface {
	// Head returns the current commit hash (short form).
	Head(short bool) (string, error)
	// Diff returns the uncommitted changes; empty means clean.
	Diff() ([]byte, error)
	// TrackedFiles lists tracked paths relative to the repo root.
	TrackedFiles() ([]string, error)
	// Root returns the repository's top-level directory.
	Root() string
}

// Identifier computes build identities from a version-control source.
type Identifier struct {
	source Source
	logger zerolog.Logger
}

// New returns an Identifier reading from source.
func New(logger zerolog.Logger, source Source) *Identifier {
	return &Identifier{source: source, logger: logger}
}

// ComputeIdentity determines the identity of a build taken from the
// current source tree, along with the uncommitted-change patch it was
// computed from. A clean tree yields dirty index 0. A dirty tree reuses
// the index of an existing case under outputRoot whose archived patch is
// byte-identical to the current diff, and otherwise allocates the
// smallest index not yet used for this commit hash, starting at 1.
func (i *Identifier) ComputeIdentity(outputRoot string) (model.BuildIdentity, []byte, error) {
	commit, err := i.source.Head(true)
	if err != nil {
		return model.BuildIdentity{}, nil, err
	}

	patch, err := i.source.Diff()
	if err != nil {
		return model.BuildIdentity{}, nil, fmt.Errorf("failed to read uncommitted changes: %w", err)
	}

	if len(patch) == 0 {
		return model.BuildIdentity{CommitHash: commit, DirtyIndex: 0, Dirty: false}, nil, nil
	}

	i.logDirtyFiles(patch)

	index, err := i.dirtyIndexFor(outputRoot, commit, patch)
	if err != nil {
		return model.BuildIdentity{}, nil, err
	}

	identity := model.BuildIdentity{CommitHash: commit, DirtyIndex: index, Dirty: true}
	i.logger.Debug().
		Str("commit", commit).
		Int("dirty_index", index).
		Msg("Computed dirty build identity")
	return identity, patch, nil
}

// dirtyIndexFor scans existing case directories under outputRoot that
// share the commit hash. A directory whose archived patch matches the
// current one byte for byte wins its index back (repeated runs without
// further edits must not inflate the index). Otherwise the smallest
// unused index >= 1 is allocated.
func (i *Identifier) dirtyIndexFor(outputRoot, commit string, patch []byte) (int, error) {
	entries, err := os.ReadDir(outputRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return 1, nil
		}
		return 0, fmt.Errorf("failed to scan output root %q: %w", outputRoot, err)
	}

	used := map[int]bool{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name, err := naming.Parse(entry.Name())
		if err != nil || name.Identity.CommitHash != commit || name.Identity.DirtyIndex == 0 {
			continue
		}

		archived, err := os.ReadFile(filepath.Join(outputRoot, entry.Name(), store.PatchFileName))
		if err == nil && bytes.Equal(archived, patch) {
			i.logger.Debug().
				Str("case", entry.Name()).
				Int("dirty_index", name.Identity.DirtyIndex).
				Msg("Reusing dirty index of identical uncommitted changes")
			return name.Identity.DirtyIndex, nil
		}
		used[name.Identity.DirtyIndex] = true
	}

	index := 1
	for used[index] {
		index++
	}
	return index, nil
}

// BranchSource is the optional part of the version-control interface
// used to archive commits that are not on the main branch yet.
type BranchSource interface {
	GuessMainBranch() (string, error)
	MergeBase(commit1, commit2 string) (string, error)
	BranchPatch(from string) ([]byte, error)
}

// ChangesNotOnMainBranch returns the commits on HEAD that the main
// branch does not have, as a patch. Forensic extra material for the
// case record, not part of the identity: every failure degrades to a
// warning and an empty result.
func (i *Identifier) ChangesNotOnMainBranch() []byte {
	branches, ok := i.source.(BranchSource)
	if !ok {
		return nil
	}

	main, err := branches.GuessMainBranch()
	if err != nil {
		i.logger.Warn().Err(err).Msg("Could not determine main branch, skipping branch patch")
		return nil
	}
	base, err := branches.MergeBase("HEAD", main)
	if err != nil {
		i.logger.Warn().Err(err).Msg("Could not determine merge base, skipping branch patch")
		return nil
	}
	patch, err := branches.BranchPatch(base)
	if err != nil {
		i.logger.Warn().Err(err).Msg("Could not compute branch patch")
		return nil
	}
	return patch
}

// logDirtyFiles reports which files carry uncommitted changes. Purely
// informational; a patch that go-diff cannot parse is still valid as
// identity content.
func (i *Identifier) logDirtyFiles(patch []byte) {
	fileDiffs, err := diff.ParseMultiFileDiff(patch)
	if err != nil {
		i.logger.Debug().Err(err).Msg("Could not parse uncommitted changes for reporting")
		return
	}
	files := make([]string, 0, len(fileDiffs))
	for _, fd := range fileDiffs {
		files = append(files, fd.NewName)
	}
	i.logger.Info().Strs("files", files).Msg("Working tree has uncommitted changes")
}
