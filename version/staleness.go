package version

// This file contains the staleness heuristic: deciding whether a binary
// still reflects the current source tree. The verdict is advisory only;
// mtime comparison is approximate across filesystems and build machines.

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lazyqa/lazyqa/model"
)

// ProvenanceSuffix is appended to a binary path to locate the provenance
// stamp the rebuild step leaves behind (the commit hash it built from).
const ProvenanceSuffix = ".buildinfo"

// CheckStaleness compares the binary against the current source tree.
// Stale when a tracked source file is newer than the binary, or when the
// binary's provenance commit differs from the identity's with a clean
// tree. Failures to read metadata degrade to a non-stale report with a
// warning; they never block the run.
func (i *Identifier) CheckStaleness(binaryPath string, identity model.BuildIdentity) model.StalenessReport {
	info, err := os.Stat(binaryPath)
	if err != nil {
		i.logger.Warn().Err(err).Str("binary", binaryPath).Msg("Cannot stat binary for staleness check")
		return model.StalenessReport{Stale: false, Reason: fmt.Sprintf("binary metadata unavailable: %v", err)}
	}
	binaryTime := info.ModTime()

	if provenance, err := readProvenance(binaryPath); err == nil && provenance != "" {
		if provenance != identity.CommitHash && !identity.Dirty {
			return model.StalenessReport{
				Stale:  true,
				Reason: fmt.Sprintf("binary built from commit %s, source tree is at %s", provenance, identity.CommitHash),
			}
		}
	}

	tracked, err := i.source.TrackedFiles()
	if err != nil {
		i.logger.Warn().Err(err).Msg("Cannot list tracked files for staleness check")
		return model.StalenessReport{Stale: false, Reason: fmt.Sprintf("source metadata unavailable: %v", err)}
	}

	root := i.source.Root()
	for _, rel := range tracked {
		srcInfo, err := os.Stat(filepath.Join(root, rel))
		if err != nil {
			continue // deleted or unreadable files cannot make the binary stale
		}
		if srcInfo.ModTime().After(binaryTime) {
			return model.StalenessReport{
				Stale:  true,
				Reason: fmt.Sprintf("%s modified after the binary was built", rel),
			}
		}
	}

	return model.StalenessReport{Stale: false}
}

func readProvenance(binaryPath string) (string, error) {
	data, err := os.ReadFile(binaryPath + ProvenanceSuffix)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
