// Package store persists the artifacts of QA test cases: one
// exclusively-owned directory per case holding the uncommitted-change
// patch, the config snapshot, the captured log stream, the renamed
// binary outputs, and a case.json metadata record. Case directories are
// write-once historical records; nothing here ever deletes or
// overwrites a prior result.
package store

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/lazyqa/lazyqa/model"
)

// File names inside a case directory.
const (
	PatchFileName       = "patch.diff"
	BranchPatchFileName = "branch.patch"
	ConfigFileName      = "config.ini"
	LogFileName         = "run.log"
	RecordFileName      = "case.json"
)

// DuplicateOutputError reports a collision with an existing case
// directory. Existing results are never overwritten.
type DuplicateOutputError struct {
	Dir string
}

func (e *DuplicateOutputError) Error() string {
	return fmt.Sprintf("output directory %q already exists, refusing to overwrite a previous result", e.Dir)
}

// CaseAlreadyClosedError reports an attempt to close a case a second
// time with a different status. It indicates a bug in the calling
// sequence.
type CaseAlreadyClosedError struct {
	Dir    string
	Status model.Status
}

func (e *CaseAlreadyClosedError) Error() string {
	return fmt.Sprintf("case %q already closed with status %q", e.Dir, e.Status)
}

// Store creates and populates case directories under a single output
// root. The root is shared with the version identifier, which scans it
// for existing dirty indices.
type Store struct {
	root   string
	logger zerolog.Logger
}

// New returns a Store rooted at root.
func New(logger zerolog.Logger, root string) *Store {
	return &Store{root: root, logger: logger}
}

// Root returns the output root directory.
func (s *Store) Root() string { return s.root }

// Case is one open test case: a directory under the output root plus
// the metadata accumulated while artifacts are stored. The caller must
// eventually call Close, also on failure paths.
type Case struct {
	name      model.TestCaseName
	dir       string
	status    model.Status
	exitCode  int
	startTime time.Time
	artifacts []model.Artifact
	logger    zerolog.Logger
}

// OpenCase creates the case directory for name. Fails with a
// DuplicateOutputError when the directory already exists.
func (s *Store) OpenCase(name model.TestCaseName) (*Case, error) {
	if err := os.MkdirAll(s.root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output root: %w", err)
	}

	dir := filepath.Join(s.root, name.String())
	if err := os.Mkdir(dir, 0755); err != nil {
		if os.IsExist(err) {
			return nil, &DuplicateOutputError{Dir: dir}
		}
		return nil, fmt.Errorf("failed to create case directory: %w", err)
	}

	s.logger.Debug().Str("dir", dir).Msg("Opened test case")
	return &Case{
		name:      name,
		dir:       dir,
		status:    model.StatusPending,
		startTime: time.Now(),
		logger:    s.logger.With().Str("case", name.String()).Logger(),
	}, nil
}

// Name returns the case's name.
func (c *Case) Name() model.TestCaseName { return c.name }

// Dir returns the case's output directory.
func (c *Case) Dir() string { return c.dir }

// Status returns the case's current status.
func (c *Case) Status() model.Status { return c.status }

// SetRunning marks the case as running. No-op once terminal.
func (c *Case) SetRunning() {
	if !c.status.Terminal() {
		c.status = model.StatusRunning
	}
}

// SetExitCode records the external binary's exit code.
func (c *Case) SetExitCode(code int) { c.exitCode = code }

// ExitCode returns the recorded exit code of the external binary.
func (c *Case) ExitCode() int { return c.exitCode }

// Artifacts returns the artifacts registered so far.
func (c *Case) Artifacts() []model.Artifact { return c.artifacts }

// StorePatch writes the uncommitted-change content into the case
// directory. An empty patch is written too, so a later investigator can
// tell a clean build from a lost record.
func (c *Case) StorePatch(patch []byte) error {
	return c.writeArtifact(PatchFileName, model.ArtifactTypePatch, patch)
}

// StoreBranchPatch archives the commits not on the main branch. Skipped
// when empty; a detached or up-to-date HEAD has nothing to record.
func (c *Case) StoreBranchPatch(patch []byte) error {
	if len(patch) == 0 {
		return nil
	}
	return c.writeArtifact(BranchPatchFileName, model.ArtifactTypeBranchPatch, patch)
}

// StoreConfig persists the configuration snapshot the binary will be
// invoked with, and returns its path.
func (c *Case) StoreConfig(contents []byte) (string, error) {
	if err := c.writeArtifact(ConfigFileName, model.ArtifactTypeConfig, contents); err != nil {
		return "", err
	}
	return filepath.Join(c.dir, ConfigFileName), nil
}

// StoreLog streams the captured log into run.log. The stream is copied
// incrementally; external binaries may run for a long time and produce
// logs that must never be buffered wholesale.
func (c *Case) StoreLog(r io.Reader) (int64, error) {
	path := filepath.Join(c.dir, LogFileName)
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create log file: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, r)
	c.artifacts = append(c.artifacts, model.Artifact{
		Type: model.ArtifactTypeLog,
		Size: uint64(n),
		File: LogFileName,
	})
	if err != nil {
		return n, fmt.Errorf("failed to capture log stream: %w", err)
	}
	return n, nil
}

// RenameOutputs applies a renaming scheme to output files the external
// binary produced, so that two test suites can be compared by artifact
// name alone. Keys are existing file names, values the new names, both
// relative to the case directory. Missing sources are skipped: a binary
// that failed early produces no outputs.
func (c *Case) RenameOutputs(mapping map[string]string) error {
	for from, to := range mapping {
		src := filepath.Join(c.dir, from)
		info, err := os.Stat(src)
		if err != nil {
			c.logger.Debug().Str("file", from).Msg("Expected output not produced, skipping rename")
			continue
		}
		dst := filepath.Join(c.dir, to)
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("failed to rename output %q to %q: %w", from, to, err)
		}
		c.artifacts = append(c.artifacts, model.Artifact{
			Type: model.ArtifactTypeBinaryOutput,
			Size: uint64(info.Size()),
			File: to,
		})
		c.logger.Debug().Str("from", from).Str("to", to).Msg("Renamed binary output")
	}
	return nil
}

// Close finalizes the case with the given terminal status and writes the
// case.json record. Idempotent for the same status; closing twice with
// different statuses is a CaseAlreadyClosedError. Partial artifacts are
// always retained for debugging.
func (c *Case) Close(status model.Status) error {
	if c.status.Terminal() {
		if c.status == status {
			return nil
		}
		return &CaseAlreadyClosedError{Dir: c.dir, Status: c.status}
	}
	c.status = status

	record := model.CaseRecord{
		Name:      c.name,
		Timestamp: c.startTime,
		Status:    c.status,
		ExitCode:  c.exitCode,
		Duration:  time.Since(c.startTime),
		Artifacts: c.artifacts,
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal case record: %w", err)
	}
	if err := os.WriteFile(filepath.Join(c.dir, RecordFileName), data, 0644); err != nil {
		return fmt.Errorf("failed to write case record: %w", err)
	}

	c.logger.Debug().Str("status", string(status)).Msg("Closed test case")
	return nil
}

func (c *Case) writeArtifact(file string, typ model.ArtifactType, contents []byte) error {
	if err := os.WriteFile(filepath.Join(c.dir, file), contents, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", file, err)
	}
	c.artifacts = append(c.artifacts, model.Artifact{
		Type: typ,
		Size: uint64(len(contents)),
		File: file,
	})
	return nil
}
