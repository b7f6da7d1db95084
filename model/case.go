package model

import (
	"strconv"
	"strings"
	"time"
)

// Separator joins the components of a serialized test case name.
const Separator = "_"

// TestCaseName names one run of one binary build against one dataset.
// Its serialized form is the output folder name.
type TestCaseName struct {
	// Build identity shared by all cases of a suite
	Identity BuildIdentity `json:"identity"`
	// camelCase-normalized dataset identifier
	Dataset string `json:"dataset"`
	// Optional sanitized free-text suffix
	Description string `json:"description,omitempty"`
}

// String serializes the name as
// <commitHash>_<dirtyIndex>_<dataset>[_<description>].
// No component contains the separator, so the result is injective.
func (n TestCaseName) String() string {
	parts := []string{n.Identity.CommitHash, strconv.Itoa(n.Identity.DirtyIndex), n.Dataset}
	if n.Description != "" {
		parts = append(parts, n.Description)
	}
	return strings.Join(parts, Separator)
}

// Status is the lifecycle state of a test case.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status is a final one.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// ArtifactType identifies the type of artifact stored in a case directory.
type ArtifactType string

const (
	ArtifactTypePatch        ArtifactType = "patch"
	ArtifactTypeBranchPatch  ArtifactType = "branch_patch"
	ArtifactTypeConfig       ArtifactType = "config"
	ArtifactTypeLog          ArtifactType = "log"
	ArtifactTypeBinaryOutput ArtifactType = "binary_output"
)

// Artifact represents a file stored in a case directory.
type Artifact struct {
	Type ArtifactType `json:"type"`
	Size uint64       `json:"size"`
	File string       `json:"file"` // relative to the case directory
}

// CaseRecord is the metadata document persisted as case.json in every
// case directory. It is the durable record of the run; once a case is
// closed the record is never mutated again.
type CaseRecord struct {
	Name TestCaseName `json:"name"`
	// Timestamp when the case was opened
	Timestamp time.Time `json:"timestamp"`
	// Final status of the run
	Status Status `json:"status"`
	// Exit code of the external binary (meaningful once terminal)
	ExitCode int `json:"exit_code"`
	// Wall-clock duration of the run
	Duration time.Duration `json:"duration"`
	// Artifacts written into the case directory
	Artifacts []Artifact `json:"artifacts,omitempty"`
}
