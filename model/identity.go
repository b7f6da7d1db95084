package model

// BuildIdentity identifies one build of a processing binary, including
// builds taken from a dirty working tree.
type BuildIdentity struct {
	// Git commit hash of the source tree (short form)
	CommitHash string `json:"commit_hash"`
	// Disambiguates builds from the same commit with different
	// uncommitted changes; 0 means a clean tree
	DirtyIndex int `json:"dirty_index"`
	// Whether uncommitted changes existed when the identity was computed
	Dirty bool `json:"dirty"`
}

// StalenessReport describes whether a binary still reflects the current
// source tree. It is advisory only; callers decide whether to rebuild.
type StalenessReport struct {
	Stale bool `json:"stale"`
	// Human-readable explanation of the verdict
	Reason string `json:"reason,omitempty"`
}
