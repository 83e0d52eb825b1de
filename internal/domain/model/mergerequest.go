package model

import "time"

// MergeRequest represents a tracked pull request together with the settings
// of its owning repository. It is the handle every mergeability check is
// bound to.
type MergeRequest struct {
	ID              int64 // Database ID; namespaces cache keys.
	ProjectID       int64 // Database ID of the owning repository.
	RepoFullName    string
	Number          int
	Title           string
	Author          string
	State           MRState
	IsDraft         bool
	URL             string
	Branch          string
	BaseBranch      string
	HeadSHA         string // Current head commit SHA; versions cached check results.
	MergeableStatus MergeableStatus
	CIStatus        CIStatus
	OpenedAt        time.Time
	UpdatedAt       time.Time

	// Settings is the snapshot of the owning repository's merge settings,
	// loaded alongside the merge request. Defaults apply when none are stored.
	Settings RepoSettings
}

// IsOpen returns true if the merge request can still be merged.
func (mr MergeRequest) IsOpen() bool {
	return mr.State == MRStateOpen
}
