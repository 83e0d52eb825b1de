package model

// Default repository merge settings applied when none are stored.
const (
	DefaultRequiredApprovals       = 1
	DefaultRequireCIPass           = true
	DefaultBlockOnRequestedChanges = true
)

// RepoSettings holds per-repository merge requirements consumed by the
// mergeability checks.
type RepoSettings struct {
	RepoFullName            string
	RequiredApprovals       int
	RequireCIPass           bool
	BlockOnRequestedChanges bool
}

// DefaultRepoSettings returns the settings applied to a repository that has
// no stored overrides.
func DefaultRepoSettings(repoFullName string) RepoSettings {
	return RepoSettings{
		RepoFullName:            repoFullName,
		RequiredApprovals:       DefaultRequiredApprovals,
		RequireCIPass:           DefaultRequireCIPass,
		BlockOnRequestedChanges: DefaultBlockOnRequestedChanges,
	}
}
