package model

import "time"

// GlobalScope is the repository value of a feature gate that applies to every
// repository without its own override.
const GlobalScope = ""

// FeatureGate is a stored on/off switch, either global or scoped to one
// repository.
type FeatureGate struct {
	Name         string
	RepoFullName string // GlobalScope for the instance-wide value.
	Enabled      bool
	UpdatedAt    time.Time
}
