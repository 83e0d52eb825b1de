package model

import "time"

// Repository represents a GitHub repository watched by mergecheck. It is the
// owning project of its merge requests.
type Repository struct {
	ID       int64
	FullName string
	Owner    string
	Name     string
	AddedAt  time.Time
}
