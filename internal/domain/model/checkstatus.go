package model

import (
	"strings"
	"time"
)

// CheckRun represents an individual CI/CD check run from the GitHub Checks API.
type CheckRun struct {
	ID          int64     // GitHub check run ID, used as primary key.
	MRID        int64     // Foreign key to merge_requests.
	Name        string    // Check run name (e.g., "build", "lint").
	Status      string    // queued, in_progress, completed, waiting, requested, pending.
	Conclusion  string    // success, failure, neutral, canceled, skipped, timed_out, action_required.
	IsRequired  bool      // From branch protection cross-reference.
	DetailsURL  string    // URL to the check run details page.
	StartedAt   time.Time // When the check run started.
	CompletedAt time.Time // When the check run completed (zero if not yet completed).
}

// CombinedStatus represents the aggregated commit status from the GitHub Status API.
type CombinedStatus struct {
	State    string         // Overall state: success, failure, pending.
	Statuses []CommitStatus // Individual status entries.
}

// CommitStatus represents an individual status entry from the GitHub Status API.
type CommitStatus struct {
	Context     string // CI service identifier (e.g., "ci/circleci").
	State       string // success, failure, pending, error.
	Description string
	TargetURL   string
}

// CombineCIStatus aggregates check runs from the Checks API and the combined
// status from the Status API into a single CIStatus value.
// Priority: failing > pending > passing > unknown.
func CombineCIStatus(checkRuns []CheckRun, combinedStatus *CombinedStatus) CIStatus {
	if len(checkRuns) == 0 && (combinedStatus == nil || len(combinedStatus.Statuses) == 0) {
		return CIStatusUnknown
	}

	var hasFailing, hasPending bool

	for _, cr := range checkRuns {
		if cr.Status == "completed" {
			switch cr.Conclusion {
			case "failure", "canceled", "cancelled", "timed_out", "action_required": //nolint:misspell // GitHub API uses British "cancelled"
				hasFailing = true
			case "success", "neutral", "skipped":
				// passing -- no flag needed
			}
		} else {
			// queued, in_progress, waiting, requested, pending
			hasPending = true
		}
	}

	if combinedStatus != nil {
		switch combinedStatus.State {
		case "failure", "error":
			hasFailing = true
		case "pending":
			hasPending = true
		case "success":
			// passing -- no flag needed
		}
	}

	if hasFailing {
		return CIStatusFailing
	}
	if hasPending {
		return CIStatusPending
	}
	return CIStatusPassing
}

// MarkRequiredChecks sets IsRequired = true on check runs whose Name matches
// any entry in requiredContexts (case-insensitive). If requiredContexts is nil
// (branch protection unavailable), all checks remain IsRequired = false.
func MarkRequiredChecks(checkRuns []CheckRun, requiredContexts []string) {
	if len(requiredContexts) == 0 {
		return
	}

	requiredSet := make(map[string]bool, len(requiredContexts))
	for _, c := range requiredContexts {
		requiredSet[strings.ToLower(c)] = true
	}

	for i := range checkRuns {
		if requiredSet[strings.ToLower(checkRuns[i].Name)] {
			checkRuns[i].IsRequired = true
		}
	}
}

// RequiredOnly narrows checkRuns to the runs flagged as required. When none
// are flagged the full list is returned, so unprotected branches gate on
// every run.
func RequiredOnly(checkRuns []CheckRun) []CheckRun {
	var required []CheckRun
	for _, cr := range checkRuns {
		if cr.IsRequired {
			required = append(required, cr)
		}
	}
	if len(required) == 0 {
		return checkRuns
	}
	return required
}
