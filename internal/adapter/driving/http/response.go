package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/mergecheck/internal/application"
	"github.com/ericfisherdev/mergecheck/internal/application/mergeability"
	"github.com/ericfisherdev/mergecheck/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// MergeRequestResponse is the JSON representation of a tracked merge request.
type MergeRequestResponse struct {
	Number          int                `json:"number"`
	Repository      string             `json:"repository"`
	Title           string             `json:"title"`
	Author          string             `json:"author"`
	State           string             `json:"state"`
	IsDraft         bool               `json:"is_draft"`
	URL             string             `json:"url"`
	Branch          string             `json:"branch"`
	BaseBranch      string             `json:"base_branch"`
	HeadSHA         string             `json:"head_sha"`
	MergeableStatus string             `json:"mergeable_status"`
	CIStatus        string             `json:"ci_status"`
	OpenedAt        string             `json:"opened_at"`
	UpdatedAt       string             `json:"updated_at"`
	Settings        SettingsResponse   `json:"settings"`
	CheckRuns       []CheckRunResponse `json:"check_runs"`
}

// CheckRunResponse is the JSON representation of an individual CI/CD check run.
type CheckRunResponse struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
	IsRequired bool   `json:"is_required"`
	DetailsURL string `json:"details_url"`
}

// SettingsResponse is the JSON representation of repository merge settings.
type SettingsResponse struct {
	RequiredApprovals       int  `json:"required_approvals"`
	RequireCIPass           bool `json:"require_ci_pass"`
	BlockOnRequestedChanges bool `json:"block_on_requested_changes"`
}

// UpdateSettingsRequest is the JSON body for the settings endpoint. Absent
// fields keep their current value.
type UpdateSettingsRequest struct {
	RequiredApprovals       *int  `json:"required_approvals" validate:"omitempty,gte=0,lte=100"`
	RequireCIPass           *bool `json:"require_ci_pass"`
	BlockOnRequestedChanges *bool `json:"block_on_requested_changes"`
}

// MergeabilityRequest is the JSON body for the mergeability endpoint. An
// empty body runs the configured default checks.
type MergeabilityRequest struct {
	Checks     []string       `json:"checks" validate:"omitempty,max=32,dive,required"`
	ExecuteAll bool           `json:"execute_all"`
	Params     map[string]any `json:"params"`
}

// MergeabilityResponse is the outcome of a mergeability run. Results are in
// run order, in the {"status", "payload"} form.
type MergeabilityResponse struct {
	Mergeable     bool                `json:"mergeable"`
	FailureReason string              `json:"failure_reason"`
	Results       []model.CheckResult `json:"results"`
}

// FeatureGateRequest is the JSON body for the feature gate endpoint. An empty
// repository sets the global value.
type FeatureGateRequest struct {
	Enabled    bool   `json:"enabled"`
	Repository string `json:"repository"`
}

// FeatureGateResponse is the JSON representation of a stored feature gate value.
type FeatureGateResponse struct {
	Name       string `json:"name"`
	Repository string `json:"repository"`
	Enabled    bool   `json:"enabled"`
	UpdatedAt  string `json:"updated_at"`
}

// ScheduleResponse is the JSON representation of a repository's sync schedule.
type ScheduleResponse struct {
	Repository string `json:"repository"`
	Tier       string `json:"tier"`
	NextSyncAt string `json:"next_sync_at"`
	LastSynced string `json:"last_synced"`
}

// RepoResponse is the JSON representation of a watched repository.
type RepoResponse struct {
	FullName string `json:"full_name"`
	Owner    string `json:"owner"`
	Name     string `json:"name"`
	AddedAt  string `json:"added_at"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// AddRepoRequest is the JSON body for the add repository endpoint.
type AddRepoRequest struct {
	FullName string `json:"full_name"`
}

// toMergeRequestResponse converts a domain MergeRequest to its JSON response
// representation. CheckRuns starts empty; the detail endpoint fills it in.
func toMergeRequestResponse(mr model.MergeRequest) MergeRequestResponse {
	return MergeRequestResponse{
		Number:          mr.Number,
		Repository:      mr.RepoFullName,
		Title:           mr.Title,
		Author:          mr.Author,
		State:           string(mr.State),
		IsDraft:         mr.IsDraft,
		URL:             mr.URL,
		Branch:          mr.Branch,
		BaseBranch:      mr.BaseBranch,
		HeadSHA:         mr.HeadSHA,
		MergeableStatus: string(mr.MergeableStatus),
		CIStatus:        string(mr.CIStatus),
		OpenedAt:        mr.OpenedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       mr.UpdatedAt.UTC().Format(time.RFC3339),
		Settings:        toSettingsResponse(mr.Settings),
		CheckRuns:       []CheckRunResponse{},
	}
}

// toCheckRunResponse converts a domain CheckRun to its JSON representation.
func toCheckRunResponse(cr model.CheckRun) CheckRunResponse {
	return CheckRunResponse{
		ID:         cr.ID,
		Name:       cr.Name,
		Status:     cr.Status,
		Conclusion: cr.Conclusion,
		IsRequired: cr.IsRequired,
		DetailsURL: cr.DetailsURL,
	}
}

func toSettingsResponse(s model.RepoSettings) SettingsResponse {
	return SettingsResponse{
		RequiredApprovals:       s.RequiredApprovals,
		RequireCIPass:           s.RequireCIPass,
		BlockOnRequestedChanges: s.BlockOnRequestedChanges,
	}
}

func toMergeabilityResponse(result *mergeability.RunResult) MergeabilityResponse {
	results := result.Results
	if results == nil {
		results = []model.CheckResult{}
	}
	return MergeabilityResponse{
		Mergeable:     result.Success(),
		FailureReason: result.FailureReason,
		Results:       results,
	}
}

func toFeatureGateResponse(g model.FeatureGate) FeatureGateResponse {
	return FeatureGateResponse{
		Name:       g.Name,
		Repository: g.RepoFullName,
		Enabled:    g.Enabled,
		UpdatedAt:  g.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toScheduleResponse(s application.ScheduleInfo) ScheduleResponse {
	return ScheduleResponse{
		Repository: s.RepoFullName,
		Tier:       s.Tier.String(),
		NextSyncAt: s.NextSyncAt.UTC().Format(time.RFC3339),
		LastSynced: s.LastSynced.UTC().Format(time.RFC3339),
	}
}

// toRepoResponse converts a domain Repository to its JSON response representation.
func toRepoResponse(repo model.Repository) RepoResponse {
	return RepoResponse{
		FullName: repo.FullName,
		Owner:    repo.Owner,
		Name:     repo.Name,
		AddedAt:  repo.AddedAt.UTC().Format(time.RFC3339),
	}
}
