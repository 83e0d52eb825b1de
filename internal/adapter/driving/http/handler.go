// Package httphandler is the REST driving adapter of mergecheck.
package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ericfisherdev/mergecheck/internal/application"
	"github.com/ericfisherdev/mergecheck/internal/application/mergeability"
	"github.com/ericfisherdev/mergecheck/internal/domain/model"
	"github.com/ericfisherdev/mergecheck/internal/domain/port/driven"
)

const (
	healthPath  = "/api/v1/health"
	metricsPath = "/metrics"
	tracerName  = "github.com/ericfisherdev/mergecheck/http"
)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	repoStore     driven.RepoStore
	settingsStore driven.RepoSettingsStore
	mrStore       driven.MergeRequestStore
	checkStore    driven.CheckStore
	gateStore     driven.FeatureGateStore
	mergeSvc      *application.MergeabilityService
	syncSvc       *application.SyncService
	validate      *validator.Validate
	logger        *slog.Logger
}

// NewHandler creates a Handler with all required dependencies. syncSvc may be
// nil when no GitHub credentials are configured.
func NewHandler(
	repoStore driven.RepoStore,
	settingsStore driven.RepoSettingsStore,
	mrStore driven.MergeRequestStore,
	checkStore driven.CheckStore,
	gateStore driven.FeatureGateStore,
	mergeSvc *application.MergeabilityService,
	syncSvc *application.SyncService,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		repoStore:     repoStore,
		settingsStore: settingsStore,
		mrStore:       mrStore,
		checkStore:    checkStore,
		gateStore:     gateStore,
		mergeSvc:      mergeSvc,
		syncSvc:       syncSvc,
		validate:      validator.New(),
		logger:        logger,
	}
}

// MuxOptions configures the middleware stack and the metrics endpoint.
type MuxOptions struct {
	Limiter  *rate.Limiter       // nil disables rate limiting
	Gatherer prometheus.Gatherer // defaults to prometheus.DefaultGatherer
	Tracer   trace.Tracer        // defaults to the global tracer provider
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging, correlation, rate limiting and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger, opts MuxOptions) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+healthPath, h.Health)
	mux.HandleFunc("GET /api/v1/repos", h.ListRepos)
	mux.HandleFunc("POST /api/v1/repos", h.AddRepo)
	mux.HandleFunc("DELETE /api/v1/repos/{owner}/{repo}", h.RemoveRepo)
	mux.HandleFunc("PUT /api/v1/repos/{owner}/{repo}/settings", h.UpdateSettings)
	mux.HandleFunc("POST /api/v1/repos/{owner}/{repo}/refresh", h.RefreshRepo)
	mux.HandleFunc("GET /api/v1/repos/{owner}/{repo}/mrs", h.ListMergeRequests)
	mux.HandleFunc("GET /api/v1/repos/{owner}/{repo}/mrs/{number}", h.GetMergeRequest)
	mux.HandleFunc("POST /api/v1/repos/{owner}/{repo}/mrs/{number}/mergeability", h.RunMergeability)
	mux.HandleFunc("GET /api/v1/features", h.ListFeatures)
	mux.HandleFunc("PUT /api/v1/features/{name}", h.SetFeature)
	mux.HandleFunc("GET /api/v1/sync/schedules", h.ListSchedules)

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux.Handle("GET "+metricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	if opts.Limiter != nil {
		wrapped = rateLimitMiddleware(opts.Limiter, wrapped)
	}
	wrapped = correlationMiddleware(tracer, wrapped)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// ListRepos returns all watched repositories.
func (h *Handler) ListRepos(w http.ResponseWriter, r *http.Request) {
	repos, err := h.repoStore.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list repos", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]RepoResponse, 0, len(repos))
	for _, repo := range repos {
		resp = append(resp, toRepoResponse(repo))
	}

	writeJSON(w, http.StatusOK, resp)
}

// AddRepo adds a repository to the watch list and triggers an async refresh.
func (h *Handler) AddRepo(w http.ResponseWriter, r *http.Request) {
	var req AddRepoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !isValidRepoName(req.FullName) {
		writeError(w, http.StatusBadRequest, "invalid repository name: expected owner/repo format")
		return
	}

	parts := strings.SplitN(req.FullName, "/", 2)
	repo := model.Repository{
		FullName: req.FullName,
		Owner:    parts[0],
		Name:     parts[1],
		AddedAt:  time.Now().UTC(),
	}

	if err := h.repoStore.Add(r.Context(), repo); err != nil {
		if errors.Is(err, driven.ErrRepoAlreadyExists) {
			writeError(w, http.StatusConflict, "repository already exists")
			return
		}
		h.logger.Error("failed to add repo", "repo", req.FullName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	// Fire-and-forget async refresh with background context since the HTTP
	// request context will be cancelled after the response is sent.
	if h.syncSvc != nil {
		go func() {
			if err := h.syncSvc.RefreshRepo(context.Background(), req.FullName); err != nil {
				h.logger.Error("async repo refresh failed", "repo", req.FullName, "error", err)
			}
		}()
	}

	writeJSON(w, http.StatusCreated, toRepoResponse(repo))
}

// RemoveRepo removes a repository from the watch list together with its
// merge requests.
func (h *Handler) RemoveRepo(w http.ResponseWriter, r *http.Request) {
	fullName := repoFromPath(r)

	if err := h.repoStore.Remove(r.Context(), fullName); err != nil {
		if errors.Is(err, driven.ErrRepoNotFound) {
			writeError(w, http.StatusNotFound, "repository not found")
			return
		}
		h.logger.Error("failed to remove repo", "repo", fullName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpdateSettings changes the merge settings of a watched repository.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	fullName := repoFromPath(r)

	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "required_approvals must be between 0 and 100")
		return
	}

	if !h.repoExists(w, r, fullName) {
		return
	}

	current, err := h.settingsStore.GetSettings(r.Context(), fullName)
	if err != nil {
		h.logger.Error("failed to get settings", "repo", fullName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	settings := model.DefaultRepoSettings(fullName)
	if current != nil {
		settings = *current
	}

	if req.RequiredApprovals != nil {
		settings.RequiredApprovals = *req.RequiredApprovals
	}
	if req.RequireCIPass != nil {
		settings.RequireCIPass = *req.RequireCIPass
	}
	if req.BlockOnRequestedChanges != nil {
		settings.BlockOnRequestedChanges = *req.BlockOnRequestedChanges
	}

	if err := h.settingsStore.SetSettings(r.Context(), settings); err != nil {
		h.logger.Error("failed to set settings", "repo", fullName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toSettingsResponse(settings))
}

// RefreshRepo synchronously re-syncs a repository from GitHub.
func (h *Handler) RefreshRepo(w http.ResponseWriter, r *http.Request) {
	fullName := repoFromPath(r)

	if h.syncSvc == nil {
		writeError(w, http.StatusServiceUnavailable, "sync is disabled: no GitHub token configured")
		return
	}

	if !h.repoExists(w, r, fullName) {
		return
	}

	if err := h.syncSvc.RefreshRepo(r.Context(), fullName); err != nil {
		h.logger.Error("repo refresh failed", "repo", fullName, "error", err)
		writeError(w, http.StatusBadGateway, "refresh failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListMergeRequests returns the tracked merge requests of a repository.
func (h *Handler) ListMergeRequests(w http.ResponseWriter, r *http.Request) {
	fullName := repoFromPath(r)

	mrs, err := h.mrStore.ListByRepository(r.Context(), fullName)
	if err != nil {
		h.logger.Error("failed to list merge requests", "repo", fullName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]MergeRequestResponse, 0, len(mrs))
	for _, mr := range mrs {
		resp = append(resp, toMergeRequestResponse(mr))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetMergeRequest returns a single merge request with its check runs.
func (h *Handler) GetMergeRequest(w http.ResponseWriter, r *http.Request) {
	fullName := repoFromPath(r)
	number, ok := numberFromPath(w, r)
	if !ok {
		return
	}

	mr, err := h.mrStore.GetByNumber(r.Context(), fullName, number)
	if err != nil {
		if errors.Is(err, driven.ErrMergeRequestNotFound) {
			writeError(w, http.StatusNotFound, "merge request not found")
			return
		}
		h.logger.Error("failed to get merge request", "repo", fullName, "number", number, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := toMergeRequestResponse(*mr)

	runs, err := h.checkStore.GetCheckRunsByMR(r.Context(), mr.ID)
	if err != nil {
		// Degrade to an empty list; the merge request itself is still useful.
		h.logger.Error("failed to get check runs", "repo", fullName, "number", number, "error", err)
	}
	for _, cr := range runs {
		resp.CheckRuns = append(resp.CheckRuns, toCheckRunResponse(cr))
	}

	writeJSON(w, http.StatusOK, resp)
}

// RunMergeability runs mergeability checks against a merge request.
func (h *Handler) RunMergeability(w http.ResponseWriter, r *http.Request) {
	fullName := repoFromPath(r)
	number, ok := numberFromPath(w, r)
	if !ok {
		return
	}

	var req MergeabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "checks must be a list of at most 32 non-empty identities")
		return
	}

	result, err := h.mergeSvc.Run(r.Context(), fullName, number, application.RunRequest{
		Checks:     req.Checks,
		Params:     mergeability.Params(req.Params),
		ExecuteAll: req.ExecuteAll,
	})
	if err != nil {
		var checkErr *mergeability.CheckError
		switch {
		case errors.Is(err, driven.ErrMergeRequestNotFound):
			writeError(w, http.StatusNotFound, "merge request not found")
		case errors.Is(err, mergeability.ErrUnknownCheck), errors.Is(err, mergeability.ErrNoChecks):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &checkErr):
			h.logger.Error("mergeability check failed",
				"repo", fullName, "number", number, "check", checkErr.Identity, "error", err)
			writeError(w, http.StatusInternalServerError, "mergeability check could not be evaluated")
		default:
			h.logger.Error("mergeability run failed", "repo", fullName, "number", number, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, toMergeabilityResponse(result))
}

// ListFeatures returns every stored feature gate value.
func (h *Handler) ListFeatures(w http.ResponseWriter, r *http.Request) {
	gates, err := h.gateStore.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list feature gates", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]FeatureGateResponse, 0, len(gates))
	for _, g := range gates {
		resp = append(resp, toFeatureGateResponse(g))
	}

	writeJSON(w, http.StatusOK, resp)
}

// SetFeature turns a feature gate on or off globally or for one repository.
func (h *Handler) SetFeature(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req FeatureGateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Repository != model.GlobalScope && !isValidRepoName(req.Repository) {
		writeError(w, http.StatusBadRequest, "invalid repository name: expected owner/repo format")
		return
	}

	gate := model.FeatureGate{
		Name:         name,
		RepoFullName: req.Repository,
		Enabled:      req.Enabled,
		UpdatedAt:    time.Now().UTC(),
	}
	if err := h.gateStore.Set(r.Context(), gate); err != nil {
		h.logger.Error("failed to set feature gate", "gate", name, "repo", req.Repository, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toFeatureGateResponse(gate))
}

// ListSchedules returns the adaptive sync schedule of every synced repository.
func (h *Handler) ListSchedules(w http.ResponseWriter, _ *http.Request) {
	resp := []ScheduleResponse{}
	if h.syncSvc != nil {
		for _, s := range h.syncSvc.Schedules() {
			resp = append(resp, toScheduleResponse(s))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// repoExists writes a 404 and returns false when fullName is not watched.
func (h *Handler) repoExists(w http.ResponseWriter, r *http.Request, fullName string) bool {
	repo, err := h.repoStore.GetByFullName(r.Context(), fullName)
	if err != nil {
		h.logger.Error("failed to get repo", "repo", fullName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return false
	}
	if repo == nil {
		writeError(w, http.StatusNotFound, "repository not found")
		return false
	}
	return true
}

func repoFromPath(r *http.Request) string {
	return r.PathValue("owner") + "/" + r.PathValue("repo")
}

// numberFromPath parses the merge request number, writing a 400 on failure.
func numberFromPath(w http.ResponseWriter, r *http.Request) (int, bool) {
	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil || number <= 0 {
		writeError(w, http.StatusBadRequest, "invalid merge request number")
		return 0, false
	}
	return number, true
}

// isValidRepoName validates that name is in owner/repo format where each part
// contains only alphanumeric characters, hyphens, dots, or underscores.
func isValidRepoName(name string) bool {
	parts := strings.SplitN(name, "/", 3)
	if len(parts) != 2 {
		return false
	}

	for _, part := range parts {
		if part == "" {
			return false
		}
		for _, ch := range part {
			if !isValidRepoChar(ch) {
				return false
			}
		}
	}

	return true
}

// isValidRepoChar returns true if the rune is allowed in a repository owner or name.
func isValidRepoChar(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') ||
		ch == '-' || ch == '.' || ch == '_'
}
