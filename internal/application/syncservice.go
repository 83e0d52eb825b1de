// Package application contains use-case orchestration services.
package application

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/mergecheck/internal/domain/model"
	"github.com/ericfisherdev/mergecheck/internal/domain/port/driven"
)

// DefaultSyncConcurrency is the number of repositories synced in parallel.
const DefaultSyncConcurrency = 4

// refreshRequest represents a manual refresh trigger.
type refreshRequest struct {
	repoFullName string
	done         chan error
}

// SyncService keeps stored merge requests, reviews and check runs in step
// with GitHub so mergeability checks evaluate fresh data.
type SyncService struct {
	ghClient    driven.GitHubClient
	mrStore     driven.MergeRequestStore
	repoStore   driven.RepoStore
	reviewStore driven.ReviewStore
	checkStore  driven.CheckStore
	purger      driven.CachePurger
	tick        time.Duration
	concurrency int
	schedule    *scheduler
	refreshCh   chan refreshRequest
	logger      *slog.Logger
	now         func() time.Time
}

// NewSyncService creates a new SyncService. tick is how often the loop wakes
// up to look for repositories whose adaptive schedule is due.
func NewSyncService(
	ghClient driven.GitHubClient,
	mrStore driven.MergeRequestStore,
	repoStore driven.RepoStore,
	reviewStore driven.ReviewStore,
	checkStore driven.CheckStore,
	tick time.Duration,
	logger *slog.Logger,
) *SyncService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncService{
		ghClient:    ghClient,
		mrStore:     mrStore,
		repoStore:   repoStore,
		reviewStore: reviewStore,
		checkStore:  checkStore,
		tick:        tick,
		concurrency: DefaultSyncConcurrency,
		schedule:    newScheduler(),
		refreshCh:   make(chan refreshRequest),
		logger:      logger,
		now:         time.Now,
	}
}

// WithCachePurger makes every sync cycle sweep expired cache entries.
func (s *SyncService) WithCachePurger(purger driven.CachePurger) *SyncService {
	s.purger = purger
	return s
}

// Start runs an immediate full sync, then wakes up on every tick to sync the
// repositories that are due. It also serves manual refresh requests. Start
// blocks until the context is canceled.
func (s *SyncService) Start(ctx context.Context) {
	if err := s.syncAll(ctx, true); err != nil {
		s.logger.Error("initial sync failed", "error", err)
	}

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync service stopped")
			return
		case <-ticker.C:
			if err := s.syncAll(ctx, false); err != nil {
				s.logger.Error("sync cycle failed", "error", err)
			}
		case req := <-s.refreshCh:
			req.done <- s.handleRefresh(ctx, req)
		}
	}
}

// RefreshRepo triggers a manual sync of one repository, bypassing its
// schedule. An empty name refreshes every repository. It blocks until the
// refresh completes or the context is canceled.
func (s *SyncService) RefreshRepo(ctx context.Context, repoFullName string) error {
	done := make(chan error, 1)
	req := refreshRequest{
		repoFullName: repoFullName,
		done:         done,
	}

	select {
	case s.refreshCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Schedules returns the adaptive schedule of every synced repository.
func (s *SyncService) Schedules() []ScheduleInfo {
	return s.schedule.snapshot()
}

// syncAll syncs watched repositories concurrently. Without force only
// repositories whose schedule is due are synced. Per-repository failures are
// logged and do not fail the cycle.
func (s *SyncService) syncAll(ctx context.Context, force bool) error {
	start := s.now()

	repos, err := s.repoStore.ListAll(ctx)
	if err != nil {
		return err
	}
	s.schedule.forget(repos)

	due := repos
	if !force {
		due = s.schedule.due(repos, start)
	}

	var syncErrors atomic.Int64
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, repo := range due {
		g.Go(func() error {
			if gCtx.Err() != nil {
				return gCtx.Err()
			}
			if err := s.syncRepo(gCtx, repo.FullName); err != nil {
				s.logger.Error("repo sync failed", "repo", repo.FullName, "error", err)
				syncErrors.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.purgeCache(ctx)

	s.logger.Info("sync cycle complete",
		"repos", len(repos),
		"due", len(due),
		"errors", syncErrors.Load(),
		"duration", s.now().Sub(start).Round(time.Millisecond),
	)

	return nil
}

// syncRepo reconciles the stored merge requests of one repository with the
// open pull requests on GitHub.
func (s *SyncService) syncRepo(ctx context.Context, repoFullName string) error {
	fetched, err := s.ghClient.FetchPullRequests(ctx, repoFullName, "open")
	if err != nil {
		return err
	}

	stored, err := s.mrStore.ListByRepository(ctx, repoFullName)
	if err != nil {
		return err
	}

	storedByNumber := make(map[int]model.MergeRequest, len(stored))
	for _, mr := range stored {
		storedByNumber[mr.Number] = mr
	}

	fetchedNumbers := make(map[int]bool, len(fetched))
	var synced, skippedUnchanged int

	for _, mr := range fetched {
		fetchedNumbers[mr.Number] = true

		if prev, ok := storedByNumber[mr.Number]; ok && unchanged(prev, mr) {
			skippedUnchanged++
			continue
		}

		if err := s.syncMergeRequest(ctx, mr); err != nil {
			s.logger.Error("merge request sync failed", "repo", repoFullName, "mr", mr.Number, "error", err)
			continue
		}
		synced++
	}

	var cleanedUp int
	for _, mr := range stored {
		if fetchedNumbers[mr.Number] {
			continue
		}
		if err := s.mrStore.Delete(ctx, repoFullName, mr.Number); err != nil {
			s.logger.Error("stale cleanup failed", "repo", repoFullName, "mr", mr.Number, "error", err)
			continue
		}
		cleanedUp++
		s.logger.Info("cleaned up merge request no longer open", "repo", repoFullName, "mr", mr.Number)
	}

	tier := s.schedule.record(repoFullName, fetched, s.now())

	s.logger.Info("repo synced",
		"repo", repoFullName,
		"fetched", len(fetched),
		"synced", synced,
		"skipped_unchanged", skippedUnchanged,
		"cleaned_up", cleanedUp,
		"tier", tier.String(),
	)

	return nil
}

// unchanged reports whether a stored merge request is still current. A
// pending mergeable verdict is always re-fetched since GitHub computes it
// asynchronously.
func unchanged(stored, fetched model.MergeRequest) bool {
	return stored.UpdatedAt.Equal(fetched.UpdatedAt) &&
		stored.HeadSHA == fetched.HeadSHA &&
		stored.MergeableStatus != model.MergeableUnknown
}

// syncMergeRequest enriches one merge request with its mergeable verdict and
// CI status, persists it and replaces its reviews and check runs. Enrichment
// failures are logged and leave the affected field unknown.
func (s *SyncService) syncMergeRequest(ctx context.Context, mr model.MergeRequest) error {
	status, err := s.ghClient.FetchMergeableStatus(ctx, mr.RepoFullName, mr.Number)
	if err != nil {
		s.logger.Error("fetch mergeable status failed", "repo", mr.RepoFullName, "mr", mr.Number, "error", err)
	} else {
		mr.MergeableStatus = status
	}

	checkRuns, checksErr := s.fetchCheckRuns(ctx, mr)
	if checksErr == nil {
		mr.CIStatus = model.CombineCIStatus(model.RequiredOnly(checkRuns.runs), checkRuns.combined)
	}

	id, err := s.mrStore.Upsert(ctx, mr)
	if err != nil {
		return err
	}

	reviews, err := s.ghClient.FetchReviews(ctx, mr.RepoFullName, mr.Number)
	if err != nil {
		s.logger.Error("fetch reviews failed", "repo", mr.RepoFullName, "mr", mr.Number, "error", err)
	} else {
		for i := range reviews {
			reviews[i].MRID = id
		}
		if err := s.reviewStore.ReplaceReviewsForMR(ctx, id, reviews); err != nil {
			s.logger.Error("replace reviews failed", "repo", mr.RepoFullName, "mr", mr.Number, "error", err)
		}
	}

	if checksErr == nil {
		for i := range checkRuns.runs {
			checkRuns.runs[i].MRID = id
		}
		if err := s.checkStore.ReplaceCheckRunsForMR(ctx, id, checkRuns.runs); err != nil {
			s.logger.Error("replace check runs failed", "repo", mr.RepoFullName, "mr", mr.Number, "error", err)
		}
	}

	s.logger.Debug("merge request synced",
		"repo", mr.RepoFullName,
		"mr", mr.Number,
		"reviews", len(reviews),
		"check_runs", len(checkRuns.runs),
		"ci_status", string(mr.CIStatus),
		"mergeable_status", string(mr.MergeableStatus),
	)

	return nil
}

type ciSnapshot struct {
	runs     []model.CheckRun
	combined *model.CombinedStatus
}

// fetchCheckRuns loads check runs, the combined commit status and the branch
// protection contexts for the head commit. Only a check run failure is
// returned; the other two degrade to "not configured".
func (s *SyncService) fetchCheckRuns(ctx context.Context, mr model.MergeRequest) (ciSnapshot, error) {
	runs, err := s.ghClient.FetchCheckRuns(ctx, mr.RepoFullName, mr.HeadSHA)
	if err != nil {
		s.logger.Error("fetch check runs failed", "repo", mr.RepoFullName, "mr", mr.Number, "error", err)
		return ciSnapshot{}, err
	}

	combined, err := s.ghClient.FetchCombinedStatus(ctx, mr.RepoFullName, mr.HeadSHA)
	if err != nil {
		s.logger.Error("fetch combined status failed", "repo", mr.RepoFullName, "mr", mr.Number, "error", err)
	}

	required, err := s.ghClient.FetchRequiredStatusChecks(ctx, mr.RepoFullName, mr.BaseBranch)
	if err != nil {
		s.logger.Error("fetch required status checks failed", "repo", mr.RepoFullName, "mr", mr.Number, "error", err)
	}

	model.MarkRequiredChecks(runs, required)

	return ciSnapshot{runs: runs, combined: combined}, nil
}

// purgeCache sweeps expired result cache entries. Failures are logged only.
func (s *SyncService) purgeCache(ctx context.Context) {
	if s.purger == nil {
		return
	}
	n, err := s.purger.PurgeExpired(ctx)
	if err != nil {
		s.logger.Warn("cache purge failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Debug("expired cache entries purged", "count", n)
	}
}

// handleRefresh dispatches a manual refresh request.
func (s *SyncService) handleRefresh(ctx context.Context, req refreshRequest) error {
	if req.repoFullName != "" {
		return s.syncRepo(ctx, req.repoFullName)
	}
	return s.syncAll(ctx, true)
}
