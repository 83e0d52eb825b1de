package application

import (
	"sort"
	"sync"
	"time"

	"github.com/ericfisherdev/mergecheck/internal/domain/model"
)

// ActivityTier classifies a repository by how recently its merge requests
// changed. Busier repositories are synced more often.
type ActivityTier int

const (
	// TierHot indicates activity within the last hour. Synced every 2 minutes.
	TierHot ActivityTier = iota
	// TierActive indicates activity within the last day. Synced every 5 minutes.
	TierActive
	// TierWarm indicates activity within the last 7 days. Synced every 15 minutes.
	TierWarm
	// TierStale indicates no activity for 7+ days. Synced every 30 minutes.
	TierStale
)

// Sync intervals per activity tier.
const (
	intervalHot    = 2 * time.Minute
	intervalActive = 5 * time.Minute
	intervalWarm   = 15 * time.Minute
	intervalStale  = 30 * time.Minute
)

// String returns a human-readable name for the activity tier.
func (t ActivityTier) String() string {
	switch t {
	case TierHot:
		return "hot"
	case TierActive:
		return "active"
	case TierWarm:
		return "warm"
	case TierStale:
		return "stale"
	default:
		return "unknown"
	}
}

// tierInterval returns the sync interval for the given activity tier.
func tierInterval(tier ActivityTier) time.Duration {
	switch tier {
	case TierHot:
		return intervalHot
	case TierActive:
		return intervalActive
	case TierWarm:
		return intervalWarm
	case TierStale:
		return intervalStale
	default:
		return intervalActive
	}
}

// classifyActivity determines the activity tier from the time elapsed between
// lastActivity and now. A zero-value time is treated as TierStale.
func classifyActivity(lastActivity, now time.Time) ActivityTier {
	if lastActivity.IsZero() {
		return TierStale
	}

	elapsed := now.Sub(lastActivity)

	switch {
	case elapsed < 1*time.Hour:
		return TierHot
	case elapsed < 24*time.Hour:
		return TierActive
	case elapsed < 7*24*time.Hour:
		return TierWarm
	default:
		return TierStale
	}
}

// freshestActivity finds the most recent UpdatedAt across all merge requests.
// Returns the zero time if the slice is empty, which classifies as TierStale.
func freshestActivity(mrs []model.MergeRequest) time.Time {
	var newest time.Time
	for _, mr := range mrs {
		if mr.UpdatedAt.After(newest) {
			newest = mr.UpdatedAt
		}
	}
	return newest
}

// repoSchedule tracks per-repository adaptive sync state.
type repoSchedule struct {
	tier       ActivityTier
	nextSyncAt time.Time
	lastSynced time.Time
}

// ScheduleInfo is an exported view of a repo's adaptive sync schedule,
// used for observability and testing.
type ScheduleInfo struct {
	RepoFullName string
	Tier         ActivityTier
	NextSyncAt   time.Time
	LastSynced   time.Time
}

// scheduler holds the adaptive schedule of every watched repository. A
// repository it has never seen is always due.
type scheduler struct {
	mu        sync.Mutex
	schedules map[string]*repoSchedule
}

func newScheduler() *scheduler {
	return &scheduler{schedules: make(map[string]*repoSchedule)}
}

// due returns the repositories whose next sync time has passed, in input order.
func (s *scheduler) due(repos []model.Repository, now time.Time) []model.Repository {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []model.Repository
	for _, repo := range repos {
		sched, ok := s.schedules[repo.FullName]
		if !ok || !now.Before(sched.nextSyncAt) {
			due = append(due, repo)
		}
	}
	return due
}

// record reclassifies a repository after a successful sync.
func (s *scheduler) record(repoFullName string, mrs []model.MergeRequest, now time.Time) ActivityTier {
	tier := classifyActivity(freshestActivity(mrs), now)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.schedules[repoFullName] = &repoSchedule{
		tier:       tier,
		nextSyncAt: now.Add(tierInterval(tier)),
		lastSynced: now,
	}
	return tier
}

// forget drops repositories that are no longer watched.
func (s *scheduler) forget(watched []model.Repository) {
	keep := make(map[string]bool, len(watched))
	for _, repo := range watched {
		keep[repo.FullName] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for name := range s.schedules {
		if !keep[name] {
			delete(s.schedules, name)
		}
	}
}

// snapshot returns the current schedules sorted by repository name.
func (s *scheduler) snapshot() []ScheduleInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]ScheduleInfo, 0, len(s.schedules))
	for name, sched := range s.schedules {
		infos = append(infos, ScheduleInfo{
			RepoFullName: name,
			Tier:         sched.tier,
			NextSyncAt:   sched.nextSyncAt,
			LastSynced:   sched.lastSynced,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].RepoFullName < infos[j].RepoFullName })
	return infos
}
