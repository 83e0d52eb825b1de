package application_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ericfisherdev/mergecheck/internal/domain/model"
	"github.com/ericfisherdev/mergecheck/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockGitHubClient struct {
	mu        sync.Mutex
	prs       map[string][]model.MergeRequest
	prsErr    error
	mergeable map[int]model.MergeableStatus
	reviews   map[int][]model.Review
	runs      map[string][]model.CheckRun
	runsErr   error
	combined  *model.CombinedStatus
	required  []string
	fetched   []string
}

func (m *mockGitHubClient) FetchPullRequests(_ context.Context, repoFullName string, _ string) ([]model.MergeRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetched = append(m.fetched, repoFullName)
	if m.prsErr != nil {
		return nil, m.prsErr
	}
	return append([]model.MergeRequest(nil), m.prs[repoFullName]...), nil
}

func (m *mockGitHubClient) FetchMergeableStatus(_ context.Context, _ string, number int) (model.MergeableStatus, error) {
	if status, ok := m.mergeable[number]; ok {
		return status, nil
	}
	return model.MergeableUnknown, nil
}

func (m *mockGitHubClient) FetchReviews(_ context.Context, _ string, number int) ([]model.Review, error) {
	return append([]model.Review(nil), m.reviews[number]...), nil
}

func (m *mockGitHubClient) FetchCheckRuns(_ context.Context, _ string, ref string) ([]model.CheckRun, error) {
	if m.runsErr != nil {
		return nil, m.runsErr
	}
	return append([]model.CheckRun(nil), m.runs[ref]...), nil
}

func (m *mockGitHubClient) FetchCombinedStatus(_ context.Context, _ string, _ string) (*model.CombinedStatus, error) {
	return m.combined, nil
}

func (m *mockGitHubClient) FetchRequiredStatusChecks(_ context.Context, _ string, _ string) ([]string, error) {
	return m.required, nil
}

func (m *mockGitHubClient) fetchedRepos() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.fetched...)
}

type deleteCall struct {
	RepoFullName string
	Number       int
}

// mockMRStore keeps merge requests keyed by repository and number.
type mockMRStore struct {
	mu      sync.Mutex
	nextID  int64
	byRepo  map[string]map[int]model.MergeRequest
	upserts []model.MergeRequest
	deletes []deleteCall
	getErr  error
}

func newMockMRStore(stored ...model.MergeRequest) *mockMRStore {
	s := &mockMRStore{nextID: 100, byRepo: make(map[string]map[int]model.MergeRequest)}
	for _, mr := range stored {
		s.put(mr)
	}
	return s
}

func (m *mockMRStore) put(mr model.MergeRequest) int64 {
	if m.byRepo[mr.RepoFullName] == nil {
		m.byRepo[mr.RepoFullName] = make(map[int]model.MergeRequest)
	}
	if prev, ok := m.byRepo[mr.RepoFullName][mr.Number]; ok && prev.ID != 0 {
		mr.ID = prev.ID
	}
	if mr.ID == 0 {
		m.nextID++
		mr.ID = m.nextID
	}
	if mr.Settings.RepoFullName == "" {
		mr.Settings = model.DefaultRepoSettings(mr.RepoFullName)
	}
	m.byRepo[mr.RepoFullName][mr.Number] = mr
	return mr.ID
}

func (m *mockMRStore) Upsert(_ context.Context, mr model.MergeRequest) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts = append(m.upserts, mr)
	return m.put(mr), nil
}

func (m *mockMRStore) GetByNumber(_ context.Context, repoFullName string, number int) (*model.MergeRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	mr, ok := m.byRepo[repoFullName][number]
	if !ok {
		return nil, driven.ErrMergeRequestNotFound
	}
	return &mr, nil
}

func (m *mockMRStore) ListByRepository(_ context.Context, repoFullName string) ([]model.MergeRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var mrs []model.MergeRequest
	for _, mr := range m.byRepo[repoFullName] {
		mrs = append(mrs, mr)
	}
	return mrs, nil
}

func (m *mockMRStore) Delete(_ context.Context, repoFullName string, number int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byRepo[repoFullName][number]; !ok {
		return driven.ErrMergeRequestNotFound
	}
	delete(m.byRepo[repoFullName], number)
	m.deletes = append(m.deletes, deleteCall{RepoFullName: repoFullName, Number: number})
	return nil
}

type mockRepoStore struct {
	repos []model.Repository
}

func (m *mockRepoStore) Add(_ context.Context, _ model.Repository) error { return nil }

func (m *mockRepoStore) Remove(_ context.Context, _ string) error { return nil }

func (m *mockRepoStore) GetByFullName(_ context.Context, _ string) (*model.Repository, error) {
	return nil, nil
}

func (m *mockRepoStore) ListAll(_ context.Context) ([]model.Repository, error) {
	return m.repos, nil
}

type mockReviewStore struct {
	mu       sync.Mutex
	byMR     map[int64][]model.Review
	getErr   error
	replaced []int64
}

func newMockReviewStore() *mockReviewStore {
	return &mockReviewStore{byMR: make(map[int64][]model.Review)}
}

func (m *mockReviewStore) ReplaceReviewsForMR(_ context.Context, mrID int64, reviews []model.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byMR[mrID] = reviews
	m.replaced = append(m.replaced, mrID)
	return nil
}

func (m *mockReviewStore) GetReviewsByMR(_ context.Context, mrID int64) ([]model.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.byMR[mrID], nil
}

type mockCheckStore struct {
	mu   sync.Mutex
	byMR map[int64][]model.CheckRun
}

func newMockCheckStore() *mockCheckStore {
	return &mockCheckStore{byMR: make(map[int64][]model.CheckRun)}
}

func (m *mockCheckStore) ReplaceCheckRunsForMR(_ context.Context, mrID int64, runs []model.CheckRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byMR[mrID] = runs
	return nil
}

func (m *mockCheckStore) GetCheckRunsByMR(_ context.Context, mrID int64) ([]model.CheckRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byMR[mrID], nil
}

type mockPurger struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (m *mockPurger) PurgeExpired(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return 3, m.err
}

func (m *mockPurger) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type counterKey struct{}

// mockCounter counts one "db_count" per Snapshot call on a tracked context.
type mockCounter struct {
	tracked int
}

func (m *mockCounter) Track(ctx context.Context) context.Context {
	if ctx.Value(counterKey{}) != nil {
		return ctx
	}
	m.tracked++
	return context.WithValue(ctx, counterKey{}, new(float64))
}

func (m *mockCounter) Snapshot(ctx context.Context) map[string]float64 {
	n, ok := ctx.Value(counterKey{}).(*float64)
	if !ok {
		return map[string]float64{}
	}
	*n++
	return map[string]float64{"db_count": *n}
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

type recordingSink struct {
	records []map[string]any
}

func (s *recordingSink) Emit(_ context.Context, record map[string]any) {
	s.records = append(s.records, record)
}

type staticGate bool

func (g staticGate) IsEnabled(_ context.Context, _ string, _ string) (bool, error) {
	return bool(g), nil
}

var errGitHubDown = errors.New("github unavailable")
