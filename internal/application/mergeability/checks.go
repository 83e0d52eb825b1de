package mergeability

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ericfisherdev/mergecheck/internal/domain/model"
	"github.com/ericfisherdev/mergecheck/internal/domain/port/driven"
)

// Identities of the built-in checks.
const (
	CheckOpen             = "open"
	CheckDraft            = "draft"
	CheckConflict         = "conflict"
	CheckCIStatus         = "ci_status"
	CheckApproved         = "approved"
	CheckRequestedChanges = "requested_changes"
)

// Failure reasons reported by the built-in checks.
const (
	ReasonNotOpen          = "not_open"
	ReasonDraftStatus      = "draft_status"
	ReasonConflict         = "conflict"
	ReasonChecking         = "checking"
	ReasonCIMustPass       = "ci_must_pass"
	ReasonNotApproved      = "not_approved"
	ReasonRequestedChanges = "requested_changes"
)

// Parameters understood by the built-in checks.
const (
	ParamSkipDraftCheck            = "skip_draft_check"
	ParamSkipCICheck               = "skip_ci_check"
	ParamSkipApprovedCheck         = "skip_approved_check"
	ParamSkipRequestedChangesCheck = "skip_requested_changes_check"
)

// DefaultChecks is the check order used when none is configured.
func DefaultChecks() []string {
	return []string{CheckOpen, CheckDraft, CheckConflict, CheckCIStatus, CheckApproved, CheckRequestedChanges}
}

// NewDefaultRegistry returns a Registry holding every built-in check.
func NewDefaultRegistry(reviews driven.ReviewStore, checkRuns driven.CheckStore) *Registry {
	r := NewRegistry()

	factories := []struct {
		identity string
		factory  Factory
	}{
		{CheckOpen, func(mr model.MergeRequest, p Params) Check { return &openCheck{base(CheckOpen, mr, p)} }},
		{CheckDraft, func(mr model.MergeRequest, p Params) Check { return &draftCheck{base(CheckDraft, mr, p)} }},
		{CheckConflict, func(mr model.MergeRequest, p Params) Check { return &conflictCheck{base(CheckConflict, mr, p)} }},
		{CheckCIStatus, func(mr model.MergeRequest, p Params) Check {
			return &ciStatusCheck{baseCheck: base(CheckCIStatus, mr, p), store: checkRuns}
		}},
		{CheckApproved, func(mr model.MergeRequest, p Params) Check {
			return &approvedCheck{baseCheck: base(CheckApproved, mr, p), store: reviews}
		}},
		{CheckRequestedChanges, func(mr model.MergeRequest, p Params) Check {
			return &requestedChangesCheck{baseCheck: base(CheckRequestedChanges, mr, p), store: reviews}
		}},
	}

	for _, f := range factories {
		// Identities above are distinct constants.
		_ = r.Register(f.identity, f.factory)
	}

	return r
}

// baseCheck carries the bound state shared by the built-in checks.
type baseCheck struct {
	identity string
	mr       model.MergeRequest
	params   Params
}

func base(identity string, mr model.MergeRequest, params Params) baseCheck {
	return baseCheck{identity: identity, mr: mr, params: params}
}

func (c baseCheck) Skip() bool      { return false }
func (c baseCheck) Cacheable() bool { return false }

// CacheKey changes on every push (head SHA) and on every GitHub-side update
// of the pull request, which covers new reviews.
func (c baseCheck) CacheKey() string {
	return c.mr.HeadSHA + ":" + strconv.FormatInt(c.mr.UpdatedAt.Unix(), 10)
}

func (c baseCheck) success(extra map[string]any) model.CheckResult {
	return model.SuccessResult(c.payload(extra))
}

func (c baseCheck) failure(reason string, extra map[string]any) model.CheckResult {
	payload := c.payload(extra)
	payload[model.PayloadReason] = reason
	return model.FailedResult(payload)
}

func (c baseCheck) payload(extra map[string]any) map[string]any {
	payload := make(map[string]any, len(extra)+2)
	for k, v := range extra {
		payload[k] = v
	}
	payload[model.PayloadIdentifier] = c.identity
	return payload
}

type openCheck struct{ baseCheck }

func (c *openCheck) Execute(_ context.Context) (model.CheckResult, error) {
	if !c.mr.IsOpen() {
		return c.failure(ReasonNotOpen, map[string]any{"state": string(c.mr.State)}), nil
	}
	return c.success(nil), nil
}

type draftCheck struct{ baseCheck }

func (c *draftCheck) Skip() bool { return c.params.Bool(ParamSkipDraftCheck) }

func (c *draftCheck) Execute(_ context.Context) (model.CheckResult, error) {
	if c.mr.IsDraft {
		return c.failure(ReasonDraftStatus, nil), nil
	}
	return c.success(nil), nil
}

// conflictCheck trusts GitHub's mergeable verdict. An unknown verdict is still
// being computed upstream, so it fails as "checking" and is never cached.
type conflictCheck struct{ baseCheck }

func (c *conflictCheck) Cacheable() bool {
	return c.mr.MergeableStatus != model.MergeableUnknown && c.mr.MergeableStatus != ""
}

// CacheKey includes the stored verdict, which sync can change without a push.
func (c *conflictCheck) CacheKey() string {
	return c.baseCheck.CacheKey() + ":" + string(c.mr.MergeableStatus)
}

func (c *conflictCheck) Execute(_ context.Context) (model.CheckResult, error) {
	switch c.mr.MergeableStatus {
	case model.MergeableMergeable:
		return c.success(nil), nil
	case model.MergeableConflicted:
		return c.failure(ReasonConflict, nil), nil
	default:
		return c.failure(ReasonChecking, nil), nil
	}
}

// ciStatusCheck gates on the required check runs of the head commit, falling
// back to the status recorded at sync time when no runs are stored.
type ciStatusCheck struct {
	baseCheck
	store driven.CheckStore
}

func (c *ciStatusCheck) Skip() bool {
	return c.params.Bool(ParamSkipCICheck) || !c.mr.Settings.RequireCIPass
}

func (c *ciStatusCheck) Execute(ctx context.Context) (model.CheckResult, error) {
	runs, err := c.store.GetCheckRunsByMR(ctx, c.mr.ID)
	if err != nil {
		return model.CheckResult{}, fmt.Errorf("load check runs for merge request %d: %w", c.mr.ID, err)
	}

	status := model.CombineCIStatus(model.RequiredOnly(runs), nil)
	if status == model.CIStatusUnknown {
		status = c.mr.CIStatus
	}

	extra := map[string]any{"ci_status": string(status)}
	if status != model.CIStatusPassing {
		return c.failure(ReasonCIMustPass, extra), nil
	}
	return c.success(extra), nil
}

// approvedCheck counts the latest approval of each reviewer other than the author.
type approvedCheck struct {
	baseCheck
	store driven.ReviewStore
}

func (c *approvedCheck) Skip() bool {
	return c.params.Bool(ParamSkipApprovedCheck) || c.mr.Settings.RequiredApprovals <= 0
}

func (c *approvedCheck) Cacheable() bool { return true }

// CacheKey includes the repository threshold and the author, which the
// verdict depends on but which change without touching the pull request.
func (c *approvedCheck) CacheKey() string {
	return c.baseCheck.CacheKey() + ":" + strconv.Itoa(c.mr.Settings.RequiredApprovals) + ":" + c.mr.Author
}

func (c *approvedCheck) Execute(ctx context.Context) (model.CheckResult, error) {
	reviews, err := c.store.GetReviewsByMR(ctx, c.mr.ID)
	if err != nil {
		return model.CheckResult{}, fmt.Errorf("load reviews for merge request %d: %w", c.mr.ID, err)
	}

	approvals := 0
	for login, state := range model.LatestReviewStates(reviews) {
		if state == model.ReviewStateApproved && login != c.mr.Author {
			approvals++
		}
	}

	extra := map[string]any{
		"approvals":          approvals,
		"required_approvals": c.mr.Settings.RequiredApprovals,
	}
	if approvals < c.mr.Settings.RequiredApprovals {
		return c.failure(ReasonNotApproved, extra), nil
	}
	return c.success(extra), nil
}

// requestedChangesCheck blocks while any reviewer's latest review requests changes.
type requestedChangesCheck struct {
	baseCheck
	store driven.ReviewStore
}

func (c *requestedChangesCheck) Skip() bool {
	return c.params.Bool(ParamSkipRequestedChangesCheck) || !c.mr.Settings.BlockOnRequestedChanges
}

func (c *requestedChangesCheck) Cacheable() bool { return true }

func (c *requestedChangesCheck) Execute(ctx context.Context) (model.CheckResult, error) {
	reviews, err := c.store.GetReviewsByMR(ctx, c.mr.ID)
	if err != nil {
		return model.CheckResult{}, fmt.Errorf("load reviews for merge request %d: %w", c.mr.ID, err)
	}

	for _, state := range model.LatestReviewStates(reviews) {
		if state == model.ReviewStateChangesRequested {
			return c.failure(ReasonRequestedChanges, nil), nil
		}
	}
	return c.success(nil), nil
}
