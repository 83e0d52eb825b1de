package mergeability

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ericfisherdev/mergecheck/internal/domain/model"
	"github.com/ericfisherdev/mergecheck/internal/domain/port/driven"
)

const tracerName = "github.com/ericfisherdev/mergecheck/mergeability"

// Deps are the collaborators shared by every run.
type Deps struct {
	Registry *Registry
	Cache    driven.CacheBackend // nil disables result caching
	CacheTTL time.Duration
	Gate     driven.FeatureGate
	Sink     driven.LogSink
	Counter  driven.ResourceCounter
	Metrics  *Metrics
	Tracer   trace.Tracer // defaults to the global tracer provider
	Logger   *slog.Logger
}

// RunResult is the outcome of one run.
type RunResult struct {
	// Results holds one entry per executed or cached check, in run order.
	Results []model.CheckResult
	// FailureReason is the reason of the first failed result, "" on success.
	FailureReason string
}

// Success reports whether no collected result failed.
func (r *RunResult) Success() bool {
	for _, result := range r.Results {
		if result.Failed() {
			return false
		}
	}
	return true
}

func newRunResult(results []model.CheckResult) *RunResult {
	rr := &RunResult{Results: results}
	for _, result := range results {
		if result.Failed() {
			rr.FailureReason = result.Reason()
			break
		}
	}
	return rr
}

// RunChecksService runs mergeability checks for one merge request. The
// results store and logger are built once per service and live for a single
// run.
type RunChecksService struct {
	mr       model.MergeRequest
	params   Params
	registry *Registry
	results  *ResultsStore
	logger   *Logger
	metrics  *Metrics
	tracer   trace.Tracer
}

// NewRunChecksService creates a service bound to mr and params.
func NewRunChecksService(ctx context.Context, mr model.MergeRequest, params Params, deps Deps) *RunChecksService {
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	registry := deps.Registry
	if registry == nil {
		registry = NewRegistry()
	}

	return &RunChecksService{
		mr:       mr,
		params:   params,
		registry: registry,
		results:  NewResultsStore(deps.Cache, mr, deps.CacheTTL, deps.Logger, deps.Metrics),
		logger: NewLogger(ctx, mr, LoggerDeps{
			Gate:    deps.Gate,
			Sink:    deps.Sink,
			Counter: deps.Counter,
			Logger:  deps.Logger,
		}),
		metrics: deps.Metrics,
		tracer:  tracer,
	}
}

// Execute runs the checks named by identities in order. Skipped checks are
// omitted from the results. Unless executeAll is set, the run halts after the
// first failed result. The run record is committed exactly once on every exit
// path, including a *CheckError.
func (s *RunChecksService) Execute(ctx context.Context, identities []string, executeAll bool) (*RunResult, error) {
	if len(identities) == 0 {
		return nil, ErrNoChecks
	}

	factories := make([]Factory, len(identities))
	for i, identity := range identities {
		factory, err := s.registry.Lookup(identity)
		if err != nil {
			return nil, err
		}
		factories[i] = factory
	}

	ctx, span := s.tracer.Start(ctx, "mergeability.run_checks", trace.WithAttributes(
		attribute.Int64("merge_request.id", s.mr.ID),
		attribute.String("merge_request.repo", s.mr.RepoFullName),
		attribute.Int("merge_request.number", s.mr.Number),
		attribute.Int("checks.requested", len(identities)),
		attribute.Bool("checks.execute_all", executeAll),
	))
	start := time.Now()

	runResult := "error"
	defer func() {
		s.logger.Commit(ctx)
		s.metrics.observeRun(runResult, time.Since(start))
		span.SetAttributes(attribute.String("checks.result", runResult))
		span.End()
	}()

	var results []model.CheckResult

	for i, identity := range identities {
		check := factories[i](s.mr, s.params)

		if check.Skip() {
			s.metrics.observeCheck(identity, outcomeSkipped)
			continue
		}

		var (
			result  model.CheckResult
			outcome string
		)
		err := s.logger.Instrument(ctx, identity, func() error {
			var err error
			result, outcome, err = s.runCheck(ctx, identity, check)
			return err
		})
		if err != nil {
			s.metrics.observeCheck(identity, outcomeError)
			span.RecordError(err)
			span.SetStatus(codes.Error, "check execution failed")
			return nil, &CheckError{Identity: identity, Err: err}
		}

		s.metrics.observeCheck(identity, outcome)
		results = append(results, result)

		if result.Failed() && !executeAll {
			break
		}
	}

	rr := newRunResult(results)
	runResult = outcomeSuccess
	if !rr.Success() {
		runResult = outcomeFailed
	}

	return rr, nil
}

// runCheck executes check, consulting the results store first when the check
// is cacheable.
func (s *RunChecksService) runCheck(ctx context.Context, identity string, check Check) (model.CheckResult, string, error) {
	if !check.Cacheable() {
		result, err := check.Execute(ctx)
		return result, verdict(result), err
	}

	if cached, ok := s.results.Read(ctx, identity, check); ok {
		return cached, outcomeCacheHit, nil
	}

	result, err := check.Execute(ctx)
	if err != nil {
		return result, outcomeError, err
	}

	s.results.Write(ctx, identity, check, result)

	return result, verdict(result), nil
}

func verdict(result model.CheckResult) string {
	if result.Failed() {
		return outcomeFailed
	}
	return outcomeSuccess
}
