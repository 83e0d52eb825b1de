package mergeability

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/ericfisherdev/mergecheck/internal/domain/model"
	"github.com/ericfisherdev/mergecheck/internal/domain/port/driven"
	"github.com/ericfisherdev/mergecheck/internal/logctx"
)

// LoggerFeatureGate is the feature gate that enables run instrumentation for
// a repository.
const LoggerFeatureGate = "mergeability_checks_logger"

// Keys of the merge request context fields in the run record.
const (
	RecordKeyProjectID      = "mergeability.project_id"
	RecordKeyMergeRequestID = "mergeability.merge_request_id"
)

// LoggerDeps are the collaborators of a Logger.
type LoggerDeps struct {
	Gate    driven.FeatureGate
	Sink    driven.LogSink
	Counter driven.ResourceCounter
	Logger  *slog.Logger
}

// Logger accumulates timing and resource-counter observations per check for
// one run and emits them as a single record on Commit. It belongs to exactly
// one run and is not safe for concurrent use.
type Logger struct {
	mr           model.MergeRequest
	sink         driven.LogSink
	counter      driven.ResourceCounter
	enabled      bool
	committed    bool
	observations map[string][]float64
	now          func() time.Time
}

// NewLogger creates a Logger for mr. The feature gate is consulted once, here;
// a gate error disables instrumentation for the run.
func NewLogger(ctx context.Context, mr model.MergeRequest, deps LoggerDeps) *Logger {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabled := false
	if deps.Gate != nil && deps.Sink != nil {
		on, err := deps.Gate.IsEnabled(ctx, LoggerFeatureGate, mr.RepoFullName)
		if err != nil {
			logger.WarnContext(ctx, "feature gate lookup failed, instrumentation disabled",
				"gate", LoggerFeatureGate,
				"repo", mr.RepoFullName,
				"error", err,
			)
		}
		enabled = on && err == nil
	}

	return &Logger{
		mr:           mr,
		sink:         deps.Sink,
		counter:      deps.Counter,
		enabled:      enabled,
		observations: make(map[string][]float64),
		now:          time.Now,
	}
}

// Enabled reports whether observations are being recorded.
func (l *Logger) Enabled() bool {
	return l.enabled
}

// Instrument runs fn and, when enabled, records its duration and the non-zero
// deltas of every resource counter. fn's error is returned unchanged and
// observations are recorded whether or not fn fails.
func (l *Logger) Instrument(ctx context.Context, checkName string, fn func() error) error {
	if !l.enabled {
		return fn()
	}

	before := l.snapshot(ctx)
	start := l.now()

	err := fn()

	l.observe(metricName(checkName, "duration_s"), l.now().Sub(start).Seconds())

	after := l.snapshot(ctx)
	for key, value := range after {
		if delta := value - before[key]; delta != 0 {
			l.observe(metricName(checkName, key), delta)
		}
	}

	return err
}

// Commit emits the single run record. It is a no-op when disabled or when the
// record was already emitted.
func (l *Logger) Commit(ctx context.Context) {
	if !l.enabled || l.committed {
		return
	}
	l.committed = true

	record := logctx.Fields(ctx)
	if l.mr.ProjectID != 0 {
		record[RecordKeyProjectID] = l.mr.ProjectID
	}
	if l.mr.ID != 0 {
		record[RecordKeyMergeRequestID] = l.mr.ID
	}

	for name, values := range l.observations {
		if len(values) == 0 {
			continue
		}
		record[name] = map[string]any{"values": slices.Clone(values)}
	}

	l.sink.Emit(ctx, record)
}

// observe appends value to the observation list of name, creating it on first use.
func (l *Logger) observe(name string, value float64) {
	l.observations[name] = append(l.observations[name], value)
}

func (l *Logger) snapshot(ctx context.Context) map[string]float64 {
	if l.counter == nil {
		return nil
	}
	return l.counter.Snapshot(ctx)
}

func metricName(checkName, metric string) string {
	return "mergeability." + checkName + "." + metric
}
