// Package logsink delivers mergeability run records to structured logging.
package logsink

import (
	"context"
	"log/slog"
	"slices"

	"github.com/ericfisherdev/mergecheck/internal/domain/port/driven"
)

// Message is the log message every run record is emitted under.
const Message = "mergeability checks"

// Compile-time interface satisfaction check.
var _ driven.LogSink = (*SlogSink)(nil)

// SlogSink writes each record as one Info line whose attributes are the
// record's keys in sorted order.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a SlogSink. A nil logger uses slog.Default().
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

// Emit logs record.
func (s *SlogSink) Emit(ctx context.Context, record map[string]any) {
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, record[k]))
	}

	s.logger.LogAttrs(ctx, slog.LevelInfo, Message, attrs...)
}
