package driven

import "context"

// LogSink accepts one structured record per call. Delivery is fire-and-forget.
type LogSink interface {
	Emit(ctx context.Context, record map[string]any)
}
