package observability

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type segmentIDKey struct{}

// WithSegmentIndex attaches the current segment index to ctx so downstream
// loggers can correlate a whole pipeline run without threading it through
// every function signature.
func WithSegmentIndex(ctx context.Context, idx int64) context.Context {
	return context.WithValue(ctx, segmentIDKey{}, idx)
}

// LoggerFromContext returns a zerolog.Logger enriched with the segment index
// carried on ctx, if any.
func LoggerFromContext(ctx context.Context) *zerolog.Logger {
	l := log.Logger
	if ctx == nil {
		return &l
	}
	if idx, ok := ctx.Value(segmentIDKey{}).(int64); ok {
		l = l.With().Int64("segment_index", idx).Logger()
	}
	return &l
}
