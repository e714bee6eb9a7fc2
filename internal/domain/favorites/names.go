package favorites

import (
	"context"
	"strings"

	"github.com/Togather-Foundation/favorites/internal/metrics"
)

// NameLookup resolves a user id to a display name. An empty name with a nil
// error means the user has none.
type NameLookup func(ctx context.Context, userID int64) (string, error)

// FallbackNames turns a fallible lookup into one that always yields a name.
// Lookup errors and empty names both resolve to fallback; onFallback, when
// set, observes every degraded lookup.
func FallbackNames(lookup NameLookup, fallback string, onFallback func(ctx context.Context, userID int64, err error)) func(ctx context.Context, userID int64) string {
	return func(ctx context.Context, userID int64) string {
		name, err := lookup(ctx, userID)
		if err == nil {
			name = strings.TrimSpace(name)
			if name != "" {
				return name
			}
		}
		if onFallback != nil {
			onFallback(ctx, userID, err)
		}
		return fallback
	}
}

func (s *Service) recordNameFallback(_ context.Context, userID int64, err error) {
	reason := "missing"
	if err != nil {
		reason = "error"
	}
	metrics.NameFallbacksTotal.WithLabelValues(reason).Inc()
	s.logger.Warn().Err(err).Int64("user_id", userID).Str("reason", reason).Msg("user name unresolved, using placeholder")
}
