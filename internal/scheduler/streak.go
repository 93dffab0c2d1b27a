package scheduler

import (
	"context"

	"github.com/statusguard/statusguard/internal/domain"
	"github.com/statusguard/statusguard/internal/repo"
)

// StreakEvaluator answers "did the last N checks all land the same
// way?" against the result history.
type StreakEvaluator struct {
	Results repo.ResultStore
}

// HasConsecutiveOutcome returns true iff exactly count results exist
// for the service and every one of them has Up == up. Fewer than count
// results is insufficient history and never triggers a transition.
func (e *StreakEvaluator) HasConsecutiveOutcome(ctx context.Context, id domain.ServiceID, up bool, count int) (bool, error) {
	if count <= 0 {
		return false, nil
	}
	recent, err := e.Results.RecentByService(ctx, id, count)
	if err != nil {
		return false, err
	}
	if len(recent) < count {
		return false, nil
	}
	for _, r := range recent {
		if r.Up != up {
			return false, nil
		}
	}
	return true, nil
}
