package orchestrator

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/events"
	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/model"
	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/scorer"
)

// ErrInsufficientResponses signals that scoring cannot proceed for this
// query and retrying will not help.
var ErrInsufficientResponses = scorer.ErrInsufficientData

// ScoreQuery computes comparison metrics for a completed query and
// persists them. Returns ErrInsufficientResponses (wrapped) when fewer
// than two responses are usable; transient store failures are returned
// plain so the scheduler retries them.
func (o *Orchestrator) ScoreQuery(ctx context.Context, queryID string) error {
	responses, err := o.store.GetResponses(ctx, queryID)
	if err != nil {
		return eris.Wrapf(err, "orchestrator: load responses for %s", queryID)
	}

	metrics, err := scorer.Score(responses)
	if err != nil {
		if errors.Is(err, scorer.ErrInsufficientData) {
			zap.L().Info("skipping comparison, not enough valid responses",
				zap.String("query_id", queryID),
				zap.Int("responses", len(responses)))
		}
		return err
	}
	metrics.QueryID = queryID

	if err := o.store.UpsertMetrics(ctx, queryID, metrics); err != nil {
		return eris.Wrapf(err, "orchestrator: persist metrics for %s", queryID)
	}
	o.views.Invalidate(queryID)

	o.notifier.Publish(events.Event{
		Type:    events.TypeComparisonComplete,
		QueryID: queryID,
		Payload: model.ComparisonCompleteEvent{Metrics: *metrics},
	})

	zap.L().Info("comparison metrics computed",
		zap.String("query_id", queryID),
		zap.Float64("aggregate", metrics.Aggregate))
	return nil
}
