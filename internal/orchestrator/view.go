package orchestrator

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/model"
	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/store"
)

// GetView assembles the aggregate view of a query, serving from the TTL
// cache when possible. The store stays authoritative; the cache only
// skips reads for recently served queries.
func (o *Orchestrator) GetView(ctx context.Context, queryID string) (*model.QueryView, error) {
	if v := o.views.Get(queryID); v != nil {
		return v, nil
	}

	q, err := o.store.GetQuery(ctx, queryID)
	if err != nil {
		return nil, err
	}

	responses, err := o.store.GetResponses(ctx, queryID)
	if err != nil {
		return nil, eris.Wrapf(err, "orchestrator: load responses for %s", queryID)
	}

	metrics, err := o.store.GetMetrics(ctx, queryID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, eris.Wrapf(err, "orchestrator: load metrics for %s", queryID)
	}

	view := model.BuildView(*q, responses, metrics)
	// Only terminal queries are cached; in-flight ones change too fast
	// for a TTL cache to help.
	if q.Status.Terminal() {
		o.views.Set(queryID, view)
	}
	return view, nil
}

// InvalidateView drops the cached view for a query and reports whether an
// entry existed.
func (o *Orchestrator) InvalidateView(queryID string) bool {
	return o.views.Invalidate(queryID)
}
