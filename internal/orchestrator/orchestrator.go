// Package orchestrator fans one prompt out to every requested model
// concurrently, settles all calls regardless of individual failures,
// persists the normalized results, and hands the query to the scorer.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/cache"
	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/config"
	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/events"
	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/model"
	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/provider"
	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/store"
)

const defaultCallTimeout = 30 * time.Second

// EnqueueFunc submits a follow-up task for a query.
type EnqueueFunc func(queryID string) error

// Orchestrator coordinates the fan-out of one query across providers.
type Orchestrator struct {
	store       store.Store
	registry    *provider.Registry
	credentials *CredentialResolver
	notifier    *events.Notifier
	views       *cache.ViewCache

	callTimeout   time.Duration
	progressEvery int

	// enqueueScoring is invoked after responses are durably persisted.
	enqueueScoring EnqueueFunc
}

// New builds an orchestrator. The scoring enqueue hook is installed later
// with SetScoringEnqueue, once the scheduler exists.
func New(st store.Store, reg *provider.Registry, creds *CredentialResolver, notifier *events.Notifier, views *cache.ViewCache, cfg config.OrchestratorConfig) *Orchestrator {
	timeout := defaultCallTimeout
	if cfg.CallTimeoutSecs > 0 {
		timeout = time.Duration(cfg.CallTimeoutSecs) * time.Second
	}
	progress := cfg.ProgressEvery
	if progress <= 0 {
		progress = 1
	}
	return &Orchestrator{
		store:         st,
		registry:      reg,
		credentials:   creds,
		notifier:      notifier,
		views:         views,
		callTimeout:   timeout,
		progressEvery: progress,
	}
}

// SetScoringEnqueue installs the hook used to submit scoring work after
// persistence.
func (o *Orchestrator) SetScoringEnqueue(fn EnqueueFunc) {
	o.enqueueScoring = fn
}

// Run executes the full orchestration for one query: fan out, settle all
// calls, persist, mark completed, and enqueue scoring. A returned error
// means the run can be retried; reruns of already-terminal queries are
// no-ops.
func (o *Orchestrator) Run(ctx context.Context, queryID string) error {
	log := zap.L().With(zap.String("query_id", queryID))

	q, err := o.store.GetQuery(ctx, queryID)
	if err != nil {
		return eris.Wrapf(err, "orchestrator: load query %s", queryID)
	}
	if q.Status.Terminal() {
		log.Info("query already terminal, skipping", zap.String("status", string(q.Status)))
		return nil
	}

	// A retry after a failure past the persist step must not call the
	// providers again; the stored rows are the settled outcome.
	responses, err := o.store.GetResponses(ctx, q.ID)
	if err != nil {
		return eris.Wrapf(err, "orchestrator: load responses %s", queryID)
	}
	if len(responses) == 0 {
		if err := o.store.UpdateQueryStatus(ctx, q.ID, model.QueryStatusProcessing); err != nil {
			return eris.Wrap(err, "orchestrator: mark processing")
		}
		o.publishStatus(q.ID, model.QueryStatusProcessing, fmt.Sprintf("0/%d", len(q.Models)), "")

		responses, err = o.fanOut(ctx, q)
		if err != nil {
			return err
		}

		if err := o.store.CreateResponses(ctx, responses); err != nil {
			return eris.Wrap(err, "orchestrator: persist responses")
		}
	} else {
		log.Info("responses already persisted, resuming", zap.Int("count", len(responses)))
	}

	// The query completes regardless of how many provider calls
	// succeeded; per-call outcomes live on the responses themselves.
	if err := o.store.UpdateQueryStatus(ctx, q.ID, model.QueryStatusCompleted); err != nil {
		return eris.Wrap(err, "orchestrator: mark completed")
	}
	o.views.Invalidate(q.ID)
	o.publishStatus(q.ID, model.QueryStatusCompleted, fmt.Sprintf("%d/%d", len(q.Models), len(q.Models)), "")

	succeeded := 0
	for _, r := range responses {
		if r.Valid() {
			succeeded++
		}
	}
	log.Info("orchestration finished",
		zap.Int("models", len(q.Models)),
		zap.Int("succeeded", succeeded))

	// Scoring is submitted only once the responses are durably stored.
	if o.enqueueScoring != nil {
		if err := o.enqueueScoring(q.ID); err != nil {
			log.Error("enqueue scoring failed", zap.Error(err))
		}
	}
	return nil
}

// fanOut invokes every model concurrently and returns the settled
// responses in requested order. Individual call failures never abort the
// group; only credential store failures surface as errors.
func (o *Orchestrator) fanOut(ctx context.Context, q *model.Query) ([]model.ModelResponse, error) {
	creds, err := o.resolveCredentials(ctx, q)
	if err != nil {
		return nil, err
	}

	responses := make([]model.ModelResponse, len(q.Models))
	var settled atomic.Int32
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, modelID := range q.Models {
		g.Go(func() error {
			resp := o.invokeOne(gctx, q, modelID, creds)
			resp.Position = i
			mu.Lock()
			responses[i] = resp
			mu.Unlock()

			o.notifier.Publish(events.Event{
				Type:    events.TypeResponseReceived,
				QueryID: q.ID,
				Payload: model.ResponseReceivedEvent{
					Model:     resp.Model,
					Status:    resp.Status,
					LatencyMs: resp.LatencyMs,
				},
			})

			done := int(settled.Add(1))
			if done%o.progressEvery == 0 && done < len(q.Models) {
				o.publishStatus(q.ID, model.QueryStatusProcessing,
					fmt.Sprintf("%d/%d", done, len(q.Models)), "")
			}
			// Failures are recorded on the response, never returned, so
			// one bad call cannot cancel its siblings.
			return nil
		})
	}
	g.Wait() //nolint:errcheck
	return responses, nil
}

// resolveCredentials looks up one credential per distinct provider before
// the fan-out starts.
func (o *Orchestrator) resolveCredentials(ctx context.Context, q *model.Query) (map[string]string, error) {
	creds := make(map[string]string)
	for _, modelID := range q.Models {
		adapter, err := o.registry.Resolve(modelID)
		if err != nil {
			continue
		}
		name := adapter.Name()
		if _, ok := creds[name]; ok {
			continue
		}
		key, err := o.credentials.Resolve(ctx, q.UserID, name)
		if err != nil {
			return nil, eris.Wrapf(err, "orchestrator: resolve credential for %s", name)
		}
		creds[name] = key
	}
	return creds, nil
}

// invokeOne performs a single provider call with its own deadline and
// converts the outcome into a ModelResponse.
func (o *Orchestrator) invokeOne(ctx context.Context, q *model.Query, modelID string, creds map[string]string) model.ModelResponse {
	resp := model.ModelResponse{
		ID:        uuid.New().String(),
		QueryID:   q.ID,
		Model:     modelID,
		CreatedAt: time.Now().UTC(),
	}

	adapter, err := o.registry.Resolve(modelID)
	if err != nil {
		resp.Status = model.ResponseStatusFailed
		resp.ErrorKind = string(provider.ErrUnknown)
		resp.Error = err.Error()
		return resp
	}

	credential := creds[adapter.Name()]
	if credential == "" {
		resp.Status = model.ResponseStatusFailed
		resp.ErrorKind = string(provider.ErrAuth)
		resp.Error = "no credential available for provider " + adapter.Name()
		return resp
	}

	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	start := time.Now()
	comp, perr := adapter.Invoke(callCtx, modelID, q.Prompt, q.Params, credential)
	resp.LatencyMs = time.Since(start).Milliseconds()

	if perr != nil {
		if perr.Kind == provider.ErrTimeout {
			resp.Status = model.ResponseStatusTimeout
		} else {
			resp.Status = model.ResponseStatusFailed
		}
		resp.ErrorKind = string(perr.Kind)
		resp.Error = perr.Message
		zap.L().Warn("provider call failed",
			zap.String("query_id", q.ID),
			zap.String("model", modelID),
			zap.String("kind", string(perr.Kind)),
			zap.Int64("latency_ms", resp.LatencyMs))
		return resp
	}

	resp.Status = model.ResponseStatusCompleted
	resp.Content = comp.Content
	resp.Usage = comp.Usage
	resp.CostUSD = adapter.EstimateCost(modelID, comp.Usage.PromptTokens, comp.Usage.CompletionTokens)
	return resp
}

// MarkFailed moves a query to FAILED after its orchestration retries are
// exhausted. Already-terminal queries are left alone.
func (o *Orchestrator) MarkFailed(ctx context.Context, queryID string, cause error) {
	if err := o.store.UpdateQueryStatus(ctx, queryID, model.QueryStatusFailed); err != nil {
		zap.L().Warn("mark failed", zap.String("query_id", queryID), zap.Error(err))
		return
	}
	o.views.Invalidate(queryID)
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	o.publishStatus(queryID, model.QueryStatusFailed, "", msg)
	zap.L().Error("orchestration failed permanently",
		zap.String("query_id", queryID),
		zap.Error(cause))
}

func (o *Orchestrator) publishStatus(queryID string, status model.QueryStatus, progress, message string) {
	o.notifier.Publish(events.Event{
		Type:    events.TypeQueryUpdate,
		QueryID: queryID,
		Payload: model.QueryUpdateEvent{
			Status:   status,
			Progress: progress,
			Message:  message,
		},
	})
}
