// Package enrich runs batches of queued vehicles through the ownership
// provider and the chain walker, pacing requests so the provider sees a
// steady, human-like request rhythm.
package enrich

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-resolver/internal/model"
	"github.com/sells-group/lead-resolver/internal/provenance"
	"github.com/sells-group/lead-resolver/internal/resilience"
	"github.com/sells-group/lead-resolver/pkg/provider"
)

// ErrProviderUnavailable is returned when the liveness probe fails and the
// run is aborted before any item is attempted.
var ErrProviderUnavailable = eris.New("enrich: provider unavailable")

// Skip details recorded on vehicles that were never attempted.
const (
	SkipCircuitOpen = "circuit_open"
	SkipCancelled   = "cancelled"
)

// Store is the persistence the orchestrator needs.
type Store interface {
	PendingVehicles(ctx context.Context, limit int) ([]model.Vehicle, error)
	SetVehicleStatus(ctx context.Context, plate string, status model.EnrichStatus, detail string) error
	UpsertProvenance(ctx context.Context, p *model.ResolvedProvenance) error
	CreateRun(ctx context.Context, kind model.RunKind) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary any) error
}

// Resolver turns an ownership chain into a provenance result.
type Resolver interface {
	Resolve(ctx context.Context, v model.Vehicle, chain model.OwnershipChain, profiles provenance.ProfileSource) provenance.Outcome
}

// Reloader refreshes the dealer registry from persistence.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Sleeper pauses for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Config controls one orchestrator.
type Config struct {
	Pacer           resilience.PacerConfig
	ProfileDelayMin time.Duration
	ProfileDelayMax time.Duration
	BatchSize       int
	Retry           resilience.RetryConfig
}

// Orchestrator processes vehicles strictly one at a time.
type Orchestrator struct {
	provider provider.Client
	store    Store
	walker   Resolver
	registry Reloader
	cfg      Config
	rng      *rand.Rand
	sleep    Sleeper
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRand sets the jitter source.
func WithRand(rng *rand.Rand) Option {
	return func(o *Orchestrator) {
		o.rng = rng
	}
}

// WithSleeper replaces the real sleep (for testing).
func WithSleeper(s Sleeper) Option {
	return func(o *Orchestrator) {
		o.sleep = s
	}
}

// New creates an Orchestrator. registry may be nil.
func New(p provider.Client, st Store, walker Resolver, registry Reloader, cfg Config, opts ...Option) *Orchestrator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = resilience.DefaultRetryConfig()
	}
	o := &Orchestrator{
		provider: p,
		store:    st,
		walker:   walker,
		registry: registry,
		cfg:      cfg,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run enriches the next batch from the store queue.
func (o *Orchestrator) Run(ctx context.Context) (*RunSummary, error) {
	vehicles, err := o.store.PendingVehicles(ctx, o.cfg.BatchSize)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: load pending vehicles")
	}
	return o.RunBatch(ctx, vehicles)
}

// RunBatch enriches vehicles in order. Per-item failures never abort the
// batch; only a failed liveness probe does, and the returned summary is
// complete in every case where a run row was created.
func (o *Orchestrator) RunBatch(ctx context.Context, vehicles []model.Vehicle) (*RunSummary, error) {
	log := zap.L().With(zap.String("component", "enrich"))

	run, err := o.store.CreateRun(ctx, model.RunKindEnrich)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: create run")
	}
	log = log.With(zap.String("run_id", run.ID))
	summary := &RunSummary{RunID: run.ID, Total: len(vehicles), StartedAt: run.StartedAt}

	if o.registry != nil {
		if err := o.registry.Reload(ctx); err != nil {
			log.Warn("enrich: dealer registry reload failed, continuing with cached entries", zap.Error(err))
		}
	}

	if err := o.provider.Ping(ctx); err != nil {
		log.Error("enrich: provider liveness probe failed, aborting run", zap.Error(err))
		summary.Status = model.RunStatusAborted
		summary.Error = err.Error()
		o.finish(ctx, summary)
		return summary, eris.Wrapf(ErrProviderUnavailable, "ping: %v", err)
	}

	log.Info("enrich: run started", zap.Int("vehicles", len(vehicles)))

	pacer := resilience.NewPacer(o.cfg.Pacer)
	for i, v := range vehicles {
		if ctx.Err() != nil {
			o.skipRemaining(ctx, summary, vehicles[i:], SkipCancelled)
			summary.Cancelled = true
			break
		}
		if pacer.CircuitOpen {
			o.skipRemaining(ctx, summary, vehicles[i:], SkipCircuitOpen)
			break
		}

		item := o.processItem(ctx, run.ID, v)

		switch item.signal {
		case signalRateLimited:
			pacer = pacer.OnRateLimit()
			if pacer.CircuitOpen {
				summary.BreakerOpened = true
				log.Warn("enrich: circuit breaker opened",
					zap.String("plate", v.Plate),
					zap.Int("consecutive_failures", pacer.ConsecutiveFailures),
				)
			}
		case signalSuccess:
			pacer = pacer.OnSuccess()
		}

		if item.Outcome == OutcomeSkipped {
			// Cancelled mid-item; the loop head skips the rest.
			summary.Cancelled = true
		}

		if i < len(vehicles)-1 && !pacer.CircuitOpen && ctx.Err() == nil {
			item.Delay = pacer.Wait(o.rng)
		}
		summary.record(item.ItemResult)

		log.Info("enrich: item processed",
			zap.String("plate", v.Plate),
			zap.String("outcome", string(item.Outcome)),
			zap.Duration("delay", item.Delay),
			zap.Duration("current_delay", pacer.CurrentDelay),
		)

		if item.Delay > 0 {
			if err := o.sleep(ctx, item.Delay); err != nil {
				log.Debug("enrich: sleep interrupted", zap.Error(err))
			}
		}
	}

	summary.FinalDelay = pacer.CurrentDelay
	summary.Status = model.RunStatusCompleted
	if summary.Cancelled {
		summary.Status = model.RunStatusAborted
	}
	o.finish(ctx, summary)

	log.Info("enrich: run finished",
		zap.String("status", string(summary.Status)),
		zap.Int("resolved", summary.Resolved),
		zap.Int("no_data", summary.NoData),
		zap.Int("failed", summary.Failed),
		zap.Int("rate_limited", summary.RateLimited),
		zap.Int("skipped", summary.Skipped),
		zap.Int("persist_failures", summary.PersistFailures),
	)
	return summary, nil
}

type signal int

const (
	signalNone signal = iota
	signalSuccess
	signalRateLimited
)

type itemRun struct {
	ItemResult
	signal signal
}

func (o *Orchestrator) processItem(ctx context.Context, runID string, v model.Vehicle) itemRun {
	item := itemRun{ItemResult: ItemResult{Plate: v.Plate}}

	key := v.LookupKey()
	if key == "" {
		item.Outcome = OutcomeFailed
		item.Detail = "no plate or chassis"
		o.setStatus(ctx, &item, model.EnrichFailed)
		return item
	}

	res, err := o.lookup(ctx, key)
	if err != nil {
		return o.classifyFailure(ctx, item, err)
	}
	if v.Listing.DeclaredSellerKind == "" && res.Assertion != nil {
		v.Listing = *res.Assertion
	}

	profiles := &pacedProfiles{source: o.provider, sleep: o.sleep, rng: o.rng, min: o.cfg.ProfileDelayMin, max: o.cfg.ProfileDelayMax}
	outcome := o.walker.Resolve(ctx, v, res.Chain, profiles)

	item.signal = signalSuccess
	item.ProfileFailures = len(outcome.ProfileErrors)
	for _, perr := range outcome.ProfileErrors {
		if resilience.IsRateLimited(perr) {
			item.signal = signalRateLimited
		}
	}
	if outcome.RegistryErr != nil {
		item.RegistryFailures = 1
	}

	if outcome.NoData || outcome.Provenance == nil {
		item.Outcome = OutcomeNoData
		o.setStatus(ctx, &item, model.EnrichNoData)
		return item
	}

	prov := outcome.Provenance
	prov.RunID = runID
	err = resilience.Do(ctx, o.cfg.Retry, func(ctx context.Context) error {
		return o.store.UpsertProvenance(ctx, prov)
	})
	if err != nil {
		zap.L().Error("enrich: persist provenance failed", zap.String("plate", v.Plate), zap.Error(err))
		item.Outcome = OutcomeFailed
		item.Detail = "persist: " + err.Error()
		item.PersistFailures++
		o.setStatus(ctx, &item, model.EnrichFailed)
		return item
	}

	item.Outcome = OutcomeResolved
	item.OwnerKind = prov.OwnerKind
	item.HasLead = prov.HasLead()
	item.Detail = string(prov.OwnerKind)
	o.setStatus(ctx, &item, model.EnrichResolved)
	return item
}

// lookup runs the primary ownership lookup and falls back to the search
// endpoint when the primary yields no chain. Not-found is an empty result.
func (o *Orchestrator) lookup(ctx context.Context, key string) (*provider.OwnershipResult, error) {
	primary, err := o.provider.LookupOwnership(ctx, key)
	if err != nil && !errors.Is(err, provider.ErrNotFound) {
		return nil, err
	}
	if !primary.Empty() {
		return primary, nil
	}

	fallback, err := o.provider.LookupOwnershipFallback(ctx, key)
	if err != nil && !errors.Is(err, provider.ErrNotFound) {
		return nil, err
	}
	return provider.Merge(primary, fallback), nil
}

func (o *Orchestrator) classifyFailure(ctx context.Context, item itemRun, err error) itemRun {
	item.Detail = err.Error()
	switch {
	case resilience.IsRateLimited(err):
		// Left in the queue for a later run.
		item.Outcome = OutcomeRateLimited
		item.signal = signalRateLimited
		o.setStatus(ctx, &item, model.EnrichPending)
	case ctx.Err() != nil:
		item.Outcome = OutcomeSkipped
		item.Detail = SkipCancelled
		o.setStatus(ctx, &item, model.EnrichSkipped)
	default:
		zap.L().Warn("enrich: lookup failed", zap.String("plate", item.Plate), zap.Error(err))
		item.Outcome = OutcomeFailed
		o.setStatus(ctx, &item, model.EnrichFailed)
	}
	return item
}

func (o *Orchestrator) setStatus(ctx context.Context, item *itemRun, status model.EnrichStatus) {
	err := o.store.SetVehicleStatus(context.WithoutCancel(ctx), item.Plate, status, item.Detail)
	if err != nil {
		zap.L().Error("enrich: set vehicle status failed",
			zap.String("plate", item.Plate),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		item.PersistFailures++
	}
}

func (o *Orchestrator) skipRemaining(ctx context.Context, summary *RunSummary, rest []model.Vehicle, detail string) {
	for _, v := range rest {
		item := itemRun{ItemResult: ItemResult{Plate: v.Plate, Outcome: OutcomeSkipped, Detail: detail}}
		o.setStatus(ctx, &item, model.EnrichSkipped)
		summary.record(item.ItemResult)
	}
}

// finish writes run bookkeeping even when ctx has been cancelled.
func (o *Orchestrator) finish(ctx context.Context, summary *RunSummary) {
	summary.FinishedAt = time.Now().UTC()
	err := o.store.CompleteRun(context.WithoutCancel(ctx), summary.RunID, summary.Status, summary)
	if err != nil {
		zap.L().Error("enrich: complete run failed", zap.String("run_id", summary.RunID), zap.Error(err))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
