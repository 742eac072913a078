package dedupe

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-resolver/internal/model"
)

// Store is the persistence a dedupe run needs.
type Store interface {
	Population
	LeadsByBatch(ctx context.Context, batchID string) ([]model.Lead, error)
	CreateRun(ctx context.Context, kind model.RunKind) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary any) error
}

// Service runs recorded dedupe passes over stored import batches.
type Service struct {
	store    Store
	detector *Detector
}

// NewService returns a Service reading pages of pageSize leads.
func NewService(store Store, pageSize int) *Service {
	return &Service{store: store, detector: NewDetector(store, pageSize)}
}

// RunSummary is the persisted summary of a dedupe run.
type RunSummary struct {
	RunID   string  `json:"run_id"`
	BatchID string  `json:"batch_id"`
	Fields  []Field `json:"fields"`
	Error   string  `json:"error,omitempty"`
	Result  *Result `json:"result,omitempty"`
}

// CheckBatch loads the leads of batchID and checks them against the rest of
// the population. Caller errors are recorded on an aborted run and returned.
func (s *Service) CheckBatch(ctx context.Context, batchID string, opts MatchOptions) (*RunSummary, error) {
	run, err := s.store.CreateRun(ctx, model.RunKindDedupe)
	if err != nil {
		return nil, eris.Wrap(err, "dedupe: create run")
	}
	summary := &RunSummary{RunID: run.ID, BatchID: batchID, Fields: opts.Fields()}

	res, err := s.check(ctx, batchID, opts)
	if err != nil {
		summary.Error = err.Error()
		s.complete(ctx, summary, model.RunStatusAborted)
		return summary, err
	}
	summary.Result = res
	s.complete(ctx, summary, model.RunStatusCompleted)
	return summary, nil
}

func (s *Service) check(ctx context.Context, batchID string, opts MatchOptions) (*Result, error) {
	if len(opts.Fields()) == 0 {
		return nil, ErrNoMatchFields
	}
	candidates, err := s.store.LeadsByBatch(ctx, batchID)
	if err != nil {
		return nil, eris.Wrapf(err, "dedupe: load batch %s", batchID)
	}
	return s.detector.Detect(ctx, candidates, opts)
}

func (s *Service) complete(ctx context.Context, summary *RunSummary, status model.RunStatus) {
	if err := s.store.CompleteRun(context.WithoutCancel(ctx), summary.RunID, status, summary); err != nil {
		zap.L().Error("dedupe: complete run failed", zap.String("run_id", summary.RunID), zap.Error(err))
	}
}
