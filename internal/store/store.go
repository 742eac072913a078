package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-resolver/internal/model"
)

// Store defines the persistence interface for the identity resolution pipeline.
type Store interface {
	// Enrichment queue
	UpsertVehicle(ctx context.Context, v model.Vehicle) error
	PendingVehicles(ctx context.Context, limit int) ([]model.Vehicle, error)
	SetVehicleStatus(ctx context.Context, plate string, status model.EnrichStatus, detail string) error

	// Provenance
	UpsertProvenance(ctx context.Context, p *model.ResolvedProvenance) error
	GetProvenance(ctx context.Context, plate string) (*model.ResolvedProvenance, error)

	// Dealer registry
	ListDealers(ctx context.Context) ([]model.DealerEntry, error)
	UpsertDealer(ctx context.Context, e *model.DealerEntry) error
	UpsertDealers(ctx context.Context, entries []model.DealerEntry) (int, error)

	// Leads
	InsertLeads(ctx context.Context, leads []model.Lead) (int, error)
	ListLeads(ctx context.Context, offset, limit int) ([]model.Lead, error)
	LeadsByBatch(ctx context.Context, batchID string) ([]model.Lead, error)

	// Runs
	CreateRun(ctx context.Context, kind model.RunKind) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary any) error
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the Store for the configured driver.
func Open(ctx context.Context, driver, dsn string, poolCfg *PoolConfig) (Store, error) {
	switch driver {
	case "postgres":
		return NewPostgres(ctx, dsn, poolCfg)
	case "sqlite", "":
		return NewSQLite(dsn)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}

func marshalAliases(e *model.DealerEntry) ([]byte, error) {
	b, err := json.Marshal(e.AliasList())
	return b, eris.Wrap(err, "store: marshal aliases")
}

func unmarshalAliases(data []byte, e *model.DealerEntry) error {
	if len(data) == 0 {
		return nil
	}
	var aliases []string
	if err := json.Unmarshal(data, &aliases); err != nil {
		return eris.Wrap(err, "store: unmarshal aliases")
	}
	for _, a := range aliases {
		e.AddAlias(a)
	}
	return nil
}

// marshalNullable encodes v as JSON, returning nil for a nil pointer so the
// column stays NULL.
func marshalNullable[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	return b, eris.Wrap(err, "store: marshal")
}

func defaultLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return limit
}
