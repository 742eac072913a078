package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-resolver/internal/db"
	"github.com/sells-group/lead-resolver/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// the per-item writes of an enrichment run.
var preparedStatements = map[string]string{
	"set_vehicle_status": sqlSetVehicleStatus,
	"upsert_provenance":  sqlUpsertProvenance,
	"upsert_dealer":      sqlUpsertDealer,
}

const (
	sqlSetVehicleStatus = `UPDATE vehicles SET status = $1, status_detail = $2, updated_at = $3 WHERE plate = $4`

	sqlUpsertProvenance = `INSERT INTO provenance (plate, owner_kind, reason, holder_name, lead_name, lead_kind, data, run_id, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (plate) DO UPDATE SET
			owner_kind = EXCLUDED.owner_kind,
			reason = EXCLUDED.reason,
			holder_name = EXCLUDED.holder_name,
			lead_name = EXCLUDED.lead_name,
			lead_kind = EXCLUDED.lead_kind,
			data = EXCLUDED.data,
			run_id = EXCLUDED.run_id,
			resolved_at = EXCLUDED.resolved_at`

	sqlUpsertDealer = `INSERT INTO dealers (primary_name, aliases, contact, vehicle_count_hint, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (primary_name) DO UPDATE SET
			aliases = EXCLUDED.aliases,
			contact = COALESCE(EXCLUDED.contact, dealers.contact),
			vehicle_count_hint = COALESCE(EXCLUDED.vehicle_count_hint, dealers.vehicle_count_hint),
			updated_at = EXCLUDED.updated_at`
)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// A run is sequential; a handful of connections is plenty.
	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				// Tables may not exist before the first migrate.
				var pgErr *pgconn.PgError
				if errors.As(err, &pgErr) && pgErr.Code == "42P01" {
					continue
				}
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS vehicles (
	plate         TEXT PRIMARY KEY,
	chassis       TEXT NOT NULL DEFAULT '',
	model_text    TEXT NOT NULL DEFAULT '',
	seller_name   TEXT NOT NULL DEFAULT '',
	seller_kind   TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'pending',
	status_detail TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_vehicles_status ON vehicles(status, created_at);

CREATE TABLE IF NOT EXISTS provenance (
	plate       TEXT PRIMARY KEY,
	owner_kind  TEXT NOT NULL,
	reason      TEXT NOT NULL DEFAULT '',
	holder_name TEXT NOT NULL DEFAULT '',
	lead_name   TEXT,
	lead_kind   TEXT,
	data        JSONB NOT NULL,
	run_id      TEXT,
	resolved_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_provenance_owner_kind ON provenance(owner_kind);

CREATE TABLE IF NOT EXISTS dealers (
	primary_name       TEXT PRIMARY KEY,
	aliases            JSONB NOT NULL DEFAULT '[]',
	contact            JSONB,
	vehicle_count_hint INTEGER,
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS leads (
	id         TEXT PRIMARY KEY,
	batch_id   TEXT NOT NULL DEFAULT '',
	plate      TEXT NOT NULL DEFAULT '',
	chassis    TEXT NOT NULL DEFAULT '',
	phone      TEXT NOT NULL DEFAULT '',
	owner_name TEXT NOT NULL DEFAULT '',
	batch_seq  INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_leads_batch_id ON leads(batch_id);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	kind        TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	summary     JSONB,
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Vehicles ---

func (s *PostgresStore) UpsertVehicle(ctx context.Context, v model.Vehicle) error {
	status := v.Status
	if status == "" {
		status = model.EnrichPending
	}
	now := time.Now().UTC()
	createdAt := v.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO vehicles (plate, chassis, model_text, seller_name, seller_kind, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (plate) DO UPDATE SET
			chassis = EXCLUDED.chassis,
			model_text = EXCLUDED.model_text,
			seller_name = EXCLUDED.seller_name,
			seller_kind = EXCLUDED.seller_kind,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`,
		v.Plate, v.Chassis, v.ModelText, v.Listing.DeclaredSellerName, string(v.Listing.DeclaredSellerKind),
		string(status), createdAt, now,
	)
	return eris.Wrapf(err, "postgres: upsert vehicle %s", v.Plate)
}

func (s *PostgresStore) PendingVehicles(ctx context.Context, limit int) ([]model.Vehicle, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT plate, chassis, model_text, seller_name, seller_kind, status, created_at
		FROM vehicles WHERE status IN ($1, $2) ORDER BY created_at, plate LIMIT $3`,
		string(model.EnrichPending), string(model.EnrichSkipped), defaultLimit(limit, 50),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: pending vehicles")
	}
	defer rows.Close()

	var out []model.Vehicle
	for rows.Next() {
		var v model.Vehicle
		var kind, status string
		if err := rows.Scan(&v.Plate, &v.Chassis, &v.ModelText, &v.Listing.DeclaredSellerName, &kind, &status, &v.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan vehicle")
		}
		v.Listing.DeclaredSellerKind = model.SellerKind(kind)
		v.Status = model.EnrichStatus(status)
		out = append(out, v)
	}
	return out, eris.Wrap(rows.Err(), "postgres: pending vehicles iterate")
}

func (s *PostgresStore) SetVehicleStatus(ctx context.Context, plate string, status model.EnrichStatus, detail string) error {
	tag, err := s.pool.Exec(ctx, sqlSetVehicleStatus, string(status), detail, time.Now().UTC(), plate)
	if err != nil {
		return eris.Wrapf(err, "postgres: set vehicle status %s", plate)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("vehicle not found: %s", plate)
	}
	return nil
}

// --- Provenance ---

func (s *PostgresStore) UpsertProvenance(ctx context.Context, p *model.ResolvedProvenance) error {
	data, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal provenance")
	}
	var leadName, leadKind *string
	if p.Lead != nil {
		leadName = &p.Lead.Name
		k := string(p.LeadKind)
		leadKind = &k
	}
	var runID *string
	if p.RunID != "" {
		runID = &p.RunID
	}
	_, err = s.pool.Exec(ctx, sqlUpsertProvenance,
		p.Plate, string(p.OwnerKind), p.Reason, p.HolderName, leadName, leadKind, data, runID, p.ResolvedAt,
	)
	return eris.Wrapf(err, "postgres: upsert provenance %s", p.Plate)
}

func (s *PostgresStore) GetProvenance(ctx context.Context, plate string) (*model.ResolvedProvenance, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM provenance WHERE plate = $1`, plate).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get provenance %s", plate)
	}
	var p model.ResolvedProvenance
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal provenance")
	}
	return &p, nil
}

// --- Dealers ---

func (s *PostgresStore) ListDealers(ctx context.Context) ([]model.DealerEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT primary_name, aliases, contact, vehicle_count_hint, updated_at FROM dealers ORDER BY primary_name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list dealers")
	}
	defer rows.Close()

	var out []model.DealerEntry
	for rows.Next() {
		var e model.DealerEntry
		var aliases, contact []byte
		if err := rows.Scan(&e.PrimaryName, &aliases, &contact, &e.VehicleCountHint, &e.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dealer")
		}
		if err := unmarshalAliases(aliases, &e); err != nil {
			return nil, err
		}
		if len(contact) > 0 {
			e.Contact = &model.Contact{}
			if err := json.Unmarshal(contact, e.Contact); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal dealer contact")
			}
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list dealers iterate")
}

func (s *PostgresStore) UpsertDealer(ctx context.Context, e *model.DealerEntry) error {
	aliases, err := marshalAliases(e)
	if err != nil {
		return err
	}
	contact, err := marshalNullable(e.Contact)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, sqlUpsertDealer, e.PrimaryName, aliases, contact, e.VehicleCountHint, time.Now().UTC())
	return eris.Wrapf(err, "postgres: upsert dealer %s", e.PrimaryName)
}

// UpsertDealers replaces the given entries in one COPY-backed transaction.
func (s *PostgresStore) UpsertDealers(ctx context.Context, entries []model.DealerEntry) (int, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(entries))
	for i := range entries {
		aliases, err := marshalAliases(&entries[i])
		if err != nil {
			return 0, err
		}
		contact, err := marshalNullable(entries[i].Contact)
		if err != nil {
			return 0, err
		}
		rows = append(rows, []any{entries[i].PrimaryName, aliases, contact, entries[i].VehicleCountHint, now})
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "dealers",
		Columns:      []string{"primary_name", "aliases", "contact", "vehicle_count_hint", "updated_at"},
		ConflictKeys: []string{"primary_name"},
	}, rows)
	return int(n), eris.Wrap(err, "postgres: upsert dealers")
}

// --- Leads ---

func (s *PostgresStore) InsertLeads(ctx context.Context, leads []model.Lead) (int, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(leads))
	for i, l := range leads {
		id := l.ID
		if id == "" {
			id = uuid.New().String()
		}
		createdAt := l.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		rows = append(rows, []any{id, l.BatchID, l.Plate, l.Chassis, l.Phone, l.OwnerName, i, createdAt})
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "leads",
		Columns:      leadColumns,
		ConflictKeys: []string{"id"},
	}, rows)
	return int(n), eris.Wrap(err, "postgres: insert leads")
}

// batch_seq is the lead's position in its InsertLeads call. Leads of one
// import share created_at, so it is what keeps batch order.
var leadColumns = []string{"id", "batch_id", "plate", "chassis", "phone", "owner_name", "batch_seq", "created_at"}

func (s *PostgresStore) ListLeads(ctx context.Context, offset, limit int) ([]model.Lead, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, batch_id, plate, chassis, phone, owner_name, created_at FROM leads ORDER BY id LIMIT $1 OFFSET $2`,
		defaultLimit(limit, 1000), max(offset, 0),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	return collectLeads(rows)
}

func (s *PostgresStore) LeadsByBatch(ctx context.Context, batchID string) ([]model.Lead, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, batch_id, plate, chassis, phone, owner_name, created_at FROM leads WHERE batch_id = $1 ORDER BY created_at, batch_seq, id`,
		batchID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: leads by batch %s", batchID)
	}
	return collectLeads(rows)
}

func collectLeads(rows pgx.Rows) ([]model.Lead, error) {
	defer rows.Close()
	var out []model.Lead
	for rows.Next() {
		var l model.Lead
		if err := rows.Scan(&l.ID, &l.BatchID, &l.Plate, &l.Chassis, &l.Phone, &l.OwnerName, &l.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "postgres: leads iterate")
}

// --- Runs ---

func (s *PostgresStore) CreateRun(ctx context.Context, kind model.RunKind) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, kind, status, started_at) VALUES ($1, $2, $3, $4)`,
		id, string(kind), string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return &model.Run{ID: id, Kind: kind, Status: model.RunStatusRunning, StartedAt: now}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary any) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, summary = $2, finished_at = $3 WHERE id = $4`,
		string(status), summaryJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, kind, status, summary, started_at, finished_at FROM runs ORDER BY started_at DESC LIMIT $1`,
		defaultLimit(limit, 20),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var kind, status string
		var summary []byte
		if err := rows.Scan(&r.ID, &kind, &status, &summary, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Kind = model.RunKind(kind)
		r.Status = model.RunStatus(status)
		if len(summary) > 0 {
			r.Summary = json.RawMessage(summary)
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
