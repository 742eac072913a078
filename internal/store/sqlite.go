package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/lead-resolver/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS vehicles (
	plate         TEXT PRIMARY KEY,
	chassis       TEXT NOT NULL DEFAULT '',
	model_text    TEXT NOT NULL DEFAULT '',
	seller_name   TEXT NOT NULL DEFAULT '',
	seller_kind   TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'pending',
	status_detail TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_vehicles_status ON vehicles(status, created_at);

CREATE TABLE IF NOT EXISTS provenance (
	plate       TEXT PRIMARY KEY,
	owner_kind  TEXT NOT NULL,
	reason      TEXT NOT NULL DEFAULT '',
	holder_name TEXT NOT NULL DEFAULT '',
	lead_name   TEXT,
	lead_kind   TEXT,
	data        TEXT NOT NULL,
	run_id      TEXT,
	resolved_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS dealers (
	primary_name       TEXT PRIMARY KEY,
	aliases            TEXT NOT NULL DEFAULT '[]',
	contact            TEXT,
	vehicle_count_hint INTEGER,
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS leads (
	id         TEXT PRIMARY KEY,
	batch_id   TEXT NOT NULL DEFAULT '',
	plate      TEXT NOT NULL DEFAULT '',
	chassis    TEXT NOT NULL DEFAULT '',
	phone      TEXT NOT NULL DEFAULT '',
	owner_name TEXT NOT NULL DEFAULT '',
	batch_seq  INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_leads_batch_id ON leads(batch_id);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	summary     TEXT,
	started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Vehicles ---

func (s *SQLiteStore) UpsertVehicle(ctx context.Context, v model.Vehicle) error {
	status := v.Status
	if status == "" {
		status = model.EnrichPending
	}
	now := time.Now().UTC()
	createdAt := v.CreatedAt.UTC()
	if v.CreatedAt.IsZero() {
		createdAt = now
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vehicles (plate, chassis, model_text, seller_name, seller_kind, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(plate) DO UPDATE SET
			chassis = excluded.chassis,
			model_text = excluded.model_text,
			seller_name = excluded.seller_name,
			seller_kind = excluded.seller_kind,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		v.Plate, v.Chassis, v.ModelText, v.Listing.DeclaredSellerName, string(v.Listing.DeclaredSellerKind),
		string(status), createdAt, now,
	)
	return eris.Wrapf(err, "sqlite: upsert vehicle %s", v.Plate)
}

func (s *SQLiteStore) PendingVehicles(ctx context.Context, limit int) ([]model.Vehicle, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT plate, chassis, model_text, seller_name, seller_kind, status, created_at
		FROM vehicles WHERE status IN (?, ?) ORDER BY created_at, plate LIMIT ?`,
		string(model.EnrichPending), string(model.EnrichSkipped), defaultLimit(limit, 50),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: pending vehicles")
	}
	defer rows.Close()

	var out []model.Vehicle
	for rows.Next() {
		var v model.Vehicle
		var kind, status string
		if err := rows.Scan(&v.Plate, &v.Chassis, &v.ModelText, &v.Listing.DeclaredSellerName, &kind, &status, &v.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan vehicle")
		}
		v.Listing.DeclaredSellerKind = model.SellerKind(kind)
		v.Status = model.EnrichStatus(status)
		out = append(out, v)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: pending vehicles iterate")
}

func (s *SQLiteStore) SetVehicleStatus(ctx context.Context, plate string, status model.EnrichStatus, detail string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE vehicles SET status = ?, status_detail = ?, updated_at = ? WHERE plate = ?`,
		string(status), detail, time.Now().UTC(), plate,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set vehicle status %s", plate)
	}
	return checkRowsAffected(res, "vehicle", plate)
}

// --- Provenance ---

func (s *SQLiteStore) UpsertProvenance(ctx context.Context, p *model.ResolvedProvenance) error {
	data, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal provenance")
	}
	var leadName, leadKind sql.NullString
	if p.Lead != nil {
		leadName = sql.NullString{String: p.Lead.Name, Valid: true}
		leadKind = sql.NullString{String: string(p.LeadKind), Valid: true}
	}
	runID := sql.NullString{String: p.RunID, Valid: p.RunID != ""}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO provenance (plate, owner_kind, reason, holder_name, lead_name, lead_kind, data, run_id, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(plate) DO UPDATE SET
			owner_kind = excluded.owner_kind,
			reason = excluded.reason,
			holder_name = excluded.holder_name,
			lead_name = excluded.lead_name,
			lead_kind = excluded.lead_kind,
			data = excluded.data,
			run_id = excluded.run_id,
			resolved_at = excluded.resolved_at`,
		p.Plate, string(p.OwnerKind), p.Reason, p.HolderName, leadName, leadKind, string(data), runID, p.ResolvedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert provenance %s", p.Plate)
}

func (s *SQLiteStore) GetProvenance(ctx context.Context, plate string) (*model.ResolvedProvenance, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM provenance WHERE plate = ?`, plate).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get provenance %s", plate)
	}
	var p model.ResolvedProvenance
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal provenance")
	}
	return &p, nil
}

// --- Dealers ---

func (s *SQLiteStore) ListDealers(ctx context.Context) ([]model.DealerEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT primary_name, aliases, contact, vehicle_count_hint, updated_at FROM dealers ORDER BY primary_name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list dealers")
	}
	defer rows.Close()

	var out []model.DealerEntry
	for rows.Next() {
		var e model.DealerEntry
		var aliases string
		var contact sql.NullString
		var hint sql.NullInt64
		if err := rows.Scan(&e.PrimaryName, &aliases, &contact, &hint, &e.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dealer")
		}
		if err := unmarshalAliases([]byte(aliases), &e); err != nil {
			return nil, err
		}
		if contact.Valid && contact.String != "" {
			e.Contact = &model.Contact{}
			if err := json.Unmarshal([]byte(contact.String), e.Contact); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal dealer contact")
			}
		}
		if hint.Valid {
			n := int(hint.Int64)
			e.VehicleCountHint = &n
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list dealers iterate")
}

func (s *SQLiteStore) UpsertDealer(ctx context.Context, e *model.DealerEntry) error {
	return upsertDealerSQLite(ctx, s.db, e)
}

func (s *SQLiteStore) UpsertDealers(ctx context.Context, entries []model.DealerEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for i := range entries {
		if err := upsertDealerSQLite(ctx, tx, &entries[i]); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit dealers")
	}
	return len(entries), nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertDealerSQLite(ctx context.Context, x execer, e *model.DealerEntry) error {
	aliases, err := marshalAliases(e)
	if err != nil {
		return err
	}
	contactJSON, err := marshalNullable(e.Contact)
	if err != nil {
		return err
	}
	contact := sql.NullString{String: string(contactJSON), Valid: contactJSON != nil}
	var hint sql.NullInt64
	if e.VehicleCountHint != nil {
		hint = sql.NullInt64{Int64: int64(*e.VehicleCountHint), Valid: true}
	}

	_, err = x.ExecContext(ctx,
		`INSERT INTO dealers (primary_name, aliases, contact, vehicle_count_hint, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(primary_name) DO UPDATE SET
			aliases = excluded.aliases,
			contact = COALESCE(excluded.contact, dealers.contact),
			vehicle_count_hint = COALESCE(excluded.vehicle_count_hint, dealers.vehicle_count_hint),
			updated_at = excluded.updated_at`,
		e.PrimaryName, string(aliases), contact, hint, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert dealer %s", e.PrimaryName)
}

// --- Leads ---

func (s *SQLiteStore) InsertLeads(ctx context.Context, leads []model.Lead) (int, error) {
	if len(leads) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for i, l := range leads {
		id := l.ID
		if id == "" {
			id = uuid.New().String()
		}
		createdAt := l.CreatedAt.UTC()
		if l.CreatedAt.IsZero() {
			createdAt = now
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO leads (id, batch_id, plate, chassis, phone, owner_name, batch_seq, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				batch_id = excluded.batch_id,
				plate = excluded.plate,
				chassis = excluded.chassis,
				phone = excluded.phone,
				owner_name = excluded.owner_name,
				batch_seq = excluded.batch_seq`,
			id, l.BatchID, l.Plate, l.Chassis, l.Phone, l.OwnerName, i, createdAt,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert lead %s", id)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit leads")
	}
	return len(leads), nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, offset, limit int) ([]model.Lead, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, batch_id, plate, chassis, phone, owner_name, created_at FROM leads ORDER BY id LIMIT ? OFFSET ?`,
		defaultLimit(limit, 1000), max(offset, 0),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	return scanLeads(rows)
}

func (s *SQLiteStore) LeadsByBatch(ctx context.Context, batchID string) ([]model.Lead, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, batch_id, plate, chassis, phone, owner_name, created_at FROM leads WHERE batch_id = ? ORDER BY created_at, batch_seq, id`,
		batchID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: leads by batch %s", batchID)
	}
	return scanLeads(rows)
}

func scanLeads(rows *sql.Rows) ([]model.Lead, error) {
	defer rows.Close()
	var out []model.Lead
	for rows.Next() {
		var l model.Lead
		if err := rows.Scan(&l.ID, &l.BatchID, &l.Plate, &l.Chassis, &l.Phone, &l.OwnerName, &l.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: leads iterate")
}

// --- Runs ---

func (s *SQLiteStore) CreateRun(ctx context.Context, kind model.RunKind) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, status, started_at) VALUES (?, ?, ?, ?)`,
		id, string(kind), string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return &model.Run{ID: id, Kind: kind, Status: model.RunStatusRunning, StartedAt: now}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary any) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, summary = ?, finished_at = ? WHERE id = ?`,
		string(status), string(summaryJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, status, summary, started_at, finished_at FROM runs ORDER BY started_at DESC LIMIT ?`,
		defaultLimit(limit, 20),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var kind, status string
	var summary sql.NullString
	var finished sql.NullTime

	if err := row.Scan(&r.ID, &kind, &status, &summary, &r.StartedAt, &finished); err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	r.Kind = model.RunKind(kind)
	r.Status = model.RunStatus(status)
	if summary.Valid && summary.String != "" {
		r.Summary = json.RawMessage(summary.String)
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return &r, nil
}
