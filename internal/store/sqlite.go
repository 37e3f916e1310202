package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sells-group/price-research/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode. Foreign keys are enabled on every connection.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", withConnPragmas(dsn))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// withConnPragmas appends per-connection pragmas to the DSN.
func withConnPragmas(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Dates and decimals are stored as TEXT so they round-trip exactly.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS researches (
	id                 TEXT PRIMARY KEY,
	description        TEXT NOT NULL,
	responsible_agent  TEXT NOT NULL,
	status             TEXT NOT NULL DEFAULT 'draft',
	contract_type      TEXT NOT NULL DEFAULT 'goods',
	catalog_code       INTEGER,
	justifications     TEXT NOT NULL DEFAULT '{}',
	method             TEXT NOT NULL DEFAULT 'median',
	adjustment_percent TEXT NOT NULL DEFAULT '0',
	estimated_price    TEXT,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS suppliers (
	id           TEXT PRIMARY KEY,
	tax_id       TEXT NOT NULL UNIQUE,
	name         TEXT NOT NULL,
	contact_name TEXT NOT NULL DEFAULT '',
	email        TEXT NOT NULL DEFAULT '',
	phone        TEXT NOT NULL DEFAULT '',
	address      TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS observations (
	id             TEXT PRIMARY KEY,
	research_id    TEXT NOT NULL REFERENCES researches(id) ON DELETE CASCADE,
	position       INTEGER NOT NULL,
	source_type    TEXT NOT NULL,
	source_label   TEXT NOT NULL,
	collected_date TEXT NOT NULL,
	price          TEXT NOT NULL,
	notes          TEXT NOT NULL DEFAULT '',
	supplier_id    TEXT REFERENCES suppliers(id) ON DELETE SET NULL
);

CREATE TABLE IF NOT EXISTS evaluations (
	research_id TEXT PRIMARY KEY REFERENCES researches(id) ON DELETE CASCADE,
	result      TEXT NOT NULL,
	saved_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS reports (
	id                   TEXT PRIMARY KEY,
	research_id          TEXT NOT NULL REFERENCES researches(id) ON DELETE CASCADE,
	research_description TEXT NOT NULL,
	generated_by         TEXT NOT NULL,
	generated_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS catalog_items (
	code            INTEGER PRIMARY KEY,
	description     TEXT NOT NULL,
	description_key TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_researches_status ON researches(status);
CREATE INDEX IF NOT EXISTS idx_researches_created_at ON researches(created_at);
CREATE INDEX IF NOT EXISTS idx_observations_research_id ON observations(research_id, position);
CREATE INDEX IF NOT EXISTS idx_reports_research_id ON reports(research_id);
`

const (
	sqliteResearchColumns    = `id, description, responsible_agent, status, contract_type, catalog_code, justifications, method, adjustment_percent, estimated_price, created_at, updated_at`
	sqliteObservationColumns = `id, research_id, source_type, source_label, collected_date, price, notes, supplier_id`
	sqliteSupplierColumns    = `id, tax_id, name, contact_name, email, phone, address`
	sqliteReportColumns      = `id, research_id, research_description, generated_by, generated_at`
)

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- researches ---

func (s *SQLiteStore) CreateResearch(ctx context.Context, r *model.Research) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	withDefaults(r)
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now

	justJSON, err := marshalJSON(r.Justifications, "justifications")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO researches (`+sqliteResearchColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Description, r.ResponsibleAgent, string(r.Status), string(r.ContractType), nullCode(r.CatalogCode),
		string(justJSON), string(r.Method), r.AdjustmentPercent.String(), nullDecimal(r.EstimatedPrice), now, now,
	)
	return eris.Wrap(err, "sqlite: insert research")
}

func (s *SQLiteStore) GetResearch(ctx context.Context, id string) (*model.Research, error) {
	r, err := scanResearch(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteResearchColumns+` FROM researches WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("research", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get research %s", id)
	}
	if r.Observations, err = s.ListObservations(ctx, id); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *SQLiteStore) ListResearches(ctx context.Context, filter ResearchFilter) ([]model.Research, error) {
	query, args := researchQuery(sqliteResearchColumns, filter, func(int) string { return "?" })

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list researches")
	}
	defer rows.Close()

	out := []model.Research{}
	for rows.Next() {
		r, err := scanResearch(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan research")
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate researches")
}

func (s *SQLiteStore) UpdateResearch(ctx context.Context, id string, u model.ResearchUpdate) (*model.Research, error) {
	r, err := s.GetResearch(ctx, id)
	if err != nil {
		return nil, err
	}
	ApplyUpdate(r, u)
	r.UpdatedAt = time.Now().UTC()

	justJSON, err := marshalJSON(r.Justifications, "justifications")
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE researches SET description = ?, responsible_agent = ?, status = ?, contract_type = ?, catalog_code = ?,
		justifications = ?, method = ?, adjustment_percent = ?, estimated_price = ?, updated_at = ? WHERE id = ?`,
		r.Description, r.ResponsibleAgent, string(r.Status), string(r.ContractType), nullCode(r.CatalogCode),
		string(justJSON), string(r.Method), r.AdjustmentPercent.String(), nullDecimal(r.EstimatedPrice), r.UpdatedAt, id,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: update research %s", id)
	}
	if err := checkRowsAffected(res, "research", id); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *SQLiteStore) DeleteResearch(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM researches WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete research %s", id)
	}
	return checkRowsAffected(res, "research", id)
}

// --- observations ---

func (s *SQLiteStore) AddObservation(ctx context.Context, researchID string, o *model.Observation) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	o.ResearchID = researchID

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO observations (id, research_id, position, source_type, source_label, collected_date, price, notes, supplier_id)
		SELECT ?, r.id, COALESCE((SELECT MAX(position) FROM observations WHERE research_id = r.id), 0) + 1, ?, ?, ?, ?, ?, ?
		FROM researches r WHERE r.id = ?`,
		o.ID, string(o.SourceType), o.SourceLabel, o.CollectedDate.String(), o.Price.String(), o.Notes,
		nullString(o.SupplierID), researchID,
	)
	if err != nil {
		return sqliteError(err, "sqlite: insert observation")
	}
	return checkRowsAffected(res, "research", researchID)
}

func (s *SQLiteStore) UpdateObservation(ctx context.Context, o *model.Observation) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE observations SET source_type = ?, source_label = ?, collected_date = ?, price = ?, notes = ?, supplier_id = ?
		WHERE id = ? AND research_id = ?`,
		string(o.SourceType), o.SourceLabel, o.CollectedDate.String(), o.Price.String(), o.Notes,
		nullString(o.SupplierID), o.ID, o.ResearchID,
	)
	if err != nil {
		return sqliteError(err, "sqlite: update observation")
	}
	return checkRowsAffected(res, "observation", o.ID)
}

func (s *SQLiteStore) DeleteObservation(ctx context.Context, researchID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM observations WHERE id = ? AND research_id = ?`, id, researchID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete observation %s", id)
	}
	return checkRowsAffected(res, "observation", id)
}

func (s *SQLiteStore) ListObservations(ctx context.Context, researchID string) ([]model.Observation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteObservationColumns+` FROM observations WHERE research_id = ? ORDER BY position`, researchID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list observations %s", researchID)
	}
	defer rows.Close()

	out := []model.Observation{}
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan observation")
		}
		out = append(out, *o)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate observations")
}

// --- evaluations ---

func (s *SQLiteStore) SaveEvaluation(ctx context.Context, ev *model.StoredEvaluation) error {
	if ev.SavedAt.IsZero() {
		ev.SavedAt = time.Now().UTC()
	}
	resultJSON, err := marshalJSON(ev.Result, "evaluation")
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save evaluation")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE researches SET estimated_price = ?, method = ?, adjustment_percent = ?, updated_at = ? WHERE id = ?`,
		ev.Result.EstimatedPrice.String(), string(ev.Result.Method), ev.Result.AdjustmentPercent.String(), ev.SavedAt, ev.ResearchID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update research %s", ev.ResearchID)
	}
	if err := checkRowsAffected(res, "research", ev.ResearchID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO evaluations (research_id, result, saved_at) VALUES (?, ?, ?)
		ON CONFLICT (research_id) DO UPDATE SET result = excluded.result, saved_at = excluded.saved_at`,
		ev.ResearchID, string(resultJSON), ev.SavedAt,
	); err != nil {
		return eris.Wrapf(err, "sqlite: upsert evaluation %s", ev.ResearchID)
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit save evaluation")
}

func (s *SQLiteStore) GetEvaluation(ctx context.Context, researchID string) (*model.StoredEvaluation, error) {
	var (
		ev         model.StoredEvaluation
		resultJSON []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT research_id, result, saved_at FROM evaluations WHERE research_id = ?`, researchID,
	).Scan(&ev.ResearchID, &resultJSON, &ev.SavedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("evaluation", researchID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get evaluation %s", researchID)
	}
	if err := json.Unmarshal(resultJSON, &ev.Result); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal evaluation")
	}
	return &ev, nil
}

// --- suppliers ---

func (s *SQLiteStore) CreateSupplier(ctx context.Context, sup *model.Supplier) error {
	if sup.ID == "" {
		sup.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO suppliers (`+sqliteSupplierColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sup.ID, sup.TaxID, sup.Name, sup.ContactName, sup.Email, sup.Phone, sup.Address,
	)
	return sqliteError(err, "sqlite: insert supplier")
}

func (s *SQLiteStore) GetSupplier(ctx context.Context, id string) (*model.Supplier, error) {
	sup, err := scanSupplier(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteSupplierColumns+` FROM suppliers WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("supplier", id)
	}
	return sup, eris.Wrapf(err, "sqlite: get supplier %s", id)
}

func (s *SQLiteStore) ListSuppliers(ctx context.Context) ([]model.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteSupplierColumns+` FROM suppliers ORDER BY name, id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list suppliers")
	}
	defer rows.Close()

	out := []model.Supplier{}
	for rows.Next() {
		sup, err := scanSupplier(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan supplier")
		}
		out = append(out, *sup)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate suppliers")
}

func (s *SQLiteStore) UpdateSupplier(ctx context.Context, sup *model.Supplier) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE suppliers SET tax_id = ?, name = ?, contact_name = ?, email = ?, phone = ?, address = ? WHERE id = ?`,
		sup.TaxID, sup.Name, sup.ContactName, sup.Email, sup.Phone, sup.Address, sup.ID,
	)
	if err != nil {
		return sqliteError(err, "sqlite: update supplier")
	}
	return checkRowsAffected(res, "supplier", sup.ID)
}

func (s *SQLiteStore) DeleteSupplier(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM suppliers WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete supplier %s", id)
	}
	return checkRowsAffected(res, "supplier", id)
}

// --- reports ---

func (s *SQLiteStore) CreateReport(ctx context.Context, r *model.Report) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.GeneratedAt.IsZero() {
		r.GeneratedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (`+sqliteReportColumns+`) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.ResearchID, r.ResearchDescription, r.GeneratedBy, r.GeneratedAt,
	)
	return sqliteError(err, "sqlite: insert report")
}

func (s *SQLiteStore) GetReport(ctx context.Context, id string) (*model.Report, error) {
	r, err := scanReport(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteReportColumns+` FROM reports WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("report", id)
	}
	return r, eris.Wrapf(err, "sqlite: get report %s", id)
}

func (s *SQLiteStore) ListReports(ctx context.Context, researchID string) ([]model.Report, error) {
	query := `SELECT ` + sqliteReportColumns + ` FROM reports`
	var args []any
	if researchID != "" {
		query += ` WHERE research_id = ?`
		args = append(args, researchID)
	}
	query += ` ORDER BY generated_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list reports")
	}
	defer rows.Close()

	out := []model.Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan report")
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate reports")
}

// --- dashboard ---

func (s *SQLiteStore) DashboardStats(ctx context.Context) (*model.DashboardStats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM researches GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: dashboard stats")
	}
	defer rows.Close()

	stats := &model.DashboardStats{ByStatus: make(map[model.ResearchStatus]int)}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dashboard stats")
		}
		stats.ByStatus[model.ResearchStatus(status)] = n
		stats.Total += n
	}
	return stats, eris.Wrap(rows.Err(), "sqlite: iterate dashboard stats")
}

// --- catalog ---

func (s *SQLiteStore) UpsertCatalogItems(ctx context.Context, items []model.CatalogItem) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin catalog upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO catalog_items (code, description, description_key) VALUES (?, ?, ?)
		ON CONFLICT (code) DO UPDATE SET description = excluded.description, description_key = excluded.description_key`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare catalog upsert")
	}
	defer stmt.Close()

	var n int64
	for _, it := range items {
		res, err := stmt.ExecContext(ctx, it.Code, it.Description, searchKey(it.Description))
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert catalog item %d", it.Code)
		}
		affected, _ := res.RowsAffected()
		n += affected
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit catalog upsert")
	}
	return n, nil
}

func (s *SQLiteStore) SearchCatalog(ctx context.Context, query string, limit int) ([]model.CatalogItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT code, description FROM catalog_items WHERE description_key LIKE ? ESCAPE '\' ORDER BY description, code LIMIT ?`,
		likePattern(query), searchLimit(limit))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: search catalog")
	}
	defer rows.Close()

	out := []model.CatalogItem{}
	for rows.Next() {
		var it model.CatalogItem
		if err := rows.Scan(&it.Code, &it.Description); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan catalog item")
		}
		out = append(out, it)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate catalog")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return notFound(entity, id)
	}
	return nil
}

// sqliteError maps unique violations to ErrConflict.
func sqliteError(err error, msg string) error {
	if err == nil {
		return nil
	}
	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) && sqlErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return eris.Wrap(ErrConflict, sqlErr.Error())
	}
	return eris.Wrap(err, msg)
}
