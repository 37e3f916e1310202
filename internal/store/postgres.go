package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/price-research/internal/db"
	"github.com/sells-group/price-research/internal/model"
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

const (
	pgResearchColumns = `id, description, responsible_agent, status, contract_type, catalog_code, justifications, method, adjustment_percent::text, estimated_price::text, created_at, updated_at`

	pgGetResearch       = `SELECT ` + pgResearchColumns + ` FROM researches WHERE id = $1`
	pgListObservations  = `SELECT id, research_id, source_type, source_label, collected_date::text, price::text, notes, supplier_id FROM observations WHERE research_id = $1 ORDER BY position`
	pgGetEvaluation     = `SELECT research_id, result, saved_at FROM evaluations WHERE research_id = $1`
	pgSearchCatalog     = `SELECT code, description FROM catalog_items WHERE description_key LIKE $1 ORDER BY description, code LIMIT $2`
	pgSupplierColumns   = `id, tax_id, name, contact_name, email, phone, address`
	pgReportColumns     = `id, research_id, research_description, generated_by, generated_at`
	pgUniqueViolation   = "23505"
	pgCatalogTable      = "catalog_items"
	pgCatalogConflictOn = "code"
)

// preparedStatements are prepared on each new connection.
var preparedStatements = map[string]string{
	"get_research":      pgGetResearch,
	"list_observations": pgListObservations,
	"get_evaluation":    pgGetEvaluation,
	"search_catalog":    pgSearchCatalog,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
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

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS researches (
	id                 TEXT PRIMARY KEY,
	description        TEXT NOT NULL,
	responsible_agent  TEXT NOT NULL,
	status             TEXT NOT NULL DEFAULT 'draft',
	contract_type      TEXT NOT NULL DEFAULT 'goods',
	catalog_code       BIGINT,
	justifications     JSONB NOT NULL DEFAULT '{}',
	method             TEXT NOT NULL DEFAULT 'median',
	adjustment_percent NUMERIC NOT NULL DEFAULT 0,
	estimated_price    NUMERIC,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS suppliers (
	id           TEXT PRIMARY KEY,
	tax_id       TEXT NOT NULL UNIQUE,
	name         TEXT NOT NULL,
	contact_name TEXT NOT NULL DEFAULT '',
	email        TEXT NOT NULL DEFAULT '',
	phone        TEXT NOT NULL DEFAULT '',
	address      TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS observations (
	id             TEXT PRIMARY KEY,
	research_id    TEXT NOT NULL REFERENCES researches(id) ON DELETE CASCADE,
	position       INTEGER NOT NULL,
	source_type    TEXT NOT NULL,
	source_label   TEXT NOT NULL,
	collected_date DATE NOT NULL,
	price          NUMERIC NOT NULL CHECK (price > 0),
	notes          TEXT NOT NULL DEFAULT '',
	supplier_id    TEXT REFERENCES suppliers(id) ON DELETE SET NULL
);

CREATE TABLE IF NOT EXISTS evaluations (
	research_id TEXT PRIMARY KEY REFERENCES researches(id) ON DELETE CASCADE,
	result      JSONB NOT NULL,
	saved_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS reports (
	id                   TEXT PRIMARY KEY,
	research_id          TEXT NOT NULL REFERENCES researches(id) ON DELETE CASCADE,
	research_description TEXT NOT NULL,
	generated_by         TEXT NOT NULL,
	generated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS catalog_items (
	code            BIGINT PRIMARY KEY,
	description     TEXT NOT NULL,
	description_key TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_researches_status ON researches(status);
CREATE INDEX IF NOT EXISTS idx_researches_created_at ON researches(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_observations_research_id ON observations(research_id, position);
CREATE INDEX IF NOT EXISTS idx_reports_research_id ON reports(research_id);
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

// --- researches ---

func (s *PostgresStore) CreateResearch(ctx context.Context, r *model.Research) error {
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
	_, err = s.pool.Exec(ctx,
		`INSERT INTO researches (id, description, responsible_agent, status, contract_type, catalog_code, justifications, method, adjustment_percent, estimated_price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		r.ID, r.Description, r.ResponsibleAgent, string(r.Status), string(r.ContractType), nullCode(r.CatalogCode),
		justJSON, string(r.Method), r.AdjustmentPercent.String(), nullDecimal(r.EstimatedPrice), now, now,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: insert research")
	}
	return nil
}

func (s *PostgresStore) GetResearch(ctx context.Context, id string) (*model.Research, error) {
	r, err := scanResearch(s.pool.QueryRow(ctx, pgGetResearch, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("research", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get research %s", id)
	}
	if r.Observations, err = s.ListObservations(ctx, id); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *PostgresStore) ListResearches(ctx context.Context, filter ResearchFilter) ([]model.Research, error) {
	query, args := researchQuery(pgResearchColumns, filter, func(n int) string { return fmt.Sprintf("$%d", n) })

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list researches")
	}
	defer rows.Close()

	out := []model.Research{}
	for rows.Next() {
		r, err := scanResearch(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan research")
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate researches")
}

func (s *PostgresStore) UpdateResearch(ctx context.Context, id string, u model.ResearchUpdate) (*model.Research, error) {
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
	tag, err := s.pool.Exec(ctx,
		`UPDATE researches SET description = $1, responsible_agent = $2, status = $3, contract_type = $4, catalog_code = $5,
		justifications = $6, method = $7, adjustment_percent = $8, estimated_price = $9, updated_at = $10 WHERE id = $11`,
		r.Description, r.ResponsibleAgent, string(r.Status), string(r.ContractType), nullCode(r.CatalogCode),
		justJSON, string(r.Method), r.AdjustmentPercent.String(), nullDecimal(r.EstimatedPrice), r.UpdatedAt, id,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: update research %s", id)
	}
	if tag.RowsAffected() == 0 {
		return nil, notFound("research", id)
	}
	return r, nil
}

func (s *PostgresStore) DeleteResearch(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM researches WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete research %s", id)
	}
	if tag.RowsAffected() == 0 {
		return notFound("research", id)
	}
	return nil
}

// --- observations ---

func (s *PostgresStore) AddObservation(ctx context.Context, researchID string, o *model.Observation) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	o.ResearchID = researchID

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO observations (id, research_id, position, source_type, source_label, collected_date, price, notes, supplier_id)
		SELECT $1, r.id, COALESCE((SELECT MAX(position) FROM observations WHERE research_id = r.id), 0) + 1,
			$2, $3, $4::date, $5::numeric, $6, $7
		FROM researches r WHERE r.id = $8`,
		o.ID, string(o.SourceType), o.SourceLabel, o.CollectedDate.String(), o.Price.String(), o.Notes,
		nullString(o.SupplierID), researchID,
	)
	if err != nil {
		return pgError(err, "postgres: insert observation")
	}
	if tag.RowsAffected() == 0 {
		return notFound("research", researchID)
	}
	return nil
}

func (s *PostgresStore) UpdateObservation(ctx context.Context, o *model.Observation) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE observations SET source_type = $1, source_label = $2, collected_date = $3::date, price = $4::numeric, notes = $5, supplier_id = $6
		WHERE id = $7 AND research_id = $8`,
		string(o.SourceType), o.SourceLabel, o.CollectedDate.String(), o.Price.String(), o.Notes,
		nullString(o.SupplierID), o.ID, o.ResearchID,
	)
	if err != nil {
		return pgError(err, "postgres: update observation")
	}
	if tag.RowsAffected() == 0 {
		return notFound("observation", o.ID)
	}
	return nil
}

func (s *PostgresStore) DeleteObservation(ctx context.Context, researchID, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM observations WHERE id = $1 AND research_id = $2`, id, researchID)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete observation %s", id)
	}
	if tag.RowsAffected() == 0 {
		return notFound("observation", id)
	}
	return nil
}

func (s *PostgresStore) ListObservations(ctx context.Context, researchID string) ([]model.Observation, error) {
	rows, err := s.pool.Query(ctx, pgListObservations, researchID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list observations %s", researchID)
	}
	defer rows.Close()

	out := []model.Observation{}
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan observation")
		}
		out = append(out, *o)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate observations")
}

// --- evaluations ---

// SaveEvaluation stores the result and copies the estimated price, method
// and adjustment onto the research in one transaction.
func (s *PostgresStore) SaveEvaluation(ctx context.Context, ev *model.StoredEvaluation) error {
	if ev.SavedAt.IsZero() {
		ev.SavedAt = time.Now().UTC()
	}
	resultJSON, err := marshalJSON(ev.Result, "evaluation")
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin save evaluation")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx,
		`UPDATE researches SET estimated_price = $1, method = $2, adjustment_percent = $3, updated_at = $4 WHERE id = $5`,
		ev.Result.EstimatedPrice.String(), string(ev.Result.Method), ev.Result.AdjustmentPercent.String(), ev.SavedAt, ev.ResearchID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update research %s", ev.ResearchID)
	}
	if tag.RowsAffected() == 0 {
		return notFound("research", ev.ResearchID)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO evaluations (research_id, result, saved_at) VALUES ($1, $2, $3)
		ON CONFLICT (research_id) DO UPDATE SET result = EXCLUDED.result, saved_at = EXCLUDED.saved_at`,
		ev.ResearchID, resultJSON, ev.SavedAt,
	); err != nil {
		return eris.Wrapf(err, "postgres: upsert evaluation %s", ev.ResearchID)
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit save evaluation")
}

func (s *PostgresStore) GetEvaluation(ctx context.Context, researchID string) (*model.StoredEvaluation, error) {
	var (
		ev         model.StoredEvaluation
		resultJSON []byte
	)
	err := s.pool.QueryRow(ctx, pgGetEvaluation, researchID).Scan(&ev.ResearchID, &resultJSON, &ev.SavedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("evaluation", researchID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get evaluation %s", researchID)
	}
	if err := json.Unmarshal(resultJSON, &ev.Result); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal evaluation")
	}
	return &ev, nil
}

// --- suppliers ---

func (s *PostgresStore) CreateSupplier(ctx context.Context, sup *model.Supplier) error {
	if sup.ID == "" {
		sup.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO suppliers (id, tax_id, name, contact_name, email, phone, address) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sup.ID, sup.TaxID, sup.Name, sup.ContactName, sup.Email, sup.Phone, sup.Address,
	)
	return pgError(err, "postgres: insert supplier")
}

func (s *PostgresStore) GetSupplier(ctx context.Context, id string) (*model.Supplier, error) {
	sup, err := scanSupplier(s.pool.QueryRow(ctx, `SELECT `+pgSupplierColumns+` FROM suppliers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("supplier", id)
	}
	return sup, eris.Wrapf(err, "postgres: get supplier %s", id)
}

func (s *PostgresStore) ListSuppliers(ctx context.Context) ([]model.Supplier, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+pgSupplierColumns+` FROM suppliers ORDER BY name, id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list suppliers")
	}
	defer rows.Close()

	out := []model.Supplier{}
	for rows.Next() {
		sup, err := scanSupplier(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan supplier")
		}
		out = append(out, *sup)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate suppliers")
}

func (s *PostgresStore) UpdateSupplier(ctx context.Context, sup *model.Supplier) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE suppliers SET tax_id = $1, name = $2, contact_name = $3, email = $4, phone = $5, address = $6 WHERE id = $7`,
		sup.TaxID, sup.Name, sup.ContactName, sup.Email, sup.Phone, sup.Address, sup.ID,
	)
	if err != nil {
		return pgError(err, "postgres: update supplier")
	}
	if tag.RowsAffected() == 0 {
		return notFound("supplier", sup.ID)
	}
	return nil
}

func (s *PostgresStore) DeleteSupplier(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM suppliers WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete supplier %s", id)
	}
	if tag.RowsAffected() == 0 {
		return notFound("supplier", id)
	}
	return nil
}

// --- reports ---

func (s *PostgresStore) CreateReport(ctx context.Context, r *model.Report) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.GeneratedAt.IsZero() {
		r.GeneratedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO reports (id, research_id, research_description, generated_by, generated_at) VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.ResearchID, r.ResearchDescription, r.GeneratedBy, r.GeneratedAt,
	)
	return eris.Wrap(err, "postgres: insert report")
}

func (s *PostgresStore) GetReport(ctx context.Context, id string) (*model.Report, error) {
	r, err := scanReport(s.pool.QueryRow(ctx, `SELECT `+pgReportColumns+` FROM reports WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("report", id)
	}
	return r, eris.Wrapf(err, "postgres: get report %s", id)
}

func (s *PostgresStore) ListReports(ctx context.Context, researchID string) ([]model.Report, error) {
	query := `SELECT ` + pgReportColumns + ` FROM reports`
	var args []any
	if researchID != "" {
		query += ` WHERE research_id = $1`
		args = append(args, researchID)
	}
	query += ` ORDER BY generated_at DESC, id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list reports")
	}
	defer rows.Close()

	out := []model.Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan report")
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate reports")
}

// --- dashboard ---

func (s *PostgresStore) DashboardStats(ctx context.Context) (*model.DashboardStats, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM researches GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: dashboard stats")
	}
	defer rows.Close()

	stats := &model.DashboardStats{ByStatus: make(map[model.ResearchStatus]int)}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dashboard stats")
		}
		stats.ByStatus[model.ResearchStatus(status)] = n
		stats.Total += n
	}
	return stats, eris.Wrap(rows.Err(), "postgres: iterate dashboard stats")
}

// --- catalog ---

// UpsertCatalogItems merges items into the catalog through COPY.
func (s *PostgresStore) UpsertCatalogItems(ctx context.Context, items []model.CatalogItem) (int64, error) {
	rows := make([][]any, len(items))
	for i, it := range items {
		rows[i] = []any{it.Code, it.Description, searchKey(it.Description)}
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        pgCatalogTable,
		Columns:      []string{"code", "description", "description_key"},
		ConflictKeys: []string{pgCatalogConflictOn},
	}, rows)
	return n, eris.Wrap(err, "postgres: upsert catalog")
}

func (s *PostgresStore) SearchCatalog(ctx context.Context, query string, limit int) ([]model.CatalogItem, error) {
	rows, err := s.pool.Query(ctx, pgSearchCatalog, likePattern(query), searchLimit(limit))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: search catalog")
	}
	defer rows.Close()

	out := []model.CatalogItem{}
	for rows.Next() {
		var it model.CatalogItem
		if err := rows.Scan(&it.Code, &it.Description); err != nil {
			return nil, eris.Wrap(err, "postgres: scan catalog item")
		}
		out = append(out, it)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate catalog")
}

// pgError maps unique violations to ErrConflict.
func pgError(err error, msg string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return eris.Wrap(ErrConflict, pgErr.Detail)
	}
	return eris.Wrap(err, msg)
}
