// Package store persists researches, observations, evaluations, suppliers,
// reports and the CATMAT catalog in Postgres or SQLite.
package store

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"github.com/sells-group/price-research/internal/model"
)

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = eris.New("store: not found")

	// ErrConflict is returned when a unique key is already taken.
	ErrConflict = eris.New("store: conflict")
)

const (
	defaultListLimit   = 100
	defaultSearchLimit = 50
)

// ResearchFilter specifies criteria for listing researches.
type ResearchFilter struct {
	Status    model.ResearchStatus `json:"status,omitempty"`
	Evaluated bool                 `json:"evaluated,omitempty"` // only researches with a stored evaluation
	Limit     int                  `json:"limit,omitempty"`
	Offset    int                  `json:"offset,omitempty"`
}

// Store defines the persistence interface for price research.
type Store interface {
	// Researches
	CreateResearch(ctx context.Context, r *model.Research) error
	GetResearch(ctx context.Context, id string) (*model.Research, error)
	ListResearches(ctx context.Context, filter ResearchFilter) ([]model.Research, error)
	UpdateResearch(ctx context.Context, id string, u model.ResearchUpdate) (*model.Research, error)
	DeleteResearch(ctx context.Context, id string) error

	// Observations
	AddObservation(ctx context.Context, researchID string, o *model.Observation) error
	UpdateObservation(ctx context.Context, o *model.Observation) error
	DeleteObservation(ctx context.Context, researchID, id string) error
	ListObservations(ctx context.Context, researchID string) ([]model.Observation, error)

	// Evaluations
	SaveEvaluation(ctx context.Context, ev *model.StoredEvaluation) error
	GetEvaluation(ctx context.Context, researchID string) (*model.StoredEvaluation, error)

	// Suppliers
	CreateSupplier(ctx context.Context, s *model.Supplier) error
	GetSupplier(ctx context.Context, id string) (*model.Supplier, error)
	ListSuppliers(ctx context.Context) ([]model.Supplier, error)
	UpdateSupplier(ctx context.Context, s *model.Supplier) error
	DeleteSupplier(ctx context.Context, id string) error

	// Reports
	CreateReport(ctx context.Context, r *model.Report) error
	GetReport(ctx context.Context, id string) (*model.Report, error)
	ListReports(ctx context.Context, researchID string) ([]model.Report, error)

	// Dashboard
	DashboardStats(ctx context.Context) (*model.DashboardStats, error)

	// Catalog
	UpsertCatalogItems(ctx context.Context, items []model.CatalogItem) (int64, error)
	SearchCatalog(ctx context.Context, query string, limit int) ([]model.CatalogItem, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// ApplyUpdate copies the non-nil fields of u onto r.
func ApplyUpdate(r *model.Research, u model.ResearchUpdate) {
	if u.Description != nil {
		r.Description = *u.Description
	}
	if u.ResponsibleAgent != nil {
		r.ResponsibleAgent = *u.ResponsibleAgent
	}
	if u.Status != nil {
		r.Status = *u.Status
	}
	if u.ContractType != nil {
		r.ContractType = *u.ContractType
	}
	if u.CatalogCode != nil {
		r.CatalogCode = *u.CatalogCode
	}
	if u.Justifications != nil {
		r.Justifications = *u.Justifications
	}
	if u.Method != nil {
		r.Method = *u.Method
	}
	if u.AdjustmentPercent != nil {
		r.AdjustmentPercent = *u.AdjustmentPercent
	}
	if u.EstimatedPrice != nil {
		p := *u.EstimatedPrice
		r.EstimatedPrice = &p
	}
}

// withDefaults fills the fields a new research may omit.
func withDefaults(r *model.Research) {
	if r.Status == "" {
		r.Status = model.ResearchStatusDraft
	}
	if r.ContractType == "" {
		r.ContractType = model.ContractGoods
	}
	if r.Method == "" {
		r.Method = model.MethodMedian
	}
}

// researchQuery builds the list query for filter. ph renders the n-th
// placeholder for the backend.
func researchQuery(columns string, filter ResearchFilter, ph func(n int) string) (string, []any) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, "status = "+ph(len(args)))
	}
	if filter.Evaluated {
		where = append(where, "EXISTS (SELECT 1 FROM evaluations e WHERE e.research_id = researches.id)")
	}

	query := "SELECT " + columns + " FROM researches"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit)
	query += " LIMIT " + ph(len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += " OFFSET " + ph(len(args))
	}
	return query, args
}

type scannable interface {
	Scan(dest ...any) error
}

// scanResearch reads researchColumns. Decimals arrive as text.
func scanResearch(row scannable) (*model.Research, error) {
	var (
		r           model.Research
		catalogCode *int64
		justJSON    []byte
		adjustment  string
		estimated   *string
	)
	if err := row.Scan(&r.ID, &r.Description, &r.ResponsibleAgent, &r.Status, &r.ContractType,
		&catalogCode, &justJSON, &r.Method, &adjustment, &estimated, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if catalogCode != nil {
		r.CatalogCode = *catalogCode
	}
	if len(justJSON) > 0 {
		if err := json.Unmarshal(justJSON, &r.Justifications); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal justifications")
		}
	}
	var err error
	if r.AdjustmentPercent, err = parseDecimal(adjustment); err != nil {
		return nil, err
	}
	if estimated != nil {
		p, err := parseDecimal(*estimated)
		if err != nil {
			return nil, err
		}
		r.EstimatedPrice = &p
	}
	return &r, nil
}

func scanObservation(row scannable) (*model.Observation, error) {
	var (
		o          model.Observation
		date       string
		price      string
		supplierID *string
	)
	if err := row.Scan(&o.ID, &o.ResearchID, &o.SourceType, &o.SourceLabel, &date, &price, &o.Notes, &supplierID); err != nil {
		return nil, err
	}
	d, err := model.ParseDate(date)
	if err != nil {
		return nil, eris.Wrapf(err, "store: observation %s date", o.ID)
	}
	o.CollectedDate = d
	if o.Price, err = parseDecimal(price); err != nil {
		return nil, err
	}
	if supplierID != nil {
		o.SupplierID = *supplierID
	}
	return &o, nil
}

func scanSupplier(row scannable) (*model.Supplier, error) {
	var s model.Supplier
	if err := row.Scan(&s.ID, &s.TaxID, &s.Name, &s.ContactName, &s.Email, &s.Phone, &s.Address); err != nil {
		return nil, err
	}
	return &s, nil
}

func scanReport(row scannable) (*model.Report, error) {
	var r model.Report
	if err := row.Scan(&r.ID, &r.ResearchID, &r.ResearchDescription, &r.GeneratedBy, &r.GeneratedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, eris.Wrapf(err, "store: parse decimal %q", s)
	}
	return d, nil
}

// nullString maps "" to NULL.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullCode maps the zero catalog code to NULL.
func nullCode(code int64) *int64 {
	if code == 0 {
		return nil
	}
	return &code
}

func nullDecimal(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

// searchKey is the case-folded form used for catalog search, so accented
// capitals in CATMAT descriptions match lower-case queries.
func searchKey(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// likePattern builds a substring LIKE pattern with '\' as the escape.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(searchKey(q)) + "%"
}

func searchLimit(limit int) int {
	if limit <= 0 || limit > defaultSearchLimit {
		return defaultSearchLimit
	}
	return limit
}

func notFound(entity, id string) error {
	return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
}

func marshalJSON(v any, what string) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, eris.Wrapf(err, "store: marshal %s", what)
	}
	return b, nil
}
