package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/price-research/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func newResearch(desc string) *model.Research {
	return &model.Research{
		Description:      desc,
		ResponsibleAgent: "Ana Lima",
	}
}

func quote(label, price string, d model.Date) *model.Observation {
	return &model.Observation{
		SourceType:    model.SourceSupplierQuote,
		SourceLabel:   label,
		CollectedDate: d,
		Price:         decimal.RequireFromString(price),
	}
}

func sampleResult() model.EvaluationResult {
	return model.EvaluationResult{
		ValidObservationIDs:  []string{"a", "b"},
		ExcludedObservations: map[string]string{"c": model.ReasonOverpriced},
		Mean:                 decimal.RequireFromString("105"),
		Median:               decimal.RequireFromString("105"),
		Lowest:               decimal.RequireFromString("100"),
		EstimatedPrice:       decimal.RequireFromString("110.25"),
		Method:               model.MethodAverage,
		AdjustmentPercent:    decimal.RequireFromString("5"),
		ComplianceIssues:     []string{"fewer than 3 valid prices (2 found)"},
		CalculationDetails:   "Estimated price 110.25",
		EvaluatedAt:          time.Date(2025, time.January, 15, 10, 30, 0, 0, time.UTC),
	}
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	collected := model.NewDate(2024, time.December, 1)

	t.Run("CreateAndGetResearch", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		r := newResearch("Cadeira giratória")
		r.CatalogCode = 150245
		r.Justifications = model.Justifications{Method: "mediana por dispersão"}
		require.NoError(t, s.CreateResearch(ctx, r))
		assert.NotEmpty(t, r.ID)
		assert.Equal(t, model.ResearchStatusDraft, r.Status)
		assert.Equal(t, model.ContractGoods, r.ContractType)
		assert.Equal(t, model.MethodMedian, r.Method)

		got, err := s.GetResearch(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, "Cadeira giratória", got.Description)
		assert.Equal(t, int64(150245), got.CatalogCode)
		assert.Equal(t, "mediana por dispersão", got.Justifications.Method)
		assert.True(t, got.AdjustmentPercent.IsZero())
		assert.Nil(t, got.EstimatedPrice)
		assert.Empty(t, got.Observations)
	})

	t.Run("GetResearchNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetResearch(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("UpdateResearch", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		r := newResearch("Mesa")
		require.NoError(t, s.CreateResearch(ctx, r))

		status := model.ResearchStatusInProgress
		adj := decimal.RequireFromString("-2.5")
		got, err := s.UpdateResearch(ctx, r.ID, model.ResearchUpdate{Status: &status, AdjustmentPercent: &adj})
		require.NoError(t, err)
		assert.Equal(t, model.ResearchStatusInProgress, got.Status)
		assert.Equal(t, "Mesa", got.Description)

		reread, err := s.GetResearch(ctx, r.ID)
		require.NoError(t, err)
		assert.True(t, adj.Equal(reread.AdjustmentPercent))

		_, err = s.UpdateResearch(ctx, "missing", model.ResearchUpdate{Status: &status})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ListResearchesFilters", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for i, status := range []model.ResearchStatus{
			model.ResearchStatusDraft, model.ResearchStatusInProgress, model.ResearchStatusInProgress,
		} {
			r := newResearch("item")
			r.Status = status
			r.CatalogCode = int64(i + 1)
			require.NoError(t, s.CreateResearch(ctx, r))
		}

		all, err := s.ListResearches(ctx, ResearchFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 3)

		open, err := s.ListResearches(ctx, ResearchFilter{Status: model.ResearchStatusInProgress})
		require.NoError(t, err)
		assert.Len(t, open, 2)

		page, err := s.ListResearches(ctx, ResearchFilter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		assert.Len(t, page, 1)

		evaluated, err := s.ListResearches(ctx, ResearchFilter{Evaluated: true})
		require.NoError(t, err)
		assert.Empty(t, evaluated)

		require.NoError(t, s.SaveEvaluation(ctx, &model.StoredEvaluation{ResearchID: open[0].ID, Result: sampleResult()}))
		evaluated, err = s.ListResearches(ctx, ResearchFilter{Status: model.ResearchStatusInProgress, Evaluated: true})
		require.NoError(t, err)
		require.Len(t, evaluated, 1)
		assert.Equal(t, open[0].ID, evaluated[0].ID)
	})

	t.Run("Observations", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		r := newResearch("Caneta")
		require.NoError(t, s.CreateResearch(ctx, r))

		first := quote("Papelaria A", "2.50", collected)
		second := quote("Papelaria B", "2.70", collected)
		second.Notes = "frete incluso"
		require.NoError(t, s.AddObservation(ctx, r.ID, first))
		require.NoError(t, s.AddObservation(ctx, r.ID, second))
		assert.NotEmpty(t, first.ID)
		assert.Equal(t, r.ID, first.ResearchID)

		obs, err := s.ListObservations(ctx, r.ID)
		require.NoError(t, err)
		require.Len(t, obs, 2)
		assert.Equal(t, first.ID, obs[0].ID)
		assert.Equal(t, "2.5", obs[0].Price.String())
		assert.Equal(t, collected, obs[0].CollectedDate)
		assert.Equal(t, "frete incluso", obs[1].Notes)

		second.Price = decimal.RequireFromString("2.65")
		require.NoError(t, s.UpdateObservation(ctx, second))
		got, err := s.GetResearch(ctx, r.ID)
		require.NoError(t, err)
		require.Len(t, got.Observations, 2)
		assert.Equal(t, "2.65", got.Observations[1].Price.String())

		require.NoError(t, s.DeleteObservation(ctx, r.ID, first.ID))
		assert.ErrorIs(t, s.DeleteObservation(ctx, r.ID, first.ID), ErrNotFound)

		obs, err = s.ListObservations(ctx, r.ID)
		require.NoError(t, err)
		assert.Len(t, obs, 1)

		assert.ErrorIs(t, s.AddObservation(ctx, "missing", quote("X", "1", collected)), ErrNotFound)
	})

	t.Run("SaveAndGetEvaluation", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		r := newResearch("Papel A4")
		require.NoError(t, s.CreateResearch(ctx, r))

		_, err := s.GetEvaluation(ctx, r.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, s.SaveEvaluation(ctx, &model.StoredEvaluation{ResearchID: r.ID, Result: sampleResult()}))

		ev, err := s.GetEvaluation(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, r.ID, ev.ResearchID)
		assert.Equal(t, "110.25", ev.Result.EstimatedPrice.String())
		assert.Equal(t, model.ReasonOverpriced, ev.Result.ExcludedObservations["c"])
		assert.Equal(t, []string{"a", "b"}, ev.Result.ValidObservationIDs)
		assert.True(t, ev.Result.EvaluatedAt.Equal(sampleResult().EvaluatedAt))

		got, err := s.GetResearch(ctx, r.ID)
		require.NoError(t, err)
		require.NotNil(t, got.EstimatedPrice)
		assert.Equal(t, "110.25", got.EstimatedPrice.String())
		assert.Equal(t, model.MethodAverage, got.Method)
		assert.Equal(t, "5", got.AdjustmentPercent.String())

		updated := sampleResult()
		updated.EstimatedPrice = decimal.RequireFromString("99.90")
		updated.ComplianceIssues = []string{}
		require.NoError(t, s.SaveEvaluation(ctx, &model.StoredEvaluation{ResearchID: r.ID, Result: updated}))
		ev, err = s.GetEvaluation(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, "99.9", ev.Result.EstimatedPrice.String())
		assert.NotNil(t, ev.Result.ComplianceIssues)
		assert.Empty(t, ev.Result.ComplianceIssues)

		err = s.SaveEvaluation(ctx, &model.StoredEvaluation{ResearchID: "missing", Result: sampleResult()})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("DeleteResearchCascades", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		r := newResearch("Toner")
		require.NoError(t, s.CreateResearch(ctx, r))
		require.NoError(t, s.AddObservation(ctx, r.ID, quote("Loja", "300", collected)))
		require.NoError(t, s.SaveEvaluation(ctx, &model.StoredEvaluation{ResearchID: r.ID, Result: sampleResult()}))
		require.NoError(t, s.CreateReport(ctx, &model.Report{ResearchID: r.ID, ResearchDescription: "Toner", GeneratedBy: "Ana"}))

		require.NoError(t, s.DeleteResearch(ctx, r.ID))
		assert.ErrorIs(t, s.DeleteResearch(ctx, r.ID), ErrNotFound)

		_, err := s.GetEvaluation(ctx, r.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		obs, err := s.ListObservations(ctx, r.ID)
		require.NoError(t, err)
		assert.Empty(t, obs)
		reports, err := s.ListReports(ctx, r.ID)
		require.NoError(t, err)
		assert.Empty(t, reports)
	})

	t.Run("Suppliers", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		acme := &model.Supplier{TaxID: "11222333000181", Name: "ACME Ltda", Email: "vendas@acme.com.br"}
		require.NoError(t, s.CreateSupplier(ctx, acme))
		assert.NotEmpty(t, acme.ID)

		dup := &model.Supplier{TaxID: "11222333000181", Name: "Outra"}
		assert.ErrorIs(t, s.CreateSupplier(ctx, dup), ErrConflict)

		require.NoError(t, s.CreateSupplier(ctx, &model.Supplier{TaxID: "52998224725", Name: "Beatriz"}))

		list, err := s.ListSuppliers(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "ACME Ltda", list[0].Name)

		acme.Phone = "61 3333-4444"
		require.NoError(t, s.UpdateSupplier(ctx, acme))
		got, err := s.GetSupplier(ctx, acme.ID)
		require.NoError(t, err)
		assert.Equal(t, "61 3333-4444", got.Phone)

		require.NoError(t, s.DeleteSupplier(ctx, acme.ID))
		_, err = s.GetSupplier(ctx, acme.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.DeleteSupplier(ctx, acme.ID), ErrNotFound)
	})

	t.Run("DeletingSupplierUnlinksObservations", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		sup := &model.Supplier{TaxID: "11222333000181", Name: "ACME"}
		require.NoError(t, s.CreateSupplier(ctx, sup))
		r := newResearch("Grampeador")
		require.NoError(t, s.CreateResearch(ctx, r))
		o := quote("ACME", "40", collected)
		o.SupplierID = sup.ID
		require.NoError(t, s.AddObservation(ctx, r.ID, o))

		require.NoError(t, s.DeleteSupplier(ctx, sup.ID))
		obs, err := s.ListObservations(ctx, r.ID)
		require.NoError(t, err)
		require.Len(t, obs, 1)
		assert.Empty(t, obs[0].SupplierID)
	})

	t.Run("Reports", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		r := newResearch("Notebook")
		require.NoError(t, s.CreateResearch(ctx, r))

		older := &model.Report{ResearchID: r.ID, ResearchDescription: "Notebook", GeneratedBy: "Ana",
			GeneratedAt: time.Date(2025, time.February, 1, 9, 0, 0, 0, time.UTC)}
		newer := &model.Report{ResearchID: r.ID, ResearchDescription: "Notebook", GeneratedBy: "Caio",
			GeneratedAt: time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)}
		require.NoError(t, s.CreateReport(ctx, older))
		require.NoError(t, s.CreateReport(ctx, newer))

		list, err := s.ListReports(ctx, r.ID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, newer.ID, list[0].ID)

		all, err := s.ListReports(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 2)

		got, err := s.GetReport(ctx, older.ID)
		require.NoError(t, err)
		assert.Equal(t, "Ana", got.GeneratedBy)

		_, err = s.GetReport(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("DashboardStats", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		stats, err := s.DashboardStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, stats.Total)

		for _, status := range []model.ResearchStatus{
			model.ResearchStatusDraft, model.ResearchStatusDraft, model.ResearchStatusCompleted,
		} {
			r := newResearch("x")
			r.Status = status
			require.NoError(t, s.CreateResearch(ctx, r))
		}

		stats, err = s.DashboardStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, stats.Total)
		assert.Equal(t, 2, stats.ByStatus[model.ResearchStatusDraft])
		assert.Equal(t, 1, stats.ByStatus[model.ResearchStatusCompleted])
	})

	t.Run("Catalog", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		n, err := s.UpsertCatalogItems(ctx, []model.CatalogItem{
			{Code: 150245, Description: "CADEIRA GIRATÓRIA"},
			{Code: 150246, Description: "CADEIRA FIXA"},
			{Code: 201000, Description: "CANETA ESFEROGRÁFICA 100% PLÁSTICO"},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		_, err = s.UpsertCatalogItems(ctx, []model.CatalogItem{{Code: 150246, Description: "CADEIRA FIXA EMPILHÁVEL"}})
		require.NoError(t, err)

		items, err := s.SearchCatalog(ctx, "cadeira", 0)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "CADEIRA FIXA EMPILHÁVEL", items[0].Description)

		items, err = s.SearchCatalog(ctx, "giratória", 10)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, int64(150245), items[0].Code)

		items, err = s.SearchCatalog(ctx, "100%", 10)
		require.NoError(t, err)
		assert.Len(t, items, 1)

		items, err = s.SearchCatalog(ctx, "cadeira", 1)
		require.NoError(t, err)
		assert.Len(t, items, 1)
	})
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

func TestApplyUpdate(t *testing.T) {
	r := &model.Research{Description: "a", Method: model.MethodMedian}
	desc := "b"
	price := decimal.RequireFromString("10")
	ApplyUpdate(r, model.ResearchUpdate{Description: &desc, EstimatedPrice: &price})
	assert.Equal(t, "b", r.Description)
	assert.Equal(t, model.MethodMedian, r.Method)
	require.NotNil(t, r.EstimatedPrice)
	assert.Equal(t, "10", r.EstimatedPrice.String())
}

func TestResearchQuery(t *testing.T) {
	ph := func(int) string { return "?" }

	q, args := researchQuery("id", ResearchFilter{}, ph)
	assert.Equal(t, "SELECT id FROM researches ORDER BY created_at DESC, id LIMIT ?", q)
	assert.Equal(t, []any{defaultListLimit}, args)

	q, args = researchQuery("id", ResearchFilter{Status: model.ResearchStatusDraft, Evaluated: true, Limit: 5, Offset: 10}, ph)
	assert.Contains(t, q, "WHERE status = ? AND EXISTS")
	assert.Contains(t, q, "LIMIT ? OFFSET ?")
	assert.Equal(t, []any{"draft", 5, 10}, args)
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, `%cadeira giratória%`, likePattern("  CADEIRA GIRATÓRIA "))
	assert.Equal(t, `%100\% a\_b%`, likePattern("100% a_b"))
}
