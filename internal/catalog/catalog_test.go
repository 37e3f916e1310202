package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/price-research/internal/fetcher"
	"github.com/sells-group/price-research/internal/model"
	"github.com/sells-group/price-research/internal/store"
)

type memWriter struct {
	mu      sync.Mutex
	items   []model.CatalogItem
	batches int
	failOn  int // 1-based batch number that fails; 0 never
}

func (m *memWriter) UpsertCatalogItems(_ context.Context, items []model.CatalogItem) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches++
	if m.failOn != 0 && m.batches == m.failOn {
		return 0, fmt.Errorf("disk full")
	}
	m.items = append(m.items, items...)
	return int64(len(items)), nil
}

func (m *memWriter) codes() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int64, len(m.items))
	for i, it := range m.items {
		out[i] = it.Code
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestImport_Latin1CSV(t *testing.T) {
	// ISO-8859-1: "GIRATÓRIA" has Ó = 0xD3.
	path := writeFile(t, "catmat.csv",
		"codigo_catmat;descricao\n150245;CADEIRA GIRAT\xd3RIA\n201000;CANETA\n")

	w := &memWriter{}
	stats, err := Import(context.Background(), w, path, Options{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Rows)
	assert.Equal(t, int64(2), stats.Imported)
	assert.Equal(t, int64(0), stats.Skipped)
	assert.Equal(t, 1, stats.Batches)
	require.Len(t, w.items, 2)
	assert.Equal(t, "CADEIRA GIRATÓRIA", w.items[0].Description)
}

func TestImport_BatchesAndSkips(t *testing.T) {
	path := writeFile(t, "catmat.csv",
		"1;A\n2;B\nabc;bad code\n3;C\n4;\n5;E\n6\n7;G\n")

	w := &memWriter{}
	stats, err := Import(context.Background(), w, path, Options{BatchSize: 2, Concurrency: 3, Encoding: "utf-8"})
	require.NoError(t, err)
	assert.Equal(t, int64(8), stats.Rows)
	assert.Equal(t, int64(5), stats.Imported)
	assert.Equal(t, int64(3), stats.Skipped)
	assert.Equal(t, 3, stats.Batches)
	assert.Equal(t, []int64{1, 2, 3, 5, 7}, w.codes())
}

func TestImport_WriterErrorStopsImport(t *testing.T) {
	var content string
	for i := 1; i <= 50; i++ {
		content += fmt.Sprintf("%d;ITEM %d\n", i, i)
	}
	path := writeFile(t, "catmat.csv", content)

	w := &memWriter{failOn: 1}
	_, err := Import(context.Background(), w, path, Options{BatchSize: 10, Concurrency: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestImport_XLSX(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Materiais")
	require.NoError(t, err)
	for _, r := range [][]string{{"codigo_catmat", "descricao"}, {"150245", "CADEIRA GIRATÓRIA"}, {"201000", "CANETA"}} {
		row := sheet.AddRow()
		for _, c := range r {
			row.AddCell().SetString(c)
		}
	}
	path := filepath.Join(t.TempDir(), "catmat.xlsx")
	require.NoError(t, f.Save(path))

	w := &memWriter{}
	stats, err := Import(context.Background(), w, path, Options{Sheet: "Materiais"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Imported)
	assert.Equal(t, []int64{150245, 201000}, w.codes())
}

func TestImport_Errors(t *testing.T) {
	_, err := Import(context.Background(), &memWriter{}, "catmat.json", Options{})
	assert.ErrorContains(t, err, "unsupported file type")

	_, err = Import(context.Background(), &memWriter{}, "catmat.csv", Options{Encoding: "ebcdic"})
	assert.ErrorContains(t, err, "unsupported encoding")

	_, err = Import(context.Background(), &memWriter{}, filepath.Join(t.TempDir(), "none.csv"), Options{})
	assert.ErrorContains(t, err, "catalog: open file")
}

func TestImportURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("codigo_catmat;descricao\n42;PAPEL A4\n"))
	}))
	defer srv.Close()

	w := &memWriter{}
	stats, err := ImportURL(context.Background(), fetcher.NewHTTPFetcher(fetcher.HTTPOptions{}), w,
		srv.URL+"/catmat.csv?version=2025", Options{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Imported)
	assert.Equal(t, []int64{42}, w.codes())
}

func TestImport_IntoSQLiteAndSearch(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	path := writeFile(t, "catmat.csv",
		"codigo_catmat;descricao\n150245;CADEIRA GIRAT\xd3RIA\n150246;CADEIRA FIXA\n201000;CANETA\n")
	_, err = Import(context.Background(), st, path, Options{BatchSize: 2})
	require.NoError(t, err)

	items, err := st.SearchCatalog(context.Background(), "giratória", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(150245), items[0].Code)
}

func TestParseRow(t *testing.T) {
	tests := []struct {
		row  []string
		want model.CatalogItem
		ok   bool
	}{
		{[]string{"150245", "CADEIRA"}, model.CatalogItem{Code: 150245, Description: "CADEIRA"}, true},
		{[]string{" 7 ", " LÁPIS "}, model.CatalogItem{Code: 7, Description: "LÁPIS"}, true},
		{[]string{"0", "ZERO"}, model.CatalogItem{}, false},
		{[]string{"x", "BAD"}, model.CatalogItem{}, false},
		{[]string{"1"}, model.CatalogItem{}, false},
	}
	for _, tt := range tests {
		got, ok := parseRow(tt.row)
		assert.Equal(t, tt.ok, ok, "%v", tt.row)
		assert.Equal(t, tt.want, got, "%v", tt.row)
	}
}
