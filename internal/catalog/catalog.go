// Package catalog imports CATMAT material catalog files in batches.
package catalog

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/sells-group/price-research/internal/fetcher"
	"github.com/sells-group/price-research/internal/model"
)

const (
	DefaultBatchSize   = 1000
	DefaultConcurrency = 2
)

// Writer persists catalog batches. store.Store satisfies it.
type Writer interface {
	UpsertCatalogItems(ctx context.Context, items []model.CatalogItem) (int64, error)
}

// Options controls an import.
type Options struct {
	BatchSize   int    `yaml:"batch_size" mapstructure:"batch_size"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
	Encoding    string `yaml:"encoding" mapstructure:"encoding"` // latin1, windows-1252 or utf-8
	Sheet       string `yaml:"sheet" mapstructure:"sheet"`       // XLSX sheet name; first sheet when empty
}

// Stats summarizes an import.
type Stats struct {
	Rows     int64         `json:"rows"`
	Imported int64         `json:"imported"`
	Skipped  int64         `json:"skipped"`
	Batches  int           `json:"batches"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Import reads codigo_catmat;descricao rows from a CSV or XLSX file and
// upserts them through w. The format follows the file extension.
func Import(ctx context.Context, w Writer, filename string, opts Options) (*Stats, error) {
	opts = opts.withDefaults()
	enc, err := decoder(opts.Encoding)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	var (
		rowCh <-chan fetcher.Row
		errCh <-chan error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		rowCh, errCh = fetcher.StreamXLSX(gctx, filename, opts.Sheet)
	case ".csv", ".txt":
		f, err := os.Open(filename)
		if err != nil {
			return nil, eris.Wrap(err, "catalog: open file")
		}
		defer f.Close() //nolint:errcheck
		rowCh, errCh = fetcher.StreamCSV(gctx, f, fetcher.CSVOptions{Delimiter: ';', Encoding: enc})
	default:
		return nil, eris.Errorf("catalog: unsupported file type %q", filepath.Ext(filename))
	}

	stats := &Stats{}
	var imported atomic.Int64
	batch := make([]model.CatalogItem, 0, opts.BatchSize)
	flush := func() {
		items := batch
		batch = make([]model.CatalogItem, 0, opts.BatchSize)
		stats.Batches++
		g.Go(func() error {
			n, err := w.UpsertCatalogItems(gctx, items)
			if err != nil {
				return eris.Wrapf(err, "catalog: write batch of %d", len(items))
			}
			imported.Add(n)
			return nil
		})
	}

	for row := range rowCh {
		stats.Rows++
		item, ok := parseRow(row.Fields)
		if !ok {
			if !isHeader(row.Fields) {
				stats.Skipped++
				zap.L().Debug("catalog: skipping row", zap.Strings("fields", row.Fields), zap.Int("line", row.Line))
			}
			continue
		}
		batch = append(batch, item)
		if len(batch) == opts.BatchSize {
			flush()
		}
	}
	if len(batch) > 0 && gctx.Err() == nil {
		flush()
	}

	streamErr := <-errCh
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if streamErr != nil {
		return nil, eris.Wrap(streamErr, "catalog: read rows")
	}

	stats.Imported = imported.Load()
	stats.Elapsed = time.Since(start)
	zap.L().Info("catalog: import complete",
		zap.String("file", filename),
		zap.Int64("rows", stats.Rows),
		zap.Int64("imported", stats.Imported),
		zap.Int64("skipped", stats.Skipped),
		zap.Int("batches", stats.Batches),
		zap.Duration("elapsed", stats.Elapsed),
	)
	return stats, nil
}

// ImportURL downloads a catalog file to a temporary path and imports it.
func ImportURL(ctx context.Context, f fetcher.Fetcher, w Writer, rawURL string, opts Options) (*Stats, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: parse url")
	}
	tmp, err := os.CreateTemp("", "catmat-*"+path.Ext(u.Path))
	if err != nil {
		return nil, eris.Wrap(err, "catalog: create temp file")
	}
	_ = tmp.Close()
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := f.DownloadToFile(ctx, rawURL, tmp.Name()); err != nil {
		return nil, eris.Wrap(err, "catalog: download")
	}
	return Import(ctx, w, tmp.Name(), opts)
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	return o
}

func decoder(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "latin1", "iso-8859-1", "iso8859-1":
		return charmap.ISO8859_1, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	case "utf-8", "utf8":
		return nil, nil
	default:
		return nil, eris.Errorf("catalog: unsupported encoding %q", name)
	}
}

// parseRow reads the code and description columns.
func parseRow(row []string) (model.CatalogItem, bool) {
	if len(row) < 2 {
		return model.CatalogItem{}, false
	}
	code, err := strconv.ParseInt(strings.TrimSpace(row[0]), 10, 64)
	desc := strings.TrimSpace(row[1])
	if err != nil || code <= 0 || desc == "" {
		return model.CatalogItem{}, false
	}
	return model.CatalogItem{Code: code, Description: desc}, true
}

func isHeader(row []string) bool {
	return len(row) > 0 && strings.Contains(strings.ToLower(row[0]), "codigo")
}
