// Package fetcher downloads catalog files and streams rows out of CSV and
// XLSX sources.
package fetcher

import (
	"context"
	"io"
	"strings"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// Row is one non-blank record of a tabular source. Fields are trimmed.
type Row struct {
	Line   int // 1-based line (CSV) or row number (XLSX) in the source
	Fields []string
}

// trimmed trims every field in place and reports whether any is non-empty.
func trimmed(fields []string) bool {
	found := false
	for i, f := range fields {
		fields[i] = strings.TrimSpace(f)
		if fields[i] != "" {
			found = true
		}
	}
	return found
}
