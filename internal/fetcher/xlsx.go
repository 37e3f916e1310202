package fetcher

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// StreamXLSX sends the non-blank rows of one sheet of the workbook at path.
// An empty sheet name selects the first sheet. Channels behave as in
// StreamCSV.
func StreamXLSX(ctx context.Context, path, sheet string) (<-chan Row, <-chan error) {
	rowCh := make(chan Row, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		f, err := xlsx.OpenFile(path)
		if err != nil {
			errCh <- eris.Wrap(err, "xlsx: open file")
			return
		}
		s, err := pickSheet(f, sheet)
		if err != nil {
			errCh <- err
			return
		}

		for i, row := range s.Rows {
			fields := make([]string, len(row.Cells))
			for j, cell := range row.Cells {
				fields[j] = cell.String()
			}
			if !trimmed(fields) {
				continue
			}

			select {
			case rowCh <- Row{Line: i + 1, Fields: fields}:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "xlsx: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

func pickSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name == "" {
		if len(f.Sheets) == 0 {
			return nil, eris.New("xlsx: workbook has no sheets")
		}
		return f.Sheets[0], nil
	}
	s, ok := f.Sheet[name]
	if !ok {
		return nil, eris.Errorf("xlsx: sheet %q not found", name)
	}
	return s, nil
}
