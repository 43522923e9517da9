// Package ingest implements the offline job that turns a raw parquet file
// into a persisted store: read rows, embed texts, build indexes, publish.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/kailas-cloud/recipedex/internal/domain"
)

// Row is one raw input record, addressed by the configured id and text columns.
type Row struct {
	ID   string
	Text string
}

// ReadRows streams the parquet file and extracts the id and text columns.
// A column missing from the schema fails fast with domain.ErrSchema naming it;
// so does a null or empty id.
func ReadRows(path, idColumn, textColumn string) ([]Row, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open input file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat input file: %w", err)
	}

	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet %s: %w", filepath.Base(path), err)
	}

	idIdx, textIdx := -1, -1
	for i, colPath := range pf.Schema().Columns() {
		if len(colPath) == 0 {
			continue
		}
		switch colPath[0] {
		case idColumn:
			idIdx = i
		case textColumn:
			textIdx = i
		}
	}
	if idIdx < 0 {
		return nil, fmt.Errorf("%w: input has no column %q", domain.ErrSchema, idColumn)
	}
	if textIdx < 0 {
		return nil, fmt.Errorf("%w: input has no column %q", domain.ErrSchema, textColumn)
	}

	var rows []Row
	for _, rg := range pf.RowGroups() {
		if err := readRowGroup(rg, idIdx, textIdx, &rows); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func readRowGroup(rg parquet.RowGroup, idIdx, textIdx int, out *[]Row) error {
	reader := parquet.NewRowGroupReader(rg)
	buf := make([]parquet.Row, 256)

	for {
		n, readErr := reader.ReadRows(buf)
		for i := 0; i < n; i++ {
			row, err := extractRow(buf[i], idIdx, textIdx, len(*out))
			if err != nil {
				return err
			}
			*out = append(*out, row)
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return fmt.Errorf("read rows: %w", readErr)
		}
	}
}

func extractRow(r parquet.Row, idIdx, textIdx, seq int) (Row, error) {
	var row Row
	for _, v := range r {
		switch v.Column() {
		case idIdx:
			if v.IsNull() {
				return Row{}, fmt.Errorf("%w: row %d has a null id", domain.ErrSchema, seq)
			}
			row.ID = v.String()
		case textIdx:
			if !v.IsNull() {
				row.Text = v.String()
			}
		}
	}
	if row.ID == "" {
		return Row{}, fmt.Errorf("%w: row %d has an empty id", domain.ErrSchema, seq)
	}
	return row, nil
}
