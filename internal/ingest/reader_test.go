package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/parquet-go/parquet-go"

	"github.com/kailas-cloud/recipedex/internal/domain"
)

type inputRow struct {
	ID   string `parquet:"id"`
	Text string `parquet:"text"`
}

func writeParquet[T any](t *testing.T, rows []T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "input.parquet")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create parquet file: %v", err)
	}

	w := parquet.NewGenericWriter[T](f)
	if _, err := w.Write(rows); err != nil {
		t.Fatalf("write rows: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
	return path
}

func TestReadRows(t *testing.T) {
	path := writeParquet(t, []inputRow{
		{ID: "r1", Text: "Whisk the eggs."},
		{ID: "r2", Text: "Fold in the flour."},
		{ID: "r3", Text: ""},
	})

	rows, err := ReadRows(path, "id", "text")
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}

	want := []Row{
		{ID: "r1", Text: "Whisk the eggs."},
		{ID: "r2", Text: "Fold in the flour."},
		{ID: "r3", Text: ""},
	}
	if len(rows) != len(want) {
		t.Fatalf("got %d rows, want %d", len(rows), len(want))
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, rows[i], want[i])
		}
	}
}

func TestReadRows_MissingColumn(t *testing.T) {
	path := writeParquet(t, []inputRow{{ID: "r1", Text: "x"}})

	for _, tc := range []struct {
		name       string
		idCol      string
		textCol    string
		wantInText string
	}{
		{"missing id column", "recipe_id", "text", "recipe_id"},
		{"missing text column", "id", "body", "body"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadRows(path, tc.idCol, tc.textCol)
			if !errors.Is(err, domain.ErrSchema) {
				t.Fatalf("expected ErrSchema, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.wantInText) {
				t.Errorf("error %q does not name the missing column %q", err, tc.wantInText)
			}
		})
	}
}

func TestReadRows_EmptyID(t *testing.T) {
	path := writeParquet(t, []inputRow{
		{ID: "r1", Text: "fine"},
		{ID: "", Text: "no id"},
	})

	_, err := ReadRows(path, "id", "text")
	if !errors.Is(err, domain.ErrSchema) {
		t.Fatalf("expected ErrSchema, got %v", err)
	}
}

func TestReadRows_MissingFile(t *testing.T) {
	_, err := ReadRows(filepath.Join(t.TempDir(), "nope.parquet"), "id", "text")
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
