package records

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"

	"housingcore/pkg/domain"
)

// table is one CSV file addressed by header name.
type table struct {
	file    string
	columns map[string]int
	rows    []row
}

type row struct {
	table  *table
	line   int
	fields []string
}

func (r row) get(column string) string {
	idx, ok := r.table.columns[column]
	if !ok || idx >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[idx])
}

// readTable parses dir/file. A missing file yields an empty table; a file
// lacking one of the required columns is malformed as a whole.
func readTable(dir, file string, required ...string) (*table, error) {
	t := &table{file: file, columns: map[string]int{}}
	f, err := os.Open(filepath.Join(dir, file))
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return t, nil
		}
		return nil, fmt.Errorf("open %s: %w", file, err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return t, nil
	}
	if err != nil {
		return nil, &RecordError{File: file, Line: 1, Err: fmt.Errorf("%w: %v", domain.ErrMalformedRecord, err)}
	}
	for i, name := range header {
		t.columns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, name := range required {
		if _, ok := t.columns[name]; !ok {
			return nil, &RecordError{File: file, Line: 1, Err: fmt.Errorf("%w: missing column %q", domain.ErrMalformedRecord, name)}
		}
	}
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line, _ := reader.FieldPos(0)
		if err != nil {
			return nil, &RecordError{File: file, Line: line, Err: fmt.Errorf("%w: %v", domain.ErrMalformedRecord, err)}
		}
		if blank(fields) {
			continue
		}
		t.rows = append(t.rows, row{table: t, line: line, fields: fields})
	}
	return t, nil
}

func blank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// writeTable replaces dir/file with header and rows through a temp file.
func writeTable(dir, file string, header []string, rows [][]string) error {
	tmp, err := os.CreateTemp(dir, "."+file+".*")
	if err != nil {
		return fmt.Errorf("create %s: %w", file, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	writer := csv.NewWriter(tmp)
	if err := writer.Write(header); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", file, err)
	}
	if err := writer.WriteAll(rows); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", file, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", file, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, file)); err != nil {
		return fmt.Errorf("replace %s: %w", file, err)
	}
	return nil
}
