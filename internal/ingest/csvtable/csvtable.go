// Package csvtable turns delimited text with a header row into a RawTable.
package csvtable

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/smallbiznis/usagelens/internal/ingest/domain"
)

const utf8BOM = "\ufeff"

// Decode reads the whole input. Rows whose field count differs from the
// header are kept and flagged so they surface as invalid rows; quoting
// errors reject the file.
func Decode(r io.Reader) (domain.RawTable, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return domain.RawTable{}, &domain.SchemaError{Detail: "header row is missing"}
	}
	if err != nil {
		return domain.RawTable{}, &domain.SchemaError{Detail: err.Error()}
	}

	columns := make([]string, len(header))
	seen := make(map[string]struct{}, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		h = strings.TrimSpace(h)
		if h == "" {
			return domain.RawTable{}, &domain.SchemaError{Detail: fmt.Sprintf("column %d has an empty name", i+1)}
		}
		if _, dup := seen[h]; dup {
			return domain.RawTable{}, &domain.SchemaError{Detail: fmt.Sprintf("duplicate column %q", h)}
		}
		seen[h] = struct{}{}
		columns[i] = h
	}

	table := domain.RawTable{Header: columns}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.RawTable{}, &domain.SchemaError{Detail: err.Error()}
		}
		line, _ := reader.FieldPos(0)

		if isBlank(record) {
			continue
		}

		row := domain.RawRow{Line: line, Values: make(map[string]string, len(columns))}
		for i, col := range columns {
			if i < len(record) {
				row.Values[col] = record[i]
			}
		}
		if len(record) != len(columns) {
			row.Problem = fmt.Sprintf("expected %d fields, got %d", len(columns), len(record))
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
