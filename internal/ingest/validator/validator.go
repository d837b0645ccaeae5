// Package validator checks a decoded table against the upload schema and
// splits it into typed valid rows and reasoned invalid rows.
package validator

import (
	"github.com/smallbiznis/usagelens/internal/ingest/domain"
)

// Validate never touches storage. It fails as a whole only when required
// columns are missing or no row survives.
func Validate(table domain.RawTable) (domain.ValidationResult, error) {
	var missing []string
	for _, col := range domain.RequiredColumns {
		if !table.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return domain.ValidationResult{}, &domain.SchemaError{MissingColumns: missing}
	}

	optional := make([]string, 0, len(domain.OptionalCountColumns))
	for _, col := range domain.OptionalCountColumns {
		if table.HasColumn(col) {
			optional = append(optional, col)
		}
	}

	result := domain.ValidationResult{
		ValidRows: make([]domain.ValidRow, 0, len(table.Rows)),
	}
	for _, row := range table.Rows {
		fields, err := parseRow(row, optional)
		if err != nil {
			result.InvalidRows = append(result.InvalidRows, domain.InvalidRow{
				Line:   row.Line,
				Row:    row.Values,
				Reason: err.Error(),
			})
			continue
		}
		result.ValidRows = append(result.ValidRows, domain.ValidRow{Raw: row, Fields: fields})
	}

	if len(result.ValidRows) == 0 {
		return result, &domain.NoValidRowsError{Invalid: result.InvalidRows}
	}
	return result, nil
}

func parseRow(row domain.RawRow, optional []string) (domain.ParsedFields, error) {
	var (
		f   domain.ParsedFields
		err error
	)
	if row.Problem != "" {
		return f, &domain.RowValidationError{Line: row.Line, Err: rowShapeError(row.Problem)}
	}

	fail := func(column string, cause error) (domain.ParsedFields, error) {
		return domain.ParsedFields{}, &domain.RowValidationError{Line: row.Line, Column: column, Err: cause}
	}

	if f.Timestamp, err = ParseTimestamp(row.Values[domain.ColumnDate]); err != nil {
		return fail(domain.ColumnDate, err)
	}
	if f.Email, err = ParseEmail(row.Values[domain.ColumnEmail]); err != nil {
		return fail(domain.ColumnEmail, err)
	}
	if f.IsActive, err = ParseBool(row.Values[domain.ColumnIsActive]); err != nil {
		return fail(domain.ColumnIsActive, err)
	}
	if f.SubscriptionIncludedReqs, err = ParseCount(row.Values[domain.ColumnSubscriptionIncludedReqs]); err != nil {
		return fail(domain.ColumnSubscriptionIncludedReqs, err)
	}

	for _, col := range optional {
		v, err := ParseOptionalCount(row.Values[col])
		if err != nil {
			return fail(col, err)
		}
		switch col {
		case domain.ColumnUsageBasedReqs:
			f.UsageBasedReqs = v
		case domain.ColumnTotalLinesAdded:
			f.TotalLinesAdded = v
		case domain.ColumnAcceptedLinesAdded:
			f.AcceptedLinesAdded = v
		case domain.ColumnTotalTabsAccepted:
			f.TotalTabsAccepted = v
		}
	}
	return f, nil
}

type rowShapeError string

func (e rowShapeError) Error() string { return string(e) }
