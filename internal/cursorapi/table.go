package cursorapi

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	ingestdomain "github.com/smallbiznis/usagelens/internal/ingest/domain"
)

// ToTable lays entries out as if they had been read from an exported CSV,
// so they go through the same validation as an upload.
func ToTable(entries []Entry) ingestdomain.RawTable {
	header := append(append([]string{}, ingestdomain.RequiredColumns...), ingestdomain.OptionalCountColumns...)
	table := ingestdomain.RawTable{Header: header, Rows: make([]ingestdomain.RawRow, 0, len(entries))}
	for i, e := range entries {
		table.Rows = append(table.Rows, ingestdomain.RawRow{
			Line: i + 2,
			Values: map[string]string{
				ingestdomain.ColumnDate:                     entryDate(e.Date),
				ingestdomain.ColumnEmail:                    e.Email,
				ingestdomain.ColumnIsActive:                 strconv.FormatBool(e.IsActive),
				ingestdomain.ColumnSubscriptionIncludedReqs: countOrZero(e.SubscriptionIncludedReqs),
				ingestdomain.ColumnUsageBasedReqs:           count(e.UsageBasedReqs),
				ingestdomain.ColumnTotalLinesAdded:          count(e.TotalLinesAdded),
				ingestdomain.ColumnAcceptedLinesAdded:       count(e.AcceptedLinesAdded),
				ingestdomain.ColumnTotalTabsAccepted:        count(e.TotalTabsAccepted),
			},
		})
	}
	return table
}

// entryDate renders the API date as RFC 3339 in UTC. Epoch values above 1e10
// are milliseconds, smaller ones seconds. Unrecognised values are passed
// through so validation reports them.
func entryDate(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return epoch(n)
		}
		return s
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return epoch(n)
	}
	return string(raw)
}

func epoch(n float64) string {
	var t time.Time
	if n > 1e10 {
		t = time.UnixMilli(int64(n))
	} else {
		t = time.Unix(int64(n), 0)
	}
	return t.UTC().Format(time.RFC3339)
}

func count(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

// countOrZero reads an omitted required count as zero, as the API drops
// zero-valued fields for some plans.
func countOrZero(v *int64) string {
	if v == nil {
		return "0"
	}
	return count(v)
}
