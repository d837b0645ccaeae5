// Package normalizer turns validated rows into canonical metric records.
package normalizer

import (
	"strings"

	"github.com/smallbiznis/usagelens/internal/ingest/domain"
	usagemetric "github.com/smallbiznis/usagelens/internal/usagemetric/domain"
	"github.com/smallbiznis/usagelens/pkg/validation"
)

// Normalize maps one valid row onto its canonical record. The date is the
// UTC calendar day of the timestamp and the key email is lower-cased.
// Bookkeeping timestamps are left for the committer.
func Normalize(row domain.ValidRow) usagemetric.MetricRecord {
	f := row.Fields
	return usagemetric.MetricRecord{
		Date:                     f.Timestamp.UTC().Format(usagemetric.DateLayout),
		Email:                    validation.NormalizeEmail(f.Email),
		DisplayEmail:             strings.TrimSpace(f.Email),
		IsActive:                 f.IsActive,
		SubscriptionIncludedReqs: f.SubscriptionIncludedReqs,
		UsageBasedReqs:           f.UsageBasedReqs,
		TotalLinesAdded:          f.TotalLinesAdded,
		AcceptedLinesAdded:       f.AcceptedLinesAdded,
		TotalTabsAccepted:        f.TotalTabsAccepted,
	}
}

// NormalizeAll normalizes rows and collapses records sharing a key. The row
// appearing last in the file wins; output keeps first-appearance order.
// duplicates counts the rows that were collapsed away.
func NormalizeAll(rows []domain.ValidRow) (records []usagemetric.MetricRecord, duplicates int) {
	index := make(map[usagemetric.Key]int, len(rows))
	records = make([]usagemetric.MetricRecord, 0, len(rows))
	for _, row := range rows {
		rec := Normalize(row)
		if at, seen := index[rec.Key()]; seen {
			records[at] = rec
			duplicates++
			continue
		}
		index[rec.Key()] = len(records)
		records = append(records, rec)
	}
	return records, duplicates
}
