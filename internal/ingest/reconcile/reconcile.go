// Package reconcile decides, per normalized record, whether storage needs an
// insert, an update, or nothing at all.
package reconcile

import (
	"github.com/smallbiznis/usagelens/internal/ingest/domain"
	usagemetric "github.com/smallbiznis/usagelens/internal/usagemetric/domain"
)

// Lookup returns the stored record for key, or nil when none exists.
type Lookup func(key usagemetric.Key) (*usagemetric.MetricRecord, error)

// Reconcile classifies incoming records against storage. Incoming keys must
// be unique. A lookup failure aborts the whole plan.
func Reconcile(incoming []usagemetric.MetricRecord, lookup Lookup) (domain.ReconciliationPlan, error) {
	var plan domain.ReconciliationPlan
	for _, rec := range incoming {
		existing, err := lookup(rec.Key())
		if err != nil {
			return domain.ReconciliationPlan{}, &domain.LookupError{Err: err}
		}
		switch {
		case existing == nil:
			plan.ToInsert = append(plan.ToInsert, rec)
		case usagemetric.SameValues(*existing, rec):
			plan.UnchangedCount++
		default:
			rec.CreatedAt = existing.CreatedAt
			plan.ToUpdate = append(plan.ToUpdate, rec)
		}
	}
	return plan, nil
}

// FromMap adapts a preloaded key index into a Lookup.
func FromMap(stored map[usagemetric.Key]usagemetric.MetricRecord) Lookup {
	return func(key usagemetric.Key) (*usagemetric.MetricRecord, error) {
		rec, ok := stored[key]
		if !ok {
			return nil, nil
		}
		return &rec, nil
	}
}
