package domain

import "time"

// DateLayout is the storage format of MetricRecord.Date. ISO dates sort
// lexically in chronological order on every supported database.
const DateLayout = "2006-01-02"

// MetricRecord is one user's activity on one calendar day.
type MetricRecord struct {
	Date                     string    `json:"date" gorm:"column:date;type:varchar(10);primaryKey"`
	Email                    string    `json:"email" gorm:"column:email;type:varchar(320);primaryKey"`
	DisplayEmail             string    `json:"display_email" gorm:"column:display_email;type:varchar(320);not null"`
	IsActive                 bool      `json:"is_active" gorm:"column:is_active;not null"`
	SubscriptionIncludedReqs int64     `json:"subscription_included_reqs" gorm:"column:subscription_included_reqs;not null"`
	UsageBasedReqs           *int64    `json:"usage_based_reqs,omitempty" gorm:"column:usage_based_reqs"`
	TotalLinesAdded          *int64    `json:"total_lines_added,omitempty" gorm:"column:total_lines_added"`
	AcceptedLinesAdded       *int64    `json:"accepted_lines_added,omitempty" gorm:"column:accepted_lines_added"`
	TotalTabsAccepted        *int64    `json:"total_tabs_accepted,omitempty" gorm:"column:total_tabs_accepted"`
	CreatedAt                time.Time `json:"created_at" gorm:"column:created_at;not null"`
	UpdatedAt                time.Time `json:"updated_at" gorm:"column:updated_at;not null"`
}

func (MetricRecord) TableName() string { return "metrics_data" }

// Key is the natural key of a MetricRecord.
type Key struct {
	Date  string
	Email string
}

func (r MetricRecord) Key() Key {
	return Key{Date: r.Date, Email: r.Email}
}

// SameValues reports whether a and b carry the same activity values.
// An absent optional field never equals an explicit zero. Display casing and
// bookkeeping timestamps are not compared.
func SameValues(a, b MetricRecord) bool {
	return a.IsActive == b.IsActive &&
		a.SubscriptionIncludedReqs == b.SubscriptionIncludedReqs &&
		sameOptional(a.UsageBasedReqs, b.UsageBasedReqs) &&
		sameOptional(a.TotalLinesAdded, b.TotalLinesAdded) &&
		sameOptional(a.AcceptedLinesAdded, b.AcceptedLinesAdded) &&
		sameOptional(a.TotalTabsAccepted, b.TotalTabsAccepted)
}

func sameOptional(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
