package domain

import (
	"time"

	usagemetric "github.com/smallbiznis/usagelens/internal/usagemetric/domain"
	uploaddomain "github.com/smallbiznis/usagelens/internal/upload/domain"
)

// ParsedFields holds the typed values of a row that passed validation.
type ParsedFields struct {
	Timestamp                time.Time
	Email                    string
	IsActive                 bool
	SubscriptionIncludedReqs int64
	UsageBasedReqs           *int64
	TotalLinesAdded          *int64
	AcceptedLinesAdded       *int64
	TotalTabsAccepted        *int64
}

type ValidRow struct {
	Raw    RawRow
	Fields ParsedFields
}

type InvalidRow struct {
	Line   int               `json:"line"`
	Row    map[string]string `json:"row"`
	Reason string            `json:"reason"`
}

type ValidationResult struct {
	ValidRows   []ValidRow
	InvalidRows []InvalidRow
}

// ReconciliationPlan partitions a normalized batch by what storage already holds.
// A key appears in at most one of ToInsert and ToUpdate.
type ReconciliationPlan struct {
	ToInsert       []usagemetric.MetricRecord
	ToUpdate       []usagemetric.MetricRecord
	UnchangedCount int
}

// Origin identifies where a submitted table came from.
type Origin struct {
	Filename  string
	Source    uploaddomain.Source
	SizeBytes int64
}

// UploadInfo is everything the committer records besides the plan itself.
type UploadInfo struct {
	Origin
	InvalidRows []InvalidRow
}

// Result is what a caller learns about a completed ingestion.
type Result struct {
	UploadID   string              `json:"upload_id"`
	Status     uploaddomain.Status `json:"status"`
	New        int                 `json:"new"`
	Updated    int                 `json:"updated"`
	Unchanged  int                 `json:"unchanged"`
	Duplicates int                 `json:"duplicates_in_file"`
	Invalid    []InvalidRow        `json:"invalid"`
}
