package domain

// Column headers recognised in uploaded files. Matching is case-sensitive.
const (
	ColumnDate                     = "Date"
	ColumnEmail                    = "Email"
	ColumnIsActive                 = "Is Active"
	ColumnSubscriptionIncludedReqs = "Subscription Included Reqs"

	ColumnUsageBasedReqs     = "Usage Based Reqs"
	ColumnTotalLinesAdded    = "Total Lines Added"
	ColumnAcceptedLinesAdded = "Accepted Lines Added"
	ColumnTotalTabsAccepted  = "Total Tabs Accepted"
)

// RequiredColumns must all be present in the header row.
var RequiredColumns = []string{
	ColumnDate,
	ColumnEmail,
	ColumnIsActive,
	ColumnSubscriptionIncludedReqs,
}

// OptionalCountColumns are parsed when present; a blank cell means absent.
var OptionalCountColumns = []string{
	ColumnUsageBasedReqs,
	ColumnTotalLinesAdded,
	ColumnAcceptedLinesAdded,
	ColumnTotalTabsAccepted,
}

// RawRow is one data row keyed by header name. Line is the 1-based line in
// the source file, header included, so the first data row is line 2.
type RawRow struct {
	Line   int               `json:"line"`
	Values map[string]string `json:"values"`
	// Problem is set when the row could not be mapped onto the header cleanly.
	Problem string `json:"-"`
}

func (r RawRow) Get(column string) (string, bool) {
	v, ok := r.Values[column]
	return v, ok
}

// RawTable is the undecoded content of an uploaded file.
type RawTable struct {
	Header []string
	Rows   []RawRow
}

func (t RawTable) HasColumn(name string) bool {
	for _, h := range t.Header {
		if h == name {
			return true
		}
	}
	return false
}
