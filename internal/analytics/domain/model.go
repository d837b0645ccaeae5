package domain

// UnassignedDepartment groups users without a roster entry or department.
const UnassignedDepartment = "Unassigned"

// Range is an inclusive span of calendar dates in YYYY-MM-DD form.
type Range struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type Query struct {
	Range
	Department string
}

type Bounds struct {
	MinDate string `json:"min_date,omitempty"`
	MaxDate string `json:"max_date,omitempty"`
	HasData bool   `json:"has_data"`
}

type InactiveUser struct {
	Email       string `json:"email"`
	ManagerName string `json:"manager_name"`
	Department  string `json:"department"`
}

type UserTotal struct {
	Email         string `json:"email"`
	TotalRequests int64  `json:"total_requests"`
	ManagerName   string `json:"manager_name"`
	Department    string `json:"department"`
}

type UserActivity struct {
	Email                    string `json:"email"`
	ActiveDays               int    `json:"active_days"`
	SubscriptionIncludedReqs int64  `json:"subscription_included_reqs"`
	UsageBasedReqs           int64  `json:"usage_based_reqs"`
	ManagerName              string `json:"manager_name"`
	Department               string `json:"department"`
}

// Used reports whether the user made any request in the range.
func (u UserActivity) Used() bool {
	return u.SubscriptionIncludedReqs+u.UsageBasedReqs > 0
}

type Activity struct {
	Used      []UserActivity `json:"used"`
	NeverUsed []UserActivity `json:"never_used"`
}

// Summary satisfies UsedUsers + NeverUsedUsers == TotalUsers.
type Summary struct {
	Range                    Range `json:"range"`
	Records                  int64 `json:"records"`
	TotalUsers               int64 `json:"total_users"`
	ActiveUsers              int64 `json:"active_users"`
	UsedUsers                int64 `json:"used_users"`
	NeverUsedUsers           int64 `json:"never_used_users"`
	SubscriptionIncludedReqs int64 `json:"subscription_included_reqs"`
	UsageBasedReqs           int64 `json:"usage_based_reqs"`
}

type DepartmentStat struct {
	Department    string `json:"department"`
	Slug          string `json:"slug"`
	Users         int64  `json:"users"`
	ActiveUsers   int64  `json:"active_users"`
	TotalRequests int64  `json:"total_requests"`
}
