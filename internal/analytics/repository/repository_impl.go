package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/usagelens/internal/analytics/domain"
	"gorm.io/gorm"
)

// Every query keys departments through the same expression so filters and
// rollups agree on the unassigned bucket.
const departmentExpr = `COALESCE(NULLIF(m.department, ''), '` + domain.UnassignedDepartment + `')`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Bounds(ctx context.Context, db *gorm.DB) (domain.Bounds, error) {
	var row struct {
		MinDate *string
		MaxDate *string
	}
	err := db.WithContext(ctx).Raw(
		`SELECT MIN(date) AS min_date, MAX(date) AS max_date FROM metrics_data`,
	).Scan(&row).Error
	if err != nil {
		return domain.Bounds{}, err
	}
	if row.MinDate == nil || row.MaxDate == nil {
		return domain.Bounds{}, nil
	}
	return domain.Bounds{MinDate: *row.MinDate, MaxDate: *row.MaxDate, HasData: true}, nil
}

// Inactive returns every known email without an active record in range.
// Known means present in the roster or in any stored record.
func (r *repo) Inactive(ctx context.Context, db *gorm.DB, q domain.Query) ([]domain.InactiveUser, error) {
	sql := `SELECT u.email AS email,
			COALESCE(m.manager_name, '') AS manager_name,
			` + departmentExpr + ` AS department
		FROM (
			SELECT email FROM manager_data
			UNION
			SELECT DISTINCT email FROM metrics_data
		) u
		LEFT JOIN manager_data m ON m.email = u.email
		WHERE u.email NOT IN (
			SELECT email FROM metrics_data
			WHERE date >= ? AND date <= ? AND is_active = ?
		)`
	args := []any{q.Start, q.End, true}
	if dept := strings.TrimSpace(q.Department); dept != "" {
		sql += ` AND ` + departmentExpr + ` = ?`
		args = append(args, dept)
	}
	sql += ` ORDER BY u.email ASC`

	var out []domain.InactiveUser
	if err := db.WithContext(ctx).Raw(sql, args...).Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) Top(ctx context.Context, db *gorm.DB, q domain.Query, limit int) ([]domain.UserTotal, error) {
	sql := `SELECT d.email AS email,
			SUM(d.subscription_included_reqs) AS total_requests,
			COALESCE(m.manager_name, '') AS manager_name,
			` + departmentExpr + ` AS department
		FROM metrics_data d
		LEFT JOIN manager_data m ON m.email = d.email
		WHERE d.date >= ? AND d.date <= ?`
	args := []any{q.Start, q.End}
	if dept := strings.TrimSpace(q.Department); dept != "" {
		sql += ` AND ` + departmentExpr + ` = ?`
		args = append(args, dept)
	}
	sql += ` GROUP BY d.email, m.manager_name, m.department
		ORDER BY total_requests DESC, d.email ASC
		LIMIT ?`
	args = append(args, limit)

	var out []domain.UserTotal
	if err := db.WithContext(ctx).Raw(sql, args...).Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) Activity(ctx context.Context, db *gorm.DB, q domain.Query) ([]domain.UserActivity, error) {
	sql := `SELECT d.email AS email,
			COUNT(DISTINCT CASE WHEN d.is_active = ? THEN d.date END) AS active_days,
			COALESCE(SUM(d.subscription_included_reqs), 0) AS subscription_included_reqs,
			COALESCE(SUM(d.usage_based_reqs), 0) AS usage_based_reqs,
			COALESCE(m.manager_name, '') AS manager_name,
			` + departmentExpr + ` AS department
		FROM metrics_data d
		LEFT JOIN manager_data m ON m.email = d.email
		WHERE d.date >= ? AND d.date <= ?`
	args := []any{true, q.Start, q.End}
	if dept := strings.TrimSpace(q.Department); dept != "" {
		sql += ` AND ` + departmentExpr + ` = ?`
		args = append(args, dept)
	}
	sql += ` GROUP BY d.email, m.manager_name, m.department`

	var out []domain.UserActivity
	if err := db.WithContext(ctx).Raw(sql, args...).Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) Totals(ctx context.Context, db *gorm.DB, rng domain.Range) (domain.SummaryTotals, error) {
	var out domain.SummaryTotals
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) AS records,
			COUNT(DISTINCT email) AS total_users,
			COUNT(DISTINCT CASE WHEN is_active = ? THEN email END) AS active_users,
			COALESCE(SUM(subscription_included_reqs), 0) AS subscription_included_reqs,
			COALESCE(SUM(usage_based_reqs), 0) AS usage_based_reqs
		 FROM metrics_data
		 WHERE date >= ? AND date <= ?`,
		true, rng.Start, rng.End,
	).Scan(&out).Error
	return out, err
}

func (r *repo) UsedUsers(ctx context.Context, db *gorm.DB, rng domain.Range) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM (
			SELECT email FROM metrics_data
			WHERE date >= ? AND date <= ?
			GROUP BY email
			HAVING SUM(subscription_included_reqs) + COALESCE(SUM(usage_based_reqs), 0) > 0
		 ) used`,
		rng.Start, rng.End,
	).Scan(&n).Error
	return n, err
}

func (r *repo) Departments(ctx context.Context, db *gorm.DB, rng domain.Range) ([]domain.DepartmentStat, error) {
	var out []domain.DepartmentStat
	err := db.WithContext(ctx).Raw(
		`SELECT `+departmentExpr+` AS department,
			COUNT(DISTINCT d.email) AS users,
			COUNT(DISTINCT CASE WHEN d.is_active = ? THEN d.email END) AS active_users,
			COALESCE(SUM(d.subscription_included_reqs), 0) AS total_requests
		 FROM metrics_data d
		 LEFT JOIN manager_data m ON m.email = d.email
		 WHERE d.date >= ? AND d.date <= ?
		 GROUP BY `+departmentExpr+`
		 ORDER BY total_requests DESC, department ASC`,
		true, rng.Start, rng.End,
	).Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) DepartmentNames(ctx context.Context, db *gorm.DB) ([]string, error) {
	var names []string
	err := db.WithContext(ctx).
		Table("manager_data").
		Distinct("department").
		Where("department <> ''").
		Order("department").
		Pluck("department", &names).Error
	return names, err
}
