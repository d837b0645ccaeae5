package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/smallbiznis/usagelens/internal/usagemetric/domain"
	"gorm.io/gorm"
)

// Keeps each IN list well under the bind-variable limits of SQLite and MySQL.
const lookupChunkSize = 500

const insertBatchSize = 200

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const selectColumns = `date, email, display_email, is_active, subscription_included_reqs,
	usage_based_reqs, total_lines_added, accepted_lines_added, total_tabs_accepted,
	created_at, updated_at`

// FindByKeys loads the stored records matching keys, grouping the lookup by date.
func (r *repo) FindByKeys(ctx context.Context, db *gorm.DB, keys []domain.Key) ([]domain.MetricRecord, error) {
	byDate := map[string][]string{}
	for _, k := range keys {
		byDate[k.Date] = append(byDate[k.Date], k.Email)
	}
	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	out := make([]domain.MetricRecord, 0, len(keys))
	for _, date := range dates {
		emails := byDate[date]
		for start := 0; start < len(emails); start += lookupChunkSize {
			end := min(start+lookupChunkSize, len(emails))
			var chunk []domain.MetricRecord
			err := db.WithContext(ctx).Raw(
				`SELECT `+selectColumns+`
				 FROM metrics_data WHERE date = ? AND email IN ?`,
				date,
				emails[start:end],
			).Scan(&chunk).Error
			if err != nil {
				return nil, err
			}
			out = append(out, chunk...)
		}
	}
	return out, nil
}

func (r *repo) InsertBatch(ctx context.Context, db *gorm.DB, records []domain.MetricRecord) error {
	if len(records) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(records, insertBatchSize).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, m domain.MetricRecord) error {
	res := db.WithContext(ctx).Exec(
		`UPDATE metrics_data
		 SET display_email = ?, is_active = ?, subscription_included_reqs = ?,
		     usage_based_reqs = ?, total_lines_added = ?, accepted_lines_added = ?,
		     total_tabs_accepted = ?, updated_at = ?
		 WHERE date = ? AND email = ?`,
		m.DisplayEmail,
		m.IsActive,
		m.SubscriptionIncludedReqs,
		m.UsageBasedReqs,
		m.TotalLinesAdded,
		m.AcceptedLinesAdded,
		m.TotalTabsAccepted,
		m.UpdatedAt,
		m.Date,
		m.Email,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update %s/%s: %w", m.Date, m.Email, domain.ErrRecordNotFound)
	}
	return nil
}

func (r *repo) Count(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Raw(`SELECT COUNT(*) FROM metrics_data`).Scan(&n).Error
	return n, err
}
