package service

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/usagelens/internal/analytics/domain"
	"github.com/smallbiznis/usagelens/internal/analytics/repository"
	"github.com/smallbiznis/usagelens/internal/clock"
	"github.com/smallbiznis/usagelens/internal/config"
	managerdomain "github.com/smallbiznis/usagelens/internal/manager/domain"
	usagemetric "github.com/smallbiznis/usagelens/internal/usagemetric/domain"
	"github.com/smallbiznis/usagelens/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var seeded = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

func newService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()
	db := dbtest.New(t, &usagemetric.MetricRecord{}, &managerdomain.ManagerRecord{})
	settings := config.DefaultSettings()
	settings.Dashboard.DefaultRangeDays = 2
	svc := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		Clock:    clock.NewFakeClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
		Settings: config.NewStaticSettingsHolder(settings),
		Repo:     repository.Provide(),
	})
	return svc, db
}

func metric(date, email string, active bool, reqs int64) usagemetric.MetricRecord {
	return usagemetric.MetricRecord{
		Date: date, Email: email, DisplayEmail: email, IsActive: active,
		SubscriptionIncludedReqs: reqs, CreatedAt: seeded, UpdatedAt: seeded,
	}
}

func roster(email, dept string) managerdomain.ManagerRecord {
	return managerdomain.ManagerRecord{Email: email, ManagerName: "Boss", Department: dept, UpdatedAt: seeded}
}

func seed(t *testing.T, db *gorm.DB, records []usagemetric.MetricRecord, managers []managerdomain.ManagerRecord) {
	t.Helper()
	if len(records) > 0 {
		require.NoError(t, db.Create(&records).Error)
	}
	if len(managers) > 0 {
		require.NoError(t, db.Create(&managers).Error)
	}
}

func emails[T any](items []T, get func(T) string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, get(item))
	}
	return out
}

func TestInactiveUsersIsUniverseMinusActive(t *testing.T) {
	svc, db := newService(t)
	seed(t, db,
		[]usagemetric.MetricRecord{
			metric("2024-01-01", "a@x.com", true, 3),
			metric("2024-01-02", "a@x.com", false, 0),
		},
		[]managerdomain.ManagerRecord{roster("a@x.com", "Eng"), roster("b@x.com", "Eng"), roster("c@x.com", "Ops")},
	)

	users, err := svc.InactiveUsers(context.Background(), domain.QueryRequest{
		RangeRequest: domain.RangeRequest{Start: "2024-01-01", End: "2024-01-02"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b@x.com", "c@x.com"}, emails(users, func(u domain.InactiveUser) string { return u.Email }))

	users, err = svc.InactiveUsers(context.Background(), domain.QueryRequest{
		RangeRequest: domain.RangeRequest{Start: "2024-01-02", End: "2024-01-02"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.com", "b@x.com", "c@x.com"}, emails(users, func(u domain.InactiveUser) string { return u.Email }))
}

func TestInactiveUsersIncludesUnrosteredEmails(t *testing.T) {
	svc, db := newService(t)
	seed(t, db, []usagemetric.MetricRecord{
		metric("2023-12-01", "old@x.com", true, 1),
		metric("2024-01-01", "now@x.com", true, 1),
	}, nil)

	users, err := svc.InactiveUsers(context.Background(), domain.QueryRequest{
		RangeRequest: domain.RangeRequest{Start: "2024-01-01", End: "2024-01-31"},
		Department:   "unassigned",
	})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "old@x.com", users[0].Email)
	assert.Equal(t, domain.UnassignedDepartment, users[0].Department)
}

func TestTopActiveUsersOrdering(t *testing.T) {
	svc, db := newService(t)
	seed(t, db, []usagemetric.MetricRecord{
		metric("2024-01-01", "b@x.com", true, 5),
		metric("2024-01-02", "b@x.com", true, 5),
		metric("2024-01-01", "a@x.com", true, 10),
		metric("2024-01-01", "c@x.com", true, 2),
		metric("2024-02-01", "c@x.com", true, 100),
	}, []managerdomain.ManagerRecord{roster("c@x.com", "Data Science")})

	top, err := svc.TopActiveUsers(context.Background(), domain.TopRequest{
		QueryRequest: domain.QueryRequest{RangeRequest: domain.RangeRequest{Start: "2024-01-01", End: "2024-01-31"}},
		Limit:        2,
	})
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "a@x.com", top[0].Email)
	assert.Equal(t, int64(10), top[0].TotalRequests)
	assert.Equal(t, "b@x.com", top[1].Email)

	byDept, err := svc.TopActiveUsers(context.Background(), domain.TopRequest{
		QueryRequest: domain.QueryRequest{
			RangeRequest: domain.RangeRequest{Start: "2024-01-01", End: "2024-01-31"},
			Department:   "data-science",
		},
	})
	require.NoError(t, err)
	require.Len(t, byDept, 1)
	assert.Equal(t, "c@x.com", byDept[0].Email)
	assert.Equal(t, int64(2), byDept[0].TotalRequests)

	_, err = svc.TopActiveUsers(context.Background(), domain.TopRequest{Limit: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidLimit)
}

func TestSummaryCountsAgree(t *testing.T) {
	svc, db := newService(t)
	usage := int64(4)
	withUsage := metric("2024-01-02", "c@x.com", true, 0)
	withUsage.UsageBasedReqs = &usage
	seed(t, db, []usagemetric.MetricRecord{
		metric("2024-01-01", "a@x.com", true, 3),
		metric("2024-01-02", "a@x.com", false, 0),
		metric("2024-01-01", "b@x.com", false, 0),
		withUsage,
	}, nil)

	summary, err := svc.Summary(context.Background(), domain.RangeRequest{Start: "2024-01-01", End: "2024-01-02"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), summary.Records)
	assert.Equal(t, int64(3), summary.TotalUsers)
	assert.Equal(t, int64(2), summary.ActiveUsers)
	assert.Equal(t, int64(2), summary.UsedUsers)
	assert.Equal(t, int64(1), summary.NeverUsedUsers)
	assert.Equal(t, summary.TotalUsers, summary.UsedUsers+summary.NeverUsedUsers)
	assert.Equal(t, int64(3), summary.SubscriptionIncludedReqs)
	assert.Equal(t, int64(4), summary.UsageBasedReqs)
}

func TestUserActivitySplit(t *testing.T) {
	svc, db := newService(t)
	seed(t, db, []usagemetric.MetricRecord{
		metric("2024-01-01", "a@x.com", true, 1),
		metric("2024-01-02", "a@x.com", true, 1),
		metric("2024-01-01", "b@x.com", true, 9),
		metric("2024-01-01", "z@x.com", false, 0),
		metric("2024-01-01", "m@x.com", true, 0),
	}, nil)

	act, err := svc.UserActivity(context.Background(), domain.QueryRequest{
		RangeRequest: domain.RangeRequest{Start: "2024-01-01", End: "2024-01-02"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, emails(act.Used, func(u domain.UserActivity) string { return u.Email }))
	assert.Equal(t, 2, act.Used[0].ActiveDays)
	assert.Equal(t, []string{"m@x.com", "z@x.com"}, emails(act.NeverUsed, func(u domain.UserActivity) string { return u.Email }))
}

func TestDepartmentRollup(t *testing.T) {
	svc, db := newService(t)
	seed(t, db, []usagemetric.MetricRecord{
		metric("2024-01-01", "a@x.com", true, 5),
		metric("2024-01-01", "b@x.com", false, 0),
		metric("2024-01-01", "c@x.com", true, 1),
	}, []managerdomain.ManagerRecord{roster("a@x.com", "R&D Platform"), roster("b@x.com", "R&D Platform")})

	stats, err := svc.DepartmentRollup(context.Background(), domain.RangeRequest{Start: "2024-01-01", End: "2024-01-01"})
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "R&D Platform", stats[0].Department)
	assert.Equal(t, "r-and-d-platform", stats[0].Slug)
	assert.Equal(t, int64(2), stats[0].Users)
	assert.Equal(t, int64(1), stats[0].ActiveUsers)
	assert.Equal(t, int64(5), stats[0].TotalRequests)
	assert.Equal(t, domain.UnassignedDepartment, stats[1].Department)
}

func TestResolveRange(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	rng, err := svc.ResolveRange(ctx, domain.RangeRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.Range{Start: "2024-02-29", End: "2024-03-01"}, rng)

	seed(t, db, []usagemetric.MetricRecord{metric("2024-01-05", "a@x.com", true, 1), metric("2024-01-09", "a@x.com", true, 1)}, nil)
	rng, err = svc.ResolveRange(ctx, domain.RangeRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.Range{Start: "2024-01-08", End: "2024-01-09"}, rng)

	bounds, err := svc.Bounds(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Bounds{MinDate: "2024-01-05", MaxDate: "2024-01-09", HasData: true}, bounds)

	_, err = svc.ResolveRange(ctx, domain.RangeRequest{Start: "2024-02-01", End: "2024-01-01"})
	assert.ErrorIs(t, err, domain.ErrInvalidRange)

	_, err = svc.ResolveRange(ctx, domain.RangeRequest{Start: "01/02/2024"})
	assert.ErrorIs(t, err, domain.ErrInvalidDate)
}
