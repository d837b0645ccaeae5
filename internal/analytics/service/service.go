package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/smallbiznis/usagelens/internal/analytics/domain"
	"github.com/smallbiznis/usagelens/internal/clock"
	"github.com/smallbiznis/usagelens/internal/config"
	usagemetric "github.com/smallbiznis/usagelens/internal/usagemetric/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Settings *config.SettingsHolder
	Repo     domain.Repository
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	settings *config.SettingsHolder
	repo     domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("analytics.service"),
		clock:    p.Clock,
		settings: p.Settings,
		repo:     p.Repo,
	}
}

func (s *Service) Bounds(ctx context.Context) (domain.Bounds, error) {
	return s.repo.Bounds(ctx, s.db)
}

func (s *Service) ResolveRange(ctx context.Context, req domain.RangeRequest) (domain.Range, error) {
	start, err := parseDate(req.Start)
	if err != nil {
		return domain.Range{}, err
	}
	end, err := parseDate(req.End)
	if err != nil {
		return domain.Range{}, err
	}

	if start == "" || end == "" {
		anchor := s.clock.Now().UTC().Format(usagemetric.DateLayout)
		bounds, err := s.repo.Bounds(ctx, s.db)
		if err != nil {
			return domain.Range{}, err
		}
		if bounds.HasData {
			anchor = bounds.MaxDate
		}
		if end == "" {
			end = anchor
		}
		if start == "" {
			endDay, _ := time.Parse(usagemetric.DateLayout, end)
			start = endDay.AddDate(0, 0, -(s.dashboard().DefaultRangeDays - 1)).Format(usagemetric.DateLayout)
		}
	}

	if start > end {
		return domain.Range{}, domain.ErrInvalidRange
	}
	return domain.Range{Start: start, End: end}, nil
}

func (s *Service) InactiveUsers(ctx context.Context, req domain.QueryRequest) ([]domain.InactiveUser, error) {
	q, err := s.query(ctx, req)
	if err != nil {
		return nil, err
	}
	users, err := s.repo.Inactive(ctx, s.db, q)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []domain.InactiveUser{}
	}
	return users, nil
}

func (s *Service) TopActiveUsers(ctx context.Context, req domain.TopRequest) ([]domain.UserTotal, error) {
	limit := req.Limit
	if limit < 0 {
		return nil, domain.ErrInvalidLimit
	}
	if limit == 0 {
		limit = s.dashboard().TopUsersLimit
	}
	if limit > config.MaxTopUsersLimit {
		limit = config.MaxTopUsersLimit
	}

	q, err := s.query(ctx, req.QueryRequest)
	if err != nil {
		return nil, err
	}
	users, err := s.repo.Top(ctx, s.db, q, limit)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []domain.UserTotal{}
	}
	return users, nil
}

func (s *Service) UserActivity(ctx context.Context, req domain.QueryRequest) (domain.Activity, error) {
	q, err := s.query(ctx, req)
	if err != nil {
		return domain.Activity{}, err
	}
	rows, err := s.repo.Activity(ctx, s.db, q)
	if err != nil {
		return domain.Activity{}, err
	}

	out := domain.Activity{Used: []domain.UserActivity{}, NeverUsed: []domain.UserActivity{}}
	for _, row := range rows {
		if row.Used() {
			out.Used = append(out.Used, row)
		} else {
			out.NeverUsed = append(out.NeverUsed, row)
		}
	}
	sort.Slice(out.Used, func(i, j int) bool {
		a, b := out.Used[i], out.Used[j]
		if a.ActiveDays != b.ActiveDays {
			return a.ActiveDays > b.ActiveDays
		}
		if ra, rb := a.SubscriptionIncludedReqs+a.UsageBasedReqs, b.SubscriptionIncludedReqs+b.UsageBasedReqs; ra != rb {
			return ra > rb
		}
		return a.Email < b.Email
	})
	sort.Slice(out.NeverUsed, func(i, j int) bool {
		return out.NeverUsed[i].Email < out.NeverUsed[j].Email
	})
	return out, nil
}

// Summary reads every figure inside one transaction so the counts agree
// with each other even while an upload commits.
func (s *Service) Summary(ctx context.Context, req domain.RangeRequest) (domain.Summary, error) {
	rng, err := s.ResolveRange(ctx, req)
	if err != nil {
		return domain.Summary{}, err
	}

	summary := domain.Summary{Range: rng}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		totals, err := s.repo.Totals(ctx, tx, rng)
		if err != nil {
			return err
		}
		used, err := s.repo.UsedUsers(ctx, tx, rng)
		if err != nil {
			return err
		}
		summary.Records = totals.Records
		summary.TotalUsers = totals.TotalUsers
		summary.ActiveUsers = totals.ActiveUsers
		summary.SubscriptionIncludedReqs = totals.SubscriptionIncludedReqs
		summary.UsageBasedReqs = totals.UsageBasedReqs
		summary.UsedUsers = used
		summary.NeverUsedUsers = totals.TotalUsers - used
		return nil
	})
	if err != nil {
		return domain.Summary{}, err
	}
	return summary, nil
}

func (s *Service) DepartmentRollup(ctx context.Context, req domain.RangeRequest) ([]domain.DepartmentStat, error) {
	rng, err := s.ResolveRange(ctx, req)
	if err != nil {
		return nil, err
	}
	stats, err := s.repo.Departments(ctx, s.db, rng)
	if err != nil {
		return nil, err
	}
	for i := range stats {
		stats[i].Slug = slug.Make(stats[i].Department)
	}
	if stats == nil {
		stats = []domain.DepartmentStat{}
	}
	return stats, nil
}

func (s *Service) query(ctx context.Context, req domain.QueryRequest) (domain.Query, error) {
	rng, err := s.ResolveRange(ctx, req.RangeRequest)
	if err != nil {
		return domain.Query{}, err
	}
	dept, err := s.resolveDepartment(ctx, req.Department)
	if err != nil {
		return domain.Query{}, err
	}
	return domain.Query{Range: rng, Department: dept}, nil
}

// resolveDepartment accepts either a department name or its slug.
func (s *Service) resolveDepartment(ctx context.Context, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	if value == slug.Make(domain.UnassignedDepartment) {
		return domain.UnassignedDepartment, nil
	}
	names, err := s.repo.DepartmentNames(ctx, s.db)
	if err != nil {
		return "", err
	}
	for _, name := range names {
		if name == value {
			return name, nil
		}
	}
	for _, name := range names {
		if slug.Make(name) == value {
			return name, nil
		}
	}
	return value, nil
}

func (s *Service) dashboard() config.DashboardConfig {
	if s.settings == nil {
		return config.DefaultSettings().Dashboard
	}
	return s.settings.Get().Dashboard
}

func parseDate(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", nil
	}
	t, err := time.Parse(usagemetric.DateLayout, value)
	if err != nil {
		return "", domain.ErrInvalidDate
	}
	return t.Format(usagemetric.DateLayout), nil
}
