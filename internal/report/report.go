// Package report produces printable versions of the dashboard views.
package report

import (
	"context"
	"fmt"

	analyticsdomain "github.com/smallbiznis/usagelens/internal/analytics/domain"
	"github.com/smallbiznis/usagelens/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("report",
	fx.Provide(New),
)

type Params struct {
	fx.In

	Log       *zap.Logger
	Clock     clock.Clock
	Analytics analyticsdomain.Service
}

type Generator struct {
	log       *zap.Logger
	clock     clock.Clock
	analytics analyticsdomain.Service
}

func New(p Params) *Generator {
	return &Generator{
		log:       p.Log.Named("report.generator"),
		clock:     p.Clock,
		analytics: p.Analytics,
	}
}

// Summary renders the summary, top users and inactive users for a range and
// returns the PDF together with a suggested file name.
func (g *Generator) Summary(ctx context.Context, req analyticsdomain.RangeRequest) ([]byte, string, error) {
	rng, err := g.analytics.ResolveRange(ctx, req)
	if err != nil {
		return nil, "", err
	}
	resolved := analyticsdomain.RangeRequest{Start: rng.Start, End: rng.End}

	summary, err := g.analytics.Summary(ctx, resolved)
	if err != nil {
		return nil, "", err
	}
	top, err := g.analytics.TopActiveUsers(ctx, analyticsdomain.TopRequest{
		QueryRequest: analyticsdomain.QueryRequest{RangeRequest: resolved},
	})
	if err != nil {
		return nil, "", err
	}
	inactive, err := g.analytics.InactiveUsers(ctx, analyticsdomain.QueryRequest{RangeRequest: resolved})
	if err != nil {
		return nil, "", err
	}

	doc, err := RenderSummary(SummaryData{
		GeneratedAt: g.clock.Now().UTC().Format("2006-01-02 15:04 UTC"),
		Summary:     summary,
		Top:         top,
		Inactive:    inactive,
	})
	if err != nil {
		return nil, "", err
	}
	g.log.Debug("summary report rendered", zap.String("start", rng.Start), zap.String("end", rng.End), zap.Int("bytes", len(doc)))
	return doc, fmt.Sprintf("usage-summary-%s-to-%s.pdf", rng.Start, rng.End), nil
}
