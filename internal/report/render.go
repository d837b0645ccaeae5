package report

import (
	"fmt"
	"strconv"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	analyticsdomain "github.com/smallbiznis/usagelens/internal/analytics/domain"
)

// SummaryData is everything printed on the summary report.
type SummaryData struct {
	Title       string
	GeneratedAt string
	Summary     analyticsdomain.Summary
	Top         []analyticsdomain.UserTotal
	Inactive    []analyticsdomain.InactiveUser
}

var (
	headingStyle = props.Text{Size: 12, Style: fontstyle.Bold, Top: 3}
	headerCell   = props.Text{Size: 9, Style: fontstyle.Bold}
	bodyCell     = props.Text{Size: 9}
	numberHeader = props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}
	numberCell   = props.Text{Size: 9, Align: align.Right}
)

// RenderSummary lays out data as a PDF document.
func RenderSummary(data SummaryData) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	title := data.Title
	if title == "" {
		title = "AI assistant usage"
	}
	m.AddRow(16,
		text.NewCol(8, title, props.Text{Size: 18, Style: fontstyle.Bold, Align: align.Left}),
		text.NewCol(4, "Generated "+data.GeneratedAt, props.Text{Size: 8, Align: align.Right, Top: 4}),
	)
	m.AddRow(8,
		text.NewCol(12, fmt.Sprintf("Period %s to %s", data.Summary.Range.Start, data.Summary.Range.End), props.Text{Size: 10}),
	)

	m.AddRow(10, text.NewCol(12, "Summary", headingStyle))
	s := data.Summary
	stats := [][2]string{
		{"Users", itoa(s.TotalUsers)},
		{"Active users", itoa(s.ActiveUsers)},
		{"Used", itoa(s.UsedUsers)},
		{"Never used", itoa(s.NeverUsedUsers)},
		{"Subscription included requests", itoa(s.SubscriptionIncludedReqs)},
		{"Usage based requests", itoa(s.UsageBasedReqs)},
		{"Daily records", itoa(s.Records)},
	}
	for _, stat := range stats {
		m.AddRow(6,
			text.NewCol(8, stat[0], bodyCell),
			text.NewCol(4, stat[1], numberCell),
		)
	}

	m.AddRow(12, text.NewCol(12, "Most active users", headingStyle))
	m.AddRow(7,
		text.NewCol(1, "#", headerCell),
		text.NewCol(5, "Email", headerCell),
		text.NewCol(4, "Department", headerCell),
		text.NewCol(2, "Requests", numberHeader),
	)
	if len(data.Top) == 0 {
		m.AddRow(6, text.NewCol(12, "No activity in this period.", bodyCell))
	}
	for i, u := range data.Top {
		m.AddRow(6,
			text.NewCol(1, strconv.Itoa(i+1), bodyCell),
			text.NewCol(5, u.Email, bodyCell),
			text.NewCol(4, u.Department, bodyCell),
			text.NewCol(2, itoa(u.TotalRequests), numberCell),
		)
	}

	m.AddRow(12, text.NewCol(12, fmt.Sprintf("Inactive users (%d)", len(data.Inactive)), headingStyle))
	m.AddRow(7,
		text.NewCol(6, "Email", headerCell),
		text.NewCol(3, "Manager", headerCell),
		text.NewCol(3, "Department", headerCell),
	)
	for _, u := range data.Inactive {
		m.AddRow(6,
			text.NewCol(6, u.Email, bodyCell),
			text.NewCol(3, u.ManagerName, bodyCell),
			text.NewCol(3, u.Department, bodyCell),
		)
	}
	m.AddRow(6, col.New(12))

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("render summary report: %w", err)
	}
	return doc.GetBytes(), nil
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
