package report

import (
	"fmt"

	"github.com/yashhavalannache/smart-inventory-management/internal/domain"
)

// Page geometry in points for a US Letter page. Y coordinates in Line are
// measured from the bottom edge.
const (
	PageWidth    = 612.0
	PageHeight   = 792.0
	TopStart     = 750.0
	BottomMargin = 60.0
	LineHeight   = 20.0

	titleX   = 200.0
	sectionX = 100.0
	bodySize = 12.0
)

const currencyLabel = "Rs."

// Line is one positioned run of text. Pages are numbered from 1.
type Line struct {
	Page int
	X    float64
	Y    float64
	Bold bool
	Size float64
	Text string
}

type cursor struct {
	page  int
	y     float64
	lines []Line
}

// advance moves down by step and starts a new page once the next line would
// fall below BottomMargin.
func (c *cursor) advance(step float64) {
	if c.y-step < BottomMargin {
		c.page++
		c.y = TopStart
		return
	}
	c.y -= step
}

func (c *cursor) emit(x float64, bold bool, size float64, text string) {
	c.lines = append(c.lines, Line{Page: c.page, X: x, Y: c.y, Bold: bold, Size: size, Text: text})
}

// Layout positions every line of the report. Ranked sections are written in
// the order they appear in summary.
func Layout(summary domain.ReportSummary) []Line {
	c := &cursor{page: 1, y: TopStart}

	c.emit(titleX, true, 16, "SMART STORE DAILY REPORT")
	c.advance(LineHeight)
	c.emit(titleX, false, bodySize, "Report for: "+summary.Date)

	c.advance(30)
	c.emit(sectionX, true, bodySize, "Summary")
	c.advance(LineHeight)
	c.emit(sectionX, false, bodySize, fmt.Sprintf("Total Items Sold: %d", summary.TotalItemsSold))
	c.advance(LineHeight)
	c.emit(sectionX, false, bodySize, "Total Profit: "+currencyLabel+summary.TotalProfit.StringFixed(2))

	top := make([]string, 0, len(summary.TopSelling))
	for _, item := range summary.TopSelling {
		top = append(top, fmt.Sprintf("%s: %d units sold", item.Name, item.Quantity))
	}
	least := make([]string, 0, len(summary.LeastSelling))
	for _, item := range summary.LeastSelling {
		least = append(least, fmt.Sprintf("%s: %d units sold", item.Name, item.Quantity))
	}
	perf := make([]string, 0, len(summary.TopPerformance))
	for _, item := range summary.TopPerformance {
		perf = append(perf, fmt.Sprintf("%s: %d units sold, %s%s revenue, %s%% margin",
			item.Name, item.UnitsSold, currencyLabel, item.Revenue.StringFixed(2), item.ProfitMarginPct.StringFixed(2)))
	}

	c.section("Top Selling Products:", top)
	c.section("Least Selling Products:", least)
	c.section("Top Performance Products:", perf)

	return c.lines
}

func (c *cursor) section(heading string, rows []string) {
	c.advance(2 * LineHeight)
	c.emit(sectionX, true, bodySize, heading)
	for _, row := range rows {
		c.advance(LineHeight)
		c.emit(sectionX, false, bodySize, row)
	}
}
