package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/yashhavalannache/smart-inventory-management/internal/domain"
)

// Render draws the summary onto Letter pages and returns the PDF bytes.
// Output depends only on summary: document dates are pinned to the report date.
func Render(summary domain.ReportSummary) ([]byte, error) {
	lines := Layout(summary)

	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCatalogSort(true)
	pdf.SetTitle("Smart Store Daily Report "+summary.Date, true)
	pdf.SetCreator("smart-store", true)
	stamp := documentTime(summary.Date)
	pdf.SetCreationDate(stamp)
	pdf.SetModificationDate(stamp)

	page := 0
	for _, line := range lines {
		for page < line.Page {
			pdf.AddPage()
			page++
		}
		style := ""
		if line.Bold {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, line.Size)
		pdf.Text(line.X, PageHeight-line.Y, line.Text)
	}
	if page == 0 {
		pdf.AddPage()
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render report pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func documentTime(date string) time.Time {
	t, err := time.Parse(domain.DateLayout, date)
	if err != nil {
		return time.Unix(0, 0).UTC()
	}
	return t.UTC()
}
