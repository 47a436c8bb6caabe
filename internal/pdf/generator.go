package pdf

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/nurpe/tract-board/internal/model"
)

type Generator struct {
	fontName string
}

func NewGenerator() *Generator {
	return &Generator{fontName: "Helvetica"}
}

// Generate renders a snapshot as a landscape A4 table.
func (g *Generator) Generate(snap model.Snapshot) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont(g.fontName, "B", 14)
	pdf.CellFormat(0, 10, "Tract Auction Snapshot", "", 1, "C", false, 0, "")

	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Version %d, generated %s", snap.Version, formatTime(snap.GeneratedAt)), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont(g.fontName, "", 10)
	headers := []string{"Tract", "Current Bid", "Max Budget", "% of Budget", "Approved", "Requested", "High Bidder", "Last Updated"}
	colWidths := []float64{45, 35, 35, 25, 25, 35, 25, 42}
	drawTableRow(pdf, g.fontName, headers, colWidths, true)

	ids := make([]string, 0, len(snap.Tracts))
	for id := range snap.Tracts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		view := snap.Tracts[id]
		requested := "-"
		if view.RequestedBudget != nil {
			requested = view.RequestedBudget.StringFixed(2)
		}
		row := []string{
			view.Label,
			view.CurrentBid.StringFixed(2),
			view.MaxBudget.StringFixed(2),
			fmt.Sprintf("%.1f", view.PctOfBudget()),
			yesNo(view.ApprovedOverBudget),
			requested,
			yesNo(view.HighBidder),
			formatTime(view.LastUpdated),
		}
		drawTableRow(pdf, g.fontName, row, colWidths, false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func drawTableRow(pdf *gofpdf.Fpdf, fontName string, cells []string, widths []float64, header bool) {
	style := ""
	if header {
		style = "B"
	}
	pdf.SetFont(fontName, style, 10)
	for i, cell := range cells {
		pdf.CellFormat(widths[i], 7, cell, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)
}

func yesNo(value bool) string {
	if value {
		return "Yes"
	}
	return "No"
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}
