package excel

import (
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nurpe/tract-board/internal/model"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Generate renders a snapshot as a one-sheet workbook.
func (g *Generator) Generate(snap model.Snapshot) ([]byte, error) {
	file := excelize.NewFile()

	sheet := "Tracts"
	file.SetSheetName("Sheet1", sheet)
	if err := g.writeSummary(file, sheet, snap); err != nil {
		return nil, err
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(file *excelize.File, sheet string, snap model.Snapshot) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	set("A1", "Snapshot version")
	set("B1", snap.Version)
	set("A2", "Generated at")
	set("B2", formatTime(snap.GeneratedAt))

	headers := []string{
		"Tract", "Label", "Current Bid", "Max Budget", "% of Budget",
		"Approved Over Budget", "Requested Budget", "Requested Unit",
		"High Bidder", "Last Updated",
	}
	tableRow := 4
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, tableRow)
		if err != nil {
			return err
		}
		set(cell, header)
	}

	ids := make([]string, 0, len(snap.Tracts))
	for id := range snap.Tracts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for i, id := range ids {
		view := snap.Tracts[id]
		row := tableRow + 1 + i
		set(fmt.Sprintf("A%d", row), id)
		set(fmt.Sprintf("B%d", row), view.Label)
		set(fmt.Sprintf("C%d", row), view.CurrentBid.InexactFloat64())
		set(fmt.Sprintf("D%d", row), view.MaxBudget.InexactFloat64())
		set(fmt.Sprintf("E%d", row), view.PctOfBudget())
		set(fmt.Sprintf("F%d", row), yesNo(view.ApprovedOverBudget))
		if view.RequestedBudget != nil {
			set(fmt.Sprintf("G%d", row), view.RequestedBudget.InexactFloat64())
		}
		if view.RequestedUnit != nil {
			set(fmt.Sprintf("H%d", row), string(*view.RequestedUnit))
		}
		set(fmt.Sprintf("I%d", row), yesNo(view.HighBidder))
		set(fmt.Sprintf("J%d", row), formatTime(view.LastUpdated))
	}

	_ = file.SetColWidth(sheet, "A", "B", 20)
	_ = file.SetColWidth(sheet, "C", "G", 16)
	_ = file.SetColWidth(sheet, "J", "J", 22)
	return nil
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
