package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/i474232898/surge-forecast/internal/recommend"
)

// SheetName is the worksheet holding the action plan.
const SheetName = "Action Plan"

const dateLayout = "2006-01-02"

var header = []interface{}{
	"ID", "Priority", "Category", "Title", "Action", "Impact", "Deadline", "Cost", "Confidence %",
}

// WritePlan renders the plan as an xlsx workbook: a bold header row, one row
// per recommendation in plan order and a final total row.
func WritePlan(w io.Writer, title string, plan recommend.Plan) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetDocProps(&excelize.DocProperties{Title: title, Creator: "surge-forecast"}); err != nil {
		return fmt.Errorf("set doc props: %w", err)
	}

	if err := setRow(f, 1, header); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := f.SetCellStyle(SheetName, "A1", last, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, r := range plan.Items {
		row := []interface{}{
			r.ID,
			string(r.Priority),
			r.Category,
			r.Title,
			r.ActionText,
			r.ImpactText,
			r.Deadline.Format(dateLayout),
			r.CostEstimate,
			r.ConfidencePercent,
		}
		if err := setRow(f, i+2, row); err != nil {
			return err
		}
	}

	totalRow := len(plan.Items) + 2
	if err := setRow(f, totalRow, []interface{}{"Total", "", "", "", "", "", plan.Currency, plan.TotalCost}); err != nil {
		return err
	}
	first, _ := excelize.CoordinatesToCellName(1, totalRow)
	end, _ := excelize.CoordinatesToCellName(len(header), totalRow)
	if err := f.SetCellStyle(SheetName, first, end, bold); err != nil {
		return fmt.Errorf("style total: %w", err)
	}

	return f.Write(w)
}

func setRow(f *excelize.File, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}
