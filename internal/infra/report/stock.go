// Package report renders xlsx workbooks for stock reporting.
package report

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/Spok95/supply-requests/internal/domain/materials"
	"github.com/Spok95/supply-requests/internal/domain/requests"
)

const (
	SheetStock      = "Stock"
	SheetStatistics = "Statistics"
)

// Stock builds a two sheet workbook: current levels with a low-stock flag and
// request statistics per material. stats is matched to levels by material id.
func Stock(levels []materials.StockLevel, stats map[int64]requests.Statistics, margin int64) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	first := f.GetSheetName(f.GetActiveSheetIndex())
	if err := f.SetSheetName(first, SheetStock); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SheetStatistics); err != nil {
		return nil, err
	}

	header := []interface{}{"material_id", "material_name", "office_id", "available", "minimum", "low"}
	if err := f.SetSheetRow(SheetStock, "A1", &header); err != nil {
		return nil, fmt.Errorf("stock header: %w", err)
	}
	for i, l := range levels {
		low := "no"
		if l.Low(margin) {
			low = "yes"
		}
		row := []interface{}{l.MaterialID, l.Name, l.OfficeID, l.QuantityAvailable, l.MinimumQuantity, low}
		if err := setRow(f, SheetStock, i+2, row); err != nil {
			return nil, err
		}
	}

	header = []interface{}{
		"material_id", "material_name", "total", "pending", "approved",
		"partially_delivered", "rejected", "completed", "with_incident",
		"delivered", "returned",
	}
	if err := f.SetSheetRow(SheetStatistics, "A1", &header); err != nil {
		return nil, fmt.Errorf("statistics header: %w", err)
	}
	for i, l := range levels {
		st := stats[l.MaterialID]
		row := []interface{}{
			l.MaterialID, l.Name, st.Total, st.Pending, st.Approved,
			st.PartiallyDelivered, st.Rejected, st.Completed, st.WithIncident,
			st.TotalDelivered, st.TotalReturned,
		}
		if err := setRow(f, SheetStatistics, i+2, row); err != nil {
			return nil, err
		}
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("%s row %d: %w", sheet, row, err)
	}
	return nil
}
