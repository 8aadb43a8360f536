package export

import (
	"fmt"
	"io"

	"smartchair/internal/models"

	"github.com/xuri/excelize/v2"
)

// SheetName 导出工作表名称
const SheetName = "Posture History"

// XLSXHeader 导出表头（与 CSV 列顺序一致）
var XLSXHeader = []string{"Timestamp", "Posture", "Distance (cm)", "Sitting Time"}

// WriteXLSX 生成历史记录工作簿（流式写入行），返回写入的数据行数
func WriteXLSX(w io.Writer, entries []models.TelemetryEntry) (int, error) {
	f := excelize.NewFile()
	defer f.Close()

	// 重命名默认的 Sheet1
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return 0, fmt.Errorf("failed to rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create header style: %w", err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return 0, fmt.Errorf("failed to create stream writer: %w", err)
	}

	// 列宽需在写行之前设置
	columnWidths := []float64{
		28, // Timestamp
		16, // Posture
		14, // Distance
		14, // Sitting Time
	}
	for i, width := range columnWidths {
		if err := sw.SetColWidth(i+1, i+1, width); err != nil {
			return 0, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	// 冻结表头
	if err := sw.SetPanes(&excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return 0, fmt.Errorf("failed to freeze panes: %w", err)
	}

	header := make([]interface{}, len(XLSXHeader))
	for i, h := range XLSXHeader {
		header[i] = h
	}
	if err := sw.SetRow("A1", header, excelize.RowOpts{StyleID: headerStyle}); err != nil {
		return 0, fmt.Errorf("failed to write header row: %w", err)
	}

	for i, e := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return i, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		ts := ""
		if e.Timestamp != nil {
			ts = e.Timestamp.String()
		}
		row := []interface{}{ts, e.Posture, e.Distance, e.SittingTime}
		if err := sw.SetRow(cell, row); err != nil {
			return i, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return len(entries), fmt.Errorf("failed to flush stream writer: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return len(entries), fmt.Errorf("failed to write workbook: %w", err)
	}
	return len(entries), nil
}
