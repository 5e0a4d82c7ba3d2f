package export

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Gstman420/emergency-response-backend/internal/models"

	"github.com/xuri/excelize/v2"
)

// DecisionSheetName 决策导出工作表名
const DecisionSheetName = "Decisions"

// DecisionExportHeader 导出表头
var DecisionExportHeader = []string{
	"Decision ID",
	"Resolved At",
	"Resolved By",
	"Required Resource",
	"Winner Emergency ID",
	"Loser Emergency IDs",
	"Resource ID",
	"Context Request ID",
	"Source Event ID",
}

var decisionColumnWidths = []float64{38, 22, 12, 18, 22, 40, 16, 38, 24}

// GenerateDecisionExport 生成决策审计日志 Excel 文件
func GenerateDecisionExport(decisions []*models.Decision) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteDecisions(&buf, decisions); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteDecisions 将决策写入 xlsx（时间统一为 UTC RFC3339）
func WriteDecisions(w io.Writer, decisions []*models.Decision) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(DecisionSheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetRow(DecisionSheetName, "A1", &DecisionExportHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(DecisionExportHeader))
	if err != nil {
		return fmt.Errorf("failed to convert column number: %w", err)
	}
	if err := f.SetCellStyle(DecisionSheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("failed to set header style: %w", err)
	}

	for i, width := range decisionColumnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(DecisionSheetName, col, col, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, d := range decisions {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		row := []interface{}{
			d.DecisionID,
			d.ResolvedAt.UTC().Format(time.RFC3339),
			d.ResolvedBy,
			d.RequiredResource,
			d.EmergencyID,
			strings.Join(d.LoserIDs, ","),
			deref(d.ResourceID),
			deref(d.ContextRequestID),
			deref(d.SourceEventID),
		}
		if err := f.SetSheetRow(DecisionSheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
