package export

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/HerbHall/ihttstats/internal/catalog"
	"github.com/HerbHall/ihttstats/internal/format"
	"github.com/HerbHall/ihttstats/pkg/models"
	"github.com/xuri/excelize/v2"
)

const (
	moneyNumFmt = "#,##0.00"
	dateNumFmt  = "dd/mm/yyyy"
	maxSheetLen = 31
)

// RenderExcel writes one sheet with a header row and one row per record.
// Money columns are numeric, dates are real date cells, and every column is
// sized to its longest rendered value plus two.
func RenderExcel(sheet string, cols []catalog.Column, records []models.Record) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet = sheetName(sheet)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("excel: rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"88CFE0"}},
	})
	if err != nil {
		return nil, fmt.Errorf("excel: header style: %w", err)
	}
	money := moneyNumFmt
	moneyStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &money})
	if err != nil {
		return nil, fmt.Errorf("excel: money style: %w", err)
	}
	date := dateNumFmt
	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &date})
	if err != nil {
		return nil, fmt.Errorf("excel: date style: %w", err)
	}

	headers := format.Headers(cols)
	widths := make([]int, len(cols))
	row := make([]any, len(cols))
	for i, h := range headers {
		row[i] = h
		widths[i] = utf8.RuneCountInString(h)
	}
	if err := f.SetSheetRow(sheet, "A1", &row); err != nil {
		return nil, fmt.Errorf("excel: header row: %w", err)
	}

	for n, r := range records {
		for i, col := range cols {
			row[i] = format.Value(r, col)
			if l := utf8.RuneCountInString(format.Cell(r, col)); l > widths[i] {
				widths[i] = l
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, n+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("excel: row %d: %w", n+2, err)
		}
	}

	last := len(records) + 1
	for i, col := range cols {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(sheet, name+"1", name+"1", headerStyle); err != nil {
			return nil, fmt.Errorf("excel: style header: %w", err)
		}
		if last > 1 {
			style := 0
			switch col.Kind {
			case catalog.KindMoney:
				style = moneyStyle
			case catalog.KindDate:
				style = dateStyle
			}
			if style != 0 {
				if err := f.SetCellStyle(sheet, name+"2", fmt.Sprintf("%s%d", name, last), style); err != nil {
					return nil, fmt.Errorf("excel: style column %s: %w", name, err)
				}
			}
		}
		if err := f.SetColWidth(sheet, name, name, float64(widths[i]+2)); err != nil {
			return nil, fmt.Errorf("excel: width %s: %w", name, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("excel: write: %w", err)
	}
	return buf.Bytes(), nil
}

// sheetName strips characters Excel rejects and truncates to 31 runes.
func sheetName(s string) string {
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
	if s == "" {
		s = "Datos"
	}
	if utf8.RuneCountInString(s) > maxSheetLen {
		s = string([]rune(s)[:maxSheetLen])
	}
	return s
}
