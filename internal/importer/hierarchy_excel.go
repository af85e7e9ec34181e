package importer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// HierarchyHeader is the header row of the import sheet, one column per level.
var HierarchyHeader = []string{"Module", "Block", "Floor", "Apartment"}

// headerAliases accepts the Portuguese site vocabulary as well.
var headerAliases = map[string]int{
	"module": 0, "modulo": 0, "módulo": 0,
	"block": 1, "bloco": 1,
	"floor": 2, "pavimento": 2, "andar": 2,
	"apartment": 3, "apartamento": 3, "apto": 3,
}

const templateSheet = "Hierarchy"

var ErrMissingHeader = errors.New("hierarchy sheet header must contain Module, Block, Floor, Apartment")

// HierarchyRow is one data row. Trailing levels may be empty: a row with
// only Module and Block creates those two.
type HierarchyRow struct {
	Line      int
	Module    string
	Block     string
	Floor     string
	Apartment string
}

// Names returns the non-empty level names from the top.
func (r HierarchyRow) Names() []string {
	all := []string{r.Module, r.Block, r.Floor, r.Apartment}
	out := make([]string, 0, len(all))
	for _, n := range all {
		if n == "" {
			break
		}
		out = append(out, n)
	}
	return out
}

// RowError is a data row that was skipped.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// ReadHierarchy parses the first sheet of an xlsx workbook.
func ReadHierarchy(r io.Reader) ([]HierarchyRow, []RowError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse Excel file: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, nil, errors.New("excel file has no sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, ErrMissingHeader
	}

	cols, err := headerColumns(rows[0])
	if err != nil {
		return nil, nil, err
	}

	var (
		out     []HierarchyRow
		skipped []RowError
	)
	for i := 1; i < len(rows); i++ {
		line := i + 1
		cell := func(level int) string {
			c := cols[level]
			if c < len(rows[i]) {
				return strings.TrimSpace(rows[i][c])
			}
			return ""
		}
		hr := HierarchyRow{Line: line, Module: cell(0), Block: cell(1), Floor: cell(2), Apartment: cell(3)}
		names := []string{hr.Module, hr.Block, hr.Floor, hr.Apartment}

		if hr.Module == "" && hr.Block == "" && hr.Floor == "" && hr.Apartment == "" {
			continue
		}
		if gap := firstGap(names); gap >= 0 {
			skipped = append(skipped, RowError{
				Line:   line,
				Reason: fmt.Sprintf("%s is empty but a lower level is set", HierarchyHeader[gap]),
			})
			continue
		}
		out = append(out, hr)
	}
	return out, skipped, nil
}

func headerColumns(header []string) ([4]int, error) {
	cols := [4]int{-1, -1, -1, -1}
	for i, h := range header {
		if level, ok := headerAliases[strings.ToLower(strings.TrimSpace(h))]; ok && cols[level] < 0 {
			cols[level] = i
		}
	}
	for _, c := range cols {
		if c < 0 {
			return cols, ErrMissingHeader
		}
	}
	return cols, nil
}

// firstGap returns the index of an empty level that has a non-empty level
// below it, or -1.
func firstGap(names []string) int {
	last := -1
	for i, n := range names {
		if n != "" {
			last = i
		}
	}
	for i := 0; i < last; i++ {
		if names[i] == "" {
			return i
		}
	}
	return -1
}

// GenerateHierarchyTemplate returns an empty import workbook with the header
// row styled and frozen.
func GenerateHierarchyTemplate() ([]byte, error) {
	return generateHierarchyExcel(nil)
}

// GenerateHierarchyExport writes rows under the header, e.g. to export an
// existing site.
func GenerateHierarchyExport(rows []HierarchyRow) ([]byte, error) {
	return generateHierarchyExcel(rows)
}

func generateHierarchyExcel(rows []HierarchyRow) ([]byte, error) {
	f := excelize.NewFile()
	// WriteTo needs the file open; close explicitly on every path.

	index, err := f.NewSheet(templateSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range HierarchyHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(templateSheet, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(templateSheet, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}
	if err := f.SetColWidth(templateSheet, "A", "D", 18); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	for i, r := range rows {
		values := []string{r.Module, r.Block, r.Floor, r.Apartment}
		for col, v := range values {
			if v == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to convert coordinates: %w", err)
			}
			// Names like "101" must stay text.
			if err := f.SetCellStr(templateSheet, cell, v); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	if err := f.SetPanes(templateSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}
