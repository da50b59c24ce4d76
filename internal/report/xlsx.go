package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	XLSXExtension   = "xlsx"
)

// Generate: 1シートのブックを作る。Close は呼び出し側の責任。
func Generate(rows []Row) (*excelize.File, error) {
	return Render(Layout(rows))
}

// Render: レイアウト済みの Sheet を新しいブックに書き込む
func Render(sh Sheet) (*excelize.File, error) {
	f := excelize.NewFile()
	ok := false
	defer func() {
		if !ok {
			_ = f.Close()
		}
	}()

	if err := f.SetSheetName(f.GetSheetName(0), sh.Name); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	ids := make(map[StyleKey]int)
	for key, st := range excelStyles() {
		id, err := f.NewStyle(st)
		if err != nil {
			return nil, fmt.Errorf("create style %s: %w", key, err)
		}
		ids[key] = id
	}

	for c, cell := range sh.Header {
		if err := setCell(f, sh.Name, c+1, 1, cell.Value, ids[cell.Style]); err != nil {
			return nil, err
		}
	}

	for r, line := range sh.Body {
		row := r + 2
		for c, cell := range line {
			var v any = cell.Value
			if c == idColumn {
				v = sh.IDs[r]
			}
			if err := setCell(f, sh.Name, c+1, row, v, ids[cell.Style]); err != nil {
				return nil, err
			}
		}
	}

	for c, w := range sh.Widths {
		name, err := excelize.ColumnNumberToName(c + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sh.Name, name, name, w); err != nil {
			return nil, fmt.Errorf("set width of column %s: %w", name, err)
		}
	}

	ok = true
	return f, nil
}

// setCell: StyleDefault は ids に無いので 0（既定スタイル）になる
func setCell(f *excelize.File, sheet string, col, row int, v any, style int) error {
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if s, isString := v.(string); isString && s == "" {
		v = nil
	}
	if v != nil {
		if err := f.SetCellValue(sheet, ref, v); err != nil {
			return fmt.Errorf("set %s: %w", ref, err)
		}
	}
	if style != 0 {
		if err := f.SetCellStyle(sheet, ref, ref, style); err != nil {
			return fmt.Errorf("style %s: %w", ref, err)
		}
	}
	return nil
}
