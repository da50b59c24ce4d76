// Package report は在庫一覧をエクスポート用の表にする。
// Layout（行 → スタイル付きの表）は純粋関数で、Generate が xlsx に、
// WriteCSV が同じ列を CSV に書き出す。ストレージには触らない。
package report

import (
	"strconv"
	"unicode/utf8"
)

const SheetName = "Inventory Report"

// Row: レポート上の1行。空文字は値なしとして扱う。
type Row struct {
	ID           int64
	Model        string
	CurrentUser  string
	PreviousUser string
	TransferDate string
	Condition    string
	Notes        string
}

// Column: 見出しと、その列に出す値
type Column struct {
	Header string
	Value  func(Row) string
}

// 出力順に固定
var Columns = []Column{
	{Header: "ID", Value: func(r Row) string { return strconv.FormatInt(r.ID, 10) }},
	{Header: "Model / Description", Value: func(r Row) string { return r.Model }},
	{Header: "Current User", Value: func(r Row) string { return r.CurrentUser }},
	{Header: "Previous User", Value: func(r Row) string { return r.PreviousUser }},
	{Header: "Date of Transfer", Value: func(r Row) string { return r.TransferDate }},
	{Header: "Condition", Value: func(r Row) string { return r.Condition }},
	{Header: "Notes", Value: func(r Row) string { return r.Notes }},
}

const (
	idColumn        = 0
	conditionColumn = 5

	minColumnWidth = 10
	widthPadding   = 4
	emptyCellWidth = 10
)

type Cell struct {
	Value string
	Style StyleKey
}

// Sheet: レイアウト済みの表
type Sheet struct {
	Name   string
	Header []Cell
	Body   [][]Cell
	// ID 列は文字列ではなく数値で書き込むため別に持つ
	IDs    []int64
	Widths []float64
}

// Layout: 渡された順のまま並べる（並べ替えない）
func Layout(rows []Row) Sheet {
	sh := Sheet{
		Name:   SheetName,
		Header: make([]Cell, len(Columns)),
		Body:   make([][]Cell, 0, len(rows)),
		IDs:    make([]int64, 0, len(rows)),
	}
	for i, col := range Columns {
		sh.Header[i] = Cell{Value: col.Header, Style: StyleHeader}
	}

	for _, r := range rows {
		line := make([]Cell, len(Columns))
		for i, col := range Columns {
			line[i] = Cell{Value: col.Value(r), Style: StyleDefault}
		}
		line[idColumn].Style = StyleID
		line[conditionColumn].Style = ConditionStyle(r.Condition)
		sh.Body = append(sh.Body, line)
		sh.IDs = append(sh.IDs, r.ID)
	}

	sh.Widths = autofit(sh)
	return sh
}

// autofit: 各列の最大文字数（空セルは10扱い）。10未満なら10、それ以外は +4。
func autofit(sh Sheet) []float64 {
	widths := make([]float64, len(Columns))
	for i := range Columns {
		longest := cellWidth(sh.Header[i].Value)
		for _, line := range sh.Body {
			if w := cellWidth(line[i].Value); w > longest {
				longest = w
			}
		}
		if longest < minColumnWidth {
			widths[i] = minColumnWidth
		} else {
			widths[i] = float64(longest + widthPadding)
		}
	}
	return widths
}

func cellWidth(v string) int {
	if v == "" {
		return emptyCellWidth
	}
	return utf8.RuneCountInString(v)
}
