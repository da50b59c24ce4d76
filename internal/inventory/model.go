package inventory

import "database/sql"

// Fields は inventory テーブルの id 以外の列（更新時はすべて置き換える）
type Fields struct {
	Model        string
	PreviousUser sql.NullString
	CurrentUser  string
	TransferDate string // "2006-01-02" 形式を想定（文字列比較で範囲検索する）
	Condition    sql.NullString
	Notes        sql.NullString
}

// Record は inventory テーブルの1行を表す
type Record struct {
	ID int64
	Fields
}

// 一覧取得用の検索条件
type ListQuery struct {
	Search    string
	Condition string
	StartDate string
	EndDate   string
	Page      int
	Limit     int
}

const (
	DefaultPage  = 1
	DefaultLimit = 10
)

func (q ListQuery) normalize() ListQuery {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	return q
}

// page <= totalPages の範囲でのみ呼ぶ（それ以外は溢れうる）
func (q ListQuery) offset() int64 {
	return int64(q.Page-1) * int64(q.Limit)
}

// ListResult: ページ切り出し後の行と、フィルタ後の総件数
type ListResult struct {
	Records    []Record
	TotalItems int64
	TotalPages int64
}

func totalPages(totalItems int64, limit int) int64 {
	if totalItems <= 0 {
		return 0
	}
	return (totalItems-1)/int64(limit) + 1
}
