package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"inventory-backend/internal/platform/db"
)

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := OpenStore(context.Background(), db.DatabaseConfig{Driver: db.DriverSQLite, Path: path}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return openTestStore(t, filepath.Join(t.TempDir(), "inventory.db"))
}

func ns(s string) sql.NullString { return sql.NullString{String: s, Valid: true} }

func fields(model, user, date, condition string) Fields {
	f := Fields{Model: model, CurrentUser: user, TransferDate: date}
	if condition != "" {
		f.Condition = ns(condition)
	}
	return f
}

func mustInsert(t *testing.T, s *Store, f Fields) int64 {
	t.Helper()
	id, err := s.Insert(context.Background(), f)
	require.NoError(t, err)
	return id
}

func ids(recs []Record) []int64 {
	out := make([]int64, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID)
	}
	return out
}

func TestOpenStore_CreatesFileBeforeAnyMutation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.db")
	s := openTestStore(t, path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	// 別接続からもテーブルが見える
	other, err := sql.Open(db.DriverSQLite, path)
	require.NoError(t, err)
	defer other.Close()
	var n int
	require.NoError(t, other.QueryRow(`SELECT COUNT(*) FROM inventory`).Scan(&n))
	assert.Equal(t, 0, n)

	all, err := s.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestOpenStore_IdempotentInit(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "inventory.db")

	s, err := OpenStore(ctx, db.DatabaseConfig{Path: path}, nil)
	require.NoError(t, err)
	mustInsert(t, s, fields("Laptop X1", "Alice", "2024-01-10", "New"))
	mustInsert(t, s, fields("Laptop X2", "Bob", "2024-02-15", "Good"))
	require.NoError(t, s.Close())

	var snapshots [][]Record
	for i := 0; i < 2; i++ {
		s, err := OpenStore(ctx, db.DatabaseConfig{Path: path}, nil)
		require.NoError(t, err)
		all, err := s.All(ctx)
		require.NoError(t, err)
		snapshots = append(snapshots, all)
		require.NoError(t, s.Close())
	}
	require.Len(t, snapshots[0], 2)
	assert.Equal(t, snapshots[0], snapshots[1])
}

func TestOpenStore_AddsNotesColumnToLegacyTable(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "legacy.db")

	legacy, err := sql.Open(db.DriverSQLite, path)
	require.NoError(t, err)
	_, err = legacy.Exec("CREATE TABLE inventory (id INTEGER PRIMARY KEY, model TEXT NOT NULL, previousUser TEXT, currentUser TEXT NOT NULL, transferDate TEXT NOT NULL, `condition` TEXT)")
	require.NoError(t, err)
	_, err = legacy.Exec("INSERT INTO inventory (model, currentUser, transferDate, `condition`) VALUES ('Old Monitor', 'Carol', '2023-05-01', 'Fair')")
	require.NoError(t, err)
	require.NoError(t, legacy.Close())

	s := openTestStore(t, path)
	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Old Monitor", all[0].Model)
	assert.False(t, all[0].Notes.Valid)

	require.NoError(t, s.Update(ctx, all[0].ID, Fields{
		Model: "Old Monitor", CurrentUser: "Carol", TransferDate: "2023-05-01",
		Condition: ns("Fair"), Notes: ns("scratched"),
	}))
	require.NoError(t, s.Close())

	// 2回目: notes は既にあるのでスキップされる
	s2 := openTestStore(t, path)
	got, err := s2.Get(ctx, all[0].ID)
	require.NoError(t, err)
	assert.Equal(t, ns("scratched"), got.Notes)
}

func TestOpenStore_RecoversFromCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.db")
	junk := make([]byte, 4096)
	for i := range junk {
		junk[i] = byte('x')
	}
	require.NoError(t, os.WriteFile(path, junk, 0o644))

	s := openTestStore(t, path)
	all, err := s.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)

	moved, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	require.Len(t, moved, 1)
	b, err := os.ReadFile(moved[0])
	require.NoError(t, err)
	assert.Equal(t, junk, b)

	mustInsert(t, s, fields("Dock", "Dan", "2024-04-01", ""))
}

func TestInsert_IDsAreIncreasingAndNeverReused(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var last int64
	for i := 0; i < 5; i++ {
		id := mustInsert(t, s, fields(fmt.Sprintf("Phone %d", i), "Eve", "2024-01-01", "Good"))
		assert.Greater(t, id, last)
		last = id
	}

	// 最大 id を消しても再利用しない
	require.NoError(t, s.Delete(ctx, last))
	id := mustInsert(t, s, fields("Phone 6", "Eve", "2024-01-01", "Good"))
	assert.Greater(t, id, last)
}

func TestInsert_IsDurableBeforeReturn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.db")
	s := openTestStore(t, path)
	id := mustInsert(t, s, fields("Tablet", "Frank", "2024-06-01", "New"))

	other, err := sql.Open(db.DriverSQLite, path)
	require.NoError(t, err)
	defer other.Close()

	var model string
	require.NoError(t, other.QueryRow(`SELECT model FROM inventory WHERE id = ?`, id).Scan(&model))
	assert.Equal(t, "Tablet", model)
}

func TestUpdate_FullReplace(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id := mustInsert(t, s, Fields{
		Model: "Laptop", PreviousUser: ns("Zed"), CurrentUser: "Alice",
		TransferDate: "2024-01-10", Condition: ns("New"), Notes: ns("charger included"),
	})

	f := Fields{Model: "Laptop Pro", CurrentUser: "Bob", TransferDate: "2024-03-01", Condition: ns("Fair")}
	require.NoError(t, s.Update(ctx, id, f))

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, Record{ID: id, Fields: f}, *got)
}

func TestUpdate_MissingIDIsNoop(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustInsert(t, s, fields("Laptop", "Alice", "2024-01-10", "New"))

	before, err := s.All(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Update(ctx, 999, fields("Ghost", "Nobody", "2024-01-01", "")))

	after, err := s.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestDelete_RemovesExactlyOneAndIsRepeatable(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := mustInsert(t, s, fields("A", "u", "2024-01-01", ""))
	b := mustInsert(t, s, fields("B", "u", "2024-01-01", ""))
	c := mustInsert(t, s, fields("C", "u", "2024-01-01", ""))

	require.NoError(t, s.Delete(ctx, b))
	require.NoError(t, s.Delete(ctx, b))
	require.NoError(t, s.Delete(ctx, 12345))

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{c, a}, ids(all))

	_, err = s.Get(ctx, b)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestList_Scenario(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id1 := mustInsert(t, s, fields("Laptop X1", "Alice", "2024-01-10", "New"))
	id2 := mustInsert(t, s, fields("Laptop X2", "Bob", "2024-02-15", "Good"))
	assert.Equal(t, int64(1), id1)
	assert.Equal(t, int64(2), id2)

	res, err := s.List(ctx, ListQuery{Condition: "New"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(res.Records))
	assert.Equal(t, int64(1), res.TotalPages)

	res, err = s.List(ctx, ListQuery{Search: "1"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(res.Records))

	res, err = s.List(ctx, ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1}, ids(res.Records))
}

func TestList_NumericSearchIgnoresOtherFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustInsert(t, s, fields("Laptop X1", "Alice", "2024-01-10", "New"))
	mustInsert(t, s, fields("Laptop X2", "Bob", "2024-02-15", "Good"))

	res, err := s.List(ctx, ListQuery{Search: "2", Condition: "Damaged", StartDate: "2030-01-01", EndDate: "2030-12-31"})
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids(res.Records))
	assert.Equal(t, int64(1), res.TotalPages)

	for _, search := range []string{"42", "0", "99999999999999999999999"} {
		res, err = s.List(ctx, ListQuery{Search: search})
		require.NoError(t, err, search)
		assert.Empty(t, res.Records, search)
		assert.Equal(t, int64(0), res.TotalPages, search)
	}
}

func TestList_TextSearch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := mustInsert(t, s, Fields{Model: "ThinkPad T14", CurrentUser: "Alice", TransferDate: "2024-01-01"})
	b := mustInsert(t, s, Fields{Model: "Monitor", CurrentUser: "Bob Thinker", TransferDate: "2024-01-02"})
	c := mustInsert(t, s, Fields{Model: "Mouse", CurrentUser: "Carol", TransferDate: "2024-01-03", Notes: ns("returned by THINK team")})
	mustInsert(t, s, Fields{Model: "Keyboard", CurrentUser: "Dan", TransferDate: "2024-01-04", PreviousUser: ns("think")})
	d := mustInsert(t, s, Fields{Model: "100% cotton bag", CurrentUser: "Eve", TransferDate: "2024-01-05"})

	// model / currentUser / notes のどれか（previousUser は対象外）、大文字小文字は無視
	res, err := s.List(ctx, ListQuery{Search: "think"})
	require.NoError(t, err)
	assert.Equal(t, []int64{c, b, a}, ids(res.Records))

	// LIKE のワイルドカードは文字どおりに扱う
	res, err = s.List(ctx, ListQuery{Search: "%"})
	require.NoError(t, err)
	assert.Equal(t, []int64{d}, ids(res.Records))

	res, err = s.List(ctx, ListQuery{Search: "_"})
	require.NoError(t, err)
	assert.Empty(t, res.Records)
}

func TestList_ConditionAndDateRange(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := mustInsert(t, s, fields("A", "u", "2024-01-01", "Good"))
	b := mustInsert(t, s, fields("B", "u", "2024-01-15", "Good"))
	c := mustInsert(t, s, fields("C", "u", "2024-01-31", "Good"))
	mustInsert(t, s, fields("D", "u", "2024-02-01", "Good"))
	mustInsert(t, s, fields("E", "u", "2024-01-15", "Damaged"))

	// 範囲は両端を含む
	res, err := s.List(ctx, ListQuery{Condition: "Good", StartDate: "2024-01-01", EndDate: "2024-01-31"})
	require.NoError(t, err)
	assert.Equal(t, []int64{c, b, a}, ids(res.Records))

	// 片方だけの日付は無視される
	res, err = s.List(ctx, ListQuery{Condition: "Good", StartDate: "2024-01-20"})
	require.NoError(t, err)
	assert.Len(t, res.Records, 4)

	res, err = s.List(ctx, ListQuery{Condition: "good"})
	require.NoError(t, err)
	assert.Empty(t, res.Records)

	res, err = s.List(ctx, ListQuery{Search: "B", Condition: "Good"})
	require.NoError(t, err)
	assert.Equal(t, []int64{b}, ids(res.Records))
}

func TestList_PaginationLaw(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	conditions := []string{"New", "Good", "Fair", "Damaged", ""}
	for i := 0; i < 23; i++ {
		mustInsert(t, s, fields(fmt.Sprintf("Item %02d", i), "u", fmt.Sprintf("2024-01-%02d", i+1), conditions[i%len(conditions)]))
	}

	for _, filter := range []ListQuery{{}, {Condition: "Good"}, {Search: "item 1"}} {
		full, err := s.List(ctx, ListQuery{Search: filter.Search, Condition: filter.Condition, Limit: 1000})
		require.NoError(t, err)
		want := ids(full.Records)

		for limit := 1; limit <= 8; limit++ {
			first, err := s.List(ctx, ListQuery{Search: filter.Search, Condition: filter.Condition, Page: 1, Limit: limit})
			require.NoError(t, err)
			assert.Equal(t, (int64(len(want))+int64(limit)-1)/int64(limit), first.TotalPages)

			var got []int64
			for page := 1; int64(page) <= first.TotalPages; page++ {
				res, err := s.List(ctx, ListQuery{Search: filter.Search, Condition: filter.Condition, Page: page, Limit: limit})
				require.NoError(t, err)
				assert.LessOrEqual(t, len(res.Records), limit)
				assert.Equal(t, int64(len(want)), res.TotalItems)
				got = append(got, ids(res.Records)...)
			}
			assert.Equal(t, want, got, "filter=%+v limit=%d", filter, limit)
		}
	}
}

func TestList_PagePastTheEnd(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	for i := 0; i < 3; i++ {
		mustInsert(t, s, fields("X", "u", "2024-01-01", ""))
	}

	res, err := s.List(ctx, ListQuery{Page: 5, Limit: 10})
	require.NoError(t, err)
	assert.NotNil(t, res.Records)
	assert.Empty(t, res.Records)
	assert.Equal(t, int64(1), res.TotalPages)
}

func TestList_Defaults(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	for i := 0; i < 12; i++ {
		mustInsert(t, s, fields("X", "u", "2024-01-01", ""))
	}

	res, err := s.List(ctx, ListQuery{Page: 0, Limit: -3})
	require.NoError(t, err)
	assert.Len(t, res.Records, DefaultLimit)
	assert.Equal(t, int64(12), res.Records[0].ID)
	assert.Equal(t, int64(2), res.TotalPages)
}

func TestBuildWhere(t *testing.T) {
	where, args := buildWhere(ListQuery{Search: "7", Condition: "New"}, db.DriverSQLite)
	assert.Equal(t, " WHERE id = ?", where)
	assert.Equal(t, []any{int64(7)}, args)

	where, args = buildWhere(ListQuery{}, db.DriverSQLite)
	assert.Equal(t, " WHERE 1=1", where)
	assert.Empty(t, args)

	_, args = buildWhere(ListQuery{Search: "50%_off!", StartDate: "2024-01-01", EndDate: "2024-12-31"}, db.DriverSQLite)
	assert.Equal(t, []any{"%50!%!_off!!%", "%50!%!_off!!%", "%50!%!_off!!%", "2024-01-01", "2024-12-31"}, args)

	where, args = buildWhere(ListQuery{Search: "Écran"}, db.DriverSQLite)
	assert.Contains(t, where, db.FoldFunc+"(model)")
	assert.Equal(t, "%écran%", args[0])

	where, args = buildWhere(ListQuery{Search: "Écran"}, db.DriverMySQL)
	assert.Contains(t, where, "LOWER(model)")
	assert.Equal(t, "%écran%", args[0])
}

func TestList_NonASCIISearchIgnoresCase(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := mustInsert(t, s, Fields{Model: "Écran Dell", CurrentUser: "Émile", TransferDate: "2024-01-01"})
	b := mustInsert(t, s, Fields{Model: "ÖLFILTER", CurrentUser: "Jürgen", TransferDate: "2024-01-02", Notes: ns("Ärger mit Lüfter")})
	c := mustInsert(t, s, Fields{Model: "ノートPC", CurrentUser: "田中", TransferDate: "2024-01-03"})

	cases := []struct {
		search string
		want   []int64
	}{
		{"Écran", []int64{a}},
		{"écran", []int64{a}},
		{"ÉCRAN", []int64{a}},
		{"Émile", []int64{a}},
		{"ölfilter", []int64{b}},
		{"JÜRGEN", []int64{b}},
		{"ärger", []int64{b}},
		{"ノート", []int64{c}},
		{"pc", []int64{c}},
		{"田中", []int64{c}},
	}
	for _, tc := range cases {
		res, err := s.List(ctx, ListQuery{Search: tc.search})
		require.NoError(t, err, tc.search)
		assert.Equal(t, tc.want, ids(res.Records), tc.search)
	}
}

func TestList_HugePageOrLimit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustInsert(t, s, fields("X", "u", "2024-01-01", ""))

	for _, page := range []int{math.MaxInt64/10 + 2, math.MaxInt64/3 + 1, math.MaxInt64} {
		res, err := s.List(ctx, ListQuery{Page: page, Limit: 10})
		require.NoError(t, err, page)
		assert.Empty(t, res.Records, page)
		assert.Equal(t, int64(1), res.TotalPages, page)
	}

	res, err := s.List(ctx, ListQuery{Page: 1, Limit: math.MaxInt64})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(res.Records))
	assert.Equal(t, int64(1), res.TotalPages)

	res, err = s.List(ctx, ListQuery{Page: 2, Limit: math.MaxInt64})
	require.NoError(t, err)
	assert.Empty(t, res.Records)
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, int64(0), totalPages(0, 10))
	assert.Equal(t, int64(1), totalPages(1, 10))
	assert.Equal(t, int64(1), totalPages(10, 10))
	assert.Equal(t, int64(2), totalPages(11, 10))
	assert.Equal(t, int64(1), totalPages(5, math.MaxInt64))
}
