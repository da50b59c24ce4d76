package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"inventory-backend/internal/platform/db"
)

const selectColumns = "SELECT id, model, previousUser, currentUser, transferDate, `condition`, notes FROM inventory"

var numericSearch = regexp.MustCompile(`^\d+$`)

// Store はプロセスに1つだけ存在する inventory テーブルの持ち主。
// 書き込みは mu で直列化し、すべて COMMIT してから返す。
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	driver string
	log    *zap.Logger
}

// OpenStore は DB を開いてスキーマを整える。
// SQLite ファイルが壊れていた場合は退避して空のストアで起動する。
func OpenStore(ctx context.Context, cfg db.DatabaseConfig, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Driver == "" {
		cfg.Driver = db.DriverSQLite
	}
	if cfg.Driver == db.DriverSQLite && cfg.Path == "" {
		cfg.Path = db.DefaultPath()
	}

	s, err := openStore(ctx, cfg, log)
	if err == nil || cfg.Driver != db.DriverSQLite || !db.IsCorrupt(err) {
		return s, err
	}

	moved, qerr := db.Quarantine(cfg.Path, time.Now())
	if qerr != nil {
		return nil, errors.Join(err, qerr)
	}
	log.Warn("store file unreadable, starting with an empty inventory",
		zap.String("path", cfg.Path),
		zap.String("moved_to", moved),
		zap.Error(err))
	return openStore(ctx, cfg, log)
}

func openStore(ctx context.Context, cfg db.DatabaseConfig, log *zap.Logger) (*Store, error) {
	conn, err := db.Connect(cfg)
	if err != nil {
		return nil, err
	}
	s, err := NewStore(ctx, conn, cfg.Driver, log)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an open connection and applies the schema.
func NewStore(ctx context.Context, conn *sql.DB, driver string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := migrate(ctx, conn, driver, log); err != nil {
		return nil, err
	}
	return &Store{db: conn, driver: driver, log: log}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// ---- 読み取り ----

// List: フィルタ → id 降順 → ページ切り出し
func (s *Store) List(ctx context.Context, q ListQuery) (ListResult, error) {
	q = q.normalize()
	where, args := buildWhere(q, s.driver)

	s.mu.RLock()
	defer s.mu.RUnlock()

	res := ListResult{Records: []Record{}}
	err := db.ReadOnly(ctx, s.db, func(ctx context.Context, tx db.DBTX) error {
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM inventory"+where, args...).Scan(&res.TotalItems); err != nil {
			return fmt.Errorf("count inventory: %w", err)
		}
		res.TotalPages = totalPages(res.TotalItems, q.Limit)
		// 範囲外のページは空（巨大な page で OFFSET が溢れないよう先に返す）
		if res.TotalItems == 0 || int64(q.Page) > res.TotalPages {
			return nil
		}

		pageArgs := make([]any, 0, len(args)+2)
		pageArgs = append(pageArgs, args...)
		pageArgs = append(pageArgs, q.Limit, q.offset())

		recs, err := queryRecords(ctx, tx, selectColumns+where+" ORDER BY id DESC LIMIT ? OFFSET ?", pageArgs...)
		if err != nil {
			return err
		}
		res.Records = recs
		return nil
	})
	if err != nil {
		return ListResult{}, err
	}
	return res, nil
}

// All: エクスポート用の全件（id 降順）
func (s *Store) All(ctx context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryRecords(ctx, s.db, selectColumns+" ORDER BY id DESC")
}

// Get は見つからなければ sql.ErrNoRows を返す
func (s *Store) Get(ctx context.Context, id int64) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var r Record
	err := s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id).Scan(
		&r.ID, &r.Model, &r.PreviousUser, &r.CurrentUser, &r.TransferDate, &r.Condition, &r.Notes,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ---- 書き込み（すべて COMMIT 後に返る） ----

func (s *Store) Insert(ctx context.Context, f Fields) (int64, error) {
	const q = "INSERT INTO inventory (model, previousUser, currentUser, transferDate, `condition`, notes) VALUES (?, ?, ?, ?, ?, ?)"

	s.mu.Lock()
	defer s.mu.Unlock()

	var id int64
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		res, err := tx.ExecContext(ctx, q, f.Model, f.PreviousUser, f.CurrentUser, f.TransferDate, f.Condition, f.Notes)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("insert inventory item: %w", err)
	}
	return id, nil
}

// Update は全列を置き換える。存在しない id でもエラーにしない（何もしない）。
func (s *Store) Update(ctx context.Context, id int64, f Fields) error {
	const q = "UPDATE inventory SET model = ?, previousUser = ?, currentUser = ?, transferDate = ?, `condition` = ?, notes = ? WHERE id = ?"

	s.mu.Lock()
	defer s.mu.Unlock()

	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		res, err := tx.ExecContext(ctx, q, f.Model, f.PreviousUser, f.CurrentUser, f.TransferDate, f.Condition, f.Notes, id)
		if err != nil {
			return err
		}
		if aff, _ := res.RowsAffected(); aff == 0 {
			s.log.Debug("update matched no rows", zap.Int64("id", id))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update inventory item %d: %w", id, err)
	}
	return nil
}

// Delete も存在しない id は何もしない
func (s *Store) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM inventory WHERE id = ?`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete inventory item %d: %w", id, err)
	}
	return nil
}

// ---- helpers ----

// buildWhere: 数字だけの search は id 完全一致（他の条件は無視）。
// それ以外は search / condition / 日付範囲を AND で結合する。
func buildWhere(q ListQuery, driver string) (string, []any) {
	if numericSearch.MatchString(q.Search) {
		id, err := strconv.ParseInt(q.Search, 10, 64)
		if err != nil {
			// int64 に収まらない id は存在しない
			return " WHERE 1 = 0", nil
		}
		return " WHERE id = ?", []any{id}
	}

	var sb strings.Builder
	args := []any{}
	sb.WriteString(" WHERE 1=1")

	if q.Search != "" {
		fn, term := foldFor(driver, q.Search)
		fmt.Fprintf(&sb, " AND (%[1]s(model) LIKE ? ESCAPE '!' OR %[1]s(currentUser) LIKE ? ESCAPE '!' OR %[1]s(notes) LIKE ? ESCAPE '!')", fn)
		term = "%" + escapeLike(term) + "%"
		args = append(args, term, term, term)
	}
	if q.Condition != "" {
		sb.WriteString(" AND `condition` = ?")
		args = append(args, q.Condition)
	}
	if q.StartDate != "" && q.EndDate != "" {
		sb.WriteString(" AND transferDate BETWEEN ? AND ?")
		args = append(args, q.StartDate, q.EndDate)
	}
	return sb.String(), args
}

// 列側と検索語側で同じ規則で大文字小文字を畳む。
// MySQL の LOWER は Unicode 対応、SQLite は登録済みの関数を使う。
func foldFor(driver, search string) (fn, term string) {
	if driver == db.DriverMySQL {
		return "LOWER", strings.ToLower(search)
	}
	return db.FoldFunc, db.Fold(search)
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string { return likeEscaper.Replace(s) }

func queryRecords(ctx context.Context, tx db.DBTX, query string, args ...any) ([]Record, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select inventory: %w", err)
	}
	defer rows.Close()

	list := []Record{}
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Model, &r.PreviousUser, &r.CurrentUser, &r.TransferDate, &r.Condition, &r.Notes); err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}
