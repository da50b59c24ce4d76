package inventory

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"inventory-backend/internal/platform/db"
)

// condition は MySQL の予約語なのでバッククォートで囲む（SQLite も受け付ける）
const createTableSQLite = `
CREATE TABLE IF NOT EXISTS inventory (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	model        TEXT NOT NULL,
	previousUser TEXT,
	currentUser  TEXT NOT NULL,
	transferDate TEXT NOT NULL,
	` + "`condition`" + ` TEXT,
	notes        TEXT
)`

const createTableMySQL = `
CREATE TABLE IF NOT EXISTS inventory (
	id           BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
	model        TEXT NOT NULL,
	previousUser TEXT,
	currentUser  TEXT NOT NULL,
	transferDate VARCHAR(32) NOT NULL,
	` + "`condition`" + ` VARCHAR(64),
	notes        TEXT
)`

// 旧バージョンのDBには notes 列が無い
const addNotesColumn = `ALTER TABLE inventory ADD COLUMN notes TEXT`

func createTableSQL(driver string) string {
	if driver == db.DriverMySQL {
		return createTableMySQL
	}
	return createTableSQLite
}

// migrate: テーブル作成 → notes 列の追加。何度実行しても同じ結果になる。
// COMMIT まで終わってから返るので、新規作成した空のストアもこの時点でディスク上に存在する。
func migrate(ctx context.Context, conn *sql.DB, driver string, log *zap.Logger) error {
	return db.RunInTx(ctx, conn, nil, func(ctx context.Context, tx db.DBTX) error {
		if _, err := tx.ExecContext(ctx, createTableSQL(driver)); err != nil {
			return fmt.Errorf("create inventory table: %w", err)
		}

		has, err := hasColumn(ctx, tx, driver, "notes")
		if err != nil {
			return fmt.Errorf("inspect inventory columns: %w", err)
		}
		if has {
			return nil
		}

		if _, err := tx.ExecContext(ctx, addNotesColumn); err != nil {
			// 既に存在する場合はスキップ（致命的エラーにしない）
			if db.IsDuplicateColumn(err) {
				return nil
			}
			return fmt.Errorf("add notes column: %w", err)
		}
		log.Info("added notes column to inventory table")
		return nil
	})
}

func hasColumn(ctx context.Context, tx db.DBTX, driver, column string) (bool, error) {
	var q string
	if driver == db.DriverMySQL {
		q = `SELECT COUNT(*) FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = 'inventory' AND column_name = ?`
	} else {
		q = `SELECT COUNT(*) FROM pragma_table_info('inventory') WHERE name = ?`
	}
	var n int
	if err := tx.QueryRowContext(ctx, q, column).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}
