package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"golang.org/x/text/cases"
)

const (
	DriverSQLite = "sqlite3"
	DriverMySQL  = "mysql"

	// 実行ファイルと同じ場所に置くDBファイル名
	DefaultFileName = "inventory.db"

	// SQLite 接続ごとに FoldFunc を登録したドライバ
	sqliteFoldDriver = "sqlite3_fold"

	// FoldFunc は SQLite 上で Fold と同じ規則で大文字小文字を畳む関数名。
	// 組み込みの LOWER は ASCII しか変換しない。
	FoldFunc = "unicode_fold"
)

func init() {
	sql.Register(sqliteFoldDriver, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc(FoldFunc, foldValue, true)
		},
	})
}

// Fold: Unicode の case folding（"Écran" → "écran"）
func Fold(s string) string {
	// Caser は状態を持つので毎回作る
	return cases.Fold().String(s)
}

// NULL はそのまま NULL を返す
func foldValue(v any) any {
	switch t := v.(type) {
	case string:
		return Fold(t)
	case []byte:
		if t == nil {
			return nil
		}
		return Fold(string(t))
	default:
		return v
	}
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
}

// DefaultPath は実行ファイルの隣の inventory.db を返す。
// カレントディレクトリには依存しない。
func DefaultPath() string {
	exe, err := os.Executable()
	if err != nil {
		return DefaultFileName
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(exe), DefaultFileName)
}

func Connect(c DatabaseConfig) (*sql.DB, error) {
	switch c.Driver {
	case DriverSQLite, "":
		return connectSQLite(c.Path)
	case DriverMySQL:
		return connectMySQL(c)
	default:
		return nil, fmt.Errorf("未対応のドライバ: %q", c.Driver)
	}
}

// SQLite はファイル1つが永続状態のすべて。
// journal_mode=DELETE + synchronous=FULL で、COMMIT が返った時点でファイルに反映済みになる。
func connectSQLite(path string) (*sql.DB, error) {
	if path == "" {
		path = DefaultPath()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("DBディレクトリの作成に失敗: %w", err)
		}
	}

	dsn := path + "?_journal_mode=DELETE&_synchronous=FULL&_busy_timeout=5000"
	db, err := sql.Open(sqliteFoldDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("接続準備に失敗: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("DB接続に失敗: %w", err)
	}

	// 書き込みは1本に絞る（SQLITE_BUSY 回避）
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, nil
}

func connectMySQL(c DatabaseConfig) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&tls=false&timeout=3s&readTimeout=5s&writeTimeout=5s&loc=UTC",
		c.Username, c.Password, c.Host, c.Port, c.DBName)

	db, err := sql.Open(DriverMySQL, dsn)
	if err != nil {
		return nil, fmt.Errorf("接続準備に失敗: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("DB接続に失敗: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return db, nil
}

// IsCorrupt: SQLiteファイルが壊れている／DBファイルではない
func IsCorrupt(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrNotADB || se.Code == sqlite3.ErrCorrupt
	}
	return err != nil && strings.Contains(err.Error(), "file is not a database")
}

// Quarantine は壊れたファイルを <path>.corrupt-<unix> に退避して、退避先を返す。
func Quarantine(path string, now time.Time) (string, error) {
	moved := fmt.Sprintf("%s.corrupt-%d", path, now.Unix())
	if err := os.Rename(path, moved); err != nil {
		return "", fmt.Errorf("破損ファイルの退避に失敗: %w", err)
	}
	// ジャーナルが残っていると新しいDBに適用されてしまう
	_ = os.Remove(path + "-journal")
	return moved, nil
}

// IsDuplicateColumn: ALTER TABLE ADD COLUMN の既存カラムエラー
func IsDuplicateColumn(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1060
	}
	return err != nil && strings.Contains(err.Error(), "duplicate column name")
}
