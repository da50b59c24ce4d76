package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"inventory-backend/internal/platform/db"
)

const (
	DefaultConfigPath = "config/config.yaml"

	ModeDev     = "dev"
	ModeRelease = "release"
)

type ServerConfig struct {
	Port        string   `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type Certs struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type Config struct {
	Version     string            `yaml:"version"`
	Mode        string            `yaml:"mode"`
	Server      ServerConfig      `yaml:"server"`
	DB          db.DatabaseConfig `yaml:"database"`
	StaticDir   string            `yaml:"static_dir"`
	Log         LogConfig         `yaml:"log"`
	Certificate Certs             `yaml:"certificate"`
}

// Load: .env → config.yaml → 環境変数 の順に上書きする。
// 設定ファイルが無い場合はデフォルト値で起動する。
func Load(path string) (*Config, error) {
	// .env が無いのは正常
	_ = godotenv.Load()

	cfg := defaults()

	if path == "" {
		path = DefaultConfigPath
	}
	buf, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("設定ファイルのパース失敗: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("設定ファイルの読み込み失敗: %w", err)
	}

	applyEnv(cfg)

	if cfg.DB.Driver == db.DriverSQLite && cfg.DB.Path == "" {
		cfg.DB.Path = db.DefaultPath()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Mode: ModeRelease,
		Server: ServerConfig{
			Port:        "3000",
			CORSOrigins: []string{"http://localhost:3000"},
		},
		DB: db.DatabaseConfig{
			Driver: db.DriverSQLite,
			Port:   3306,
		},
		StaticDir: "public",
		Log:       LogConfig{Level: "info"},
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("APP_MODE"); v != "" {
		cfg.Mode = v
	}
	if v := os.Getenv("APP_PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("INVENTORY_DB_DRIVER"); v != "" {
		cfg.DB.Driver = v
	}
	if v := os.Getenv("INVENTORY_DB_PATH"); v != "" {
		cfg.DB.Path = v
	}
	if v := os.Getenv("INVENTORY_DB_HOST"); v != "" {
		cfg.DB.Host = v
	}
	if v := os.Getenv("INVENTORY_DB_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DB.Port = n
		}
	}
	if v := os.Getenv("INVENTORY_DB_USER"); v != "" {
		cfg.DB.Username = v
	}
	if v := os.Getenv("INVENTORY_DB_PASSWORD"); v != "" {
		cfg.DB.Password = v
	}
	if v := os.Getenv("INVENTORY_DB_NAME"); v != "" {
		cfg.DB.DBName = v
	}
	if v := os.Getenv("INVENTORY_STATIC_DIR"); v != "" {
		cfg.StaticDir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Mode != ModeDev && c.Mode != ModeRelease {
		return fmt.Errorf("mode must be %q or %q, got %q", ModeDev, ModeRelease, c.Mode)
	}
	if strings.TrimSpace(c.Server.Port) == "" {
		return errors.New("server.port must be provided")
	}

	switch c.DB.Driver {
	case db.DriverSQLite:
		if c.DB.Path == "" {
			return errors.New("database.path must be provided for sqlite3")
		}
	case db.DriverMySQL:
		if c.DB.Host == "" || c.DB.DBName == "" {
			return errors.New("database.host and database.dbname must be provided for mysql")
		}
	default:
		return fmt.Errorf("unsupported database.driver %q", c.DB.Driver)
	}

	if (c.Certificate.Cert == "") != (c.Certificate.Key == "") {
		return errors.New("certificate.cert and certificate.key must be set together")
	}
	return nil
}

// TLS: 証明書が設定されていれば HTTPS で起動する
func (c *Config) TLS() bool {
	return c.Certificate.Cert != "" && c.Certificate.Key != ""
}
