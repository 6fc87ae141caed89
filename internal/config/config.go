package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server  ServerConfig  `yaml:"server" toml:"server"`
	Site    SiteConfig    `yaml:"site" toml:"site"`
	Request RequestConfig `yaml:"request" toml:"request"`
}

// ServerConfig はTCPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host" toml:"host"` // リッスンするホスト
	Port int    `yaml:"port" toml:"port"` // リッスンするポート番号

	// タイムアウト設定（0 は無効）
	ReadTimeout  time.Duration `yaml:"read_timeout" toml:"read_timeout"`   // リクエスト行の読み込みタイムアウト
	WriteTimeout time.Duration `yaml:"write_timeout" toml:"write_timeout"` // レスポンスの書き込みタイムアウト

	MaxConnections int `yaml:"max_connections" toml:"max_connections"` // 同時接続数の上限（0 は無制限）
}

// SiteConfig は配信するドキュメントルートの設定
type SiteConfig struct {
	Root      string `yaml:"root" toml:"root"`             // ドキュメントルート（作業ディレクトリからの相対パス可）
	IndexFile string `yaml:"index_file" toml:"index_file"` // ディレクトリのインデックスファイル名
}

// RequestConfig はリクエスト読み込みの設定
type RequestConfig struct {
	ChunkSize    int `yaml:"chunk_size" toml:"chunk_size"`         // 1回の読み込みサイズ
	MaxLineBytes int `yaml:"max_line_bytes" toml:"max_line_bytes"` // リクエスト行の最大バイト数
}

// Default はデフォルト設定を返す
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
			MaxConnections: 64,
		},
		Site: SiteConfig{
			Root:      "www",
			IndexFile: "index.html",
		},
		Request: RequestConfig{
			ChunkSize:    1024,
			MaxLineBytes: 8192,
		},
	}
}

// Load は設定を読み込む
// デフォルト値に環境変数を上書きする
func Load() (*Config, error) {
	cfg := Default()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// LoadFile は設定ファイル（YAML または TOML）を読み込む
// 優先順位: 環境変数 > 設定ファイル > デフォルト値
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("YAMLの解析に失敗 (%s): %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("TOMLの解析に失敗 (%s): %w", path, err)
		}
	default:
		return nil, fmt.Errorf("未対応の設定ファイル形式: %s", path)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	// サーバー設定の検証
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("無効なポート番号: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		return fmt.Errorf("タイムアウトに負の値は指定できません")
	}
	if c.Server.MaxConnections < 0 {
		return fmt.Errorf("無効な同時接続数: %d", c.Server.MaxConnections)
	}

	// ドキュメントルートの検証
	if c.Site.Root == "" {
		return fmt.Errorf("ドキュメントルートが設定されていません")
	}
	if c.Site.IndexFile == "" || strings.ContainsAny(c.Site.IndexFile, `/\`) || c.Site.IndexFile == "." || c.Site.IndexFile == ".." {
		return fmt.Errorf("無効なインデックスファイル名: %q", c.Site.IndexFile)
	}

	// リクエスト読み込み設定の検証
	if c.Request.ChunkSize <= 0 {
		return fmt.Errorf("無効なチャンクサイズ: %d", c.Request.ChunkSize)
	}
	if c.Request.MaxLineBytes < c.Request.ChunkSize {
		return fmt.Errorf("リクエスト行の上限 (%d) がチャンクサイズ (%d) より小さい", c.Request.MaxLineBytes, c.Request.ChunkSize)
	}

	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// applyEnv は環境変数で設定を上書きする
func (c *Config) applyEnv() {
	c.Server.Host = getEnvOrDefault("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvAsIntOrDefault("PORT", c.Server.Port)
	c.Site.Root = getEnvOrDefault("DOCUMENT_ROOT", c.Site.Root)
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}
