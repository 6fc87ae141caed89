// Package main は静的ファイルサーバーコマンドの実装です
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/fatih/color"

	"webserver/internal/config"
	"webserver/internal/server"
)

func main() {
	// コマンドラインオプション
	var (
		host       = flag.String("host", "", "サーバーのホスト (デフォルト: 0.0.0.0)")
		port       = flag.Int("port", 0, "サーバーのポート (デフォルト: 8080)")
		root       = flag.String("root", "", "ドキュメントルート (デフォルト: www)")
		configPath = flag.String("config", "", "設定ファイル (.yaml / .yml / .toml)")
		help       = flag.Bool("help", false, "ヘルプを表示")
	)

	flag.Parse()

	// ヘルプ表示
	if *help {
		fmt.Println("webserver")
		fmt.Println()
		fmt.Println("使用方法:")
		fmt.Println("  server [オプション]")
		fmt.Println()
		fmt.Println("オプション:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	// 設定を読み込む
	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// コマンドラインオプションで設定を上書き
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *root != "" {
		cfg.Site.Root = *root
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("設定が不正です: %v", err)
	}

	absRoot, err := filepath.Abs(cfg.Site.Root)
	if err != nil {
		log.Fatalf("ドキュメントルートを解決できません: %v", err)
	}
	if _, err := os.Stat(absRoot); os.IsNotExist(err) {
		log.Fatalf("ドキュメントルートが存在しません: %s", absRoot)
	}

	// 起動バナー
	color.New(color.FgCyan, color.Bold).Printf("🌐 %s を配信します: ", absRoot)
	color.New(color.FgGreen).Printf("http://%s\n", cfg.ServerAddress())
	color.New(color.Faint).Println("Ctrl+C で停止します")

	srv := server.New(cfg)

	// コンテキストを作成
	ctx := context.Background()

	// サーバーを起動
	if err := srv.Start(ctx); err != nil {
		log.Fatalf("サーバーの起動に失敗しました: %v", err)
	}
}
