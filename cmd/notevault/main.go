// notevault は小紅書とTwitter/Xの投稿を解決・正規化して保管庫に
// 蓄積するサービスのエントリーポイント。
// サブコマンド: serve（デフォルト） / worker / migrate / dedupe / healthcheck
package main

import (
	"log/slog"
	"os"

	"github.com/hitoshi/notevault/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		slog.Error("application exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
