// Command topnews は最新ニュースのグリッドを表示するWebサーバー。
//
// 使い方:
//
//	topnews [serve]      ニュースグリッドのWebサーバーを起動する（デフォルト）
//	topnews upstream     開発用のニュース集約サーバーを起動する
//	topnews healthcheck  /health を確認する（Dockerヘルスチェック用）
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/topnews/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
