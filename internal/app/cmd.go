package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はニュースグリッドのWebサーバーとして起動することを示す。
	CommandServe Command = "serve"
	// CommandUpstream は開発用のニュース集約サーバーとして起動することを示す。
	CommandUpstream Command = "upstream"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "serve":
		return CommandServe
	case "upstream":
		return CommandUpstream
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}
