package app

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/quietly/quietly/internal/config"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker はワーカーモードで起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// Run はコマンドライン引数に従ってアプリケーションを起動する。
// 引数が空の場合はserveとして動作する。
func Run(w io.Writer, args []string) error {
	root := NewRootCmd(w)
	root.SetArgs(args)
	return root.Execute()
}

// NewRootCmd はquietlyのコマンドツリーを構築する。
// ログ出力先としてwを使用する。
func NewRootCmd(w io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "quietly",
		Short:         "Reading tracker API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          withConfig(w, runServe),
	}

	root.AddCommand(&cobra.Command{
		Use:   string(CommandServe),
		Short: "Start the API server",
		Args:  cobra.NoArgs,
		RunE:  withConfig(w, runServe),
	})
	root.AddCommand(&cobra.Command{
		Use:   string(CommandWorker),
		Short: "Run periodic cleanup jobs",
		Args:  cobra.NoArgs,
		RunE:  withConfig(w, runWorker),
	})
	root.AddCommand(newMigrateCmd(w))
	root.AddCommand(newHealthcheckCmd())

	return root
}

// newMigrateCmd はマイグレーションコマンドを返す。--stepsで適用数を指定でき、負の値でロールバックする。
func newMigrateCmd(w io.Writer) *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   string(CommandMigrate),
		Short: "Apply or roll back database migrations",
		Args:  cobra.NoArgs,
		RunE: withConfig(w, func(cfg *config.Config) error {
			return runMigrate(cfg, steps)
		}),
	}
	cmd.Flags().IntVar(&steps, "steps", 0, "number of migrations to apply (0 = all pending, negative = roll back)")
	return cmd
}

// newHealthcheckCmd は設定の読み込みを行わないヘルスチェックコマンドを返す。
// 環境変数が揃っていないコンテナ内からも実行できるようにする。
func newHealthcheckCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   string(CommandHealthcheck),
		Short: "Probe the local /health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runHealthcheck(healthcheckPort(port))
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "server port (default: $SERVER_PORT or 8080)")
	return cmd
}

// withConfig はInitで設定を読み込んでからfnを実行するRunEを返す。
func withConfig(w io.Writer, fn func(*config.Config) error) func(*cobra.Command, []string) error {
	return func(_ *cobra.Command, _ []string) error {
		cfg, err := Init(w)
		if err != nil {
			return err
		}
		return fn(cfg)
	}
}
