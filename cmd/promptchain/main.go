// Package main 是 PromptChain 的 CLI 入口
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/KodaTao/PromptChain/pkg/app"
	"github.com/KodaTao/PromptChain/pkg/chain"
	"github.com/KodaTao/PromptChain/pkg/history"
	"github.com/KodaTao/PromptChain/pkg/llm"
	"github.com/KodaTao/PromptChain/pkg/observability"
	"github.com/KodaTao/PromptChain/pkg/server"
)

// Version 版本号
const Version = "v0.1.0"

// DefaultInput 未指定 --input 时使用的示例文本
const DefaultInput = "The new laptop model features a 3.5 GHz octa-core processor, 16GB of RAM, and a 1TB NVMe SSD."

var cfgFile string

// chainFlags 链路相关的命令行参数
type chainFlags struct {
	approach    string
	verbose     bool
	model       string
	temperature float64
	endpoint    string
	timeout     time.Duration
}

func main() {
	// .env 不覆盖已存在的环境变量
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, formatError(err))
		os.Exit(1)
	}
}

// newRootCmd 创建根命令：执行一次链路
func newRootCmd() *cobra.Command {
	var (
		flags chainFlags
		input string
	)

	rootCmd := &cobra.Command{
		Use:   "promptchain",
		Short: "PromptChain - two-stage prompt chaining for structured extraction",
		Long: `PromptChain extracts technical specifications from free text with one LLM call,
then transforms them into validated JSON with a second call.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Shutdown()

			name, err := resolveApproach(flags.approach, a.GetConfig())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Running prompt chaining with approach: %s\n", name)

			record, err := a.Run(cmd.Context(), name, input, flags.apply(cmd, a.GetConfig()))
			if err != nil {
				return err
			}
			fmt.Fprintln(out, record.JSON())
			return nil
		},
	}

	// 全局 flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	addChainFlags(rootCmd, &flags)
	rootCmd.Flags().StringVarP(&input, "input", "i", DefaultInput, "Text to extract specifications from")

	// 添加子命令
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(batchCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

// addChainFlags 注册链路参数
func addChainFlags(cmd *cobra.Command, f *chainFlags) {
	cmd.Flags().StringVarP(&f.approach, "approach", "a", "", "Approach: raw, openai (framework-a), genai (framework-b)")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Print each stage to stderr")
	cmd.Flags().StringVar(&f.model, "model", "", "Model name (default from config)")
	cmd.Flags().Float64Var(&f.temperature, "temperature", 0, "Sampling temperature")
	cmd.Flags().StringVar(&f.endpoint, "endpoint", "", "Override the provider base URL")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Per-call timeout (default from llm.timeout)")
}

// apply 用命令行参数覆盖配置中的链路参数
func (f *chainFlags) apply(cmd *cobra.Command, config *app.Config) chain.Config {
	cfg := config.ChainConfig()
	cfg.Verbose = f.verbose || envVerbose()
	cfg.Model = f.model
	cfg.Endpoint = f.endpoint
	if cmd.Flags().Changed("temperature") {
		cfg.Temperature = f.temperature
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Timeout = f.timeout
	}
	return cfg
}

// serveCmd 启动 HTTP 服务器
func serveCmd() *cobra.Command {
	var port int
	var host string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long:  `Start the PromptChain HTTP server to run chains over a JSON API.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(func(c *app.Config) {
				// 命令行参数覆盖配置
				if port != 0 {
					c.Server.Port = port
				}
				if host != "" {
					c.Server.Host = host
				}
			})
			if err != nil {
				return err
			}
			defer a.Shutdown()

			config := a.GetConfig()
			srv := server.NewServer(a, &server.ServerConfig{
				Host: config.Server.Host,
				Port: config.Server.Port,
				Mode: config.Server.Mode,
			})

			// ctx 在收到 SIGINT/SIGTERM 时取消，服务器随之优雅关闭
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Server port (default 8080)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Server host (default 0.0.0.0)")

	return cmd
}

// historyCmd 列出执行历史
func historyCmd() *cobra.Command {
	var (
		limit  int
		status string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded chain runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			var st *history.RunStatus
			if status != "" {
				s := history.RunStatus(status)
				if s != history.StatusOK && s != history.StatusFailed {
					return fmt.Errorf("invalid status %q (want ok or failed)", status)
				}
				st = &s
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Shutdown()

			repo := a.History()
			if repo == nil {
				return errors.New("run history is disabled (set database.enabled)")
			}
			runs, err := repo.List(st, limit, 0)
			if err != nil {
				return err
			}
			return printRuns(cmd, runs)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status: ok, failed")

	return cmd
}

// printRuns 以表格形式输出执行记录
func printRuns(cmd *cobra.Command, runs []history.Run) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tAPPROACH\tSTATUS\tSTAGE\tDURATION\tCREATED")
	for _, r := range runs {
		stage := r.Stage
		if stage == "" {
			stage = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%dms\t%s\n",
			r.RunID, r.Approach, r.Status, stage, r.DurationMs, r.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

// versionCmd 显示版本信息
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "PromptChain "+Version)
			fmt.Fprintln(cmd.OutOrStdout(), "Two-stage prompt chaining with schema validation")
		},
	}
}

// newApp 加载配置并初始化应用
func newApp(overrides ...app.Option) (*app.App, error) {
	config, err := loadConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	opts := append([]app.Option{app.WithConfig(config)}, overrides...)
	a := app.New(opts...)
	if err := a.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}
	return a, nil
}

// resolveApproach 命令行未指定时使用配置中的后端
func resolveApproach(flag string, config *app.Config) (string, error) {
	if flag == "" {
		flag = config.LLM.Provider
	}
	return llm.NormalizeProvider(flag)
}

// envVerbose VERBOSE 环境变量为 1/true/yes 时开启追踪
func envVerbose() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("VERBOSE"))) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

// formatError 格式化错误输出：error: <kind> at stage <stage>: <cause>
func formatError(err error) string {
	kind := chain.Kind(err)

	var chainErr *chain.ChainError
	if errors.As(err, &chainErr) {
		return fmt.Sprintf("error: %s at stage %s: %v", kind, chainErr.Stage, chainErr.Err)
	}
	if kind == chain.KindInternal {
		return "error: " + err.Error()
	}
	return fmt.Sprintf("error: %s: %v", kind, err)
}

// logRunFailure 记录失败的执行，供 batch 使用
func logRunFailure(ctx context.Context, input string, err error) {
	observability.WarnContext(ctx, "Chain run failed",
		"input_chars", len(input),
		"kind", chain.Kind(err),
		"stage", chain.StageOf(err),
	)
}
