package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/KodaTao/PromptChain/pkg/chain"
	"github.com/KodaTao/PromptChain/pkg/specs"
)

// DefaultConcurrency batch 默认并发数
const DefaultConcurrency = 4

// BatchResult 单条输入的执行结果
type BatchResult struct {
	Input  string          `json:"input"`
	Result *specs.Record   `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
	Kind   chain.ErrorKind `json:"kind,omitempty"`
	Stage  chain.Stage     `json:"stage,omitempty"`
}

// runFunc 执行一次链路
type runFunc func(ctx context.Context, input string) (specs.Record, error)

// batchCmd 对文件中的每一行执行链路
func batchCmd() *cobra.Command {
	var (
		flags       chainFlags
		file        string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run the chain for every line of a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			inputs, err := readInputs(f)
			f.Close()
			if err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Shutdown()

			name, err := resolveApproach(flags.approach, a.GetConfig())
			if err != nil {
				return err
			}
			cfg := flags.apply(cmd, a.GetConfig())

			results := runBatch(cmd.Context(), inputs, concurrency, func(ctx context.Context, input string) (specs.Record, error) {
				return a.Run(ctx, name, input, cfg)
			})

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(results); err != nil {
				return err
			}

			if failed := countFailed(results); failed > 0 {
				return fmt.Errorf("%d of %d inputs failed", failed, len(results))
			}
			return nil
		},
	}

	addChainFlags(cmd, &flags)
	cmd.Flags().StringVarP(&file, "file", "f", "", "File with one input per line")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", DefaultConcurrency, "Number of chains to run in parallel")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// readInputs 读取非空行作为输入
func readInputs(r io.Reader) ([]string, error) {
	var inputs []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			inputs = append(inputs, line)
		}
	}
	return inputs, scanner.Err()
}

// runBatch 并发执行，结果顺序与输入一致
// 每条输入相互独立，单条失败不会取消其它输入
func runBatch(ctx context.Context, inputs []string, concurrency int, run runFunc) []BatchResult {
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]BatchResult, len(inputs))
	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, input := range inputs {
		g.Go(func() error {
			res := BatchResult{Input: input}
			record, err := run(ctx, input)
			if err != nil {
				logRunFailure(ctx, input, err)
				res.Error = err.Error()
				res.Kind = chain.Kind(err)
				res.Stage = chain.StageOf(err)
			} else {
				res.Result = &record
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func countFailed(results []BatchResult) int {
	n := 0
	for _, r := range results {
		if r.Error != "" {
			n++
		}
	}
	return n
}
