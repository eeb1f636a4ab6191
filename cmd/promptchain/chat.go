package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// sendFunc 发送一条消息并返回回复
type sendFunc func(ctx context.Context, message string) (string, error)

// chatCmd 交互式对话，每条消息都是一次独立的调用
func chatCmd() *cobra.Command {
	var flags chainFlags

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat with the configured model",
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
			cfg := flags.apply(cmd, a.GetConfig())

			fmt.Fprintf(cmd.OutOrStdout(), "Chatting with approach: %s (type exit or quit to leave)\n", name)
			return runChat(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(),
				func(ctx context.Context, message string) (string, error) {
					return a.Chat(ctx, name, message, cfg)
				})
		},
	}

	addChainFlags(cmd, &flags)
	return cmd
}

// runChat 读取输入直到 exit/quit/EOF；单条消息失败只输出错误，不退出循环
func runChat(ctx context.Context, in io.Reader, out, errOut io.Writer, send sendFunc) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "You: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		message := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(message) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		reply, err := send(ctx, message)
		if err != nil {
			fmt.Fprintln(errOut, formatError(err))
			continue
		}
		fmt.Fprintf(out, "Assistant: %s\n", strings.TrimSpace(reply))
	}
}
