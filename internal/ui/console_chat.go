package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/wwwzy/CosmoAgent/internal/agent"
)

type ConsoleChatUI struct {
	In  io.Reader
	Out io.Writer
}

func (u *ConsoleChatUI) Run(ctx context.Context, backend ChatBackend, opts ChatOptions) error {
	in := u.In
	if in == nil {
		return fmt.Errorf("console ui: In is nil")
	}
	out := u.Out
	if out == nil {
		return fmt.Errorf("console ui: Out is nil")
	}

	reader := bufio.NewReader(in)

	fmt.Fprintln(out, "进入 CosmoAgent 对话模式。输入 exit/quit 退出。")
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "已退出。")
			return nil
		default:
		}

		fmt.Fprint(out, "你: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				fmt.Fprintln(out, "已退出。")
				return nil
			}
			return fmt.Errorf("读取输入失败: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch strings.ToLower(line) {
		case "exit", "quit":
			fmt.Fprintln(out, "已退出。")
			return nil
		}

		ans, err := backend.Ask(ctx, line)
		if err != nil {
			fmt.Fprintf(out, "出错了: %v\n\n", err)
			continue
		}

		printAnswer(out, ans, opts.ShowSteps)
	}
}

func printAnswer(w io.Writer, ans *agent.Answer, showSteps bool) {
	answer := strings.TrimSpace(ans.Answer)
	if answer == "" {
		fmt.Fprintln(w, "助手: (无结果)")
	} else {
		fmt.Fprintf(w, "助手: %s\n", answer)
	}
	if ans.ErrorMessage != "" {
		fmt.Fprintf(w, "  错误: %s\n", ans.ErrorMessage)
	}

	if showSteps && len(ans.Steps) > 0 {
		fmt.Fprintln(w, "  执行轨迹:")
		for i, s := range ans.Steps {
			marker := ""
			if s.Synthetic {
				marker = " (合成)"
			}
			obs := strings.TrimSpace(s.Observation)
			if len(obs) > 120 {
				obs = obs[:120] + "..."
			}
			fmt.Fprintf(w, "    %d. %s%s -> %s\n", i+1, s.Action, marker, obs)
		}
	}
	fmt.Fprintf(w, "  耗时 %.2fs (%d 步)\n\n", ans.ElapsedSeconds, len(ans.Steps))
}
