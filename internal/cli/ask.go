package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var askJSON bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "提出单个问题并打印回答",
	Long: `一次性问答模式。连接工具服务，回答一个问题后退出。
适合在脚本里使用，配合 --json 可以得到机器可读的输出。`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigChan
			cancel()
		}()

		client, store, err := connectClient(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		question := strings.Join(args, " ")
		ans, err := client.Ask(ctx, question)
		if err != nil {
			return fmt.Errorf("问答失败: %w", err)
		}

		if askJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(ans)
		}

		if ans.Answer != "" {
			fmt.Println(ans.Answer)
		}
		if ans.ErrorMessage != "" {
			fmt.Fprintf(os.Stderr, "错误: %s\n", ans.ErrorMessage)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().BoolVar(&askJSON, "json", false, "以 JSON 输出完整结果（含轨迹）")
}
