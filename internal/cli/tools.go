package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wwwzy/CosmoAgent/internal/mcp"
)

// toolsCmd represents the tools command
var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "列出工具服务暴露的工具",
	Long:  `连接配置的 MCP 工具服务，打印其暴露的工具名称和描述。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.MCP.ConnectTimeout)
		defer cancel()

		remote := mcp.NewClient(cfg.MCP.URL)
		tools, err := remote.ListTools(ctx)
		if err != nil {
			return fmt.Errorf("获取工具列表失败: %w", err)
		}
		if len(tools) == 0 {
			fmt.Println("工具服务未暴露任何工具。")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "Name\tDescription")
		fmt.Fprintln(w, "----\t-----------")
		for _, t := range tools {
			fmt.Fprintf(w, "%s\t%s\n", t.Name, t.Description)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}
