package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wwwzy/CosmoAgent/internal/mcp"
	"github.com/wwwzy/CosmoAgent/internal/monitor"
	"github.com/wwwzy/CosmoAgent/internal/webui"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 CosmoAgent HTTP 服务",
	Long: `启动常驻服务。这会初始化数据库、连接工具服务、
启动保留策略后台任务，并暴露 HTTP 问答接口。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. 上下文用于优雅退出
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// 2. 初始化存储并连接工具服务
		fmt.Println("正在初始化存储并连接工具服务...")
		client, store, err := connectClient(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		// 3. 初始化监控管理器
		fmt.Println("正在初始化保留策略任务...")
		cfg.Monitor.Retention.OnError = func(err error) {
			log.Warn("retention collector error", zap.Error(err))
		}
		mgr, err := monitor.NewManager(cfg.Monitor)
		if err != nil {
			return fmt.Errorf("创建监控管理器失败: %w", err)
		}

		ret, err := monitor.NewRetentionCollector(store)
		if err != nil {
			return fmt.Errorf("创建 retention 采集器失败: %w", err)
		}
		mgr.WithRetention(ret)

		if err := mgr.Start(ctx); err != nil {
			return fmt.Errorf("启动管理器失败: %w", err)
		}

		// 4. 启动 HTTP 服务
		srv := webui.NewServer(cfg.Web, log, client, mcp.NewClient(cfg.MCP.URL), store)
		srvErr := make(chan error, 1)
		go func() {
			srvErr <- srv.Run(ctx)
		}()

		// 5. 等待信号
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		fmt.Printf("CosmoAgent 已启动，监听 %s。按 Ctrl+C 停止。\n", cfg.Web.Listen)

		select {
		case sig := <-sigChan:
			fmt.Printf("收到信号: %s, 正在关闭...\n", sig)
			cancel()
		case err := <-srvErr:
			if err != nil {
				fmt.Printf("HTTP 服务异常退出: %v\n", err)
			}
			cancel()
		case <-ctx.Done():
			fmt.Println("上下文已取消, 正在关闭...")
		}

		// 6. 优雅停止
		mgr.Stop()
		if err := mgr.Wait(); err != nil {
			return fmt.Errorf("管理器停止时发生错误: %w", err)
		}

		fmt.Println("关闭完成。")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
