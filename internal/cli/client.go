package cli

import (
	"context"
	"fmt"

	"github.com/wwwzy/CosmoAgent/internal/agent"
	"github.com/wwwzy/CosmoAgent/internal/mcp"
	"github.com/wwwzy/CosmoAgent/internal/storage"
)

// connectClient 打开存储、连接工具服务并构建问答客户端。
// 调用方负责关闭返回的 Storage。
func connectClient(ctx context.Context) (*agent.Client, *storage.Storage, error) {
	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("打开存储失败: %w", err)
	}

	remote := mcp.NewClient(cfg.MCP.URL)
	client := agent.NewClient(cfg, log, remote, store)
	if err := client.Connect(ctx); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("连接工具服务失败: %w", err)
	}
	return client, store, nil
}
