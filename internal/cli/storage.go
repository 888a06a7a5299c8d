package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wwwzy/CosmoAgent/internal/storage"
)

// storageCmd represents the storage command
var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "管理存储和数据库",
	Long:  `提供查看数据库概况、清理工具调用记录和问答历史的命令。`,
}

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "显示数据库统计概况",
	Run:   runInfo,
}

// pruneCmd represents the prune command
var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "清理旧的工具调用记录和问答历史",
	Long:  `删除指定天数之前的工具调用记录和问答历史。`,
	Run:   runPrune,
}

var pruneDays int

func init() {
	pruneCmd.Flags().IntVar(&pruneDays, "days", 0, "保留最近 N 天的记录")

	rootCmd.AddCommand(storageCmd)
	storageCmd.AddCommand(infoCmd)
	storageCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	if pruneDays <= 0 {
		fmt.Println("Error: must specify --days")
		cmd.Usage()
		os.Exit(1)
	}

	if cfg == nil {
		fmt.Println("Config not loaded")
		os.Exit(1)
	}

	fmt.Println("Opening database...")
	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		fmt.Printf("Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	before := time.Now().UTC().AddDate(0, 0, -pruneDays)
	fmt.Printf("Pruning records older than %d days (before %s)...\n", pruneDays, before.Format(time.RFC3339))

	invocations, err := store.DeleteToolInvocationsBefore(ctx, before)
	if err != nil {
		fmt.Printf("Error pruning tool invocations: %v\n", err)
		os.Exit(1)
	}
	history, err := store.DeleteQueryHistoryBefore(ctx, before)
	if err != nil {
		fmt.Printf("Error pruning query history: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Prune completed. Deleted %d invocations, %d history entries.\n", invocations, history)

	if inv, hist, err := store.CountRows(ctx); err == nil {
		fmt.Printf("Remaining: %d invocations, %d history entries\n", inv, hist)
	}
}

func runInfo(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	if cfg == nil {
		fmt.Println("Config not loaded")
		os.Exit(1)
	}

	// 1. 获取数据库文件信息
	dbPath := cfg.Storage.Path
	if !filepath.IsAbs(dbPath) {
		if absPath, err := filepath.Abs(dbPath); err == nil {
			dbPath = absPath
		}
	}

	var dbSizeStr string
	info, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			dbSizeStr = "Not Found (Will be created on first run)"
		} else {
			dbSizeStr = fmt.Sprintf("Error: %v", err)
		}
	} else {
		sizeMB := float64(info.Size()) / 1024 / 1024
		dbSizeStr = fmt.Sprintf("%.2f MB (%s)", sizeMB, dbPath)
	}

	// 2. 连接数据库
	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		fmt.Printf("Database File: %s\n", dbSizeStr)
		fmt.Printf("Error opening database: %v\n", err)
		return
	}
	defer store.Close()

	// 3. 获取统计信息
	invocations, history, err := store.CountRows(ctx)
	if err != nil {
		fmt.Printf("Error counting rows: %v\n", err)
	}

	// 4. 格式化输出
	fmt.Printf("Database File: %s\n\n", dbSizeStr)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "Table\tCount")
	fmt.Fprintln(w, "-----\t-----")
	fmt.Fprintf(w, "ToolInvocations\t%d\n", invocations)
	fmt.Fprintf(w, "QueryHistory\t%d\n", history)
	w.Flush()
}
