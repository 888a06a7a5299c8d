package main

import (
	"fmt"
	"log"

	"github.com/glebarez/sqlite"
	"github.com/wwwzy/CosmoAgent/internal/storage"
	"gorm.io/gorm"
)

func main() {
	// Connect to the database
	db, err := gorm.Open(sqlite.Open("cosmoagent.db"), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	fmt.Println("--- Verifying CosmoAgent Database ---")

	// Verify ToolInvocations
	var invocationCount int64
	// We need to verify if the table exists first to avoid panic if migration didn't run
	if !db.Migrator().HasTable(&storage.ToolInvocation{}) {
		fmt.Println("Table 'tool_invocations' does not exist yet.")
	} else {
		db.Model(&storage.ToolInvocation{}).Count(&invocationCount)
		fmt.Printf("Total Tool Invocation Records: %d\n", invocationCount)

		if invocationCount > 0 {
			var invocations []storage.ToolInvocation
			db.Order("created_at desc").Limit(5).Find(&invocations)
			fmt.Println("Latest 5 Invocations (Local Time):")
			for _, inv := range invocations {
				params := inv.ParamsJSON
				if len(params) > 50 {
					params = params[:47] + "..."
				}
				fmt.Printf("  [%s] %s [%s] %s\n",
					inv.CreatedAt.Local().Format("2006-01-02 15:04:05"), inv.Tool, inv.Status, params)
			}
		}
	}

	fmt.Println("\n------------------------------------")

	// Verify QueryHistory
	var historyCount int64
	if !db.Migrator().HasTable(&storage.QueryHistory{}) {
		fmt.Println("Table 'query_histories' does not exist yet.")
	} else {
		db.Model(&storage.QueryHistory{}).Count(&historyCount)
		fmt.Printf("Total Query History Records: %d\n", historyCount)

		if historyCount > 0 {
			var entries []storage.QueryHistory
			db.Order("created_at desc").Limit(5).Find(&entries)
			fmt.Println("Latest 5 Questions (Local Time):")
			for _, e := range entries {
				answer := e.Answer
				if len(answer) > 50 {
					answer = answer[:47] + "..."
				}
				fmt.Printf("  [%s] %s -> %s (%.2fs, %d steps)\n",
					e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.Question, answer, e.ElapsedSeconds, e.StepCount)
			}
		}
	}
}
