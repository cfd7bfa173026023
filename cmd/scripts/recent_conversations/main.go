package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/wuwenbin0122/chatgate/internal/conversations"
	"github.com/wuwenbin0122/chatgate/internal/db"
	"github.com/wuwenbin0122/chatgate/internal/utils"
)

// Prints the newest stored exchanges using the same limit policy as the
// HTTP endpoint.
func main() {
	limit := flag.Int("limit", conversations.DefaultLimit, "number of exchanges to print")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx := context.Background()
	postgres, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer postgres.Close()

	reader := conversations.NewReader(postgres, conversations.Options{
		DefaultLimit: cfg.Conversations.DefaultLimit,
		MaxLimit:     cfg.Conversations.MaxLimit,
	})

	records, err := reader.List(ctx, limit, cfg.Auth.Username)
	if err != nil {
		log.Fatalf("list conversations: %v", err)
	}

	fmt.Printf("%d conversations:\n", len(records))
	for _, record := range records {
		fmt.Printf("#%d %s\n  user: %s\n  assistant: %s\n",
			record.ID, record.CreatedAt.Format(time.RFC3339), record.UserMessage, record.AssistantMessage)
	}
}
