package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"dispatchq/dispatch"
	"dispatchq/internal/cache"
	"dispatchq/internal/config"
	"dispatchq/internal/processor"
)

func main() {
	cfg, err := config.New("wellness-dispatcher",
		config.WithMaxConcurrent(3),
		config.WithMaxRetries(3),
		config.WithDashboard(8080),
		config.WithDashboardAuth("admin", "admin", "my-secret-key-1234-5"),
	)
	if err != nil {
		log.Fatal(err)
	}
	if url := os.Getenv("DISPATCHQ_POSTGRES_URL"); url != "" {
		cfg.StorageDriver = config.Postgres
		cfg.PostgresConfig = config.PostgresConfig{ConnectionURL: url}
	}
	if addr := os.Getenv("DISPATCHQ_REDIS_ADDR"); addr != "" {
		cfg.CacheEnabled = true
		cfg.RedisConfig = config.RedisConfig{Address: addr}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	responseCache, err := dispatch.NewResponseCache(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer responseCache.Close()

	chat := processor.NewChatCompletion(
		os.Getenv("COMPLETION_ENDPOINT"),
		os.Getenv("COMPLETION_API_KEY"),
		"gpt-4o-mini",
		responseCache,
	)

	app, err := dispatch.Setup(ctx, cfg, chat.Process)
	if err != nil {
		log.Fatal(err)
	}

	fut := app.Add(processor.ChatRequest{
		AssistantID: "wellness-coach",
		Messages: []cache.Message{
			{Role: "user", Content: "I slept badly this week, any advice?"},
		},
	})
	go func() {
		reply, err := fut.Wait(ctx)
		if err != nil {
			log.Printf("request %s failed: %v", fut.ItemID(), err)
			return
		}
		log.Printf("request %s answered: %s", fut.ItemID(), reply)
	}()

	if err := app.GracefulExit(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
