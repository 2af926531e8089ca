package main

import (
	"context"
	"log"
	"os"

	"github.com/ignite/feed-aggregator/internal/app"
	"github.com/ignite/feed-aggregator/internal/cli"
	"github.com/ignite/feed-aggregator/internal/config"
)

func main() {
	configPath := "config/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		configPath = v
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("[blacklistctl] load config: %v", err)
	}

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		log.Fatalf("[blacklistctl] %v", err)
	}

	cli.Configure(a.Blacklist, a.Command, a.Filter)
	err = cli.Execute()
	a.Close()
	if err != nil {
		os.Exit(1)
	}
}
