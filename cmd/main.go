package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yungbote/commerce-backend/internal/app"
	"github.com/yungbote/commerce-backend/internal/platform/envutil"
	"github.com/yungbote/commerce-backend/internal/platform/logger"
)

func main() {
	log, err := logger.New(envutil.Str("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg := app.LoadConfig()
	a, err := app.New(cfg, log)
	if err != nil {
		log.Fatal("app init failed", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		log.Fatal("worker exited", "error", err)
	}
	log.Info("worker stopped")
}
