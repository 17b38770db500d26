package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Run is the process entrypoint used by cmd/ripple. It loads config, builds
// the app, and blocks until SIGINT/SIGTERM.
func Run() int {
	cfg := LoadConfig()
	log := NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := New(cfg, log)
	if err != nil {
		log.Error("app.init.fail", "err", err)
		return 1
	}

	if err := a.Run(ctx); err != nil {
		return 1
	}
	return 0
}
