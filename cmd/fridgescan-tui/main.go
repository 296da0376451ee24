package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/vbonduro/fridgescan/internal/app"
	"github.com/vbonduro/fridgescan/internal/config"
	"github.com/vbonduro/fridgescan/internal/logging"
	"github.com/vbonduro/fridgescan/internal/tui"
)

func main() {
	cfg := config.Load()
	if cfg.LogFile == "" {
		// Log lines on stderr would tear the alternate screen.
		cfg.LogFile = "fridgescan-tui.log"
	}

	logger, cleanup, err := logging.New("tui", cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		fmt.Fprintln(os.Stderr, "fridgescan-tui:", err)
		return
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	events, cancel := a.Bus.Subscribe()
	defer cancel()

	// A nil *camera.Controller must not become a non-nil interface.
	var scanner tui.Scanner
	if a.Scanner != nil {
		scanner = a.Scanner
	}
	if err := tui.Run(tui.New(ctx, a.Service, scanner, events)); err != nil {
		logger.Error("terminal ui failed", "error", err)
		fmt.Fprintln(os.Stderr, "fridgescan-tui:", err)
	}
}
