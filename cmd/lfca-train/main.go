// Command lfca-train trains the light-field compressed-sensing reconstruction
// network on a .lfd dataset.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/tsawler/go-lfca/config"
	"github.com/tsawler/go-lfca/lightfield"
	"github.com/tsawler/go-lfca/training"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Parse(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 2
	}

	if err := os.MkdirAll(cfg.WorkDir, 0755); err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}
	logger, err := training.NewLogger(stderr, cfg.LogPath())
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}
	defer logger.Close()

	logger.Infof("%s", cfg)

	if err := train(ctx, cfg, logger, stdout); err != nil {
		logger.Warnf("Training failed: %v", err)
		return 1
	}
	return 0
}

func train(ctx context.Context, cfg *config.Config, logger *training.Logger, stdout io.Writer) error {
	store, err := lightfield.ReadDataset(cfg.DataPath)
	if err != nil {
		return err
	}

	session, err := training.NewTrainingSession(training.SessionOptions{
		Config: cfg,
		Store:  store,
		Logger: logger,
		Out:    stdout,
	})
	if err != nil {
		return err
	}
	defer session.Close()

	training.NewModelArchitecturePrinter("LFCA").PrintArchitecture(stdout, session.Network())
	return session.Run(ctx)
}
