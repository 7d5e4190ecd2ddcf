package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"mediatools/internal/batch"
	"mediatools/internal/compose"
	"mediatools/internal/infra"
	"mediatools/internal/presets"
	"mediatools/internal/storage"
)

const usage = `usage: mediatools <command> [flags] FILE...

commands:
  compose   place products on a canvas and export them
  convert   re-encode images in another format
  psd       build a layered Photoshop document for one product
  presets   list or show remembered settings
`

const (
	exitFailure   = 1
	exitConfig    = 2
	exitTooLarge  = 3
	exitAllFailed = 4
	exitCancelled = 130
)

type app struct {
	cfg          *infra.Config
	logger       infra.Logger
	store        *storage.FileStore
	presets      *presets.Store
	orchestrator *batch.Orchestrator
	stdout       io.Writer
}

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "mediatools:", err)
		os.Exit(exitConfig)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, logger, os.Stdout)
	if err != nil {
		logger.Fatal().Err(err).Msg("mediatools: setup failed")
	}
	if err := a.run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		logger.Error().Err(err).Msg("mediatools: failed")
		stop()
		os.Exit(exitCode(err))
	}
}

func newApp(cfg *infra.Config, logger infra.Logger, stdout io.Writer) (*app, error) {
	store, err := storage.NewFileStore(cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	presetStore, err := presets.NewStore(cfg.PresetsPath)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:          cfg,
		logger:       logger,
		store:        store,
		presets:      presetStore,
		orchestrator: batch.New(batch.WithLogger(logger), batch.WithWorkers(cfg.Workers)),
		stdout:       stdout,
	}, nil
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.stdout, usage)
		return &compose.ValidationError{Field: "command", Reason: "missing"}
	}
	switch args[0] {
	case "compose":
		return a.runCompose(ctx, args[1:])
	case "convert":
		return a.runConvert(ctx, args[1:])
	case "psd":
		return a.runPSD(ctx, args[1:])
	case "presets":
		return a.runPresets(ctx, args[1:])
	case "help", "-h", "--help":
		fmt.Fprint(a.stdout, usage)
		return nil
	}
	fmt.Fprint(a.stdout, usage)
	return &compose.ValidationError{Field: "command", Reason: fmt.Sprintf("unknown command %q", args[0])}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, compose.ErrTooLarge):
		return exitTooLarge
	case errors.Is(err, compose.ErrConfig):
		return exitConfig
	case errors.Is(err, batch.ErrAllFailed):
		return exitAllFailed
	case errors.Is(err, context.Canceled):
		return exitCancelled
	}
	return exitFailure
}
