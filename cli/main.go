package main

import (
	"context"
	"errors"
	"os"

	"go.dedis.ch/clarity/cli/local"
	"go.dedis.ch/clarity/internal/config"
	"go.dedis.ch/clarity/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.Exitf("%v", err)
	}
	if err := logging.SetLevel(cfg.LogLevel); err != nil {
		config.Exitf("log level: %v", err)
	}

	runner := local.NewRunner(cfg, os.Stdin, os.Stdout, os.Stderr)
	err = runner.Run(context.Background(), os.Args)
	if errors.Is(err, local.ErrFailed) {
		os.Exit(1)
	}
	if err != nil {
		config.Exitf("%v", err)
	}
}
