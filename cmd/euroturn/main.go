package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	turncmd "github.com/louisbranch/euroturn/internal/cmd/turn"
	"github.com/louisbranch/euroturn/internal/platform/config"
)

// main runs one euroturn command and exits with its domain exit status.
func main() {
	cfg, err := turncmd.ParseConfig()
	if err != nil {
		config.Exitf("euroturn: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := &turncmd.Runner{Config: cfg, Out: os.Stdout}
	if err := runner.Command().ExecuteContext(ctx); err != nil {
		stop()
		config.ExitWithCode(turncmd.ExitCode(err), "euroturn: %v", err)
	}
}
