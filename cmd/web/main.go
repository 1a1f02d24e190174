package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bilgisen/cardserve/internal/config"
	"github.com/bilgisen/cardserve/internal/logger"
	"github.com/bilgisen/cardserve/internal/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		return exitCode(err, os.Stdout)
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.LogLevel,
		Output: "stderr",
		Pretty: cfg.Env == "development",
	}); err != nil {
		return exitCode(err, os.Stdout)
	}

	// Wait for interrupt signal to gracefully shut down the server
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = server.New(cfg).Run(ctx)
	return exitCode(err, os.Stdout)
}

// exitCode reports the outcome of a run to the user and returns the process
// status: 0 after an interrupt, 1 for any failure.
func exitCode(err error, out io.Writer) int {
	var inUse *server.PortInUseError
	switch {
	case err == nil:
		fmt.Fprintln(out)
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Server stopped")
		return 0
	case errors.As(err, &inUse):
		fmt.Fprintf(out, "Error: port %d is already in use\n", inUse.Port)
		fmt.Fprintln(out, "Close the program using the port, or change config.Port")
		return 1
	default:
		fmt.Fprintf(out, "Error: %v\n", err)
		return 1
	}
}
