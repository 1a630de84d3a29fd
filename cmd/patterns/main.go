// Command patterns detects chart patterns in OHLCV candle series.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"chart-patterns/internal/cli"
	"chart-patterns/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCmd(nil, logging.NewLogger())
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
