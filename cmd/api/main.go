// Command api runs only the HTTP API. Configuration comes from config.yaml or
// the environment (API_PORT, RECONCILER_DB_PATH, LOG_LEVEL, ...), which suits
// container deployments where flags are awkward.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/eshaffer321/receipt-reconciler/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	global := &cli.GlobalFlags{ConfigPath: os.Getenv("RECONCILER_CONFIG")}
	if err := cli.RunServe(ctx, os.Stderr, global, &cli.ServeFlags{}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
