// Command provenancectl runs operator tasks against the ledger stores:
// schema migrations, integrity verification and trace dumps.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand(openEnv)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "provenancectl: %v\n", err)
		os.Exit(1)
	}
}
