// Command dtrack is the reproducible-pipeline and large-file-versioning
// CLI. See internal/cli for the command tree.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/dittotrack/internal/cli"
)

func main() {
	// Ctrl-C cancels the context; running stage commands and in-flight
	// transfers are stopped, and a second signal kills the process.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := cli.NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
