// Package main provides the playlistimport CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCodeForError(err))
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "playlistimport",
		Short: "playlistimport - bulk-import a song list into a Spotify playlist",
		Long: `playlistimport reads a plain-text song list, searches the catalog for each entry,
scores candidates with a fuzzy matcher, and writes a report of what matched.`,
	}

	cobra.OnInitialize(initConfig)

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "JSON config file (default: none, environment only)")

	root.AddCommand(newImportCmd())
	root.AddCommand(newBatchImportCmd())
	root.AddCommand(newAuthCmd())

	return root
}
