package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Persistent flags shared by every command
var (
	configDir string
	debug     bool
)

// app is built in the root PersistentPreRunE and closed after the command
var app *App

var rootCmd = &cobra.Command{
	Use:   "sessionvault",
	Short: "Browse recorded agent conversations",
	Long: `sessionvault reads the JSONL logs an AI coding agent writes per project,
rebuilds each conversation from its parent links, and serves them to the
terminal, to MCP clients, or to a SQLite export.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		a, err := NewApp(configDir, debug)
		if err != nil {
			return err
		}
		app = a
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if app != nil {
			app.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "config directory (default ~/.sessionvault)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newConfigCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
