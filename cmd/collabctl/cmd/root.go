// Package cmd contains the CLI commands for collabctl.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/collabhub/collabhub/internal/storage"
)

// defaultDBPath is the default database path, can be overridden via COLLABHUB_DB_PATH env var
var defaultDBPath = "./data/collabhub.db"

var (
	// Used for flags
	dbPath  string
	verbose bool
	output  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "collabctl",
	Short: "CollabHub administration tool",
	Long: `collabctl manages a CollabHub database directly, without going
through the HTTP API. It is meant for operators: creating and promoting
accounts, resetting passwords and inspecting ideas and projects.

Examples:
  # List users
  collabctl user list

  # Make someone an admin
  collabctl user promote ada@example.com

  # Mark a project as completed
  collabctl project status <project-id> Completed`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if envPath := os.Getenv("COLLABHUB_DB_PATH"); envPath != "" {
		defaultDBPath = envPath
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultDBPath, "path to SQLite database file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "output format (table, json)")
}

// GetOutput returns the output format.
func GetOutput() string {
	return output
}

// PrintVerbose prints a message only if verbose mode is enabled.
func PrintVerbose(w io.Writer, format string, args ...any) {
	if verbose {
		fmt.Fprintf(w, format+"\n", args...)
	}
}

// printJSON writes v indented when --output json is selected.
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(data))
	return nil
}

// openDatabase opens an existing SQLite database and brings its schema up to date.
func openDatabase(path string) (*storage.SQLiteStorage, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("database file not found: %s", path)
	}

	store := storage.NewSQLiteStorage(path)
	if err := store.Open(); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return store, nil
}

// truncate shortens s to n runes for table output.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
