// Package cli defines the cobra command tree for the visitor kiosk.
package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/evcraddock/visitor-kiosk/internal/db"
)

var (
	flagFormat string
	flagDB     string
	flagConfig string
)

// NewRootCmd creates the root cobra command with global flags.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vk",
		Short: "Visitor sign-in kiosk",
		Long: "A visitor sign-in kiosk. Serve the kiosk web UI, sign visitors in and out from the command line, " +
			"and manage the versioned kiosk configuration.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadDotEnv()
		},
	}

	root.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format (text|json)")
	root.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite revision archive path (default: ~/.visitor-kiosk/kiosk.db)")
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "kiosk configuration document (default: formConfig.json)")

	root.AddCommand(
		newServeCmd(),
		newSignInCmd(),
		newSignOutCmd(),
		newRateCmd(),
		newLocationsCmd(),
		newNearestCmd(),
		newConfigCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)

	return root
}

// loadDotEnv loads .env from the working directory when present.
// Variables already set in the environment win.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

// openDB opens the revision archive using the --db flag, VK_DB, the saved
// preference or the default path.
func openDB() (*sql.DB, error) {
	path, err := getDBPath()
	if err != nil {
		return nil, err
	}
	return db.Open(path)
}

// isJSON returns true if the --format flag is set to json.
func isJSON() bool {
	return flagFormat == "json"
}

// closeDB closes the database, logging any error to stderr.
func closeDB(database *sql.DB) {
	if err := database.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing database: %v\n", err)
	}
}
