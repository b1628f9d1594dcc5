package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/andresmejia3/facecam/internal/config"
	"github.com/andresmejia3/facecam/internal/store"
	"github.com/spf13/cobra"
)

var (
	// DB is the database connection shared by subcommands. It is nil when
	// no database is configured.
	DB *store.Store
	// Cfg is the loaded configuration, before per-command flag overrides.
	Cfg *config.Config

	dbURL      string
	configPath string
)

// Version is the application version.
const Version = "0.1.0"

var errNoDatabase = errors.New("no database configured (use --db or POSTGRES_HOST)")

var rootCmd = &cobra.Command{
	Use:     "facecam",
	Short:   "Webcam face detection & LBPH recognition with dataset export",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		Cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if dbURL == "" {
			dbURL = Cfg.Database.ConnString()
		}

		// Persistence is optional for the capture loop
		if dbURL == "" {
			return nil
		}
		DB, err = store.New(cmd.Context(), dbURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if DB != nil {
			// Use Background here because the main context might be cancelled already (due to Ctrl+C)
			// and we still need to send the "Close" command to the DB.
			DB.Close(context.Background())
		}
	},
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// requireDB is used by commands that only make sense with persistence.
func requireDB() error {
	if DB == nil {
		return errNoDatabase
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "PostgreSQL connection string (default: built from POSTGRES_* env, disabled if unset)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
}
