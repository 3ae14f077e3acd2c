package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/evcraddock/visitor-kiosk/internal/revision"
	"github.com/evcraddock/visitor-kiosk/internal/web"
)

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the kiosk web UI",
		Long:  "Start an HTTP server for the kiosk web UI and the configuration admin endpoints.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "port to listen on (default: kiosk.port from the config)")

	return cmd
}

func runServe(cmd *cobra.Command, port int) error {
	cfg, logger, client, err := loadKiosk()
	if err != nil {
		return err
	}

	database, err := openDB()
	if err != nil {
		return err
	}
	defer closeDB(database)

	mgr := revision.NewManager(getConfigPath(), revision.NewRepository(database))
	if added, err := mgr.ArchiveCurrent(revision.SourceCLI); err != nil {
		logger.Warn("archiving current config failed", "error", err)
	} else if added {
		logger.Info("archived current config", "version", cfg.Version)
	}

	srv, err := web.NewServer(cfg, client, web.Options{Revisions: mgr, Logger: logger})
	if err != nil {
		return err
	}

	if port == 0 {
		port = cfg.Kiosk.Port
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.ListenAndServe(ctx, port)
}
