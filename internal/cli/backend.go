package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/evcraddock/visitor-kiosk/internal/config"
	"github.com/evcraddock/visitor-kiosk/internal/logging"
	"github.com/evcraddock/visitor-kiosk/internal/servicenow"
)

// loadKiosk loads the kiosk configuration and builds its logger and
// backend client.
func loadKiosk() (*config.Config, *slog.Logger, *servicenow.Client, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, nil, nil, err
	}

	logger, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating logger: %w", err)
	}

	client, err := servicenow.New(cfg.ServiceNow, cfg.FormFields, servicenow.WithLogger(logger))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating backend client: %w", err)
	}
	return cfg, logger, client, nil
}
