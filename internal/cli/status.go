package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/evcraddock/visitor-kiosk/internal/auth"
	"github.com/evcraddock/visitor-kiosk/internal/config"
)

const pingTimeout = 10 * time.Second

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check configuration and backend connectivity",
		Long:  "Loads the kiosk configuration and checks that the record backend is reachable with the configured credentials.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd)
		},
	}
}

func runStatus(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	path := getConfigPath()

	fmt.Fprintf(out, "Config:   %s\n", path)

	cfg, _, client, err := loadKiosk()
	if err != nil {
		fmt.Fprintf(out, "Status:   ✗ %v\n", err)
		return nil
	}

	fmt.Fprintf(out, "Version:  %s\n", dash(cfg.Version))
	fmt.Fprintf(out, "Instance: %s\n", cfg.ServiceNow.InstanceURL)
	fmt.Fprintf(out, "Table:    %s\n", cfg.ServiceNow.TableName)
	fmt.Fprintf(out, "User:     %s\n", cfg.ServiceNow.Username)
	if cfg.ServiceNow.Password == "" {
		fmt.Fprintln(out, "Password: not configured")
	}
	fmt.Fprintf(out, "Admin:    %s\n", adminStatus(cfg))

	ctx, cancel := context.WithTimeout(cmd.Context(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		fmt.Fprintf(out, "Status:   ✗ cannot reach backend (%v)\n", err)
		return nil
	}
	fmt.Fprintln(out, "Status:   ✓ connected and authenticated")
	return nil
}

func adminStatus(cfg *config.Config) string {
	switch {
	case cfg.Kiosk.AdminToken == "":
		return "disabled (no admin token)"
	case !auth.LooksGenerated(cfg.Kiosk.AdminToken):
		return "enabled (hand-set token; 'vk config token' generates a random one)"
	}
	return "enabled"
}
