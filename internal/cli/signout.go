package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evcraddock/visitor-kiosk/internal/facility"
)

type signOutOutput struct {
	RecordID   string `json:"record_id"`
	FacilityID string `json:"facility_id,omitempty"`
	SameDay    bool   `json:"same_day"`
	ReviewURL  string `json:"review_url,omitempty"`
}

func newSignOutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signout <name>",
		Short: "Sign a visitor out",
		Long:  "Find today's sign-in record for the visitor and record the departure time.",
		Args:  cobra.ExactArgs(1),
		RunE:  runSignOut,
	}
}

func runSignOut(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(args[0])
	if name == "" {
		return fmt.Errorf("name is required")
	}

	_, logger, client, err := loadKiosk()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	res, err := client.SubmitVisitorSignOut(ctx, name)
	if err != nil {
		return fmt.Errorf("signing out %s: %w", name, err)
	}

	result := signOutOutput{RecordID: res.RecordID, FacilityID: res.FacilityID, SameDay: res.SameDay}
	if res.FacilityID != "" {
		facilities, err := client.FetchLocations(ctx)
		if err != nil {
			logger.Warn("loading facility directory failed", "error", err)
		} else if f, ok := facility.ByID(facilities, res.FacilityID); ok {
			result.ReviewURL = facility.ReviewURL(f)
		}
	}

	out := cmd.OutOrStdout()
	if isJSON() {
		return printJSON(out, result)
	}
	fmt.Fprintf(out, "Signed out %s.\n", name)
	fmt.Fprintf(out, "  Record: %s\n", result.RecordID)
	if !result.SameDay {
		fmt.Fprintln(out, "  Note:   no record from today; closed the most recent earlier record")
	}
	if result.ReviewURL != "" {
		fmt.Fprintf(out, "  Review: %s\n", result.ReviewURL)
	}
	return nil
}
