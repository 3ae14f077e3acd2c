package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newRateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rate <record-id> <1-5>",
		Short: "Rate a visit",
		Long:  "Set a rating (1-5) on a signed-out visit record. 5 is best.",
		Args:  cobra.ExactArgs(2),
		RunE:  runRate,
	}
}

func runRate(cmd *cobra.Command, args []string) error {
	recordID := args[0]

	rating, err := strconv.Atoi(args[1])
	if err != nil || rating < 1 || rating > 5 {
		return fmt.Errorf("invalid rating: %s (must be 1-5)", args[1])
	}

	_, _, client, err := loadKiosk()
	if err != nil {
		return err
	}

	if err := client.UpdateVisitorRating(cmd.Context(), recordID, rating); err != nil {
		return fmt.Errorf("rating visit: %w", err)
	}

	out := cmd.OutOrStdout()
	if isJSON() {
		return printJSON(out, map[string]interface{}{"record_id": recordID, "rating": rating})
	}
	fmt.Fprintf(out, "Record %s rated %s\n", recordID, formatRating(rating))
	return nil
}
