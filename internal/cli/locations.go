package cli

import (
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/evcraddock/visitor-kiosk/internal/facility"
	"github.com/evcraddock/visitor-kiosk/internal/geo"
)

var validate = validator.New()

func newLocationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "locations",
		Short: "List registered facilities",
		Args:  cobra.NoArgs,
		RunE:  runLocations,
	}
}

func runLocations(cmd *cobra.Command, args []string) error {
	_, _, client, err := loadKiosk()
	if err != nil {
		return err
	}

	facilities, err := client.FetchLocations(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing facilities: %w", err)
	}

	if isJSON() {
		if facilities == nil {
			facilities = []facility.Facility{}
		}
		return printJSON(cmd.OutOrStdout(), facilities)
	}
	return printFacilityTable(cmd.OutOrStdout(), facilities)
}

type nearestOutput struct {
	Facility  *facility.Facility `json:"facility"`
	Miles     float64            `json:"miles"`
	ReviewURL string             `json:"review_url"`
}

func newNearestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "nearest <latitude> <longitude>",
		Short: "Find the facility nearest a coordinate",
		Args:  cobra.ExactArgs(2),
		RunE:  runNearest,
	}
}

func runNearest(cmd *cobra.Command, args []string) error {
	at, err := parsePoint(args[0], args[1])
	if err != nil {
		return err
	}

	_, _, client, err := loadKiosk()
	if err != nil {
		return err
	}

	facilities, err := client.FetchLocations(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing facilities: %w", err)
	}

	f, miles, ok := facility.Nearest(at, facilities)
	if !ok {
		return fmt.Errorf("no facility with coordinates")
	}

	result := nearestOutput{Facility: f, Miles: miles, ReviewURL: facility.ReviewURL(f)}
	out := cmd.OutOrStdout()
	if isJSON() {
		return printJSON(out, result)
	}
	fmt.Fprintf(out, "%s (%s)\n", f.Name, f.ID)
	fmt.Fprintf(out, "  Distance: %.1f mi\n", miles)
	fmt.Fprintf(out, "  Review:   %s\n", result.ReviewURL)
	return nil
}

// parsePoint parses and range-checks a latitude/longitude pair.
func parsePoint(latStr, lonStr string) (geo.Point, error) {
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || validate.Var(lat, "latitude") != nil {
		return geo.Point{}, fmt.Errorf("invalid latitude: %s", latStr)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil || validate.Var(lon, "longitude") != nil {
		return geo.Point{}, fmt.Errorf("invalid longitude: %s", lonStr)
	}
	return geo.Point{Lat: lat, Lon: lon}, nil
}
