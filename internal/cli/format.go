package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/evcraddock/visitor-kiosk/internal/config"
	"github.com/evcraddock/visitor-kiosk/internal/facility"
	"github.com/evcraddock/visitor-kiosk/internal/revision"
)

// printJSON marshals v as indented JSON and writes it to w.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printFacilityTable prints the facility directory as a formatted table.
func printFacilityTable(out io.Writer, facilities []facility.Facility) error {
	if len(facilities) == 0 {
		fmt.Fprintln(out, "No facilities found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "ID\tNAME\tCITY\tCOORDINATES"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	if _, err := fmt.Fprintln(w, "--\t----\t----\t-----------"); err != nil {
		return fmt.Errorf("writing table separator: %w", err)
	}

	for _, f := range facilities {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			f.ID, truncate(f.Name, 40), dash(f.City), formatCoordinates(f)); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}

	fmt.Fprintf(out, "\nTotal: %d facilities\n", len(facilities))
	return nil
}

// printHistory prints the document's version history, newest first.
func printHistory(out io.Writer, current string, history []config.VersionEntry) error {
	fmt.Fprintf(out, "Current version: %s\n\n", dash(current))
	if len(history) == 0 {
		fmt.Fprintln(out, "No version history.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "VERSION\tTIMESTAMP\tCHANGES"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	for i := len(history) - 1; i >= 0; i-- {
		e := history[i]
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n", e.Version, e.Timestamp, truncate(e.Changes, 60)); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}
	return w.Flush()
}

// printRevisions prints archived revisions.
func printRevisions(out io.Writer, revs []*revision.Revision) error {
	if len(revs) == 0 {
		fmt.Fprintln(out, "No archived revisions.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "VERSION\tSOURCE\tARCHIVED\tCHANGES"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	for _, r := range revs {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			r.Version, dash(string(r.Source)), r.CreatedAt.Format("2006-01-02 15:04"), truncate(r.Changes, 60)); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}
	return w.Flush()
}

// formatCoordinates renders a facility's position, or "-" when unknown.
func formatCoordinates(f facility.Facility) string {
	p, ok := f.Coordinates()
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.5f, %.5f", p.Lat, p.Lon)
}

// formatRating returns a star representation of a rating (1-5).
func formatRating(rating int) string {
	if rating < 1 {
		rating = 1
	}
	if rating > 5 {
		rating = 5
	}
	return strings.Repeat("★", rating) + strings.Repeat("☆", 5-rating)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
