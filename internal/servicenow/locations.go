package servicenow

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/evcraddock/visitor-kiosk/internal/facility"
)

const (
	locationQuery  = "latitudeISNOTEMPTY^longitudeISNOTEMPTY"
	locationFields = "sys_id,name,street,city,zip,latitude,longitude,u_google_survey_url,u_google_place_id"
)

type locationRow struct {
	SysID     string `json:"sys_id"`
	Name      string `json:"name"`
	Street    string `json:"street"`
	City      string `json:"city"`
	Zip       string `json:"zip"`
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
	SurveyURL string `json:"u_google_survey_url"`
	PlaceID   string `json:"u_google_place_id"`
}

// FetchLocations returns the facility directory: every location with both
// coordinates populated.
func (c *Client) FetchLocations(ctx context.Context) ([]facility.Facility, error) {
	q := url.Values{}
	q.Set("sysparm_query", locationQuery)
	q.Set("sysparm_fields", locationFields)

	var resp envelope[[]locationRow]
	if err := c.get(ctx, "fetch locations", tablePath(c.locationTable), q, &resp); err != nil {
		return nil, err
	}

	facilities := make([]facility.Facility, 0, len(resp.Result))
	for _, row := range resp.Result {
		facilities = append(facilities, facility.Facility{
			ID:        row.SysID,
			Name:      row.Name,
			Address:   row.Street,
			City:      row.City,
			Zip:       row.Zip,
			Latitude:  parseCoordinate(row.Latitude),
			Longitude: parseCoordinate(row.Longitude),
			ReviewURL: row.SurveyURL,
			PlaceID:   row.PlaceID,
		})
	}

	c.logger.Info("fetched locations", "count", len(facilities))
	return facilities, nil
}

func parseCoordinate(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
