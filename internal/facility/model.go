// Package facility provides the facility directory model, nearest-facility
// matching and review link resolution.
package facility

import "github.com/evcraddock/visitor-kiosk/internal/geo"

// Facility is a physical site from the backend location directory.
type Facility struct {
	ID        string   `json:"sys_id"`
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	City      string   `json:"city"`
	Zip       string   `json:"zip"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	ReviewURL string   `json:"review_url,omitempty"`
	PlaceID   string   `json:"place_id,omitempty"`
}

// Coordinates returns the facility position. ok is false unless both
// latitude and longitude are present.
func (f Facility) Coordinates() (geo.Point, bool) {
	if f.Latitude == nil || f.Longitude == nil {
		return geo.Point{}, false
	}
	return geo.Point{Lat: *f.Latitude, Lon: *f.Longitude}, true
}

// ByID finds a facility in the directory by its identifier.
func ByID(facilities []Facility, id string) (*Facility, bool) {
	if id == "" {
		return nil, false
	}
	for i := range facilities {
		if facilities[i].ID == id {
			return &facilities[i], true
		}
	}
	return nil, false
}
