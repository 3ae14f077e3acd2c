package facility

import "github.com/evcraddock/visitor-kiosk/internal/geo"

// Nearest returns the facility closest to at and its distance in miles.
// Facilities missing either coordinate are skipped. Ties keep the earliest
// facility in input order. ok is false when nothing could be matched.
func Nearest(at geo.Point, facilities []Facility) (nearest *Facility, miles float64, ok bool) {
	for i := range facilities {
		p, located := facilities[i].Coordinates()
		if !located {
			continue
		}
		d := geo.Distance(at, p)
		if nearest == nil || d < miles {
			nearest = &facilities[i]
			miles = d
		}
	}
	return nearest, miles, nearest != nil
}
