package facility

import (
	"net/url"
	"strings"
)

const (
	writeReviewURL = "https://search.google.com/local/writereview?placeid="
	searchURL      = "https://www.google.com/search?q="
)

// ReviewURL returns the post-visit feedback link for f.
// A stored review URL wins, then a place ID write-review link, then a search
// for the facility's name and address. Only a nil facility yields "".
func ReviewURL(f *Facility) string {
	if f == nil {
		return ""
	}
	if f.ReviewURL != "" {
		return f.ReviewURL
	}
	if f.PlaceID != "" {
		return writeReviewURL + url.QueryEscape(f.PlaceID)
	}
	return searchURL + encodeComponent(searchQuery(f))
}

// searchQuery joins the non-empty name, address, city and zip.
func searchQuery(f *Facility) string {
	var parts []string
	for _, s := range []string{f.Name, f.Address, f.City, f.Zip} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// encodeComponent percent-encodes s with spaces as %20.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
