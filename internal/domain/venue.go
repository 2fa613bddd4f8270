package domain

import "math"

// Venue is a directory record written by the ingestion pipeline.
type Venue struct {
	ID       string
	Name     string
	Address  string
	Category string
	Phone    string
	Rating   float64
	// Distance is the distance in meters reported by the POI source relative
	// to the ingestion origin, 0 when unknown.
	Distance  int
	Location  *Location
	Source    string
	UpdatedAt int64
}

// HasCoordinates reports whether the venue carries a usable coordinate pair.
func (v Venue) HasCoordinates() bool {
	return v.Location != nil && ValidCoordinates(v.Location.Latitude, v.Location.Longitude)
}

// CoordinatesInRange rejects NaN and out-of-range pairs.
func CoordinatesInRange(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// ValidCoordinates is CoordinatesInRange that also rejects zero values,
// which the directory uses for unknown positions.
func ValidCoordinates(lat, lng float64) bool {
	return CoordinatesInRange(lat, lng) && lat != 0 && lng != 0
}

// IngestRequest asks the ingestion pipeline to populate the directory around
// a point.
type IngestRequest struct {
	Location Location
	Radius   int
	Category string
	Keyword  string
}

// IngestResult summarizes one ingestion run.
type IngestResult struct {
	Total int `json:"total" yaml:"total"`
	Saved int `json:"saved" yaml:"saved"`
}
