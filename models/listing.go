package models

import "time"

// RawListing holds one unprocessed record straight from a Craigslist search.
// Every field is an untrusted string; any of them may be empty or garbage.
// This is archived to CSV before normalization.
type RawListing struct {
	PostID       string
	RepostOf     string
	Title        string
	URL          string
	DateUpdated  string // "2006-01-02"
	TimeUpdated  string // "15:04", may be absent
	Price        string // e.g. "$1,850"
	Neighborhood string
	Address      string
	HousingType  string
	Laundry      string
	Parking      string
	Bedrooms     string
	AreaFt2      string
	FetchedAt    time.Time
}

// Listing is the canonical, validated housing post produced by the
// normalizer and carried through the rest of the pipeline.
type Listing struct {
	ID           string
	RepostOf     string
	Title        string
	URL          string
	PostedAt     time.Time // posted date merged with time-of-day
	Price        int
	Neighborhood string
	Address      string
	HousingType  string
	Laundry      string
	Parking      string
	Bedrooms     int
	AreaSqFt     int
}

// UserFilter describes one subscriber and their Craigslist housing search.
type UserFilter struct {
	Name           string            `json:"name"`
	Email          string            `json:"email"`
	Site           string            `json:"site"`
	Area           string            `json:"area"`
	ZipCode        string            `json:"zip_code"`
	SearchDistance int               `json:"search_distance"`
	Filters        map[string]string `json:"filters"`
}

// PollReport holds the computed summary over one cycle's admitted listings.
type PollReport struct {
	TotalAdmitted  int
	AveragePrice   float64
	MinPrice       int
	MaxPrice       int
	Cheapest       *Listing
	ByNeighborhood map[string]int
	NewestPostedAt time.Time
	OldestPostedAt time.Time
}
