package services

import (
	"testing"
	"time"

	"housing-notifier/models"
	"housing-notifier/utils"
)

func newTestLogger() *utils.Logger { return utils.NewLogger() }

func validRaw() *models.RawListing {
	return &models.RawListing{
		PostID:       "7123456789",
		Title:        "  Sunny   2BR near park ",
		URL:          "https://sfbay.craigslist.org/apa/7123456789.html",
		DateUpdated:  "2024-01-02",
		TimeUpdated:  "09:15",
		Price:        "$1,850",
		Neighborhood: "mission district",
		Bedrooms:     "2",
		AreaFt2:      "900",
	}
}

func TestNormalizeValidRecord(t *testing.T) {
	n := NewNormalizer(newTestLogger())

	l, err := n.Normalize(validRaw())
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}

	if l.ID != "7123456789" {
		t.Errorf("ID: got %q", l.ID)
	}
	if l.Title != "Sunny 2BR near park" {
		t.Errorf("Title not whitespace-normalized: %q", l.Title)
	}
	if l.Price != 1850 {
		t.Errorf("Price: got %d, want 1850", l.Price)
	}
	if l.Bedrooms != 2 || l.AreaSqFt != 900 {
		t.Errorf("Bedrooms/AreaSqFt: got %d/%d", l.Bedrooms, l.AreaSqFt)
	}

	want := time.Date(2024, 1, 2, 9, 15, 0, 0, time.UTC)
	if !l.PostedAt.Equal(want) {
		t.Errorf("PostedAt: got %v, want %v", l.PostedAt, want)
	}
}

func TestNormalizeMergesDateWithoutTime(t *testing.T) {
	n := NewNormalizer(newTestLogger())

	raw := validRaw()
	raw.TimeUpdated = ""
	l, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}

	want := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	if !l.PostedAt.Equal(want) {
		t.Errorf("PostedAt without time: got %v, want midnight %v", l.PostedAt, want)
	}
}

func TestNormalizeMalformedRecords(t *testing.T) {
	n := NewNormalizer(newTestLogger())

	tests := []struct {
		name   string
		mutate func(*models.RawListing)
	}{
		{"missing id", func(r *models.RawListing) { r.PostID = " " }},
		{"missing url", func(r *models.RawListing) { r.URL = "" }},
		{"missing date", func(r *models.RawListing) { r.DateUpdated = "" }},
		{"garbage date", func(r *models.RawListing) { r.DateUpdated = "last tuesday" }},
		{"empty price", func(r *models.RawListing) { r.Price = "" }},
		{"garbage price", func(r *models.RawListing) { r.Price = "call for price" }},
		{"negative price", func(r *models.RawListing) { r.Price = "-100" }},
	}

	for _, tt := range tests {
		raw := validRaw()
		tt.mutate(raw)

		_, err := n.Normalize(raw)
		if err == nil {
			t.Errorf("%s: expected error, got none", tt.name)
			continue
		}
		if !models.IsMalformedRecord(err) {
			t.Errorf("%s: expected MalformedRecordError, got %v", tt.name, err)
		}
	}
}

func TestNormalizeDefaultsOptionalNumbers(t *testing.T) {
	n := NewNormalizer(newTestLogger())

	raw := validRaw()
	raw.Bedrooms = ""
	raw.AreaFt2 = "n/a"

	l, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if l.Bedrooms != 0 {
		t.Errorf("Bedrooms default: got %d, want 0", l.Bedrooms)
	}
	if l.AreaSqFt != 0 {
		t.Errorf("AreaSqFt default: got %d, want 0", l.AreaSqFt)
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"$1,850", 1850, false},
		{"$950", 950, false},
		{"2300", 2300, false},
		{" $2,100 ", 2100, false},
		{"", 0, true},
		{"free", 0, true},
		{"$1,200.50", 0, true},
		{"-100", 0, true},
	}

	for _, tt := range tests {
		got, err := parsePrice(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parsePrice(%q): expected error, got %d", tt.raw, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parsePrice(%q): unexpected error %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parsePrice(%q) = %d; want %d", tt.raw, got, tt.want)
		}
	}
}
