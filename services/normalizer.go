package services

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"housing-notifier/models"
	"housing-notifier/utils"
)

const (
	postedDateLayout = "2006-01-02"
	postedTimeLayout = "15:04"
)

// priceDigits captures the numeric part of a price after currency symbols
// and group separators are stripped.
var priceDigits = regexp.MustCompile(`^-?\d+$`)

// Normalizer maps untrusted RawListings into canonical Listings.
// It is pure: no I/O, no clock access.
type Normalizer struct {
	logger *utils.Logger
}

// NewNormalizer creates a Normalizer with the given logger.
func NewNormalizer(logger *utils.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize validates and converts one raw record. It returns a
// MalformedRecordError when a required field (post id, url, posted date, or
// price) is missing or unparseable. Defaulting a bad price to zero would
// silently corrupt downstream filtering, so it is rejected instead.
func (n *Normalizer) Normalize(raw *models.RawListing) (*models.Listing, error) {
	id := strings.TrimSpace(raw.PostID)
	if id == "" {
		return nil, &models.MalformedRecordError{Field: "id", Reason: "missing"}
	}

	url := strings.TrimSpace(raw.URL)
	if url == "" {
		return nil, &models.MalformedRecordError{Field: "url", Reason: "missing"}
	}

	postedAt, err := mergePostedAt(raw.DateUpdated, raw.TimeUpdated)
	if err != nil {
		return nil, err
	}

	price, err := parsePrice(raw.Price)
	if err != nil {
		return nil, err
	}

	return &models.Listing{
		ID:           id,
		RepostOf:     strings.TrimSpace(raw.RepostOf),
		Title:        normalizeText(raw.Title),
		URL:          url,
		PostedAt:     postedAt,
		Price:        price,
		Neighborhood: normalizeText(raw.Neighborhood),
		Address:      normalizeText(raw.Address),
		HousingType:  normalizeText(raw.HousingType),
		Laundry:      normalizeText(raw.Laundry),
		Parking:      normalizeText(raw.Parking),
		Bedrooms:     parseIntDefault(raw.Bedrooms, 0),
		AreaSqFt:     parseIntDefault(raw.AreaFt2, 0),
	}, nil
}

// mergePostedAt combines the separately reported posted date and time-of-day
// into one timestamp. The date is required; the time defaults to midnight
// when absent or unparseable.
func mergePostedAt(date, clock string) (time.Time, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return time.Time{}, &models.MalformedRecordError{Field: "posted_at", Reason: "missing date"}
	}

	day, err := time.Parse(postedDateLayout, date)
	if err != nil {
		return time.Time{}, &models.MalformedRecordError{Field: "posted_at", Reason: "unparseable date " + strconv.Quote(date)}
	}

	clock = strings.TrimSpace(clock)
	if clock == "" {
		return day, nil
	}
	tod, err := time.Parse(postedTimeLayout, clock)
	if err != nil {
		return day, nil
	}

	return day.Add(time.Duration(tod.Hour())*time.Hour + time.Duration(tod.Minute())*time.Minute), nil
}

// parsePrice strips currency symbols and group separators before integer
// conversion. Examples: "$1,850" → 1850, "950" → 950.
func parsePrice(raw string) (int, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" || !priceDigits.MatchString(cleaned) {
		return 0, &models.MalformedRecordError{Field: "price", Reason: "unparseable " + strconv.Quote(raw)}
	}

	price, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0, &models.MalformedRecordError{Field: "price", Reason: "unparseable " + strconv.Quote(raw)}
	}
	if price < 0 {
		return 0, &models.MalformedRecordError{Field: "price", Reason: "negative"}
	}
	return price, nil
}

func parseIntDefault(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return n
}

// normalizeText strips leading/trailing whitespace and collapses internal whitespace.
func normalizeText(s string) string {
	fields := strings.FieldsFunc(strings.TrimSpace(s), func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}
