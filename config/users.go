package config

import (
	"encoding/json"
	"fmt"
	"os"

	"housing-notifier/models"
)

// LoadUsers reads the subscriber list from a JSON file. Each entry describes
// one user's housing search filter and notification address.
func LoadUsers(path string) ([]*models.UserFilter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("users: read %q: %w", path, err)
	}

	var users []*models.UserFilter
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("users: parse %q: %w", path, err)
	}

	for i, u := range users {
		if u.Email == "" {
			return nil, fmt.Errorf("users: entry %d has no email", i)
		}
		if u.Site == "" {
			return nil, fmt.Errorf("users: entry %d has no craigslist site", i)
		}
	}

	return users, nil
}
