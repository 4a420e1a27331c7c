package citybed

import (
	"fmt"
	"strings"
)

// Validation describes the integrity checks Validate runs on a snapshot.
type Validation struct {
	MinCities    int
	MinCountries int
	Known        []KnownCity
}

// KnownCity is a search expected to return a city with the given name.
type KnownCity struct {
	Query    Query
	WantName string
}

// DefaultValidation is tuned for the full upstream dataset.
var DefaultValidation = Validation{
	MinCities:    10000,
	MinCountries: 200,
	Known: []KnownCity{
		{Query: Query{AllCountries: true, StartsWith: "Tokyo", EndsWith: "Tokyo"}, WantName: "Tokyo"},
		{Query: Query{Countries: []string{"FR"}, StartsWith: "Paris", EndsWith: "Paris"}, WantName: "Paris"},
		{Query: Query{Countries: []string{"DE"}, StartsWith: "Berlin", EndsWith: "Berlin"}, WantName: "Berlin"},
	},
}

// Validate performs integrity and functional checks on s.
func Validate(s *Snapshot, v Validation) error {
	if n := len(s.Cities); n < v.MinCities {
		return fmt.Errorf("city count too low: got %d, want >= %d", n, v.MinCities)
	}
	if n := len(s.Countries); n < v.MinCountries {
		return fmt.Errorf("country count too low: got %d, want >= %d", n, v.MinCountries)
	}

	seen := make(map[string]bool, len(s.Cities))
	for _, c := range s.Cities {
		if c.Name == "" {
			return fmt.Errorf("city %s has no name", c.ID)
		}
		if seen[c.ID] {
			return fmt.Errorf("duplicate city id %s", c.ID)
		}
		seen[c.ID] = true
	}

	for _, k := range v.Known {
		found := false
		for _, r := range s.Search(k.Query) {
			// A disambiguated name still starts with the bare one.
			if r.Name == k.WantName || strings.HasPrefix(r.Name, k.WantName+", ") {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("search %q returned no city named %q", k.Query.Values().Encode(), k.WantName)
		}
	}
	return nil
}
