package citybed

import (
	"net/url"
	"strconv"
	"strings"
)

// AllCountries is the countries parameter value that lifts the country
// restriction.
const AllCountries = "all"

// Query selects cities. The zero Query matches nothing: a search without a
// country selection returns no results.
type Query struct {
	MinPopulation        int      // population floor, 0 = none
	Countries            []string // ISO codes, upper case
	AllCountries         bool     // no country restriction
	StartsWith           string
	EndsWith             string
	Includes             []string // every term must match
	ConvertCharacters    bool     // fold to ASCII before comparing
	SearchAlternateNames bool     // also match against alternate names
}

// ParseQuery reads a Query from URL parameters. Parameters that do not parse
// leave their filter unapplied.
func ParseQuery(v url.Values) Query {
	var q Query

	if s := strings.TrimSpace(v.Get("minPopulation")); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			q.MinPopulation = n
		}
	}

	switch countries := strings.TrimSpace(v.Get("countries")); {
	case strings.EqualFold(countries, AllCountries):
		q.AllCountries = true
	case countries != "":
		for _, code := range strings.Split(countries, ",") {
			if code = toUpper(strings.TrimSpace(code)); code != "" {
				q.Countries = append(q.Countries, code)
			}
		}
	}

	q.StartsWith = v.Get("startsWith")
	q.EndsWith = v.Get("endsWith")
	q.Includes = splitIncludes(v.Get("includes"))
	q.ConvertCharacters = parseBool(v.Get("convertCharacters"))
	q.SearchAlternateNames = parseBool(v.Get("searchAlternateNames"))
	return q
}

// splitIncludes splits a semicolon-delimited list, trimming leading and
// trailing semicolons and dropping empty terms.
func splitIncludes(s string) []string {
	s = strings.Trim(s, ";")
	if s == "" {
		return nil
	}
	var out []string
	for _, term := range strings.Split(s, ";") {
		if term != "" {
			out = append(out, term)
		}
	}
	return out
}

func parseBool(s string) bool {
	s = strings.TrimSpace(s)
	return strings.EqualFold(s, "true") || s == "1"
}

// Values encodes q back into URL parameters, the inverse of ParseQuery.
func (q Query) Values() url.Values {
	v := url.Values{}
	if q.MinPopulation > 0 {
		v.Set("minPopulation", strconv.Itoa(q.MinPopulation))
	}
	if q.AllCountries {
		v.Set("countries", AllCountries)
	} else if len(q.Countries) > 0 {
		v.Set("countries", strings.Join(q.Countries, ","))
	}
	if q.StartsWith != "" {
		v.Set("startsWith", q.StartsWith)
	}
	if q.EndsWith != "" {
		v.Set("endsWith", q.EndsWith)
	}
	if len(q.Includes) > 0 {
		v.Set("includes", strings.Join(q.Includes, ";"))
	}
	if q.ConvertCharacters {
		v.Set("convertCharacters", "true")
	}
	if q.SearchAlternateNames {
		v.Set("searchAlternateNames", "true")
	}
	return v
}
