package citybed

import (
	"strings"
)

// Result is a City as returned by a search: a private copy whose Name and
// AlternateNames may carry appended qualifiers.
type Result struct {
	City
	Admin1Name      string `json:"admin1Name,omitempty"`
	CountryRequired bool   `json:"countryRequired"`
	Admin1Required  bool   `json:"admin1Required"`
	Admin2Required  bool   `json:"admin2Required"`
}

// Qualifiers records which administrative levels a name needs to be unique.
type Qualifiers struct {
	Country bool
	Admin1  bool
	Admin2  bool
}

// Any reports whether any level is required.
func (q Qualifiers) Any() bool { return q.Country || q.Admin1 || q.Admin2 }

func (q Qualifiers) or(o Qualifiers) Qualifiers {
	return Qualifiers{
		Country: q.Country || o.Country,
		Admin1:  q.Admin1 || o.Admin1,
		Admin2:  q.Admin2 || o.Admin2,
	}
}

// distinguish returns the single coarsest level at which other differs
// from c: country, else region, else subregion.
func distinguish(c, other *City) Qualifiers {
	switch {
	case other.CountryCode != c.CountryCode:
		return Qualifiers{Country: true}
	case other.Admin1 != c.Admin1:
		return Qualifiers{Admin1: true}
	case other.Admin2 != c.Admin2:
		return Qualifiers{Admin2: true}
	}
	return Qualifiers{}
}

// PrimaryQualifiers returns the levels c's primary name needs. Only
// same-named cities with a strictly greater population make it ambiguous.
func (ix *Index) PrimaryQualifiers(c *City) Qualifiers {
	var q Qualifiers
	for _, p := range ix.citiesByName[toLower(c.Name)] {
		m := &ix.cities[p]
		if m.ID == c.ID || m.Population <= c.Population {
			continue
		}
		q = q.or(distinguish(c, m))
	}
	return q
}

// AlternateQualifiers returns the levels the alternate name alt of c needs.
// Any other city with alt as its primary name competes, regardless of
// population. Only when there is none does the most populous other city
// listing alt as an alternate compete, and only if it outnumbers c.
func (ix *Index) AlternateQualifiers(c *City, alt string) Qualifiers {
	key := toLower(alt)

	var q Qualifiers
	competing := false
	for _, p := range ix.citiesByName[key] {
		m := &ix.cities[p]
		if m.ID == c.ID {
			continue
		}
		competing = true
		q = q.or(distinguish(c, m))
	}
	if competing {
		return q
	}

	if p, ok := ix.altNameBestMatch[key]; ok {
		m := &ix.cities[p]
		if m.Population > c.Population && m.ID != c.ID {
			return distinguish(c, m)
		}
	}
	return Qualifiers{}
}

// Qualify appends the required qualifiers of c to name, in the order region
// name, subregion name, country code. A region or subregion without a
// resolved name contributes its raw code; an empty code contributes nothing.
func (ix *Index) Qualify(name string, c *City, q Qualifiers) string {
	if !q.Any() {
		return name
	}
	parts := make([]string, 0, 3)
	if q.Admin1 {
		parts = appendNonEmpty(parts, ix.Admin1Name(c.CountryCode, c.Admin1), c.Admin1)
	}
	if q.Admin2 {
		parts = appendNonEmpty(parts, ix.Admin2Name(c.CountryCode, c.Admin1, c.Admin2), c.Admin2)
	}
	if q.Country {
		parts = appendNonEmpty(parts, c.CountryCode)
	}
	if len(parts) == 0 {
		return name
	}
	return name + ", " + strings.Join(parts, ", ")
}

// appendNonEmpty appends the first non-empty candidate, if any.
func appendNonEmpty(parts []string, candidates ...string) []string {
	for _, s := range candidates {
		if s != "" {
			return append(parts, s)
		}
	}
	return parts
}

// Disambiguate copies c into a Result and rewrites the copy's primary name
// and each colliding alternate name. c itself is not modified.
func (ix *Index) Disambiguate(c *City) Result {
	r := Result{City: *c}
	r.AlternateNames = append([]string{}, c.AlternateNames...)

	if q := ix.PrimaryQualifiers(c); q.Any() {
		r.Name = ix.Qualify(c.Name, c, q)
		r.CountryRequired = q.Country
		r.Admin1Required = q.Admin1
		r.Admin2Required = q.Admin2
	}

	for i, alt := range c.AlternateNames {
		if q := ix.AlternateQualifiers(c, alt); q.Any() {
			r.AlternateNames[i] = ix.Qualify(alt, c, q)
		}
	}

	r.Admin1Name = ix.Admin1Name(c.CountryCode, c.Admin1)
	return r
}
