package citybed

import (
	"slices"
	"strings"
)

// predicate decides whether a candidate survives a filter stage.
type predicate func(c *City) bool

// filter runs the filter stages of q over cities and returns the survivors
// in input order. Stages run country, population, prefix/suffix, includes;
// a stage whose parameter is absent is skipped. Without a country selection
// the result is empty.
func filter(cities []City, q Query) []*City {
	if !q.AllCountries && len(q.Countries) == 0 {
		return nil
	}

	candidates := make([]*City, len(cities))
	for i := range cities {
		candidates[i] = &cities[i]
	}
	for _, keep := range stages(q) {
		candidates = narrow(candidates, keep)
	}
	return candidates
}

// narrow returns a new slice holding the candidates keep accepts.
func narrow(in []*City, keep predicate) []*City {
	out := make([]*City, 0, len(in))
	for _, c := range in {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func stages(q Query) []predicate {
	var ps []predicate
	if !q.AllCountries {
		ps = append(ps, countryFilter(q.Countries))
	}
	if q.MinPopulation > 0 {
		floor := q.MinPopulation
		ps = append(ps, func(c *City) bool { return c.Population >= floor })
	}
	if q.StartsWith != "" || q.EndsWith != "" {
		ps = append(ps, affixFilter(q))
	}
	if len(q.Includes) > 0 {
		if p := includesFilter(q); p != nil {
			ps = append(ps, p)
		}
	}
	return ps
}

func countryFilter(codes []string) predicate {
	allowed := make(map[string]bool, len(codes))
	for _, code := range codes {
		allowed[toUpper(code)] = true
	}
	return func(c *City) bool { return allowed[toUpper(c.CountryCode)] }
}

// affixFilter matches when one name both starts and ends with the
// normalized terms. An empty term always matches.
func affixFilter(q Query) predicate {
	prefix := normalizeName(q.StartsWith, q.ConvertCharacters)
	suffix := normalizeName(q.EndsWith, q.ConvertCharacters)
	return nameFilter(q, func(name string) bool {
		return strings.HasPrefix(name, prefix) && strings.HasSuffix(name, suffix)
	})
}

// includesFilter matches when one name contains every normalized term.
// It returns nil when no term survives normalization.
func includesFilter(q Query) predicate {
	var terms []string
	for _, t := range q.Includes {
		if n := normalizeName(t, q.ConvertCharacters); n != "" {
			terms = append(terms, n)
		}
	}
	if len(terms) == 0 {
		return nil
	}
	return nameFilter(q, func(name string) bool {
		for _, t := range terms {
			if !strings.Contains(name, t) {
				return false
			}
		}
		return true
	})
}

// nameFilter applies match to the normalized primary name and, when the
// query searches alternate names, to each normalized alternate.
func nameFilter(q Query, match func(normalized string) bool) predicate {
	convert := q.ConvertCharacters
	return func(c *City) bool {
		if match(normalizeName(c.Name, convert)) {
			return true
		}
		if !q.SearchAlternateNames {
			return false
		}
		return slices.ContainsFunc(c.AlternateNames, func(alt string) bool {
			return match(normalizeName(alt, convert))
		})
	}
}
