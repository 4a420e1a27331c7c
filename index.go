package citybed

// Index holds the name lookups the disambiguation engine consults. It is
// built once per snapshot and never written afterwards, so reads need no
// locking.
type Index struct {
	cities []City

	citiesByName     map[string][]int // lower-cased primary name -> positions in cities
	altNameBestMatch map[string]int   // lower-cased alternate name -> most populous city listing it
	admin1Names      map[string]string
	admin2Names      map[string]string
}

// BuildIndex builds the indices in a single pass over cities. Within a
// citiesByName bucket positions follow the order of cities. For
// altNameBestMatch a later city replaces the stored one only when its
// population is strictly greater, so the first seen wins ties.
func BuildIndex(cities []City, admin1, admin2 []AdminDivision) *Index {
	ix := &Index{
		cities:           cities,
		citiesByName:     make(map[string][]int, len(cities)),
		altNameBestMatch: make(map[string]int),
	}

	for i := range cities {
		c := &cities[i]
		key := toLower(c.Name)
		ix.citiesByName[key] = append(ix.citiesByName[key], i)

		for _, alt := range c.AlternateNames {
			altKey := toLower(alt)
			if best, ok := ix.altNameBestMatch[altKey]; ok && cities[best].Population >= c.Population {
				continue
			}
			ix.altNameBestMatch[altKey] = i
		}
	}

	ix.admin1Names = adminNames(admin1, func(d AdminDivision) string {
		return admin1Key(d.CountryCode, d.Admin1)
	})
	ix.admin2Names = adminNames(admin2, func(d AdminDivision) string {
		return admin2Key(d.CountryCode, d.Admin1, d.Admin2)
	})
	return ix
}

// CitiesNamed returns the cities whose primary name equals name, ignoring case.
func (ix *Index) CitiesNamed(name string) []City {
	positions := ix.citiesByName[toLower(name)]
	out := make([]City, len(positions))
	for i, p := range positions {
		out[i] = ix.cities[p]
	}
	return out
}

// BestAlternate returns the most populous city listing name as an alternate.
func (ix *Index) BestAlternate(name string) (City, bool) {
	p, ok := ix.altNameBestMatch[toLower(name)]
	if !ok {
		return City{}, false
	}
	return ix.cities[p], true
}
