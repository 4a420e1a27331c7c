package citybed

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	geohash "github.com/TomiHiltunen/geohash-golang"
	"github.com/golang/geo/s2"
)

// Minimum field counts per table. Shorter lines are skipped.
const (
	minCityFields    = 7
	minAdmin1Fields  = 4
	minAdmin2Fields  = 5
	minCountryFields = 17
)

// maxLineLen bounds a single source line. City lines carrying many
// designations can exceed bufio's 64KiB default.
const maxLineLen = 1 << 20

// ParseStats counts what a parser did with its input.
type ParseStats struct {
	Lines   int // non-blank lines read
	Skipped int // malformed lines
	Deleted int // lines flagged deleted
	Records int // entities produced
}

// names accumulates the designations recorded for one id.
type names struct {
	name       string
	alts       []string
	hasDefault bool
}

// add folds one designation in. A default designation becomes the name; when
// it arrives after a first-seen provisional name, that name is demoted to the
// front of the alternates. Without any default line the first name wins.
func (n *names) add(v string, isDefault bool) {
	switch {
	case n.name == "":
		n.name = v
		n.hasDefault = isDefault
	case isDefault && !n.hasDefault:
		n.alts = append([]string{n.name}, n.alts...)
		n.name = v
		n.hasDefault = true
	default:
		n.alts = append(n.alts, v)
	}
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLen)
	scanner.Split(bufio.ScanLines)
	return scanner
}

// parseFlag reports whether a flag column is set.
func parseFlag(s string) bool {
	s = strings.TrimSpace(s)
	return s == "1" || strings.EqualFold(s, "true")
}

// field returns fields[i] trimmed, or "" past the end.
func field(fields []string, i int) string {
	if i < len(fields) {
		return strings.TrimSpace(fields[i])
	}
	return ""
}

type cityBuilder struct {
	city City
	names
}

// ParseCities parses the city table, merging lines that share an id.
//
// Layout: id, name, default, countryCode, admin1, admin2, population
// [, latitude, longitude [, deleted]].
//
// Cities are returned in first-seen id order.
func ParseCities(r io.Reader) ([]City, ParseStats, error) {
	var stats ParseStats
	byID := make(map[string]*cityBuilder)
	var order []string

	scanner := newScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		stats.Lines++

		fields := strings.Split(line, "\t")
		if len(fields) < minCityFields {
			stats.Skipped++
			continue
		}
		id, name := field(fields, 0), field(fields, 1)
		if id == "" || name == "" {
			stats.Skipped++
			continue
		}
		if parseFlag(field(fields, 9)) {
			stats.Deleted++
			continue
		}
		isDefault := parseFlag(fields[2])

		b, ok := byID[id]
		if !ok {
			b = &cityBuilder{}
			byID[id] = b
			order = append(order, id)
		}
		firstLine := b.name == ""
		promoted := isDefault && !b.hasDefault
		b.add(name, isDefault)

		// Location attributes come from the first line, or from the default
		// line once one is seen.
		if firstLine || promoted {
			b.city = cityAttributes(id, fields)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, stats, err
	}

	cities := make([]City, 0, len(order))
	for _, id := range order {
		b := byID[id]
		c := b.city
		c.Name = b.name
		c.AlternateNames = b.alts
		cities = append(cities, c)
	}
	stats.Records = len(cities)
	return cities, stats, nil
}

func cityAttributes(id string, fields []string) City {
	pop, _ := strconv.Atoi(field(fields, 6)) // unparseable population counts as 0
	if pop < 0 {
		pop = 0
	}
	c := City{
		ID:          id,
		CountryCode: toUpper(field(fields, 3)),
		Admin1:      field(fields, 4),
		Admin2:      field(fields, 5),
		Population:  pop,
	}

	// Coordinates are informational. Bad ones are zeroed, the record is kept.
	lat, errLat := strconv.ParseFloat(field(fields, 7), 64)
	lng, errLng := strconv.ParseFloat(field(fields, 8), 64)
	if errLat == nil && errLng == nil && s2.LatLngFromDegrees(lat, lng).IsValid() {
		c.Latitude = lat
		c.Longitude = lng
		c.Geohash = geohash.Encode(lat, lng)
	}
	return c
}

// ParseCountries parses GeoNames countryInfo.txt. Comment lines start with '#'.
// Countries are returned in file order; a repeated geonameid keeps the first.
func ParseCountries(r io.Reader) ([]Country, ParseStats, error) {
	var stats ParseStats
	var countries []Country
	seen := make(map[int]bool)

	scanner := newScanner(r)
	for scanner.Scan() {
		t := scanner.Text()
		if strings.TrimSpace(t) == "" || t[0] == '#' {
			continue
		}
		stats.Lines++

		fields := strings.SplitN(t, "\t", 19)
		if len(fields) < minCountryFields || fields[0] == "" || fields[0] == "0" {
			stats.Skipped++
			continue
		}
		gid, err := strconv.Atoi(field(fields, 16))
		if err != nil || seen[gid] {
			stats.Skipped++
			continue
		}
		seen[gid] = true

		isoNumeric, _ := strconv.Atoi(field(fields, 2))
		area, _ := strconv.ParseFloat(field(fields, 6), 64)
		pop, _ := strconv.ParseInt(field(fields, 7), 10, 64)

		countries = append(countries, Country{
			GeonameID:          gid,
			ISO:                field(fields, 0),
			ISO3:               field(fields, 1),
			ISONumeric:         isoNumeric,
			Fips:               field(fields, 3),
			Name:               field(fields, 4),
			Capital:            field(fields, 5),
			Area:               area,
			Population:         pop,
			Continent:          field(fields, 8),
			Tld:                field(fields, 9),
			CurrencyCode:       field(fields, 10),
			CurrencyName:       field(fields, 11),
			Phone:              field(fields, 12),
			PostalCodeFormat:   field(fields, 13),
			PostalCodeRegex:    field(fields, 14),
			Languages:          field(fields, 15),
			Neighbours:         field(fields, 17),
			EquivalentFipsCode: field(fields, 18),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, stats, err
	}
	stats.Records = len(countries)
	return countries, stats, nil
}
