package citybed

import (
	"io"
	"sort"
	"strings"
)

type adminBuilder struct {
	div AdminDivision
	names
}

// ParseAdmin parses an admin division table of the given level (1 or 2),
// merging lines that share an id.
//
// Level 1 layout: id, countryCode, admin1, name [, default [, deleted]]
// Level 2 layout: id, countryCode, admin1, admin2, name [, default [, deleted]]
func ParseAdmin(r io.Reader, level int) ([]AdminDivision, ParseStats, error) {
	minFields, nameCol := minAdmin1Fields, 3
	if level == 2 {
		minFields, nameCol = minAdmin2Fields, 4
	}

	var stats ParseStats
	byID := make(map[string]*adminBuilder)
	var order []string

	scanner := newScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		stats.Lines++

		fields := strings.Split(line, "\t")
		if len(fields) < minFields {
			stats.Skipped++
			continue
		}
		id, name := field(fields, 0), field(fields, nameCol)
		if id == "" || name == "" {
			stats.Skipped++
			continue
		}
		if parseFlag(field(fields, nameCol+2)) {
			stats.Deleted++
			continue
		}
		isDefault := parseFlag(field(fields, nameCol+1))

		b, ok := byID[id]
		if !ok {
			b = &adminBuilder{div: AdminDivision{
				ID:          id,
				Level:       level,
				CountryCode: toUpper(field(fields, 1)),
				Admin1:      field(fields, 2),
			}}
			if level == 2 {
				b.div.Admin2 = field(fields, 3)
			}
			byID[id] = b
			order = append(order, id)
		}
		b.add(name, isDefault)
	}
	if err := scanner.Err(); err != nil {
		return nil, stats, err
	}

	divs := make([]AdminDivision, 0, len(order))
	for _, id := range order {
		b := byID[id]
		d := b.div
		d.Name = b.name
		d.AlternateNames = b.alts
		divs = append(divs, d)
	}
	stats.Records = len(divs)
	return divs, stats, nil
}

func admin1Key(countryCode, admin1 string) string {
	return countryCode + "." + admin1
}

func admin2Key(countryCode, admin1, admin2 string) string {
	return countryCode + "." + admin1 + "." + admin2
}

// adminNames maps each division's key to its name. Divisions are visited in
// name order, so when two divisions share a key the one sorting last wins.
func adminNames(divs []AdminDivision, key func(AdminDivision) string) map[string]string {
	sorted := make([]AdminDivision, len(divs))
	copy(sorted, divs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return compareCaseInsensitive(sorted[i].Name, sorted[j].Name) < 0
	})

	m := make(map[string]string, len(sorted))
	for _, d := range sorted {
		m[key(d)] = d.Name
	}
	return m
}

// Admin1Name returns the name of a first-level division, or "" if unknown.
func (ix *Index) Admin1Name(countryCode, admin1 string) string {
	return ix.admin1Names[admin1Key(countryCode, admin1)]
}

// Admin2Name returns the name of a second-level division, or "" if unknown.
func (ix *Index) Admin2Name(countryCode, admin1, admin2 string) string {
	return ix.admin2Names[admin2Key(countryCode, admin1, admin2)]
}
