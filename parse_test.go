package citybed

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestParseCitiesMergesByID(t *testing.T) {
	tests := []struct {
		name     string
		lines    []string
		wantName string
		wantAlts []string
	}{
		{
			name: "default first",
			lines: []string{
				tsv("1", "Tokyo", "1", "JP", "40", "", "8336599"),
				tsv("1", "Edo", "0", "JP", "40", "", "8336599"),
				tsv("1", "東京", "0", "JP", "40", "", "8336599"),
			},
			wantName: "Tokyo",
			wantAlts: []string{"Edo", "東京"},
		},
		{
			name: "default arrives later",
			lines: []string{
				tsv("1", "Edo", "0", "JP", "40", "", "8336599"),
				tsv("1", "Tokyo", "1", "JP", "40", "", "8336599"),
				tsv("1", "東京", "0", "JP", "40", "", "8336599"),
			},
			wantName: "Tokyo",
			wantAlts: []string{"Edo", "東京"},
		},
		{
			name: "no default keeps first seen",
			lines: []string{
				tsv("1", "Alpha", "0", "US", "TX", "", "10"),
				tsv("1", "Beta", "0", "US", "TX", "", "10"),
			},
			wantName: "Alpha",
			wantAlts: []string{"Beta"},
		},
		{
			name: "duplicates preserved",
			lines: []string{
				tsv("1", "X", "1", "US", "TX", "", "10"),
				tsv("1", "Y", "0", "US", "TX", "", "10"),
				tsv("1", "Y", "0", "US", "TX", "", "10"),
			},
			wantName: "X",
			wantAlts: []string{"Y", "Y"},
		},
		{
			name: "second default becomes alternate",
			lines: []string{
				tsv("1", "X", "true", "US", "TX", "", "10"),
				tsv("1", "Z", "TRUE", "US", "TX", "", "10"),
			},
			wantName: "X",
			wantAlts: []string{"Z"},
		},
		{
			name: "deleted line dropped",
			lines: []string{
				tsv("1", "X", "1", "US", "TX", "", "10", "1", "1", "0"),
				tsv("1", "Gone", "0", "US", "TX", "", "10", "1", "1", "1"),
			},
			wantName: "X",
			wantAlts: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cities, _, err := ParseCities(strings.NewReader(strings.Join(tt.lines, "\n")))
			if err != nil {
				t.Fatalf("ParseCities: %v", err)
			}
			if len(cities) != 1 {
				t.Fatalf("got %d cities, want 1", len(cities))
			}
			if cities[0].Name != tt.wantName {
				t.Errorf("Name = %q, want %q", cities[0].Name, tt.wantName)
			}
			if !reflect.DeepEqual(cities[0].AlternateNames, tt.wantAlts) {
				t.Errorf("AlternateNames = %q, want %q", cities[0].AlternateNames, tt.wantAlts)
			}
		})
	}
}

func TestParseCitiesSkipsMalformedLines(t *testing.T) {
	input := strings.Join([]string{
		"",
		tsv("1", "Austin", "1", "us", "TX", "453", "961855", "30.26715", "-97.74306"),
		"   ",
		tsv("2", "Short", "1"),
		tsv("", "No ID", "1", "US", "TX", "", "10"),
		tsv("3", "", "1", "US", "TX", "", "10"),
		tsv("4", "Ghost", "1", "US", "TX", "", "10", "0", "0", "1"),
	}, "\n")

	cities, stats, err := ParseCities(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseCities: %v", err)
	}
	if len(cities) != 1 || cities[0].ID != "1" {
		t.Fatalf("got %+v, want only city 1", cities)
	}
	want := ParseStats{Lines: 5, Skipped: 3, Deleted: 1, Records: 1}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}

	c := cities[0]
	if c.CountryCode != "US" {
		t.Errorf("CountryCode = %q, want upper-cased US", c.CountryCode)
	}
	if c.Admin1 != "TX" || c.Admin2 != "453" || c.Population != 961855 {
		t.Errorf("attributes = %+v", c)
	}
	if c.Latitude != 30.26715 || c.Longitude != -97.74306 {
		t.Errorf("coordinates = %v,%v", c.Latitude, c.Longitude)
	}
	if !strings.HasPrefix(c.Geohash, "9v6") {
		t.Errorf("Geohash = %q, want Austin's 9v6 prefix", c.Geohash)
	}
}

func TestParseCitiesAttributes(t *testing.T) {
	tests := []struct {
		name        string
		line        string
		wantPop     int
		wantGeohash bool
	}{
		{"population not numeric", tsv("1", "A", "1", "US", "TX", "", "n/a", "30", "-97"), 0, true},
		{"negative population", tsv("1", "A", "1", "US", "TX", "", "-5", "30", "-97"), 0, true},
		{"no coordinates", tsv("1", "A", "1", "US", "TX", "", "10"), 10, false},
		{"latitude out of range", tsv("1", "A", "1", "US", "TX", "", "10", "95", "10"), 10, false},
		{"coordinates not numeric", tsv("1", "A", "1", "US", "TX", "", "10", "x", "y"), 10, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cities, _, err := ParseCities(strings.NewReader(tt.line))
			if err != nil {
				t.Fatalf("ParseCities: %v", err)
			}
			if len(cities) != 1 {
				t.Fatalf("got %d cities, want 1", len(cities))
			}
			c := cities[0]
			if c.Population != tt.wantPop {
				t.Errorf("Population = %d, want %d", c.Population, tt.wantPop)
			}
			if (c.Geohash != "") != tt.wantGeohash {
				t.Errorf("Geohash = %q, want set=%v", c.Geohash, tt.wantGeohash)
			}
			if !tt.wantGeohash && (c.Latitude != 0 || c.Longitude != 0) {
				t.Errorf("coordinates = %v,%v, want zeroed", c.Latitude, c.Longitude)
			}
		})
	}
}

func TestParseCitiesFromAttributesOfDefaultLine(t *testing.T) {
	input := strings.Join([]string{
		tsv("1", "Old Name", "0", "US", "TX", "", "5"),
		tsv("1", "New Name", "1", "US", "TX", "201", "500"),
	}, "\n")
	cities, _, err := ParseCities(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseCities: %v", err)
	}
	if cities[0].Population != 500 || cities[0].Admin2 != "201" {
		t.Errorf("got %+v, want attributes of the default line", cities[0])
	}
}

func TestParseCitiesKeepsFirstSeenOrder(t *testing.T) {
	input := strings.Join([]string{
		tsv("b", "Beta", "1", "US", "TX", "", "1"),
		tsv("a", "Alpha", "1", "US", "TX", "", "1"),
		tsv("b", "Bêta", "0", "US", "TX", "", "1"),
	}, "\n")
	cities, _, err := ParseCities(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseCities: %v", err)
	}
	var ids []string
	for _, c := range cities {
		ids = append(ids, c.ID)
	}
	if !reflect.DeepEqual(ids, []string{"b", "a"}) {
		t.Errorf("ids = %v, want [b a]", ids)
	}
}

func TestParseAdmin(t *testing.T) {
	t.Run("level 1", func(t *testing.T) {
		input := strings.Join([]string{
			tsv("a1-CA-10", "ca", "10", "Quebec", "1"),
			tsv("a1-CA-10", "CA", "10", "Québec", "0"),
			tsv("a1-CA-11", "CA", "11", "Saskatchewan"),
			tsv("a1-XX-01", "XX", "01", "Removed", "1", "1"),
			tsv("bad", "CA"),
		}, "\n")
		divs, stats, err := ParseAdmin(strings.NewReader(input), 1)
		if err != nil {
			t.Fatalf("ParseAdmin: %v", err)
		}
		want := []AdminDivision{
			{ID: "a1-CA-10", Level: 1, CountryCode: "CA", Admin1: "10", Name: "Quebec", AlternateNames: []string{"Québec"}},
			{ID: "a1-CA-11", Level: 1, CountryCode: "CA", Admin1: "11", Name: "Saskatchewan"},
		}
		if !reflect.DeepEqual(divs, want) {
			t.Errorf("divisions = %+v, want %+v", divs, want)
		}
		if stats.Deleted != 1 || stats.Skipped != 1 {
			t.Errorf("stats = %+v, want 1 deleted and 1 skipped", stats)
		}
	})

	t.Run("level 2", func(t *testing.T) {
		input := strings.Join([]string{
			tsv("a2-US-IL-167", "US", "IL", "167", "Sangamon County", "1"),
			tsv("short", "US", "IL", "167"),
		}, "\n")
		divs, stats, err := ParseAdmin(strings.NewReader(input), 2)
		if err != nil {
			t.Fatalf("ParseAdmin: %v", err)
		}
		want := []AdminDivision{
			{ID: "a2-US-IL-167", Level: 2, CountryCode: "US", Admin1: "IL", Admin2: "167", Name: "Sangamon County"},
		}
		if !reflect.DeepEqual(divs, want) {
			t.Errorf("divisions = %+v, want %+v", divs, want)
		}
		if stats.Skipped != 1 {
			t.Errorf("Skipped = %d, want 1", stats.Skipped)
		}
	})
}

func TestParseCountries(t *testing.T) {
	fh, err := os.Open(filepath.Join("testdata", "countryInfo.txt"))
	if err != nil {
		t.Fatal(err)
	}
	defer fh.Close()

	countries, stats, err := ParseCountries(fh)
	if err != nil {
		t.Fatalf("ParseCountries: %v", err)
	}
	if len(countries) != 3 || stats.Records != 3 {
		t.Fatalf("got %d countries, want 3", len(countries))
	}

	us := countries[2]
	if us.GeonameID != 6252001 || us.ISO != "US" || us.ISO3 != "USA" || us.Name != "United States" || us.Continent != "NA" {
		t.Errorf("US = %+v", us)
	}
	if us.Neighbours != "CA,MX,CU" || us.Population != 327167434 {
		t.Errorf("US neighbours/population = %q/%d", us.Neighbours, us.Population)
	}
}

func TestParseCountriesSkipsDuplicatesAndShortLines(t *testing.T) {
	row := func(iso string, gid string) string {
		f := make([]string, 19)
		f[0], f[1], f[4], f[8], f[16] = iso, iso+"X", "Name "+iso, "EU", gid
		return strings.Join(f, "\t")
	}
	input := strings.Join([]string{
		"# comment",
		row("AA", "1"),
		row("BB", "1"),
		row("CC", "not-a-number"),
		"DD\tDDD",
		row("EE", "2"),
	}, "\n")
	countries, stats, err := ParseCountries(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseCountries: %v", err)
	}
	if len(countries) != 2 || countries[0].ISO != "AA" || countries[1].ISO != "EE" {
		t.Errorf("countries = %+v, want AA and EE", countries)
	}
	if stats.Skipped != 3 {
		t.Errorf("Skipped = %d, want 3", stats.Skipped)
	}
}

func TestParseRejectsOverlongLines(t *testing.T) {
	line := tsv("1", strings.Repeat("a", maxLineLen+1), "1", "US", "TX", "", "1")
	if _, _, err := ParseCities(strings.NewReader(line)); err == nil {
		t.Error("expected an error for a line longer than the scanner buffer")
	}
}
