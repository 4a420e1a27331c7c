package citybed

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

var testAdmin1 = []AdminDivision{
	{ID: "a1-US-IL", Level: 1, CountryCode: "US", Admin1: "IL", Name: "Illinois"},
	{ID: "a1-US-MO", Level: 1, CountryCode: "US", Admin1: "MO", Name: "Missouri"},
	{ID: "a1-US-MA", Level: 1, CountryCode: "US", Admin1: "MA", Name: "Massachusetts"},
	{ID: "a1-US-OR", Level: 1, CountryCode: "US", Admin1: "OR", Name: "Oregon"},
	{ID: "a1-US-TX", Level: 1, CountryCode: "US", Admin1: "TX", Name: "Texas"},
	{ID: "a1-GB-ENG", Level: 1, CountryCode: "GB", Admin1: "ENG", Name: "England"},
}

var testAdmin2 = []AdminDivision{
	{ID: "a2-US-IL-167", Level: 2, CountryCode: "US", Admin1: "IL", Admin2: "167", Name: "Sangamon County"},
	{ID: "a2-US-IL-031", Level: 2, CountryCode: "US", Admin1: "IL", Admin2: "031", Name: "Cook County"},
}

// newTestSnapshot indexes cities against the test admin tables.
func newTestSnapshot(cities ...City) *Snapshot {
	return NewSnapshot(&Data{Cities: cities, Admin1: testAdmin1, Admin2: testAdmin2}, 1)
}

var allCountries = Query{AllCountries: true}

// resultsByID indexes search results by city id.
func resultsByID(results []Result) map[string]Result {
	m := make(map[string]Result, len(results))
	for _, r := range results {
		m[r.ID] = r
	}
	return m
}

func tsv(fields ...string) string {
	return strings.Join(fields, "\t")
}

// readFixtures loads the table fixtures under testdata/.
func readFixtures(t *testing.T) map[Table]string {
	t.Helper()
	out := make(map[Table]string, len(tables))
	for _, tbl := range tables {
		b, err := os.ReadFile(filepath.Join("testdata", tbl.FileName()))
		if err != nil {
			t.Fatalf("reading fixture %s: %v", tbl, err)
		}
		out[tbl] = string(b)
	}
	return out
}

var errSourceDown = errors.New("source down")

// fakeSource serves tables from memory and counts loads.
type fakeSource struct {
	tables map[Table]string

	mu    sync.Mutex
	err   error
	loads int           // opens of the city table
	gate  chan struct{} // when set, Open waits for it to close
}

func (f *fakeSource) Open(ctx context.Context, t Table) (io.ReadCloser, error) {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if t == TableCities {
		f.loads++
	}
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.tables[t])), nil
}

func (f *fakeSource) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeSource) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}
