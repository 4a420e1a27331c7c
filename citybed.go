// Package citybed answers place-name searches over a GeoNames-style
// gazetteer and disambiguates same-named places by appending the least
// administrative context that makes each name unique.
//
// The reference data is loaded once, lazily, into an immutable Snapshot.
// A Gazetteer is safe for concurrent use; searches never mutate the
// snapshot they run against.
package citybed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andreiashu/citybed/internal/metrics"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"
)

// ErrUnavailable is returned (wrapped) by every operation that needs the
// reference data when it could not be loaded.
var ErrUnavailable = errors.New("citybed: gazetteer data unavailable")

// City is a populated place.
type City struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	AlternateNames []string `json:"alternateNames"`
	Population     int      `json:"population"`
	CountryCode    string   `json:"countryCode"`
	Admin1         string   `json:"admin1"`
	Admin2         string   `json:"admin2,omitempty"`
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	Geohash        string   `json:"geohash,omitempty"`
}

// AdminDivision is a first or second level administrative division.
type AdminDivision struct {
	ID             string
	Level          int // 1 or 2
	CountryCode    string
	Admin1         string
	Admin2         string // empty for level 1
	Name           string
	AlternateNames []string
}

// Country contains metadata about a country from countryInfo.txt.
type Country struct {
	GeonameID          int     `json:"geonameid"`
	ISO                string  `json:"country"`
	ISO3               string  `json:"iso3"`
	ISONumeric         int     `json:"-"`
	Fips               string  `json:"-"`
	Name               string  `json:"name"`
	Capital            string  `json:"capital,omitempty"`
	Area               float64 `json:"-"`
	Population         int64   `json:"-"`
	Continent          string  `json:"continent"`
	Tld                string  `json:"-"`
	CurrencyCode       string  `json:"-"`
	CurrencyName       string  `json:"-"`
	Phone              string  `json:"-"`
	PostalCodeFormat   string  `json:"-"`
	PostalCodeRegex    string  `json:"-"`
	Languages          string  `json:"-"`
	Neighbours         string  `json:"-"`
	EquivalentFipsCode string  `json:"-"`
}

// Data is the parsed, not yet indexed, content of the four source tables.
type Data struct {
	Cities    []City
	Admin1    []AdminDivision
	Admin2    []AdminDivision
	Countries []Country
}

// Snapshot is an immutable, indexed view of the gazetteer.
type Snapshot struct {
	Version   int64
	LoadedAt  time.Time
	Cities    []City // sorted by case-insensitive name
	Admin1    []AdminDivision
	Admin2    []AdminDivision
	Countries []Country

	index *Index
}

// NewSnapshot sorts the cities of d and builds the lookup indices over them.
// d is not modified.
func NewSnapshot(d *Data, version int64) *Snapshot {
	cities := make([]City, len(d.Cities))
	copy(cities, d.Cities)
	sort.Stable(byName(cities))
	return &Snapshot{
		Version:   version,
		LoadedAt:  time.Now(),
		Cities:    cities,
		Admin1:    d.Admin1,
		Admin2:    d.Admin2,
		Countries: d.Countries,
		index:     BuildIndex(cities, d.Admin1, d.Admin2),
	}
}

// Index returns the lookup indices of the snapshot.
func (s *Snapshot) Index() *Index { return s.index }

// byName sorts cities case-insensitively by primary name.
type byName []City

func (c byName) Len() int           { return len(c) }
func (c byName) Swap(i, j int)      { c[i], c[j] = c[j], c[i] }
func (c byName) Less(i, j int) bool { return compareCaseInsensitive(c[i].Name, c[j].Name) < 0 }

// compareCaseInsensitive compares two strings case-insensitively.
// strings.ToLower keeps the comparison correct for non-ASCII names.
func compareCaseInsensitive(a, b string) int {
	return strings.Compare(toLower(a), toLower(b))
}

func toLower(s string) string { return strings.ToLower(s) }

func toUpper(s string) string { return strings.ToUpper(s) }

// Config contains configuration options for a Gazetteer.
type Config struct {
	DataDir        string        // Directory raw downloads are kept in (default: "./citybed-data")
	CacheDir       string        // Directory for the parsed snapshot cache (default: "./citybed-cache", "" disables)
	BaseURL        string        // Base URL of the city and admin tables
	CountriesURL   string        // URL of countryInfo.txt
	Source         Source        // Overrides the HTTP source built from the URLs above
	Logger         *slog.Logger  // Defaults to slog.Default()
	HTTPClient     *http.Client  // Used by the default HTTP source
	ResultCacheTTL time.Duration // 0 disables the search result cache
}

// Option is a functional option for configuring a Gazetteer.
type Option func(*Config)

// WithDataDir sets the directory raw downloads are persisted in.
func WithDataDir(dir string) Option {
	return func(c *Config) {
		c.DataDir = dir
	}
}

// WithCacheDir sets the directory for the parsed snapshot cache.
// An empty dir disables the cache.
func WithCacheDir(dir string) Option {
	return func(c *Config) {
		c.CacheDir = dir
	}
}

// WithBaseURL sets the base URL the city and admin tables are fetched from.
func WithBaseURL(u string) Option {
	return func(c *Config) {
		c.BaseURL = u
	}
}

// WithCountriesURL sets the URL of the country table.
func WithCountriesURL(u string) Option {
	return func(c *Config) {
		c.CountriesURL = u
	}
}

// WithSource replaces the default HTTP source.
func WithSource(src Source) Option {
	return func(c *Config) {
		c.Source = src
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

// WithHTTPClient sets the client used by the default HTTP source.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = client
	}
}

// WithResultCacheTTL enables caching of search results for ttl.
func WithResultCacheTTL(ttl time.Duration) Option {
	return func(c *Config) {
		c.ResultCacheTTL = ttl
	}
}

func defaultConfig() *Config {
	return &Config{
		DataDir:      "./citybed-data",
		CacheDir:     "./citybed-cache",
		BaseURL:      DefaultBaseURL,
		CountriesURL: DefaultCountriesURL,
	}
}

// Gazetteer serves searches from a lazily loaded Snapshot.
type Gazetteer struct {
	cfg    *Config
	log    *slog.Logger
	source Source

	snap  atomic.Pointer[Snapshot]
	group singleflight.Group

	mu      sync.Mutex // serializes publish
	version int64

	results *ttlcache.Cache[string, []Result]
}

// New creates a Gazetteer. No data is loaded until the first call that
// needs it.
func New(opts ...Option) *Gazetteer {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = httpClient
	}

	g := &Gazetteer{cfg: cfg, log: cfg.Logger, source: cfg.Source}
	if g.source == nil {
		g.source = &HTTPSource{
			URLs:    DefaultURLs(cfg.BaseURL, cfg.CountriesURL),
			Client:  cfg.HTTPClient,
			DataDir: cfg.DataDir,
			Logger:  cfg.Logger,
		}
	}
	if cfg.ResultCacheTTL > 0 {
		g.results = ttlcache.New(
			ttlcache.WithTTL[string, []Result](cfg.ResultCacheTTL),
			ttlcache.WithDisableTouchOnHit[string, []Result](),
		)
		go g.results.Start()
	}
	return g
}

// Close stops background work. The Gazetteer must not be used afterwards.
func (g *Gazetteer) Close() {
	if g.results != nil {
		g.results.Stop()
	}
}

var (
	defaultGazetteer     *Gazetteer
	defaultGazetteerOnce sync.Once
)

// Default returns a process-wide Gazetteer with the default configuration.
// A failed load is retried by the next call that needs the data.
func Default() *Gazetteer {
	defaultGazetteerOnce.Do(func() {
		defaultGazetteer = New()
	})
	return defaultGazetteer
}

// Loaded reports whether a snapshot is available without loading one.
func (g *Gazetteer) Loaded() bool { return g.snap.Load() != nil }

// Snapshot returns the current snapshot, loading it on first use.
// Concurrent first callers share a single load. When the load fails nothing
// is memoized and the next call tries again.
func (g *Gazetteer) Snapshot(ctx context.Context) (*Snapshot, error) {
	if s := g.snap.Load(); s != nil {
		return s, nil
	}
	return g.do(ctx, "load", true)
}

// Reload builds a new snapshot straight from the source, bypassing the disk
// cache, and swaps it in. Searches already running keep their snapshot.
func (g *Gazetteer) Reload(ctx context.Context) (*Snapshot, error) {
	return g.do(ctx, "reload", false)
}

func (g *Gazetteer) do(ctx context.Context, key string, useCache bool) (*Snapshot, error) {
	// The shared load outlives any single caller; callers stop waiting on
	// their own context.
	loadCtx := context.WithoutCancel(ctx)
	ch := g.group.DoChan(key, func() (any, error) {
		if useCache {
			if s := g.snap.Load(); s != nil {
				return s, nil
			}
		}
		s, fresh, err := g.load(loadCtx, useCache)
		if err != nil {
			metrics.LoadFailures.Inc()
			return nil, err
		}
		cur := g.publish(s, !useCache)
		if cur != s {
			g.log.Debug("discarded first load, a reload finished before it", "version", cur.Version)
			return cur, nil
		}
		if fresh != nil && g.cfg.CacheDir != "" {
			if err := writeCache(g.cfg.CacheDir, fresh); err != nil {
				g.log.Warn("failed to store gazetteer cache", "dir", g.cfg.CacheDir, "error", err)
			}
		}
		return s, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*Snapshot), nil
	}
}

// publish installs s and stamps its version. A first load (replace false)
// never overwrites a snapshot already in place, since a reload that finished
// while it ran holds newer data. Versions grow in publish order.
func (g *Gazetteer) publish(s *Snapshot, replace bool) *Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cur := g.snap.Load(); cur != nil && !replace {
		return cur
	}
	g.version++
	s.Version = g.version
	g.snap.Store(s)
	metrics.SnapshotVersion.Set(float64(s.Version))
	g.log.Info("gazetteer snapshot published", "version", s.Version, "cities", len(s.Cities))
	return s
}

// load builds an unpublished snapshot. fresh holds the parsed data when it
// came from the source rather than the disk cache.
func (g *Gazetteer) load(ctx context.Context, useCache bool) (s *Snapshot, fresh *Data, err error) {
	start := time.Now()
	if useCache && g.cfg.CacheDir != "" {
		d, err := readCache(g.cfg.CacheDir)
		if err == nil {
			s := NewSnapshot(d, 0)
			metrics.LoadDuration.WithLabelValues("cache").Observe(time.Since(start).Seconds())
			g.log.Info("loaded gazetteer from cache", "cities", len(s.Cities), "duration", time.Since(start))
			return s, nil, nil
		}
		g.log.Debug("gazetteer cache not used", "dir", g.cfg.CacheDir, "error", err)
	}

	d, err := LoadData(ctx, g.source, g.log)
	if err != nil {
		return nil, nil, err
	}
	s = NewSnapshot(d, 0)
	metrics.LoadDuration.WithLabelValues("source").Observe(time.Since(start).Seconds())
	g.log.Info("loaded gazetteer from source",
		"cities", len(s.Cities),
		"admin1", len(s.Admin1),
		"admin2", len(s.Admin2),
		"countries", len(s.Countries),
		"duration", time.Since(start))
	return s, d, nil
}

// LoadData reads and parses all four tables from src.
func LoadData(ctx context.Context, src Source, log *slog.Logger) (*Data, error) {
	d := &Data{}
	for _, t := range tables {
		if err := loadTable(ctx, src, t, d, log); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
	}
	return d, nil
}

func loadTable(ctx context.Context, src Source, t Table, d *Data, log *slog.Logger) error {
	r, err := src.Open(ctx, t)
	if err != nil {
		return fmt.Errorf("opening %s: %w", t, err)
	}
	defer r.Close()

	var stats ParseStats
	switch t {
	case TableCities:
		d.Cities, stats, err = ParseCities(r)
	case TableAdmin1:
		d.Admin1, stats, err = ParseAdmin(r, 1)
	case TableAdmin2:
		d.Admin2, stats, err = ParseAdmin(r, 2)
	case TableCountries:
		d.Countries, stats, err = ParseCountries(r)
	default:
		return fmt.Errorf("unknown table %q", t)
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", t, err)
	}
	metrics.SkippedRecords.WithLabelValues(string(t)).Add(float64(stats.Skipped))
	log.Debug("parsed table", "table", t, "lines", stats.Lines, "skipped", stats.Skipped, "deleted", stats.Deleted, "records", stats.Records)
	return nil
}

// Countries returns the parsed country table.
func (g *Gazetteer) Countries(ctx context.Context) ([]Country, error) {
	s, err := g.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Country, len(s.Countries))
	copy(out, s.Countries)
	return out, nil
}
