package citybed

import (
	"context"
	"slices"
	"strconv"

	"github.com/andreiashu/citybed/internal/metrics"
	"github.com/jellydator/ttlcache/v3"
)

// Search filters the snapshot's cities by q and disambiguates every match.
// Results follow the snapshot's name order. The snapshot is not modified.
func (s *Snapshot) Search(q Query) []Result {
	candidates := filter(s.Cities, q)
	results := make([]Result, len(candidates))
	for i, c := range candidates {
		results[i] = s.index.Disambiguate(c)
	}
	return results
}

// Search runs q against the current snapshot, loading it first if needed.
// A load failure is returned wrapped around ErrUnavailable; there are no
// partial results.
func (g *Gazetteer) Search(ctx context.Context, q Query) ([]Result, error) {
	s, err := g.Snapshot(ctx)
	if err != nil {
		metrics.SearchRequests.WithLabelValues("unavailable").Inc()
		return nil, err
	}

	var key string
	if g.results != nil {
		key = resultCacheKey(s.Version, q)
		if item := g.results.Get(key); item != nil {
			metrics.ResultCacheHits.Inc()
			metrics.SearchRequests.WithLabelValues("ok").Inc()
			return cloneResults(item.Value()), nil
		}
	}

	results := s.Search(q)
	metrics.SearchRequests.WithLabelValues("ok").Inc()
	metrics.SearchResults.Observe(float64(len(results)))
	g.log.Debug("search", "query", q.Values().Encode(), "results", len(results), "version", s.Version)

	if g.results != nil {
		g.results.Set(key, cloneResults(results), ttlcache.DefaultTTL)
	}
	return results, nil
}

func resultCacheKey(version int64, q Query) string {
	// Values sorts by key when encoding, so equal queries share a key.
	return q.Values().Encode() + "#" + strconv.FormatInt(version, 10)
}

// cloneResults copies results deep enough that callers cannot reach the
// cached entry through the AlternateNames backing arrays.
func cloneResults(in []Result) []Result {
	out := make([]Result, len(in))
	for i, r := range in {
		r.AlternateNames = slices.Clone(r.AlternateNames)
		out[i] = r
	}
	return out
}
