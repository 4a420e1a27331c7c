package citybed

import (
	"bytes"
	"encoding/gob"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	d := &Data{
		Cities: []City{
			{ID: "1", Name: "Tokyo", AlternateNames: []string{"Edo"}, CountryCode: "JP", Admin1: "40", Population: 8336599, Latitude: 35.6895, Longitude: 139.69171, Geohash: "xn774c06kdtve"},
		},
		Admin1:    []AdminDivision{{ID: "a1-JP-40", Level: 1, CountryCode: "JP", Admin1: "40", Name: "Tokyo"}},
		Countries: []Country{{GeonameID: 1861060, ISO: "JP", ISO3: "JPN", Name: "Japan", Continent: "AS", Population: 126529100}},
	}
	require.NoError(t, writeCache(dir, d))

	got, err := readCache(dir)
	require.NoError(t, err)
	assert.Equal(t, d, got)
}

func TestReadCacheRejects(t *testing.T) {
	write := func(t *testing.T, env cacheEnvelope) string {
		t.Helper()
		dir := t.TempDir()
		var b bytes.Buffer
		zw, err := zstd.NewWriter(&b)
		require.NoError(t, err)
		require.NoError(t, gob.NewEncoder(zw).Encode(env))
		require.NoError(t, zw.Close())
		require.NoError(t, os.WriteFile(filepath.Join(dir, cacheFile), b.Bytes(), 0644))
		return dir
	}

	t.Run("missing", func(t *testing.T) {
		_, err := readCache(t.TempDir())
		assert.Error(t, err)
	})
	t.Run("other format", func(t *testing.T) {
		dir := write(t, cacheEnvelope{Format: cacheFormat + 1, Data: &Data{Cities: []City{{ID: "1", Name: "A"}}}})
		_, err := readCache(dir)
		assert.Error(t, err)
	})
	t.Run("no cities", func(t *testing.T) {
		dir := write(t, cacheEnvelope{Format: cacheFormat, Data: &Data{Countries: []Country{{ISO: "JP"}}}})
		_, err := readCache(dir)
		assert.ErrorContains(t, err, "no cities")
	})
	t.Run("not compressed", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, cacheFile), []byte("garbage"), 0644))
		_, err := readCache(dir)
		assert.Error(t, err)
	})
}
