package citybed

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// cacheFile holds the zstd-compressed gob encoding of the parsed Data.
const cacheFile = "snapshot.gob.zst"

// cacheFormat is bumped whenever Data changes shape, so stale caches are
// ignored instead of half-decoded.
const cacheFormat = 1

type cacheEnvelope struct {
	Format int
	Data   *Data
}

// writeCache stores d under dir.
func writeCache(dir string, d *Data) error {
	// 0755/0644 so other users cannot replace cached data.
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	var b bytes.Buffer
	zw, err := zstd.NewWriter(&b)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(zw).Encode(cacheEnvelope{Format: cacheFormat, Data: d}); err != nil {
		zw.Close()
		return fmt.Errorf("encoding cache: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compressing cache: %w", err)
	}
	return writeFileAtomic(filepath.Join(dir, cacheFile), b.Bytes())
}

// readCache loads the Data stored under dir.
func readCache(dir string) (*Data, error) {
	fh, err := os.Open(filepath.Join(dir, cacheFile))
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	zr, err := zstd.NewReader(fh)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var env cacheEnvelope
	if err := gob.NewDecoder(zr).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding cache: %w", err)
	}
	if env.Format != cacheFormat || env.Data == nil {
		return nil, fmt.Errorf("cache format %d, want %d", env.Format, cacheFormat)
	}
	if len(env.Data.Cities) == 0 {
		return nil, errors.New("cache holds no cities")
	}
	return env.Data, nil
}
