// Package cache persists derived tables between runs. Entries are plain CSV
// files addressed by name inside one directory, each paired with a SHA-256
// sidecar so a torn or edited file is recomputed instead of trusted.
//
// Staleness is not tracked: deleting an entry is the only way to force a
// rebuild from changed inputs.
package cache

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/dst-accident-etl/internal/observability"
)

// ErrChecksumMismatch is returned by Verify when an entry does not match its
// sidecar digest.
var ErrChecksumMismatch = errors.New("cache checksum mismatch")

const checksumSuffix = ".sha256"

// Lookup results, used as metric labels.
const (
	resultHit     = "hit"
	resultMiss    = "miss"
	resultCorrupt = "corrupt"
)

// Store is a directory of checksummed cache entries.
type Store struct {
	dir     string
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewStore creates a Store rooted at dir. The directory is created on first
// write.
func NewStore(dir string, logger *slog.Logger, metrics *observability.Metrics) *Store {
	return &Store{dir: dir, logger: logger, metrics: metrics}
}

// Path returns the file path of the named entry.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Exists reports whether both the entry and its checksum sidecar are present.
func (s *Store) Exists(name string) bool {
	for _, p := range []string{s.Path(name), s.Path(name) + checksumSuffix} {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

// Verify recomputes the digest of the named entry and compares it with the
// sidecar.
func (s *Store) Verify(name string) error {
	want, err := readChecksum(s.Path(name) + checksumSuffix)
	if err != nil {
		return err
	}
	got, err := fileDigest(s.Path(name))
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: %s", ErrChecksumMismatch, name)
	}
	return nil
}

// Write stores the output of encode under name. The entry only becomes
// visible once fully written: data goes to a temp file in the same directory,
// is synced and renamed over the target, then the sidecar is written the
// same way.
func (s *Store) Write(name string, encode func(io.Writer) error) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	h := sha256.New()
	err := WriteAtomic(s.Path(name), func(w io.Writer) error {
		return encode(io.MultiWriter(w, h))
	})
	if err != nil {
		return fmt.Errorf("write cache entry %s: %w", name, err)
	}

	sum := hex.EncodeToString(h.Sum(nil))
	err = WriteAtomic(s.Path(name)+checksumSuffix, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "%s  %s\n", sum, name)
		return err
	})
	if err != nil {
		return fmt.Errorf("write cache checksum %s: %w", name, err)
	}
	return nil
}

// lookup classifies one entry as hit, miss or corrupt and records the result.
func (s *Store) lookup(name string) bool {
	result := resultHit
	switch {
	case !s.Exists(name):
		result = resultMiss
	default:
		if err := s.Verify(name); err != nil {
			s.logger.Warn("cache entry failed verification, recomputing",
				"entry", name,
				"error", err,
			)
			result = resultCorrupt
		}
	}
	s.metrics.CacheLookups.WithLabelValues(name, result).Inc()
	return result == resultHit
}

// LoadOrCompute returns the cached value when every named entry is present
// and verified. Otherwise it calls compute and then persist immediately, so
// the next run can load. The boolean reports a cache hit.
func LoadOrCompute[T any](
	ctx context.Context,
	s *Store,
	names []string,
	load func() (T, error),
	compute func(context.Context) (T, error),
	persist func(T) error,
) (T, bool, error) {
	hit := true
	for _, name := range names {
		if !s.lookup(name) {
			hit = false
		}
	}

	if hit {
		v, err := load()
		if err != nil {
			var zero T
			return zero, true, fmt.Errorf("load cached %s: %w", strings.Join(names, ","), err)
		}
		s.logger.Info("loaded cached tables", "entries", names)
		return v, true, nil
	}

	v, err := compute(ctx)
	if err != nil {
		var zero T
		return zero, false, err
	}
	if err := persist(v); err != nil {
		var zero T
		return zero, false, err
	}
	s.logger.Info("computed and cached tables", "entries", names)
	return v, false, nil
}

// WriteAtomic writes a file through a synced temp file and a rename, so
// readers see either the old content or the complete new content.
func WriteAtomic(path string, encode func(io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = encode(bw); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func readChecksum(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	fields := strings.Fields(string(b))
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: empty sidecar %s", ErrChecksumMismatch, filepath.Base(path))
	}
	return fields[0], nil
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
