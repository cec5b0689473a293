// Package loader is the data-access collaborator of the scoring engine: it
// materializes evaluation records from {token}.json files, either from a
// local directory or from a remote raw-content store, with a TTL cache in
// front. The engine itself never performs I/O.
package loader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/smartpaperhq/evalmeter/internal/cache"
	"github.com/smartpaperhq/evalmeter/internal/evalrecord"
	"github.com/smartpaperhq/evalmeter/internal/monitoring"
)

// DefaultTTL is how long a fetched record stays cached.
const DefaultTTL = 10 * time.Minute

// RemoteSource fetches record files from a raw-content HTTP store, for
// deployments that keep the evaluation corpus in a repository instead of on
// local disk.
type RemoteSource struct {
	BaseURL string
	client  *http.Client
	retry   RetryConfig
}

// NewRemoteSource creates a remote source rooted at baseURL
func NewRemoteSource(baseURL string) *RemoteSource {
	return &RemoteSource{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
		retry:   DefaultRetryConfig(),
	}
}

// fetch downloads one record file; nil bytes with nil error means not found.
func (r *RemoteSource) fetch(ctx context.Context, token string) ([]byte, error) {
	url := fmt.Sprintf("%s/%s.json", r.BaseURL, token)

	var data []byte
	err := retryWithConfig(ctx, r.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}

		resp, err := r.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			data = nil
			return nil
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("remote store returned status %d for %s", resp.StatusCode, url)
		}

		data, err = io.ReadAll(resp.Body)
		return err
	})

	return data, err
}

// Loader loads evaluation records by token
type Loader struct {
	dir     string
	remote  *RemoteSource
	cache   *cache.Cache
	metrics *monitoring.Metrics
	logger  *monitoring.Logger
}

// Option configures a Loader
type Option func(*Loader)

// WithRemote adds a remote fallback source consulted when a token is not on
// local disk.
func WithRemote(remote *RemoteSource) Option {
	return func(l *Loader) { l.remote = remote }
}

// WithMetrics wires load counters into the application metrics
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(l *Loader) { l.metrics = metrics }
}

// NewLoader creates a loader over a local record directory
func NewLoader(dir string, ttl time.Duration, logger *monitoring.Logger, opts ...Option) *Loader {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	l := &Loader{
		dir:    dir,
		cache:  cache.NewCache(ttl),
		logger: logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadByToken loads and validates one evaluation record. Returns nil for an
// absent or invalid record so batch aggregation skips it instead of failing;
// validation problems are logged, not raised.
func (l *Loader) LoadByToken(ctx context.Context, token string) *evalrecord.EvaluationRecord {
	start := time.Now()

	if !validToken(token) {
		slog.Warn("Rejected invalid record token", "token", token)
		return nil
	}

	if data, found := l.cache.Get(cache.RecordKey(token)); found {
		record := l.parse(token, data)
		l.logger.LoaderLogger(token, record != nil, time.Since(start), true)
		return record
	}

	data := l.read(ctx, token)
	if data == nil {
		l.logger.LoaderLogger(token, false, time.Since(start), false)
		return nil
	}

	record := l.parse(token, data)
	if record != nil {
		l.cache.Set(cache.RecordKey(token), data)
		if l.metrics != nil {
			l.metrics.IncrementRecordsLoaded()
		}
	}

	l.logger.LoaderLogger(token, record != nil, time.Since(start), false)
	return record
}

// LoadAll loads every record in the local directory, groups them into papers
// by DOI and returns a paper-set version fingerprint for cache keying.
func (l *Loader) LoadAll(ctx context.Context) ([]evalrecord.PaperRecord, string, error) {
	tokens, err := l.listTokens()
	if err != nil {
		return nil, "", err
	}

	records := make([]*evalrecord.EvaluationRecord, 0, len(tokens))
	for _, token := range tokens {
		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		default:
		}
		if record := l.LoadByToken(ctx, token); record != nil {
			records = append(records, record)
		}
	}

	return evalrecord.GroupByDOI(records), versionOf(tokens), nil
}

// Version fingerprints the current token set without loading any record.
// Cheap enough to call per request; cache keys derived from it go stale the
// moment a record is added or removed.
func (l *Loader) Version() (string, error) {
	tokens, err := l.listTokens()
	if err != nil {
		return "", err
	}
	return versionOf(tokens), nil
}

func (l *Loader) listTokens() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read record directory: %w", err)
	}

	var tokens []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		tokens = append(tokens, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(tokens)
	return tokens, nil
}

// Store writes a validated record file into the local directory and primes
// the cache, making the record visible to the next LoadAll.
func (l *Loader) Store(token string, data []byte) error {
	if !validToken(token) {
		return fmt.Errorf("invalid record token: %q", token)
	}
	if err := os.WriteFile(filepath.Join(l.dir, token+".json"), data, 0o644); err != nil {
		return fmt.Errorf("failed to write record file: %w", err)
	}
	l.cache.Set(cache.RecordKey(token), data)
	return nil
}

// ClearCache drops all cached records, forcing fresh reads
func (l *Loader) ClearCache() {
	l.cache.Clear()
}

// CacheStats exposes the record cache statistics
func (l *Loader) CacheStats() map[string]interface{} {
	return l.cache.Stats()
}

func (l *Loader) read(ctx context.Context, token string) []byte {
	path := filepath.Join(l.dir, token+".json")
	data, err := os.ReadFile(path)
	if err == nil {
		return data
	}
	if !os.IsNotExist(err) {
		slog.Warn("Failed to read record file", "token", token, "error", err)
		return nil
	}

	if l.remote == nil {
		return nil
	}

	data, err = l.remote.fetch(ctx, token)
	if err != nil {
		slog.Warn("Remote record fetch failed", "token", token, "error", err)
		return nil
	}
	return data
}

func (l *Loader) parse(token string, data []byte) *evalrecord.EvaluationRecord {
	record, err := evalrecord.Parse(data)
	if err != nil {
		slog.Warn("Skipping invalid evaluation record", "token", token, "error", err)
		return nil
	}
	return record
}

// validToken rejects tokens that could escape the record directory
func validToken(token string) bool {
	if token == "" || strings.ContainsAny(token, "/\\") || strings.Contains(token, "..") {
		return false
	}
	return true
}

// versionOf fingerprints the token set so aggregate caches invalidate when
// the corpus changes.
func versionOf(tokens []string) string {
	h := sha256.New()
	for _, token := range tokens {
		h.Write([]byte(token))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}
