// Package registry fetches and caches package metadata from a
// PyPI-compatible index.
package registry

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/pipgrade/pipgrade/client"
	"github.com/pipgrade/pipgrade/pep440"
)

const (
	// DefaultIndexURL is the public package index.
	DefaultIndexURL = "https://pypi.org"

	// DefaultConcurrency bounds simultaneous index requests.
	DefaultConcurrency = 10
)

type packageResponse struct {
	Info     infoBlock                `json:"info"`
	Releases map[string][]releaseFile `json:"releases"`
}

type infoBlock struct {
	Name           string   `json:"name"`
	Version        string   `json:"version"`
	RequiresDist   []string `json:"requires_dist"`
	RequiresPython string   `json:"requires_python"`
}

type releaseFile struct {
	Yanked         bool   `json:"yanked"`
	RequiresPython string `json:"requires_python"`
}

type versionInfoResponse struct {
	Info infoBlock `json:"info"`
}

// Store caches package metadata. Concurrent Fetch calls for the same
// name collapse into a single index request, and total in-flight
// requests are bounded.
type Store struct {
	client   *client.Client
	indexURL string
	urls     *IndexURLs
	sem      *semaphore.Weighted
	group    singleflight.Group
	logger   *log.Logger

	mu    sync.RWMutex
	cache map[string]*PackageData
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithIndexURL points the store at a different index, e.g. a private
// mirror or a test server.
func WithIndexURL(url string) StoreOption {
	return func(s *Store) {
		s.indexURL = strings.TrimSuffix(url, "/")
	}
}

// WithConcurrency sets the maximum number of simultaneous index
// requests. Values below 1 keep the default.
func WithConcurrency(n int) StoreOption {
	return func(s *Store) {
		if n >= 1 {
			s.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithClient sets the HTTP client used for index requests.
func WithClient(c *client.Client) StoreOption {
	return func(s *Store) {
		s.client = c
	}
}

// WithStoreLogger sets the store's logger.
func WithStoreLogger(l *log.Logger) StoreOption {
	return func(s *Store) {
		s.logger = l
	}
}

// NewStore creates a store backed by the public index with the default
// concurrency bound.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		indexURL: DefaultIndexURL,
		sem:      semaphore.NewWeighted(DefaultConcurrency),
		logger:   log.New(io.Discard),
		cache:    make(map[string]*PackageData),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = client.DefaultClient()
	}
	s.urls = NewIndexURLs(s.indexURL)
	return s
}

// URLs returns the store's URL builder.
func (s *Store) URLs() *IndexURLs {
	return s.urls
}

// Fetch returns the metadata for a package, hitting the index at most
// once per name regardless of how many goroutines ask. Failed fetches
// are not cached; a later call retries.
func (s *Store) Fetch(ctx context.Context, name string) (*PackageData, error) {
	name = pep440.NormalizeName(name)

	if data, ok := s.Cached(name); ok {
		return data, nil
	}

	ch := s.group.DoChan(name, func() (any, error) {
		// Re-check under the group: a racing call may have filled the
		// cache between the fast path and DoChan.
		if data, ok := s.Cached(name); ok {
			return data, nil
		}

		if err := s.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer s.sem.Release(1)

		data, err := s.fetchPackage(ctx, name)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.cache[name] = data
		s.mu.Unlock()
		return data, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			s.group.Forget(name)
			return nil, res.Err
		}
		return res.Val.(*PackageData), nil
	case <-ctx.Done():
		s.group.Forget(name)
		return nil, ctx.Err()
	}
}

// Prefetch warms the cache for a batch of names. Per-package failures
// are logged and skipped; they surface again on the eventual Fetch.
func (s *Store) Prefetch(ctx context.Context, names []string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range names {
		g.Go(func() error {
			if _, err := s.Fetch(ctx, name); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Debug("prefetch failed", "package", name, "err", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Cached returns the metadata for a name if already fetched.
func (s *Store) Cached(name string) (*PackageData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.cache[pep440.NormalizeName(name)]
	return data, ok
}

// VersionDependencies returns the dependency strings of a specific
// release, fetching and caching them on first use. Dependencies of the
// latest release are seeded from the package fetch and need no extra
// request.
func (s *Store) VersionDependencies(ctx context.Context, name, version string) ([]string, error) {
	name = pep440.NormalizeName(name)

	data, err := s.Fetch(ctx, name)
	if err != nil {
		return nil, err
	}

	if deps, ok := data.Dependencies(version); ok {
		return deps, nil
	}

	key := name + "@" + version
	ch := s.group.DoChan(key, func() (any, error) {
		if deps, ok := data.Dependencies(version); ok {
			return deps, nil
		}

		if err := s.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer s.sem.Release(1)

		deps, err := s.fetchVersionDependencies(ctx, name, version)
		if err != nil {
			return nil, err
		}
		data.setDependencies(version, deps)
		return deps, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			s.group.Forget(key)
			return nil, res.Err
		}
		return res.Val.([]string), nil
	case <-ctx.Done():
		s.group.Forget(key)
		return nil, ctx.Err()
	}
}

func (s *Store) fetchPackage(ctx context.Context, name string) (*PackageData, error) {
	url := s.urls.PackageJSON(name)
	s.logger.Debug("fetching package", "package", name, "url", url)

	var resp packageResponse
	if err := s.client.GetJSON(ctx, url, &resp); err != nil {
		if httpErr, ok := err.(*client.HTTPError); ok && httpErr.IsNotFound() {
			return nil, &NotFoundError{Name: name}
		}
		return nil, &NetworkError{Name: name, Err: err}
	}

	data := newPackageData(name)
	data.LatestVersion = resp.Info.Version
	data.LatestRequiresPython = resp.Info.RequiresPython
	data.LatestDependencies = extractDependencies(resp.Info.RequiresDist)

	versions := make([]string, 0, len(resp.Releases))
	for num, files := range resp.Releases {
		if allYanked(files) {
			continue
		}
		versions = append(versions, num)
		for _, f := range files {
			if f.RequiresPython != "" {
				data.RequiresPython[num] = f.RequiresPython
				break
			}
		}
	}
	data.setVersions(versions)

	if data.LatestVersion != "" {
		data.setDependencies(data.LatestVersion, data.LatestDependencies)
	}

	s.logger.Debug("fetched package",
		"package", name,
		"latest", data.LatestVersion,
		"versions", len(versions))
	return data, nil
}

func (s *Store) fetchVersionDependencies(ctx context.Context, name, version string) ([]string, error) {
	url := s.urls.VersionJSON(name, version)
	s.logger.Debug("fetching version dependencies", "package", name, "version", version)

	var resp versionInfoResponse
	if err := s.client.GetJSON(ctx, url, &resp); err != nil {
		if httpErr, ok := err.(*client.HTTPError); ok && httpErr.IsNotFound() {
			return nil, &NotFoundError{Name: name, Version: version}
		}
		return nil, &NetworkError{Name: name, Err: err}
	}

	return extractDependencies(resp.Info.RequiresDist), nil
}

func allYanked(files []releaseFile) bool {
	if len(files) == 0 {
		return false
	}
	for _, f := range files {
		if !f.Yanked {
			return false
		}
	}
	return true
}

// extractDependencies keeps runtime dependency strings and drops
// entries gated behind an extra.
func extractDependencies(requiresDist []string) []string {
	var deps []string
	for _, raw := range requiresDist {
		if _, marker, found := strings.Cut(raw, ";"); found {
			normalized := strings.ReplaceAll(marker, " ", "")
			if strings.Contains(normalized, "extra==") {
				continue
			}
		}
		deps = append(deps, strings.TrimSpace(raw))
	}
	return deps
}
