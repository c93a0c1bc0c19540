package registry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pipgrade/pipgrade/client"
	"github.com/pipgrade/pipgrade/pep440"
)

const requestsJSON = `{
	"info": {
		"name": "requests",
		"version": "2.32.0",
		"requires_python": ">=3.8",
		"requires_dist": [
			"urllib3>=1.21.1,<3",
			"idna>=2.5,<4",
			"PySocks>=1.5.6; extra == \"socks\""
		]
	},
	"releases": {
		"2.28.0": [{"requires_python": ">=3.7"}],
		"2.31.0": [{"requires_python": ">=3.7"}],
		"2.32.0": [{"requires_python": ">=3.8"}],
		"3.0.0b1": [{}],
		"2.30.0": [{"yanked": true}]
	}
}`

func newIndexServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/pypi/requests/json":
			_, _ = w.Write([]byte(requestsJSON))
		case "/pypi/requests/2.28.0/json":
			_, _ = w.Write([]byte(`{"info": {"requires_dist": ["urllib3>=1.21.1,<1.27", "charset_normalizer>=2; extra == \"use_chardet_on_py3\""]}}`))
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestStore(t *testing.T, url string, opts ...StoreOption) *Store {
	t.Helper()
	opts = append([]StoreOption{
		WithIndexURL(url),
		WithClient(client.NewClient(client.WithMaxRetries(0), client.WithBaseDelay(time.Millisecond))),
	}, opts...)
	return NewStore(opts...)
}

func TestFetch(t *testing.T) {
	server := newIndexServer(t, nil)
	store := newTestStore(t, server.URL)

	data, err := store.Fetch(context.Background(), "Requests")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if data.Name != "requests" {
		t.Errorf("Name = %q, want requests", data.Name)
	}
	if data.LatestVersion != "2.32.0" {
		t.Errorf("LatestVersion = %q, want 2.32.0", data.LatestVersion)
	}

	// Stable versions only, newest first: prerelease and fully yanked
	// releases are excluded.
	want := []string{"2.32.0", "2.31.0", "2.28.0"}
	if got := data.Versions(); !reflect.DeepEqual(got, want) {
		t.Errorf("Versions() = %v, want %v", got, want)
	}
	if got := data.AllVersions(); len(got) != 4 || got[0] != "3.0.0b1" {
		t.Errorf("AllVersions() = %v, want prerelease included and first", got)
	}

	// Extra-gated dependencies are dropped.
	wantDeps := []string{"urllib3>=1.21.1,<3", "idna>=2.5,<4"}
	if !reflect.DeepEqual(data.LatestDependencies, wantDeps) {
		t.Errorf("LatestDependencies = %v, want %v", data.LatestDependencies, wantDeps)
	}

	if data.RequiresPython["2.28.0"] != ">=3.7" {
		t.Errorf("RequiresPython[2.28.0] = %q, want >=3.7", data.RequiresPython["2.28.0"])
	}
}

func TestFetch_Dedup(t *testing.T) {
	var calls atomic.Int32
	server := newIndexServer(t, &calls)
	store := newTestStore(t, server.URL)

	var wg sync.WaitGroup
	errs := make([]error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = store.Fetch(context.Background(), "requests")
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			t.Fatalf("concurrent Fetch: %v", err)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("network calls = %d, want exactly 1", n)
	}

	// Cached afterwards, still one call.
	if _, err := store.Fetch(context.Background(), "requests"); err != nil {
		t.Fatal(err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("network calls after cached Fetch = %d, want 1", n)
	}
}

func TestFetch_NotFound(t *testing.T) {
	server := newIndexServer(t, nil)
	store := newTestStore(t, server.URL)

	_, err := store.Fetch(context.Background(), "no-such-package")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Name != "no-such-package" {
		t.Errorf("expected *NotFoundError naming the package, got %v", err)
	}
}

func TestFetch_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()
	store := newTestStore(t, server.URL)

	_, err := store.Fetch(context.Background(), "requests")
	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("expected *NetworkError, got %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("a transport failure must not look like not-found")
	}
}

func TestFetch_ErrorNotCached(t *testing.T) {
	var calls atomic.Int32
	var fail atomic.Bool
	fail.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if fail.Load() {
			http.Error(w, "flaky", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(requestsJSON))
	}))
	defer server.Close()
	store := newTestStore(t, server.URL)

	if _, err := store.Fetch(context.Background(), "requests"); err == nil {
		t.Fatal("expected first fetch to fail")
	}

	fail.Store(false)
	if _, err := store.Fetch(context.Background(), "requests"); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}

func TestVersionDependencies(t *testing.T) {
	var calls atomic.Int32
	server := newIndexServer(t, &calls)
	store := newTestStore(t, server.URL)

	// The latest version's dependencies are seeded by the package fetch
	// and cost no extra request.
	deps, err := store.VersionDependencies(context.Background(), "requests", "2.32.0")
	if err != nil {
		t.Fatalf("VersionDependencies: %v", err)
	}
	if len(deps) != 2 {
		t.Fatalf("deps = %v, want 2 entries", deps)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1 (seeded from package fetch)", n)
	}

	// Older versions fetch lazily, once.
	for i := 0; i < 2; i++ {
		deps, err = store.VersionDependencies(context.Background(), "requests", "2.28.0")
		if err != nil {
			t.Fatalf("VersionDependencies(2.28.0): %v", err)
		}
	}
	if len(deps) != 1 || deps[0] != "urllib3>=1.21.1,<1.27" {
		t.Errorf("deps = %v, want the single non-extra entry", deps)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("calls = %d, want 2 (version fetch cached)", n)
	}
}

func TestPrefetch(t *testing.T) {
	var calls atomic.Int32
	server := newIndexServer(t, &calls)
	store := newTestStore(t, server.URL)

	// Unknown names are best-effort: logged, not fatal.
	if err := store.Prefetch(context.Background(), []string{"requests", "no-such-package"}); err != nil {
		t.Fatalf("Prefetch: %v", err)
	}

	if _, ok := store.Cached("requests"); !ok {
		t.Error("requests should be cached after Prefetch")
	}
	if _, ok := store.Cached("no-such-package"); ok {
		t.Error("failed fetch must not populate the cache")
	}
}

func TestFetch_Canceled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(requestsJSON))
	}))
	defer server.Close()
	store := newTestStore(t, server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := store.Fetch(ctx, "requests")
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected error from canceled fetch")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("canceled Fetch did not return promptly")
	}

	// The per-name state is not poisoned: a fresh call succeeds.
	close(release)
	if _, err := store.Fetch(context.Background(), "requests"); err != nil {
		t.Fatalf("Fetch after cancellation: %v", err)
	}
}

func TestPackageDataQueries(t *testing.T) {
	data := newPackageData("demo")
	data.setVersions([]string{"1.0.0", "1.5.0", "1.9.0", "2.0.0", "2.4.0", "3.0.0a1"})
	data.RequiresPython["2.4.0"] = ">=3.10"

	if got := data.LatestStable(); got != "2.4.0" {
		t.Errorf("LatestStable = %q, want 2.4.0", got)
	}

	want := []string{"1.9.0", "1.5.0", "1.0.0"}
	if got := data.VersionsInMajor(1); !reflect.DeepEqual(got, want) {
		t.Errorf("VersionsInMajor(1) = %v, want %v", got, want)
	}

	specs, err := pep440.ParseSpecifierSet(">=1.0,<2.0")
	if err != nil {
		t.Fatal(err)
	}
	if got := data.MaxSatisfying(specs, 1); got != "1.9.0" {
		t.Errorf("MaxSatisfying(>=1.0,<2.0, major 1) = %q, want 1.9.0", got)
	}
	if got := data.MaxSatisfying(specs, -1); got != "1.9.0" {
		t.Errorf("MaxSatisfying without bound = %q, want 1.9.0", got)
	}
	none, err := pep440.ParseSpecifierSet(">=9.0")
	if err != nil {
		t.Fatal(err)
	}
	if got := data.MaxSatisfying(none, 2); got != "" {
		t.Errorf("MaxSatisfying(>=9.0) = %q, want empty", got)
	}

	if !data.RuntimeCompatible("1.0.0", pep440.MustParse("3.8")) {
		t.Error("versions without a constraint are compatible")
	}
	if data.RuntimeCompatible("2.4.0", pep440.MustParse("3.8")) {
		t.Error("2.4.0 requires >=3.10, 3.8 must be rejected")
	}
	if !data.RuntimeCompatible("2.4.0", pep440.MustParse("3.11")) {
		t.Error("3.11 satisfies >=3.10")
	}
}
