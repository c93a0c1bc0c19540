package config

import (
	"github.com/pipgrade/pipgrade/check"
	"github.com/pipgrade/pipgrade/client"
	"github.com/pipgrade/pipgrade/registry"
	"github.com/pipgrade/pipgrade/resolve"
)

// NewClient builds an HTTP client from the settings.
func (c Config) NewClient() *client.Client {
	var opts []client.Option
	if c.Timeout.Duration > 0 {
		opts = append(opts, client.WithTimeout(c.Timeout.Duration))
	}
	if c.MaxRetries > 0 {
		opts = append(opts, client.WithMaxRetries(c.MaxRetries))
	}
	return client.NewClient(opts...)
}

// NewStore builds a metadata store from the settings.
func (c Config) NewStore() *registry.Store {
	opts := []registry.StoreOption{
		registry.WithClient(c.NewClient()),
	}
	if c.IndexURL != "" {
		opts = append(opts, registry.WithIndexURL(c.IndexURL))
	}
	if c.ConcurrentLimit > 0 {
		opts = append(opts, registry.WithConcurrency(c.ConcurrentLimit))
	}
	return registry.NewStore(opts...)
}

// NewChecker builds a recommendation checker from the settings.
func (c Config) NewChecker(store *registry.Store) *check.Checker {
	opts := []check.Option{
		check.WithInferFromRange(c.InferFromRange),
		check.WithPrereleases(c.AllowPrereleases),
	}
	if c.RuntimeVersion != "" {
		opts = append(opts, check.WithRuntimeVersion(c.RuntimeVersion))
	}
	return check.NewChecker(store, opts...)
}

// NewResolver builds a conflict resolver from the settings.
func (c Config) NewResolver(store *registry.Store) *resolve.Resolver {
	var opts []resolve.Option
	if c.MaxIterations > 0 {
		opts = append(opts, resolve.WithMaxIterations(c.MaxIterations))
	}
	return resolve.NewResolver(store, opts...)
}
