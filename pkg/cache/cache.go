package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Config controls default entry lifetime and janitor cadence,
// sourced from environment variables like the rest of the app config.
type Config struct {
	TTL             string `split_words:"true" default:"30m"`
	CleanupInterval string `split_words:"true" default:"10m"`
}

// Service is a process-lifetime concurrent key-value cache shared across
// requests. Buckets namespace keys so independent concerns (upload cache,
// per-tool result caches) cannot collide.
type Service struct {
	c *gocache.Cache
}

func New(ttl, cleanup time.Duration) *Service {
	return &Service{c: gocache.New(ttl, cleanup)}
}

// NewFromConfig builds a Service from duration strings, falling back to the
// library defaults when a value does not parse.
func NewFromConfig(cfg Config) *Service {
	ttl, err := time.ParseDuration(cfg.TTL)
	if err != nil {
		ttl = gocache.DefaultExpiration
	}
	cleanup, err := time.ParseDuration(cfg.CleanupInterval)
	if err != nil {
		cleanup = gocache.NoExpiration
	}
	return New(ttl, cleanup)
}

// Bucket returns a namespaced view over the shared cache.
func (s *Service) Bucket(name string) *Bucket {
	return &Bucket{svc: s, prefix: name + ":"}
}

// Bucket is a namespaced cache view. Duplicate-key inserts are
// last-writer-wins; cached content is immutable per key so this is safe
// under concurrent access.
type Bucket struct {
	svc    *Service
	prefix string
}

func (b *Bucket) Get(key string) (any, bool) {
	return b.svc.c.Get(b.prefix + key)
}

func (b *Bucket) Set(key string, value any) {
	b.svc.c.Set(b.prefix+key, value, gocache.DefaultExpiration)
}

func (b *Bucket) Delete(key string) {
	b.svc.c.Delete(b.prefix + key)
}
