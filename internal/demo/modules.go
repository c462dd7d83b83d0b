// Package demo contains the sample modules used by the modreg CLI.
package demo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chenyanchen/kv"
	"github.com/chenyanchen/kv/cachekv"
	"github.com/chenyanchen/kv/layerkv"

	"github.com/chenyanchen/modreg"
	"github.com/chenyanchen/modreg/internal/logging"
)

const cacheEntries = 1024

// Settings is built by the demo factory.
type Settings struct {
	modreg.Annotated
	Name     string
	CacheTTL time.Duration
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct {
	modreg.Annotated
}

func (*SystemClock) Now() time.Time { return time.Now() }

// Store is a string key-value store.
type Store interface {
	kv.KV[string, string]
}

// MemoryStore is the default Store.
type MemoryStore struct {
	modreg.Annotated
	Clock Clock `modreg:"require"`

	mu      sync.RWMutex
	values  map[string]string
	updated map[string]time.Time
}

func (s *MemoryStore) Init(context.Context, *modreg.Registry) error {
	s.values = make(map[string]string)
	s.updated = make(map[string]time.Time)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return "", kv.ErrNotFound
	}
	return v, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	s.updated[key] = s.Clock.Now()
	return nil
}

func (s *MemoryStore) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	delete(s.updated, key)
	return nil
}

// UpdatedAt returns when key was last written.
func (s *MemoryStore) UpdatedAt(key string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	at, ok := s.updated[key]
	return at, ok
}

// Cache layers an in-process LRU over the Store. Writes go through to both.
// It is a Store itself but is kept out of the Store lookups it depends on.
type Cache struct {
	modreg.Annotated
	Store    Store     `modreg:"require"`
	Settings *Settings `modreg:"require"`
	_        Store     `modreg:"exclude"`

	kv.KV[string, string]
}

func (c *Cache) Init(context.Context, *modreg.Registry) error {
	lru, err := cachekv.NewLRU[string, string](cacheEntries, nil, c.Settings.CacheTTL)
	if err != nil {
		return fmt.Errorf("build cache: %w", err)
	}
	layered, err := layerkv.New[string, string](lru, c.Store, layerkv.WithWriteThrough())
	if err != nil {
		return fmt.Errorf("build cache: %w", err)
	}
	c.KV = layered
	return nil
}

// Metrics counts service calls. It is an optional dependency of Service.
type Metrics struct {
	modreg.Annotated
	calls atomic.Int64
}

func (m *Metrics) Inc() { m.calls.Add(1) }

func (m *Metrics) Calls() int64 { return m.calls.Load() }

func (m *Metrics) Close() error {
	logger := logging.GetLogger("demo")
	logger.Info().Int64("calls", m.Calls()).Msg("Metrics flushed")
	return nil
}

// Service greets users by name, reading names from the Store. The cache and
// metrics are used when present.
type Service struct {
	modreg.Annotated
	Store    Store            `modreg:"require"`
	Registry *modreg.Registry `modreg:"registry"`
	_        *Cache           `modreg:"soft"`
	_        *Metrics         `modreg:"soft"`
}

func (s *Service) Greet(ctx context.Context, user string) (string, error) {
	if m, err := modreg.GetAs[*Metrics](s.Registry); err == nil {
		m.Inc()
	}

	var (
		name string
		err  error
	)
	if c, cerr := modreg.GetAs[*Cache](s.Registry); cerr == nil {
		name, err = c.Get(ctx, user)
	} else {
		name, err = s.Store.Get(ctx, user)
	}
	switch {
	case errors.Is(err, kv.ErrNotFound):
		name = user
	case err != nil:
		return "", fmt.Errorf("greet %s: %w", user, err)
	}
	return "hello, " + name, nil
}

// Ping and Pong require each other.
type Ping struct {
	modreg.Annotated
	Pong *Pong `modreg:"require"`
}

type Pong struct {
	modreg.Annotated
	Ping *Ping `modreg:"require"`
}
