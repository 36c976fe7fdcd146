package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
)

var ErrNotInteger = errors.New("cache: value is not an integer")

// MemStore is an in-memory Store for single-server deployments and
// tests. Items carry an optional expiration; a background goroutine
// sweeps expired entries when a positive cleanup interval is given.
type MemStore struct {
	items sync.Map
	stop  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

type item struct {
	mu         sync.Mutex
	value      string
	expiration int64 // unix nano, 0 means no expiration
}

func NewMemStore(cleanupInterval time.Duration) *MemStore {
	m := &MemStore{stop: make(chan struct{})}
	if cleanupInterval > 0 {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			ticker := time.NewTicker(cleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					m.cleanup()
				case <-m.stop:
					return
				}
			}
		}()
	}
	return m
}

func (m *MemStore) Incr(_ context.Context, key string) (int64, error) {
	actual, _ := m.items.LoadOrStore(key, &item{value: "0"})
	it := actual.(*item)

	it.mu.Lock()
	defer it.mu.Unlock()

	if it.isExpired() {
		it.value = "0"
		it.expiration = 0
	}
	n, err := strconv.ParseInt(it.value, 10, 64)
	if err != nil {
		return 0, ErrNotInteger
	}
	n++
	it.value = strconv.FormatInt(n, 10)
	return n, nil
}

func (m *MemStore) GetInt(_ context.Context, key string) (int64, error) {
	it, ok := m.load(key)
	if !ok {
		return 0, nil
	}
	it.mu.Lock()
	defer it.mu.Unlock()
	n, err := strconv.ParseInt(it.value, 10, 64)
	if err != nil {
		return 0, ErrNotInteger
	}
	return n, nil
}

func (m *MemStore) Del(_ context.Context, key string) error {
	m.items.Delete(key)
	return nil
}

func (m *MemStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.load(key)
	return ok, nil
}

func (m *MemStore) SetTTL(_ context.Context, key, value string, ttl time.Duration) error {
	var exp int64
	if ttl > 0 {
		exp = time.Now().Add(ttl).UnixNano()
	}
	m.items.Store(key, &item{value: value, expiration: exp})
	return nil
}

func (m *MemStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	it, ok := m.load(key)
	if !ok {
		return nil
	}
	it.mu.Lock()
	it.expiration = time.Now().Add(ttl).UnixNano()
	it.mu.Unlock()
	return nil
}

func (m *MemStore) Close() error {
	m.once.Do(func() { close(m.stop) })
	m.wg.Wait()
	return nil
}

func (m *MemStore) load(key string) (*item, bool) {
	v, ok := m.items.Load(key)
	if !ok {
		return nil, false
	}
	it := v.(*item)
	if it.isExpired() {
		m.items.Delete(key)
		return nil, false
	}
	return it, true
}

func (it *item) isExpired() bool {
	return it.expiration != 0 && time.Now().UnixNano() > it.expiration
}

func (m *MemStore) cleanup() {
	now := time.Now().UnixNano()
	m.items.Range(func(k, v any) bool {
		if it := v.(*item); it.expiration != 0 && now > it.expiration {
			m.items.Delete(k)
		}
		return true
	})
}
