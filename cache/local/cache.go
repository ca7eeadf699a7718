package local

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned when a key or sorted-set member does not exist.
var ErrNotFound = errors.New("cache: key not found")

const defaultGCInterval = 30 * time.Second

type item struct {
	value    string
	deadline time.Time // zero means no expiry
}

func (it item) live(now time.Time) bool {
	return it.deadline.IsZero() || now.Before(it.deadline)
}

// Store is the in-process cache backend. It holds session tokens and the
// tree-wins leaderboard for single-node deployments and tests; everything
// sits behind one lock since the hot path is a handful of lookups per
// request, not bulk traffic.
type Store struct {
	mu    sync.RWMutex
	items map[string]item
	// zsets maps set key -> member -> score. Rank order is computed on
	// read; the leaderboard is tiny and read rarely.
	zsets map[string]map[string]float64

	gcStop chan struct{}
}

// NewStore creates a Store and starts a janitor that evicts expired keys.
// A non-positive interval falls back to the default.
func NewStore(gcInterval time.Duration) *Store {
	if gcInterval <= 0 {
		gcInterval = defaultGCInterval
	}
	s := &Store{
		items:  make(map[string]item),
		zsets:  make(map[string]map[string]float64),
		gcStop: make(chan struct{}),
	}
	go s.janitor(gcInterval)
	return s
}

// Close stops the janitor.
func (s *Store) Close() {
	close(s.gcStop)
}

func (s *Store) janitor(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			now := time.Now()
			s.mu.Lock()
			for k, it := range s.items {
				if !it.live(now) {
					delete(s.items, k)
				}
			}
			s.mu.Unlock()
		case <-s.gcStop:
			return
		}
	}
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	it, ok := s.items[key]
	s.mu.RUnlock()
	if !ok || !it.live(time.Now()) {
		return "", ErrNotFound
	}
	return it.value, nil
}

func (s *Store) Set(_ context.Context, key, value string, ttl time.Duration) error {
	it := item{value: value}
	if ttl > 0 {
		it.deadline = time.Now().Add(ttl)
	}
	s.mu.Lock()
	s.items[key] = it
	s.mu.Unlock()
	return nil
}

func (s *Store) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	for _, k := range keys {
		delete(s.items, k)
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	it, ok := s.items[key]
	s.mu.RUnlock()
	return ok && it.live(time.Now()), nil
}

// Expire resets the TTL on a live key, as the session middleware does to
// keep active editors logged in.
func (s *Store) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[key]
	if !ok || !it.live(time.Now()) {
		delete(s.items, key)
		return ErrNotFound
	}
	it.deadline = time.Now().Add(ttl)
	s.items[key] = it
	return nil
}

func (s *Store) ZAdd(_ context.Context, key string, score float64, member string) error {
	s.mu.Lock()
	set, ok := s.zsets[key]
	if !ok {
		set = make(map[string]float64)
		s.zsets[key] = set
	}
	set[member] = score
	s.mu.Unlock()
	return nil
}

func (s *Store) ZRevRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	s.mu.RLock()
	set := s.zsets[key]
	members := make([]string, 0, len(set))
	for m := range set {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool {
		si, sj := set[members[i]], set[members[j]]
		if si != sj {
			return si > sj
		}
		return members[i] < members[j] // stable order for equal scores
	})
	s.mu.RUnlock()

	n := int64(len(members))
	if start >= n || start < 0 {
		return nil, nil
	}
	if stop < 0 || stop >= n {
		stop = n - 1
	}
	return members[start : stop+1], nil
}

func (s *Store) ZScore(_ context.Context, key, member string) (float64, error) {
	s.mu.RLock()
	score, ok := s.zsets[key][member]
	s.mu.RUnlock()
	if !ok {
		return 0, ErrNotFound
	}
	return score, nil
}
