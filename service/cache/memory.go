package cache

import (
	"sort"
	"sync"
	"time"

	"MProject/logger"
)

// Memory is the process-local TTL cache in front of the upstream api.
// It is owned by a single process; there is no cross-process coherence,
// anything shared goes through the broker instead.

type Conf struct {
	DefaultTTL  time.Duration    // applied when Set is called without a ttl
	CheckPeriod time.Duration    // sweep interval for expired entries
	MaxKeys     int              // ceiling; <=0 means unlimited
	Clock       func() time.Time // injectable clock for tests; nil => time.Now
}

func (c *Conf) norm() {
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = 5 * time.Minute
	}
	if c.CheckPeriod <= 0 {
		c.CheckPeriod = 10 * time.Minute
	}
}

type entry struct {
	value    any
	expireAt time.Time
}

type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	conf    Conf

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewMemory(conf Conf) *Memory {
	conf.norm()
	m := &Memory{
		entries: make(map[string]entry),
		conf:    conf,
		stopCh:  make(chan struct{}),
	}
	go m.sweeper()
	return m
}

func (m *Memory) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// Get returns the cached value, or (nil, false) on miss or expiry.
func (m *Memory) Get(key string) (any, bool) {
	now := m.conf.Clock()
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if now.After(e.expireAt) {
		delete(m.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key. ttl <= 0 falls back to the default TTL.
// When the key count hits the ceiling, the 10% of entries with the
// least remaining TTL are pruned first.
func (m *Memory) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = m.conf.DefaultTTL
	}
	now := m.conf.Clock()
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conf.MaxKeys > 0 {
		if _, exists := m.entries[key]; !exists && len(m.entries) >= m.conf.MaxKeys {
			m.pruneOldestLocked(m.conf.MaxKeys / 10)
		}
	}
	m.entries[key] = entry{value: value, expireAt: now.Add(ttl)}
}

func (m *Memory) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

func (m *Memory) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	delete(m.entries, key)
	return ok
}

func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]entry)
}

func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for k := range m.entries {
		out = append(out, k)
	}
	return out
}

func (m *Memory) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// pruneOldestLocked drops count entries ordered by soonest expiry.
// Caller holds the lock.
func (m *Memory) pruneOldestLocked(count int) {
	if count <= 0 {
		count = 1
	}
	type keyExp struct {
		key      string
		expireAt time.Time
	}
	all := make([]keyExp, 0, len(m.entries))
	for k, e := range m.entries {
		all = append(all, keyExp{key: k, expireAt: e.expireAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].expireAt.Before(all[j].expireAt) })

	if count > len(all) {
		count = len(all)
	}
	for _, ke := range all[:count] {
		delete(m.entries, ke.key)
	}
	logger.Debugf("[cache] pruned %d oldest entries, %d remain", count, len(m.entries))
}

func (m *Memory) sweeper() {
	t := time.NewTicker(m.conf.CheckPeriod)
	defer t.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case now := <-t.C:
			m.sweepOnce(now)
		}
	}
}

func (m *Memory) sweepOnce(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.entries {
		if now.After(e.expireAt) {
			delete(m.entries, k)
		}
	}
}
