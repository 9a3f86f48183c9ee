package cache

import "time"

// EntryInfo describes one stored entry for diagnostics.
type EntryInfo struct {
	Key        string        `json:"key"`
	InsertedAt time.Time     `json:"insertedAt"`
	Age        time.Duration `json:"age"`
	TTL        time.Duration `json:"ttl"`
	// ExpiresIn is the remaining lifetime; zero when the entry never expires.
	ExpiresIn time.Duration `json:"expiresIn"`
	Expired   bool          `json:"expired"`
	Permanent bool          `json:"permanent"`
}

// Inspect describes the entry stored under key without touching counters,
// LRU order or expiry.
func (s *Store[V]) Inspect(key string) (EntryInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return EntryInfo{}, false
	}
	return s.infoLocked(el.Value.(*entry[V])), true
}

// Entries describes every stored entry in eviction order.
func (s *Store[V]) Entries() []EntryInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]EntryInfo, 0, len(s.items))
	for el := s.order.Front(); el != nil; el = el.Next() {
		infos = append(infos, s.infoLocked(el.Value.(*entry[V])))
	}
	return infos
}

func (s *Store[V]) infoLocked(e *entry[V]) EntryInfo {
	ttl := s.ttlOf(e)
	age := s.now().Sub(e.insertedAt)
	info := EntryInfo{
		Key:        e.key,
		InsertedAt: e.insertedAt,
		Age:        age,
		TTL:        ttl,
		Permanent:  ttl == 0,
	}
	if ttl > 0 {
		info.Expired = age > ttl
		if !info.Expired {
			info.ExpiresIn = ttl - age
		}
	}
	return info
}
