package imagecache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// entryStore はURLをキーに画像を保持する。
type entryStore interface {
	Get(key string) (*Image, bool)
	Add(key string, img *Image)
	Len() int
}

// mapStore は上限なしのストア。エントリを削除しない。
type mapStore struct {
	mu      sync.RWMutex
	entries map[string]*Image
}

func newMapStore() *mapStore {
	return &mapStore{entries: make(map[string]*Image)}
}

func (s *mapStore) Get(key string) (*Image, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	img, ok := s.entries[key]
	return img, ok
}

func (s *mapStore) Add(key string, img *Image) {
	s.mu.Lock()
	s.entries[key] = img
	s.mu.Unlock()
}

func (s *mapStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// lruStore は最大エントリ数を超えると最も使われていないエントリを追い出すストア。
// lru.Cache自体がスレッドセーフなので追加のロックは持たない。
type lruStore struct {
	cache *lru.Cache[string, *Image]
}

func newLRUStore(maxEntries int) (*lruStore, error) {
	c, err := lru.New[string, *Image](maxEntries)
	if err != nil {
		return nil, err
	}
	return &lruStore{cache: c}, nil
}

func (s *lruStore) Get(key string) (*Image, bool) {
	return s.cache.Get(key)
}

func (s *lruStore) Add(key string, img *Image) {
	s.cache.Add(key, img)
}

func (s *lruStore) Len() int {
	return s.cache.Len()
}
