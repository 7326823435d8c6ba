// Package session は閲覧者ごとのUIセッションを管理する。
// セッションはお気に入りと検索状態を所有し、プロセス終了とともに破棄される。
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/photoshelf/internal/favorites"
	"github.com/hitoshi/photoshelf/internal/mainloop"
	"github.com/hitoshi/photoshelf/internal/pexels"
	"github.com/hitoshi/photoshelf/internal/photostore"
)

// Session は1人の閲覧者のUIセッション。
type Session struct {
	ID        string
	Favorites *favorites.Store
	Photos    *photostore.Store
	CreatedAt time.Time

	mu         sync.Mutex
	lastAccess time.Time
}

// LastAccess は最終アクセス時刻を返す。
func (s *Session) LastAccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastAccess = now
	s.mu.Unlock()
}

// Config はManagerの設定。
type Config struct {
	// MaxIdle は最終アクセスからセッションを破棄するまでの時間。
	MaxIdle time.Duration
	// CleanupInterval は期限切れセッションを掃除する間隔。
	CleanupInterval time.Duration
}

// Manager はセッションを生成・検索し、期限切れのものを破棄する。
type Manager struct {
	searcher pexels.Searcher
	exec     mainloop.Executor
	config   Config
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewManager は新しいManagerを生成する。
// CleanupIntervalが正の場合、バックグラウンドで期限切れセッションの掃除を開始する。
func NewManager(searcher pexels.Searcher, exec mainloop.Executor, logger *slog.Logger, config Config) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		searcher: searcher,
		exec:     exec,
		config:   config,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
		stopCh:   make(chan struct{}),
	}

	if config.CleanupInterval > 0 {
		go m.cleanupLoop()
	}

	return m
}

// Stop は掃除のバックグラウンドgoroutineを停止する。
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
}

// Get はIDに対応するセッションを返し、最終アクセス時刻を更新する。
// 存在しない、または期限切れの場合はnilを返す。
func (m *Manager) Get(id string) *Session {
	if id == "" {
		return nil
	}

	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil
	}

	now := m.now()
	if m.expired(s, now) {
		m.remove(id)
		return nil
	}
	s.touch(now)
	return s
}

// Create は新しいセッションを生成して登録する。
func (m *Manager) Create() *Session {
	now := m.now()
	s := &Session{
		ID:         uuid.NewString(),
		Favorites:  favorites.NewStore(),
		Photos:     photostore.NewStore(m.searcher, m.exec),
		CreatedAt:  now,
		lastAccess: now,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.Info("session created", slog.String("session_id", s.ID))
	return s
}

// GetOrCreate はIDに対応するセッションを返す。存在しない場合は新しく生成する。
// 2番目の戻り値は新規生成したかどうか。
func (m *Manager) GetOrCreate(id string) (*Session, bool) {
	if s := m.Get(id); s != nil {
		return s, false
	}
	return m.Create(), true
}

// Count は管理中のセッション数を返す。
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Cleanup は期限切れのセッションを破棄し、破棄した件数を返す。
func (m *Manager) Cleanup() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if m.expired(s, now) {
			delete(m.sessions, id)
			removed++
		}
	}

	if removed > 0 {
		m.logger.Info("expired sessions removed",
			slog.Int("removed", removed),
			slog.Int("remaining", len(m.sessions)),
		)
	}
	return removed
}

func (m *Manager) expired(s *Session, now time.Time) bool {
	if m.config.MaxIdle <= 0 {
		return false
	}
	return now.Sub(s.LastAccess()) > m.config.MaxIdle
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// cleanupLoop は定期的に期限切れセッションを掃除する。
func (m *Manager) cleanupLoop() {
	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Cleanup()
		case <-m.stopCh:
			return
		}
	}
}
