package usecase

import (
	"sync"
	"time"

	"storefront_backend/internal/feature/placement/domain/entity"
)

// sessionEntry は1セッションとそのロックです。姿勢の書き込みは必ず mu を取って行います。
type sessionEntry struct {
	mu      sync.Mutex
	session entity.Session
}

// sessionStore はプロセス内のセッション保持領域です。
type sessionStore struct {
	mu      sync.RWMutex
	entries map[string]*sessionEntry
}

func newSessionStore() *sessionStore {
	return &sessionStore{entries: make(map[string]*sessionEntry)}
}

func (s *sessionStore) put(sess entity.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[sess.ID] = &sessionEntry{session: sess}
}

func (s *sessionStore) get(id string) (*sessionEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}

// alive は e がまだストアに登録されているかを返します。
func (s *sessionStore) alive(id string, e *sessionEntry) bool {
	cur, ok := s.get(id)
	return ok && cur == e
}

func (s *sessionStore) delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return false
	}
	delete(s.entries, id)
	return true
}

// evictBefore は cutoff より前から更新のないセッションを削除します。処理中のセッションは残します。
func (s *sessionStore) evictBefore(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.entries {
		e.mu.Lock()
		stale := e.session.UpdatedAt.Before(cutoff) && !e.session.State.IsBusy()
		e.mu.Unlock()
		if stale {
			delete(s.entries, id)
			n++
		}
	}
	return n
}

func (s *sessionStore) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
