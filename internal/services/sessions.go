package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"verona-backend/internal/conversation"
	"verona-backend/internal/repository"
)

// Session is one user's conversation. At most one turn, clear or import runs
// against it at a time (begin/end); mu only covers the brief store accesses
// so the conversation stays readable while a reply streams in.
type Session struct {
	ID uuid.UUID

	mu    sync.Mutex
	store *conversation.Store

	busy     atomic.Bool
	lastUsed atomic.Int64
}

func (s *Session) View(fn func(store *conversation.Store)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.store)
}

func (s *Session) begin() bool {
	if !s.busy.CompareAndSwap(false, true) {
		return false
	}
	s.touch()
	return true
}

func (s *Session) end() {
	s.touch()
	s.busy.Store(false)
}

func (s *Session) touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}

func (s *Session) idleSince() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

// SessionManager hands out per-session conversation stores. Only the session
// map is shared; stores are never shared across sessions.
type SessionManager struct {
	mu           sync.Mutex
	sessions     map[uuid.UUID]*Session
	snapshots    repository.SnapshotStore
	systemPrompt string
	stopChan     chan struct{}

	// epoch counts removals from sessions.
	epoch uint64
}

func NewSessionManager(snapshots repository.SnapshotStore, systemPrompt string) *SessionManager {
	return &SessionManager{
		sessions:     make(map[uuid.UUID]*Session),
		snapshots:    snapshots,
		systemPrompt: systemPrompt,
		stopChan:     make(chan struct{}),
	}
}

func (m *SessionManager) SystemPrompt() string {
	return m.systemPrompt
}

// Create starts a fresh session seeded with the default system message.
func (m *SessionManager) Create(ctx context.Context) *Session {
	sess := &Session{ID: uuid.New(), store: conversation.NewWithSystem(m.systemPrompt)}
	sess.touch()

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	m.Persist(ctx, sess)
	return sess
}

// Open returns the live session for id, restoring it from its snapshot when
// it is not in memory. A missing or unreadable snapshot yields a fresh
// conversation; Open never fails. The snapshot is read without holding the
// manager lock.
func (m *SessionManager) Open(ctx context.Context, id uuid.UUID) *Session {
	for {
		m.mu.Lock()
		if sess, ok := m.sessions[id]; ok {
			m.mu.Unlock()
			return sess
		}
		epoch := m.epoch
		m.mu.Unlock()

		store := m.restore(ctx, id)

		m.mu.Lock()
		if sess, ok := m.sessions[id]; ok {
			m.mu.Unlock()
			return sess
		}
		// A session dropped while we were loading may have saved a newer
		// snapshot than the one we read.
		if m.epoch != epoch {
			m.mu.Unlock()
			continue
		}
		sess := &Session{ID: id, store: store}
		sess.touch()
		m.sessions[id] = sess
		m.mu.Unlock()
		return sess
	}
}

// Acquire opens the session and claims it for one turn, clear, import or
// delete. The caller must call end when done. A session that is already
// claimed yields a ConflictError.
func (m *SessionManager) Acquire(ctx context.Context, id uuid.UUID) (*Session, error) {
	for {
		sess := m.Open(ctx, id)

		m.mu.Lock()
		live := m.sessions[id] == sess
		claimed := live && sess.begin()
		m.mu.Unlock()

		switch {
		case !live:
			// Evicted between Open and the claim; its successor is restored
			// from the snapshot.
			continue
		case !claimed:
			return nil, errBusy()
		}
		return sess, nil
	}
}

func (m *SessionManager) restore(ctx context.Context, id uuid.UUID) *conversation.Store {
	store := conversation.New()
	data, err := m.snapshots.Load(ctx, id.String())
	switch {
	case err == nil:
		store = conversation.Restore(data)
	case !errors.Is(err, repository.ErrSnapshotNotFound):
		log.Printf("session %s: snapshot load failed, starting empty: %v", id, err)
	}
	if store.Len() == 0 {
		store = conversation.NewWithSystem(m.systemPrompt)
	}
	return store
}

// Persist snapshots the session. Failures are logged and swallowed.
func (m *SessionManager) Persist(ctx context.Context, sess *Session) {
	var data []byte
	var err error
	sess.View(func(store *conversation.Store) {
		data, err = store.Snapshot()
	})
	if err != nil {
		log.Printf("session %s: snapshot encode failed: %v", sess.ID, err)
		return
	}
	if err := m.snapshots.Save(ctx, sess.ID.String(), data); err != nil {
		log.Printf("session %s: snapshot save failed: %v", sess.ID, err)
	}
}

// Delete removes the snapshot before the live session so a concurrent Open
// cannot restore it.
func (m *SessionManager) Delete(ctx context.Context, id uuid.UUID) {
	if err := m.snapshots.Delete(ctx, id.String()); err != nil {
		log.Printf("session %s: snapshot delete failed: %v", id, err)
	}

	m.mu.Lock()
	delete(m.sessions, id)
	m.epoch++
	m.mu.Unlock()
}

// Evict drops idle sessions from memory. Their snapshots stay behind, so the
// next Open restores them.
func (m *SessionManager) Evict(maxIdle time.Duration, now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, sess := range m.sessions {
		if sess.busy.Load() {
			continue
		}
		if now.Sub(sess.idleSince()) > maxIdle {
			delete(m.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		m.epoch++
	}
	return evicted
}

func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// StartJanitor evicts idle sessions every interval until Stop is called.
func (m *SessionManager) StartJanitor(interval, maxIdle time.Duration) {
	if interval <= 0 || maxIdle <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-m.stopChan:
				return
			case now := <-ticker.C:
				if n := m.Evict(maxIdle, now); n > 0 {
					log.Printf("Evicted %d idle sessions", n)
				}
			}
		}
	}()
}

func (m *SessionManager) Stop() {
	select {
	case <-m.stopChan:
		return
	default:
		close(m.stopChan)
	}
}
