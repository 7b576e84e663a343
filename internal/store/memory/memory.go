// Package memory is an in-process store.Store used by default and in tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"studynotion/internal/model"
	"studynotion/internal/store"
)

type historyRow struct {
	seq   int64
	entry model.HistoryEntry
}

// Store keeps everything in maps guarded by one RWMutex.
type Store struct {
	mu       sync.RWMutex
	users    map[string]model.User // by id
	byEmail  map[string]string     // lowercased email -> id
	sessions map[string]model.Session
	history  map[string][]historyRow // by user id
	seq      int64
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:    make(map[string]model.User),
		byEmail:  make(map[string]string),
		sessions: make(map[string]model.Session),
		history:  make(map[string][]historyRow),
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// CreateUser checks and claims the email under the write lock, so two
// concurrent signups for one address cannot both succeed.
func (s *Store) CreateUser(_ context.Context, u model.User) error {
	email := strings.ToLower(u.Email)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byEmail[email]; taken {
		return store.ErrDuplicateEmail
	}
	u.Email = email
	s.users[u.ID] = u
	s.byEmail[email] = u.ID
	return nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return model.User{}, store.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) UserByID(_ context.Context, id string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, store.ErrNotFound
	}
	return u, nil
}

func (s *Store) UpdateUserName(_ context.Context, id, firstName, lastName string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, store.ErrNotFound
	}
	u.FirstName, u.LastName = firstName, lastName
	s.users[id] = u
	return u, nil
}

func (s *Store) CreateSession(_ context.Context, sess model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

func (s *Store) SessionByID(_ context.Context, id string) (model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return model.Session{}, store.ErrNotFound
	}
	return sess, nil
}

func (s *Store) RevokeSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	if sess.Revoked {
		return store.ErrSessionRevoked
	}
	sess.Revoked = true
	s.sessions[id] = sess
	return nil
}

func (s *Store) AppendHistory(_ context.Context, e model.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.history[e.UserID] = append(s.history[e.UserID], historyRow{seq: s.seq, entry: e})
	return nil
}

// ListHistory returns a copy of userID's entries, newest first.
func (s *Store) ListHistory(_ context.Context, userID string) ([]model.HistoryEntry, error) {
	s.mu.RLock()
	rows := make([]historyRow, len(s.history[userID]))
	copy(rows, s.history[userID])
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].entry.CreatedAt != rows[j].entry.CreatedAt {
			return rows[i].entry.CreatedAt > rows[j].entry.CreatedAt
		}
		return rows[i].seq > rows[j].seq
	})
	out := make([]model.HistoryEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.entry)
	}
	return out, nil
}
