package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// fakeLedger is an in-memory Ledger for exercising transforms directly.
type fakeLedger struct {
	balances map[string]int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{balances: map[string]int{}}
}

func (f *fakeLedger) BalanceOf(ctx context.Context, userID string) (int, error) {
	return f.balances[userID], nil
}

func (f *fakeLedger) Debit(ctx context.Context, userID string, amount int) error {
	if f.balances[userID] < amount {
		return ErrInsufficientCredits
	}
	f.balances[userID] -= amount
	return nil
}

func (f *fakeLedger) Credit(ctx context.Context, userID string, amount int) error {
	f.balances[userID] += amount
	return nil
}

// memStore implements Store in memory. Mutate runs under a lock against
// a deep copy and only commits on success, mirroring the transaction
// boundary of the real store.
type memStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	balances map[string]int
	seed     int
}

func newMemStore(seed int) *memStore {
	return &memStore{
		sessions: map[string]*Session{},
		balances: map[string]int{},
		seed:     seed,
	}
}

func cloneSession(s *Session) *Session {
	raw, _ := json.Marshal(s)
	var out Session
	_ = json.Unmarshal(raw, &out)
	if out.Queue == nil {
		out.Queue = []QueueEntry{}
	}
	return &out
}

func (m *memStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(s), nil
}

func (m *memStore) ActiveByHost(ctx context.Context, hostID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.HostID == hostID && s.IsActive {
			return cloneSession(s), nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) Create(ctx context.Context, name, hostID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.HostID == hostID {
			s.IsActive = false
		}
	}
	s := &Session{
		ID:        uuid.NewString(),
		Name:      name,
		HostID:    hostID,
		IsActive:  true,
		Queue:     []QueueEntry{},
		CreatedAt: time.Now().UTC(),
	}
	m.sessions[s.ID] = s
	return cloneSession(s), nil
}

type memLedger struct {
	store   *memStore
	pending map[string]int
}

func (l *memLedger) balance(userID string) int {
	if v, ok := l.pending[userID]; ok {
		return v
	}
	if v, ok := l.store.balances[userID]; ok {
		return v
	}
	return l.store.seed
}

func (l *memLedger) BalanceOf(ctx context.Context, userID string) (int, error) {
	return l.balance(userID), nil
}

func (l *memLedger) Debit(ctx context.Context, userID string, amount int) error {
	b := l.balance(userID)
	if b < amount {
		return ErrInsufficientCredits
	}
	l.pending[userID] = b - amount
	return nil
}

func (l *memLedger) Credit(ctx context.Context, userID string, amount int) error {
	l.pending[userID] = l.balance(userID) + amount
	return nil
}

func (m *memStore) Mutate(ctx context.Context, sessionID string, fn MutateFunc) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	working := cloneSession(current)
	led := &memLedger{store: m, pending: map[string]int{}}
	if err := fn(ctx, working, led); err != nil {
		return nil, err
	}
	m.sessions[sessionID] = working
	for userID, balance := range led.pending {
		m.balances[userID] = balance
	}
	return cloneSession(working), nil
}

func (m *memStore) Balance(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.balances[userID]; ok {
		return v, nil
	}
	m.balances[userID] = m.seed
	return m.seed, nil
}

func (m *memStore) Grant(ctx context.Context, userID string, amount int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.balances[userID]; !ok {
		m.balances[userID] = 0
	}
	m.balances[userID] += amount
	return m.balances[userID], nil
}

var _ Store = (*memStore)(nil)

// fakePresence records pings without Redis.
type fakePresence struct {
	mu      sync.Mutex
	members map[string]map[string]PresenceMember
}

func newFakePresence() *fakePresence {
	return &fakePresence{members: map[string]map[string]PresenceMember{}}
}

func (f *fakePresence) Ping(ctx context.Context, sessionID string, user UserRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.members[sessionID] == nil {
		f.members[sessionID] = map[string]PresenceMember{}
	}
	f.members[sessionID][user.UserID] = PresenceMember{
		UserID:      user.UserID,
		DisplayName: user.DisplayName,
		LastPingAt:  time.Now().UTC(),
	}
	return nil
}

func (f *fakePresence) List(ctx context.Context, sessionID string) ([]PresenceMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]PresenceMember, 0, len(f.members[sessionID]))
	for _, m := range f.members[sessionID] {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakePresence) Leave(ctx context.Context, sessionID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.members[sessionID], userID)
	return nil
}
