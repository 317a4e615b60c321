package session

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
)

// maxMutateRetries bounds the optimistic-concurrency loop. Each retry
// re-applies the transform to the freshly read state, so a conflicting
// writer's edit is never overwritten.
const maxMutateRetries = 3

// errVersionConflict is internal to the retry loop; callers only ever
// see ErrConflictRetryExhausted.
var errVersionConflict = errors.New("session version conflict")

// DB is the subset of pgxpool.Pool the store needs. Tests substitute a
// pgxmock pool.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore keeps sessions as versioned JSONB documents and credits as a
// per-user balance table, and fans every accepted mutation out through
// Redis pub/sub.
type PGStore struct {
	db              DB
	rdb             *redis.Client
	startingCredits int
}

func NewPGStore(db DB, rdb *redis.Client, startingCredits int) *PGStore {
	return &PGStore{
		db:              db,
		rdb:             rdb,
		startingCredits: startingCredits,
	}
}

func AutoMigrate(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS sessions (
          id         uuid PRIMARY KEY,
          name       TEXT NOT NULL,
          host_id    TEXT NOT NULL,
          is_active  BOOLEAN NOT NULL DEFAULT TRUE,
          doc        JSONB NOT NULL,
          version    BIGINT NOT NULL DEFAULT 0,
          created_at TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		log.Printf("drinksapp: migrate sessions: %v", err)
		return err
	}

	if _, err := db.Exec(ctx, `
      CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_active_host
      ON sessions(host_id) WHERE is_active
    `); err != nil {
		return err
	}

	if _, err := db.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS user_credits (
          user_id TEXT PRIMARY KEY,
          balance INT NOT NULL CHECK (balance >= 0)
      )
    `); err != nil {
		return err
	}

	return nil
}

// sessionDoc is the JSONB payload; identity columns live beside it.
type sessionDoc struct {
	Queue      []QueueEntry `json:"queue"`
	NowPlaying *QueueEntry  `json:"nowPlaying,omitempty"`
	Transport  Transport    `json:"transport"`
}

const selectSessionSQL = `
	SELECT id, name, host_id, is_active, doc, version, created_at
	FROM sessions
	WHERE id = $1
`

func scanSession(row pgx.Row) (*Session, int64, error) {
	var (
		s       Session
		raw     []byte
		version int64
	)
	err := row.Scan(&s.ID, &s.Name, &s.HostID, &s.IsActive, &raw, &version, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, err
	}
	var doc sessionDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, 0, err
	}
	s.Queue = doc.Queue
	if s.Queue == nil {
		s.Queue = []QueueEntry{}
	}
	s.NowPlaying = doc.NowPlaying
	s.Transport = doc.Transport
	return &s, version, nil
}

func (p *PGStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, ErrNotFound
	}
	s, _, err := scanSession(p.db.QueryRow(ctx, selectSessionSQL, sessionID))
	return s, err
}

func (p *PGStore) ActiveByHost(ctx context.Context, hostID string) (*Session, error) {
	row := p.db.QueryRow(ctx, `
		SELECT id, name, host_id, is_active, doc, version, created_at
		FROM sessions
		WHERE host_id = $1 AND is_active
	`, hostID)
	s, _, err := scanSession(row)
	return s, err
}

// Create deactivates the host's previous active session and inserts the
// new one in a single transaction, so a host never holds two active
// sessions even under concurrent creates.
func (p *PGStore) Create(ctx context.Context, name, hostID string) (*Session, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE sessions SET is_active = FALSE
		WHERE host_id = $1 AND is_active
	`, hostID); err != nil {
		return nil, err
	}

	s := &Session{
		ID:       uuid.NewString(),
		Name:     name,
		HostID:   hostID,
		IsActive: true,
		Queue:    []QueueEntry{},
	}
	doc, err := json.Marshal(sessionDoc{Queue: s.Queue, Transport: s.Transport})
	if err != nil {
		return nil, err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO sessions (id, name, host_id, is_active, doc)
		VALUES ($1, $2, $3, TRUE, $4)
		RETURNING created_at
	`, s.ID, s.Name, s.HostID, doc).Scan(&s.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	p.publishEvent(ctx, "session.created", map[string]any{
		"sessionId": s.ID,
		"session":   s,
	})
	return s, nil
}

func (p *PGStore) Mutate(ctx context.Context, sessionID string, fn MutateFunc) (*Session, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, ErrNotFound
	}
	for attempt := 0; attempt < maxMutateRetries; attempt++ {
		s, touched, err := p.mutateOnce(ctx, sessionID, fn)
		if errors.Is(err, errVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		p.publishEvent(ctx, "session.updated", map[string]any{
			"sessionId": s.ID,
			"session":   s,
		})
		for userID, balance := range touched {
			p.publishEvent(ctx, "credits.updated", map[string]any{
				"userId":  userID,
				"balance": balance,
			})
		}
		return s, nil
	}
	return nil, ErrConflictRetryExhausted
}

func (p *PGStore) mutateOnce(ctx context.Context, sessionID string, fn MutateFunc) (*Session, map[string]int, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	s, version, err := scanSession(tx.QueryRow(ctx, selectSessionSQL, sessionID))
	if err != nil {
		return nil, nil, err
	}

	led := &txLedger{tx: tx, seed: p.startingCredits, balances: map[string]int{}}
	if err := fn(ctx, s, led); err != nil {
		return nil, nil, err
	}

	doc, err := json.Marshal(sessionDoc{Queue: s.Queue, NowPlaying: s.NowPlaying, Transport: s.Transport})
	if err != nil {
		return nil, nil, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE sessions SET doc = $2, version = version + 1
		WHERE id = $1 AND version = $3
	`, sessionID, doc, version)
	if err != nil {
		return nil, nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, nil, errVersionConflict
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return s, led.balances, nil
}

func (p *PGStore) Balance(ctx context.Context, userID string) (int, error) {
	if err := p.ensureUser(ctx, p.db, userID); err != nil {
		return 0, err
	}
	var balance int
	err := p.db.QueryRow(ctx, `
		SELECT balance FROM user_credits WHERE user_id = $1
	`, userID).Scan(&balance)
	return balance, err
}

// Grant is the administrative top-up; the closed-credit-system
// invariant holds between grants.
func (p *PGStore) Grant(ctx context.Context, userID string, amount int) (int, error) {
	var balance int
	err := p.db.QueryRow(ctx, `
		INSERT INTO user_credits (user_id, balance) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET balance = user_credits.balance + $2
		RETURNING balance
	`, userID, amount).Scan(&balance)
	if err != nil {
		return 0, err
	}
	p.publishEvent(ctx, "credits.updated", map[string]any{
		"userId":  userID,
		"balance": balance,
	})
	return balance, nil
}

type execQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ensureUser seeds a first-seen user with the starting balance.
func (p *PGStore) ensureUser(ctx context.Context, q execQuerier, userID string) error {
	_, err := q.Exec(ctx, `
		INSERT INTO user_credits (user_id, balance) VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, p.startingCredits)
	return err
}

// txLedger binds ledger operations to the surrounding session
// transaction and records final balances for post-commit broadcast.
type txLedger struct {
	tx       pgx.Tx
	seed     int
	balances map[string]int
}

func (l *txLedger) ensure(ctx context.Context, userID string) error {
	_, err := l.tx.Exec(ctx, `
		INSERT INTO user_credits (user_id, balance) VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, l.seed)
	return err
}

func (l *txLedger) BalanceOf(ctx context.Context, userID string) (int, error) {
	if err := l.ensure(ctx, userID); err != nil {
		return 0, err
	}
	var balance int
	err := l.tx.QueryRow(ctx, `
		SELECT balance FROM user_credits WHERE user_id = $1
	`, userID).Scan(&balance)
	return balance, err
}

// Debit decrements atomically; the conditional update is what rejects
// overspend, not a read-then-write.
func (l *txLedger) Debit(ctx context.Context, userID string, amount int) error {
	if err := l.ensure(ctx, userID); err != nil {
		return err
	}
	var balance int
	err := l.tx.QueryRow(ctx, `
		UPDATE user_credits SET balance = balance - $2
		WHERE user_id = $1 AND balance >= $2
		RETURNING balance
	`, userID, amount).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrInsufficientCredits
	}
	if err != nil {
		return err
	}
	l.balances[userID] = balance
	return nil
}

func (l *txLedger) Credit(ctx context.Context, userID string, amount int) error {
	if err := l.ensure(ctx, userID); err != nil {
		return err
	}
	var balance int
	err := l.tx.QueryRow(ctx, `
		UPDATE user_credits SET balance = balance + $2
		WHERE user_id = $1
		RETURNING balance
	`, userID, amount).Scan(&balance)
	if err != nil {
		return err
	}
	l.balances[userID] = balance
	return nil
}

func (p *PGStore) publishEvent(ctx context.Context, eventType string, payload any) {
	if p.rdb == nil {
		return
	}
	data, err := json.Marshal(map[string]any{
		"type":    eventType,
		"payload": payload,
	})
	if err != nil {
		log.Printf("drinksapp: marshal event: %v", err)
		return
	}
	if err := p.rdb.Publish(ctx, "broadcast", string(data)).Err(); err != nil {
		log.Printf("drinksapp: publish event: %v", err)
	}
}

var _ Store = (*PGStore)(nil)
