package session

import (
	"context"
)

// Ledger is the per-user credit balance, visible to mutation transforms.
// Implementations bind the operations to the same transaction that
// writes the session, so a debit and its queue insert commit together
// or not at all.
type Ledger interface {
	BalanceOf(ctx context.Context, userID string) (int, error)
	Debit(ctx context.Context, userID string, amount int) error
	Credit(ctx context.Context, userID string, amount int) error
}

// MutateFunc transforms a session in place. Returning an error aborts
// the mutation with no observable side effects.
type MutateFunc func(ctx context.Context, s *Session, led Ledger) error

// Store is the durable source of truth for sessions and credits.
// Mutate applies fn atomically: concurrent writers never clobber each
// other's edits, and on version conflict the transform is re-applied to
// the latest state a bounded number of times before giving up with
// ErrConflictRetryExhausted.
type Store interface {
	Get(ctx context.Context, sessionID string) (*Session, error)
	ActiveByHost(ctx context.Context, hostID string) (*Session, error)
	Create(ctx context.Context, name, hostID string) (*Session, error)
	Mutate(ctx context.Context, sessionID string, fn MutateFunc) (*Session, error)

	Balance(ctx context.Context, userID string) (int, error)
	Grant(ctx context.Context, userID string, amount int) (int, error)
}
