package session

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
)

// sortQueue restores the queue invariant: non-increasing credits, ties
// kept in insertion order. Stable sort keyed on credits with AddedAt as
// the tie-break, same shape as the vote ordering it replaces.
func sortQueue(queue []QueueEntry) {
	sort.SliceStable(queue, func(i, j int) bool {
		if queue[i].Credits != queue[j].Credits {
			return queue[i].Credits > queue[j].Credits
		}
		return queue[i].AddedAt.Before(queue[j].AddedAt)
	})
}

// addSong debits the contributor and inserts a fresh entry at its
// credit-weighted position. The debit and the insert ride the same
// store transaction, so an overdraft leaves the queue untouched.
func addSong(mediaID, title, thumbnailURL string, by UserRef, credits int, now time.Time) MutateFunc {
	return func(ctx context.Context, s *Session, led Ledger) error {
		if credits < 0 {
			return ErrInsufficientCredits
		}
		if credits > 0 {
			if err := led.Debit(ctx, by.UserID, credits); err != nil {
				return err
			}
		}
		s.Queue = append(s.Queue, QueueEntry{
			EntryID:      uuid.NewString(),
			MediaID:      mediaID,
			Title:        title,
			ThumbnailURL: thumbnailURL,
			AddedBy:      by,
			Credits:      credits,
			AddedAt:      now,
		})
		sortQueue(s.Queue)
		return nil
	}
}

// removeSong removes an entry and refunds its credits to whoever added
// it. A missing entry is an idempotent no-op: a concurrent writer may
// have removed it first, and that outcome is the one the caller wanted.
func removeSong(entryID, requesterID string) MutateFunc {
	return func(ctx context.Context, s *Session, led Ledger) error {
		idx := s.entryIndex(entryID)
		if idx < 0 {
			return nil
		}
		entry := s.Queue[idx]
		if requesterID != s.HostID && requesterID != entry.AddedBy.UserID {
			return ErrPermissionDenied
		}
		if entry.Credits > 0 {
			if err := led.Credit(ctx, entry.AddedBy.UserID, entry.Credits); err != nil {
				return err
			}
		}
		s.Queue = append(s.Queue[:idx], s.Queue[idx+1:]...)
		return nil
	}
}

// updateCredits moves an entry's credit weight up or down, settling the
// difference against the contributor's balance. The re-sort is keyed on
// credits only, so among equal-credit entries the original insertion
// order survives the update.
func updateCredits(entryID string, newCredits int, requesterID string) MutateFunc {
	return func(ctx context.Context, s *Session, led Ledger) error {
		if newCredits < 0 {
			return ErrInsufficientCredits
		}
		idx := s.entryIndex(entryID)
		if idx < 0 {
			return ErrNotFound
		}
		entry := &s.Queue[idx]
		if requesterID != s.HostID && requesterID != entry.AddedBy.UserID {
			return ErrPermissionDenied
		}
		delta := newCredits - entry.Credits
		switch {
		case delta > 0:
			if err := led.Debit(ctx, entry.AddedBy.UserID, delta); err != nil {
				return err
			}
		case delta < 0:
			if err := led.Credit(ctx, entry.AddedBy.UserID, -delta); err != nil {
				return err
			}
		}
		entry.Credits = newCredits
		sortQueue(s.Queue)
		return nil
	}
}

// reorderQueue splices an entry from one index to another. Host only,
// and only while no entry carries credits: credit weights own the order
// the moment anyone has paid for a position.
func reorderQueue(fromIndex, toIndex int, requesterID string) MutateFunc {
	return func(ctx context.Context, s *Session, led Ledger) error {
		if requesterID != s.HostID {
			return ErrPermissionDenied
		}
		if s.hasCreditedSongs() {
			return ErrOrderingLockedByCredits
		}
		if fromIndex < 0 || fromIndex >= len(s.Queue) {
			return ErrNotFound
		}
		if toIndex < 0 {
			toIndex = 0
		}
		if toIndex >= len(s.Queue) {
			toIndex = len(s.Queue) - 1
		}
		entry := s.Queue[fromIndex]
		s.Queue = append(s.Queue[:fromIndex], s.Queue[fromIndex+1:]...)
		s.Queue = append(s.Queue[:toIndex], append([]QueueEntry{entry}, s.Queue[toIndex:]...)...)
		return nil
	}
}
