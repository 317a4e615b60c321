package session

import (
	"context"
	"sync"
	"time"
)

// minTransportWriteInterval bounds write amplification from position
// heartbeats. Play/pause flips always go through immediately.
const minTransportWriteInterval = 3 * time.Second

// advance pops the highest-priority entry into nowPlaying and resets
// the transport. An empty queue parks the session in Idle. Natural end,
// Skip, Start Playing and media playback errors all land here, so one
// broken entry can never wedge the session.
func advance(now time.Time) MutateFunc {
	return func(ctx context.Context, s *Session, led Ledger) error {
		if len(s.Queue) == 0 {
			s.NowPlaying = nil
			s.Transport = Transport{IsPlaying: false, PositionSeconds: 0, LastUpdatedAt: now}
			return nil
		}
		next := s.Queue[0]
		s.Queue = append([]QueueEntry{}, s.Queue[1:]...)
		s.NowPlaying = &next
		s.Transport = Transport{IsPlaying: true, PositionSeconds: 0, LastUpdatedAt: now}
		return nil
	}
}

// setTransport is the authoritative transport write, stamped with the
// server-observed time.
func setTransport(isPlaying bool, positionSeconds float64, now time.Time) MutateFunc {
	return func(ctx context.Context, s *Session, led Ledger) error {
		if s.NowPlaying == nil {
			return ErrNotFound
		}
		if positionSeconds < 0 {
			positionSeconds = 0
		}
		s.Transport = Transport{
			IsPlaying:       isPlaying,
			PositionSeconds: positionSeconds,
			LastUpdatedAt:   now,
		}
		return nil
	}
}

// seekTransport moves the position, keeping the play/pause state. The
// resulting broadcast is what other clients reconcile against.
func seekTransport(positionSeconds float64, now time.Time) MutateFunc {
	return func(ctx context.Context, s *Session, led Ledger) error {
		if s.NowPlaying == nil {
			return ErrNotFound
		}
		if positionSeconds < 0 {
			positionSeconds = 0
		}
		s.Transport.PositionSeconds = positionSeconds
		s.Transport.LastUpdatedAt = now
		return nil
	}
}

// TransportThrottle decides whether a transport write should be sent
// now. Position heartbeats are limited to one per interval; a change of
// play/pause state always writes. Purely a write-amplification bound,
// skipped writes are caught up by the next heartbeat.
type TransportThrottle struct {
	mu          sync.Mutex
	interval    time.Duration
	lastWrite   time.Time
	lastPlaying bool
	primed      bool
}

func NewTransportThrottle() *TransportThrottle {
	return &TransportThrottle{interval: minTransportWriteInterval}
}

func (t *TransportThrottle) Allow(isPlaying bool, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.primed || isPlaying != t.lastPlaying || now.Sub(t.lastWrite) >= t.interval {
		t.primed = true
		t.lastWrite = now
		t.lastPlaying = isPlaying
		return true
	}
	return false
}
