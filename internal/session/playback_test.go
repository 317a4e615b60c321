package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAdvancePromotesQueueHead(t *testing.T) {
	s := newTestSession()
	led := newFakeLedger()
	led.balances[guest.UserID] = 10

	mustApply(t, s, led, addSong("v1", "one", "", guest, 6, at(0)))
	mustApply(t, s, led, addSong("v2", "two", "", guest, 4, at(1)))

	mustApply(t, s, led, advance(at(10)))

	if s.NowPlaying == nil || s.NowPlaying.MediaID != "v1" {
		t.Fatalf("nowPlaying should be the credit-sorted head")
	}
	if len(s.Queue) != 1 || s.Queue[0].MediaID != "v2" {
		t.Fatalf("promoted entry must leave the queue, queue = %v", s.Queue)
	}
	if !s.Transport.IsPlaying || s.Transport.PositionSeconds != 0 {
		t.Errorf("transport should restart on advance: %+v", s.Transport)
	}
	if got := s.PlaybackState(); got != StatePlaying {
		t.Errorf("state = %s, want %s", got, StatePlaying)
	}

	// nowPlaying is never simultaneously present in the queue.
	if s.entryIndex(s.NowPlaying.EntryID) != -1 {
		t.Errorf("nowPlaying entry still present in queue")
	}
}

func TestAdvanceOnEmptyQueueGoesIdle(t *testing.T) {
	s := newTestSession()
	led := newFakeLedger()
	led.balances[guest.UserID] = 10

	mustApply(t, s, led, addSong("v1", "one", "", guest, 2, at(0)))
	mustApply(t, s, led, advance(at(1)))
	mustApply(t, s, led, advance(at(2)))

	if s.NowPlaying != nil {
		t.Fatalf("advance on empty queue must clear nowPlaying")
	}
	if s.Transport.IsPlaying || s.Transport.PositionSeconds != 0 {
		t.Errorf("idle transport should be paused at 0: %+v", s.Transport)
	}
	if got := s.PlaybackState(); got != StateIdle {
		t.Errorf("state = %s, want %s", got, StateIdle)
	}
}

func TestSetTransportStates(t *testing.T) {
	s := newTestSession()
	led := newFakeLedger()
	led.balances[guest.UserID] = 10

	err := setTransport(true, 10, at(0))(context.Background(), s, led)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("transport write with nothing loaded = %v, want ErrNotFound", err)
	}

	mustApply(t, s, led, addSong("v1", "one", "", guest, 0, at(0)))
	mustApply(t, s, led, advance(at(1)))

	mustApply(t, s, led, setTransport(false, 42.5, at(50)))
	if s.Transport.IsPlaying || s.Transport.PositionSeconds != 42.5 {
		t.Fatalf("transport = %+v", s.Transport)
	}
	if got := s.PlaybackState(); got != StatePaused {
		t.Errorf("state = %s, want %s", got, StatePaused)
	}

	mustApply(t, s, led, setTransport(false, 0, at(51)))
	if got := s.PlaybackState(); got != StateLoaded {
		t.Errorf("state = %s, want %s", got, StateLoaded)
	}

	// Negative positions clamp to zero.
	mustApply(t, s, led, setTransport(true, -3, at(52)))
	if s.Transport.PositionSeconds != 0 {
		t.Errorf("negative position should clamp, got %f", s.Transport.PositionSeconds)
	}
}

func TestSeekKeepsPlayState(t *testing.T) {
	s := newTestSession()
	led := newFakeLedger()
	led.balances[guest.UserID] = 10

	mustApply(t, s, led, addSong("v1", "one", "", guest, 0, at(0)))
	mustApply(t, s, led, advance(at(1)))
	mustApply(t, s, led, setTransport(true, 10, at(2)))

	mustApply(t, s, led, seekTransport(90, at(3)))
	if !s.Transport.IsPlaying {
		t.Errorf("seek must not pause playback")
	}
	if s.Transport.PositionSeconds != 90 {
		t.Errorf("position = %f, want 90", s.Transport.PositionSeconds)
	}
	if !s.Transport.LastUpdatedAt.Equal(at(3)) {
		t.Errorf("seek must restamp the transport")
	}
}

func TestTransportThrottle(t *testing.T) {
	th := NewTransportThrottle()
	base := at(0)

	if !th.Allow(true, base) {
		t.Fatal("first write must pass")
	}
	if th.Allow(true, base.Add(time.Second)) {
		t.Error("heartbeat within the interval should be suppressed")
	}
	if !th.Allow(false, base.Add(2*time.Second)) {
		t.Error("play/pause transition must always pass")
	}
	if !th.Allow(false, base.Add(6*time.Second)) {
		t.Error("heartbeat after the interval should pass")
	}
}
