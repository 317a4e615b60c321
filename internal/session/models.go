package session

import (
	"time"
)

// Session is a shareable, host-owned unit combining a queue, playback
// state and membership. The session id doubles as the join code.
type Session struct {
	ID        string      `json:"sessionId"`
	Name      string      `json:"name"`
	HostID    string      `json:"hostId"`
	IsActive  bool        `json:"isActive"`
	Queue     []QueueEntry `json:"queue"`
	NowPlaying *QueueEntry `json:"nowPlaying,omitempty"`
	Transport Transport   `json:"transport"`
	CreatedAt time.Time   `json:"createdAt"`
}

// QueueEntry is one song instance in the pending list. EntryID is its
// own identity: the same media may be queued twice and each copy is
// targeted independently for removal and credit updates.
type QueueEntry struct {
	EntryID      string    `json:"entryId"`
	MediaID      string    `json:"mediaId"`
	Title        string    `json:"title"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	AddedBy      UserRef   `json:"addedBy"`
	Credits      int       `json:"credits"`
	AddedAt      time.Time `json:"addedAt"`
}

// Transport is the authoritative play/pause + position state, stamped
// with the server-observed write time so clients can project drift.
type Transport struct {
	IsPlaying       bool      `json:"isPlaying"`
	PositionSeconds float64   `json:"positionSeconds"`
	LastUpdatedAt   time.Time `json:"lastUpdatedAt"`
}

type UserRef struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// Playback states derived from nowPlaying + transport.
const (
	StateIdle    = "idle"
	StateLoaded  = "loaded"
	StatePlaying = "playing"
	StatePaused  = "paused"
)

// PlaybackState reports the coordinator state machine position.
func (s *Session) PlaybackState() string {
	switch {
	case s.NowPlaying == nil:
		return StateIdle
	case s.Transport.IsPlaying:
		return StatePlaying
	case s.Transport.PositionSeconds == 0:
		return StateLoaded
	default:
		return StatePaused
	}
}

// entryIndex finds a queue entry by its id, -1 when absent.
func (s *Session) entryIndex(entryID string) int {
	for i := range s.Queue {
		if s.Queue[i].EntryID == entryID {
			return i
		}
	}
	return -1
}

// hasCreditedSongs reports whether any queued entry carries credits.
// Manual drag-reorder is disabled while this holds.
func (s *Session) hasCreditedSongs() bool {
	for i := range s.Queue {
		if s.Queue[i].Credits > 0 {
			return true
		}
	}
	return false
}
