package presence

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ImAlejon/drinksapp/internal/session"
)

// Tracker keeps the TTL-based connected-users list in Redis, one hash
// per session keyed by user id. It is advisory only: sessions work the
// same whether or not a member ever pings.
type Tracker struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewTracker(rdb *redis.Client, ttl time.Duration) *Tracker {
	return &Tracker{
		rdb: rdb,
		ttl: ttl,
	}
}

type memberRecord struct {
	DisplayName string    `json:"displayName"`
	LastPingAt  time.Time `json:"lastPingAt"`
}

func key(sessionID string) string {
	return "presence:" + sessionID
}

func (t *Tracker) Ping(ctx context.Context, sessionID string, user session.UserRef) error {
	data, err := json.Marshal(memberRecord{
		DisplayName: user.DisplayName,
		LastPingAt:  time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	pipe := t.rdb.Pipeline()
	pipe.HSet(ctx, key(sessionID), user.UserID, data)
	// The whole hash expires too, so abandoned sessions clean up even
	// if the sweeper never runs.
	pipe.Expire(ctx, key(sessionID), t.ttl*4)
	_, err = pipe.Exec(ctx)
	return err
}

func (t *Tracker) List(ctx context.Context, sessionID string) ([]session.PresenceMember, error) {
	raw, err := t.rdb.HGetAll(ctx, key(sessionID)).Result()
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().UTC().Add(-t.ttl)
	members := make([]session.PresenceMember, 0, len(raw))
	for userID, data := range raw {
		var rec memberRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			continue
		}
		if rec.LastPingAt.Before(cutoff) {
			continue
		}
		members = append(members, session.PresenceMember{
			UserID:      userID,
			DisplayName: rec.DisplayName,
			LastPingAt:  rec.LastPingAt,
		})
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].UserID < members[j].UserID
	})
	return members, nil
}

func (t *Tracker) Leave(ctx context.Context, sessionID, userID string) error {
	return t.rdb.HDel(ctx, key(sessionID), userID).Err()
}

// StartSweeper periodically drops entries whose last ping is older than
// the TTL.
func (t *Tracker) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				t.sweep(ctx)
			}
		}
	}()
}

func (t *Tracker) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-t.ttl)

	var cursor uint64
	for {
		keys, next, err := t.rdb.Scan(ctx, cursor, "presence:*", 100).Result()
		if err != nil {
			log.Printf("drinksapp: presence sweep scan: %v", err)
			return
		}
		for _, k := range keys {
			raw, err := t.rdb.HGetAll(ctx, k).Result()
			if err != nil {
				continue
			}
			for userID, data := range raw {
				var rec memberRecord
				if err := json.Unmarshal([]byte(data), &rec); err != nil || rec.LastPingAt.Before(cutoff) {
					if err := t.rdb.HDel(ctx, k, userID).Err(); err != nil {
						log.Printf("drinksapp: presence sweep del: %v", err)
					}
				}
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}

var _ session.Presence = (*Tracker)(nil)
