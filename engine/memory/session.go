package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultSessionTTL is how long an idle session survives before Redis
// expires the key, matching "short-TTL, process-shared" session state.
const DefaultSessionTTL = 30 * time.Minute

// SessionStore backs Session with Redis so any API replica handling a
// request for a given session ID sees the same in-flight conversation
// state, without each replica needing its own in-memory session map.
type SessionStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	now    func() time.Time
}

// NewSessionStore creates a SessionStore. ttl defaults to
// DefaultSessionTTL when zero.
func NewSessionStore(rdb *redis.Client, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{rdb: rdb, ttl: ttl, prefix: "session:", now: time.Now}
}

func (s *SessionStore) key(sessionID string) string {
	return s.prefix + sessionID
}

// Load fetches a session's state. A missing key returns a fresh, empty
// Session rather than an error, so callers can treat "no session yet" the
// same as "empty session".
func (s *SessionStore) Load(ctx context.Context, sessionID string) (Session, error) {
	data, err := s.rdb.Get(ctx, s.key(sessionID)).Bytes()
	if err == redis.Nil {
		return Session{SessionID: sessionID, State: map[string]any{}}, nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("memory: load session %q: %w", sessionID, err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, fmt.Errorf("memory: unmarshal session %q: %w", sessionID, err)
	}
	return sess, nil
}

// Save writes a session's state back, resetting its TTL.
func (s *SessionStore) Save(ctx context.Context, sess Session) error {
	sess.UpdatedAt = s.now()
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("memory: marshal session %q: %w", sess.SessionID, err)
	}
	return s.rdb.Set(ctx, s.key(sess.SessionID), data, s.ttl).Err()
}

// Delete removes a session's state immediately rather than waiting for TTL
// expiry, e.g. on explicit logout.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, s.key(sessionID)).Err()
}
