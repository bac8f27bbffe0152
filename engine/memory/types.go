// Package memory implements the Session & Memory Store: short-TTL session
// state shared across processes via Redis, and durable per-user memory
// facts persisted as JSON under data/user_memory/<user_id>/, generalized
// from the teacher's registry atomic-snapshot idiom and goa-ai's
// load/append (not mutate) store contract.
package memory

import "time"

// MemoryEntry is a persistent user fact recalled across sessions.
type MemoryEntry struct {
	MemoryID            string    `json:"memory_id"`
	Content              string    `json:"content"`
	Category             string    `json:"category"`
	Tags                 []string  `json:"tags,omitempty"`
	SalienceScore        float64   `json:"salience_score"`
	AccessCount          int       `json:"access_count"`
	Embedding            []float32 `json:"embedding,omitempty"`
	SourceInteractionID  string    `json:"source_interaction_id,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	LastAccessedAt       time.Time `json:"last_accessed_at"`
	TTLDays              *int      `json:"ttl_days,omitempty"`
}

const (
	MinSalience = 0.1
	MaxSalience = 1.0
)

// Profile holds durable, slowly-changing facts about a user that aren't
// individually-salient memories (display name, timezone, preferences).
type Profile struct {
	UserID    string         `json:"user_id"`
	Fields    map[string]any `json:"fields,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Summary is a rolled-up digest of older memories/interactions, produced
// when the raw memory list grows past what a planner should read in full.
type Summary struct {
	SummaryID  string    `json:"summary_id"`
	Content    string    `json:"content"`
	CoversFrom time.Time `json:"covers_from"`
	CoversTo   time.Time `json:"covers_to"`
	CreatedAt  time.Time `json:"created_at"`
}

// Session is short-TTL, process-shared conversation state. It is not
// persisted to disk; SessionStore backs it with Redis so any API replica
// sees the same state for a given session ID.
type Session struct {
	SessionID string         `json:"session_id"`
	UserID    string         `json:"user_id"`
	State     map[string]any `json:"state"`
	UpdatedAt time.Time      `json:"updated_at"`
}
