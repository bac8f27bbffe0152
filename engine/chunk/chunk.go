// Package chunk defines the canonical chunk shape shared by every modality
// handler, the vector service, and the graph service, plus the entity ID and
// text-clamping helpers that must behave identically on the ingest and
// search paths.
package chunk

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxTextLen is the maximum length a chunk's text may have before it is
// clamped. Clamped text ends with an ellipsis.
const MaxTextLen = 8000

const ellipsis = "..."

// SourceType enumerates the kinds of upstream content a chunk can derive from.
type SourceType string

const (
	SourceChat     SourceType = "chat"
	SourceSCM      SourceType = "scm"
	SourceDoc      SourceType = "doc"
	SourceDocIssue SourceType = "doc_issue"
	SourceIssue    SourceType = "issue"
	SourceFile     SourceType = "file"
	SourceVideo    SourceType = "video"
	SourceWeb      SourceType = "web"
)

// Chunk is the unit of semantic storage. It is created once by a modality
// handler and never mutated; re-ingestion produces new chunks under the same
// EntityID.
type Chunk struct {
	ChunkID    string         `json:"chunk_id"`
	EntityID   string         `json:"entity_id"`
	SourceType SourceType     `json:"source_type"`
	Text       string         `json:"text"`
	Component  string         `json:"component,omitempty"`
	Service    string         `json:"service,omitempty"`
	Timestamp  *time.Time     `json:"timestamp,omitempty"`
	Tags       []string       `json:"tags,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Collection string         `json:"collection,omitempty"`
	IngestedAt time.Time      `json:"ingested_at"`
}

// Conventional metadata keys recognized across handlers and the vector/graph
// services.
const (
	MetaWorkspaceID = "workspace_id"
	MetaSourceID    = "source_id"
	MetaParentID    = "parent_id"
	MetaDisplayName = "display_name"
	MetaPath        = "path"
	MetaStartOffset = "start_offset"
	MetaEndOffset   = "end_offset"
	MetaURL         = "url"
)

var entityIDPattern = regexp.MustCompile(`^[^:]+:.+$`)

// ValidEntityID reports whether id is a well-formed {type}:{identifier} string.
func ValidEntityID(id string) bool {
	return entityIDPattern.MatchString(id)
}

// EntityID builds a stable entity ID for the given node type and identifier.
func EntityID(typ, identifier string) string {
	return fmt.Sprintf("%s:%s", typ, identifier)
}

// Empty reports whether a chunk has no text and therefore must not be
// embedded or persisted.
func (c Chunk) Empty() bool {
	return strings.TrimSpace(c.Text) == ""
}

// Clamp truncates s to MaxTextLen runes, appending an ellipsis when
// truncation occurs. Both the ingest path and the search path must call this
// exact function so clamped text is byte-for-byte identical either way.
func Clamp(s string) string {
	if len(s) <= MaxTextLen {
		return s
	}
	cut := MaxTextLen - len(ellipsis)
	if cut < 0 {
		cut = 0
	}
	// Avoid splitting a multi-byte rune at the boundary.
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + ellipsis
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// uuidPattern matches a canonical UUID string.
var uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// DerivePointID returns a backend-compatible point ID for entityID: the
// entity ID itself if it is already a well-formed UUID, otherwise a
// deterministic UUIDv5 derived from it. Re-deriving from the same entityID
// always yields the same point ID.
func DerivePointID(entityID string) string {
	if uuidPattern.MatchString(entityID) {
		return strings.ToLower(entityID)
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(entityID)).String()
}
