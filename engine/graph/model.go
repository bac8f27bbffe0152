// Package graph implements the Graph Service: typed node upserts, typed
// link operations, and neighborhood/impact read APIs against a Neo4j
// property graph. Generalized from the teacher's single Component/Edge
// model to the spec's full node type set, keeping the teacher's
// MERGE-and-SET idiom and "prop_"-prefixed free-form property convention.
package graph

import "time"

// Node type labels used across upserts, links, and neighborhood queries.
const (
	LabelChunk           = "Chunk"
	LabelSource          = "Source"
	LabelComponent       = "Component"
	LabelPR              = "PR"
	LabelCommit          = "Commit"
	LabelIssue           = "Issue"
	LabelVideo           = "Video"
	LabelChannel         = "Channel"
	LabelPlaylist        = "Playlist"
	LabelActivitySignal  = "ActivitySignal"
	LabelSupportCase     = "SupportCase"
	LabelConcept         = "Concept"
	LabelCodeArtifact    = "CodeArtifact"
	LabelTranscriptChunk = "TranscriptChunk"
)

// Relationship types.
const (
	RelBelongsTo  = "BELONGS_TO"
	RelHasVideo   = "HAS_VIDEO"
	RelHasChunk   = "HAS_CHUNK"
	RelAboutTopic = "ABOUT_TOPIC"
	RelInPlaylist = "IN_PLAYLIST"
	RelTouches    = "TOUCHES"
	RelReports    = "REPORTS"
)

// Chunk mirrors a chunk.Chunk into the graph, linked to its Source node by
// the Universal Node Writer.
type Chunk struct {
	ChunkID    string
	EntityID   string
	SourceType string
	SourceID   string
	Component  string
	Service    string
	Text       string
	Timestamp  *time.Time
}

// Source is a graph node per upstream item, deduped by SourceID.
type Source struct {
	SourceID    string
	SourceType  string
	DisplayName string
	URL         string
	Properties  map[string]string
}

// PR represents a pull request.
type PR struct {
	ID         string
	Repo       string
	Number     int
	Title      string
	FilesCount int
	Churn      int
	Labels     []string
	MergedAt   *time.Time
}

// Commit represents a single commit.
type Commit struct {
	SHA        string
	Repo       string
	Message    string
	FilesCount int
	Churn      int
	Timestamp  *time.Time
}

// Issue represents an SCM or tracker issue.
type Issue struct {
	ID        string
	Repo      string
	Title     string
	Labels    []string
	Comments  int
	Reactions int
	CreatedAt *time.Time
}

// Video represents an ingested video.
type Video struct {
	VideoID     string
	ChannelID   string
	Title       string
	PublishedAt *time.Time
}

// Channel represents a video channel.
type Channel struct {
	ChannelID string
	Name      string
}

// Playlist represents a video playlist.
type Playlist struct {
	PlaylistID string
	Title      string
}

// ActivitySignal represents a weighted activity event, originally
// SCM-derived (pr, commit, issue) and generalized to chat (kind "chat",
// touching a Channel instead of a Component).
type ActivitySignal struct {
	ID         string
	Component  string // MERGE target when set: TOUCHES a Component
	ChannelID  string // MERGE target when set: TOUCHES a Channel
	Weight     float64
	Kind       string // pr, commit, issue, chat
	Labels     []string
	Author     string
	ThreadTS   string
	OccurredAt *time.Time
}

// SupportCase represents a dissatisfaction-flagged issue.
type SupportCase struct {
	ID        string
	IssueID   string
	Labels    []string
	CreatedAt *time.Time
}

// Concept represents a topic/concept mined from content.
type Concept struct {
	ConceptID string
	Name      string
}

// CodeArtifact represents a code-level entity (API endpoint, function).
type CodeArtifact struct {
	ArtifactID string
	Kind       string // api, function, module
	Name       string
	Component  string
}

// TranscriptChunk represents one transcript window of a video.
type TranscriptChunk struct {
	ChunkID  string
	VideoID  string
	StartSec float64
	EndSec   float64
	Text     string
}

// Neighborhood is the result of GetComponentNeighborhood: distinct linked
// identifiers across every neighbor type.
type Neighborhood struct {
	ComponentID   string
	DocIDs        []string
	IssueIDs      []string
	PRIDs         []string
	ChatThreadIDs []string
	APIIDs        []string
}

// APIImpact is the result of GetAPIImpact.
type APIImpact struct {
	APIID         string
	Components    []string
	Docs          []string
	TouchingPRs   []string
	DownstreamIDs []string
}
