package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists durable per-user memory state: a profile, a list of
// memory entries, and rolled-up summaries. Implementations must be
// thread-safe. Mirrors goa-ai's memory.Store load/append (not mutate)
// contract: callers read a full snapshot and append new facts rather than
// patching individual fields in place.
type Store interface {
	LoadProfile(ctx context.Context, userID string) (Profile, error)
	SaveProfile(ctx context.Context, userID string, profile Profile) error

	LoadMemories(ctx context.Context, userID string) ([]MemoryEntry, error)
	AppendMemory(ctx context.Context, userID string, content, category string, tags []string, embedding []float32) (MemoryEntry, error)
	Touch(ctx context.Context, userID, memoryID string) error

	LoadSummaries(ctx context.Context, userID string) ([]Summary, error)
	AppendSummary(ctx context.Context, userID, content string, coversFrom, coversTo time.Time) (Summary, error)

	// Cleanup decays every entry's salience for elapsed time, then removes
	// entries that are expired by TTL or have decayed to the salience
	// floor. Returns the number of entries removed.
	Cleanup(ctx context.Context, userID string) (int, error)
}

// FileStore persists per-user state under
// data/user_memory/<user_id>/{profile.json,memories.json,summaries.json}.
// All state mutations for a user are serialized under a single per-store
// lock, matching the registry's single-lock-covers-maintenance-too
// discipline: decay and cleanup run under the same lock as ordinary
// reads/appends rather than a separate housekeeping path.
type FileStore struct {
	mu   sync.Mutex
	root string
	now  func() time.Time
}

// NewFileStore creates a FileStore rooted at root (typically
// "data/user_memory").
func NewFileStore(root string) *FileStore {
	return &FileStore{root: root, now: time.Now}
}

func (s *FileStore) userDir(userID string) string {
	return filepath.Join(s.root, userID)
}

func (s *FileStore) LoadProfile(ctx context.Context, userID string) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var p Profile
	ok, err := readJSON(filepath.Join(s.userDir(userID), "profile.json"), &p)
	if err != nil {
		return Profile{}, err
	}
	if !ok {
		p = Profile{UserID: userID, Fields: map[string]any{}}
	}
	return p, nil
}

func (s *FileStore) SaveProfile(ctx context.Context, userID string, profile Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile.UserID = userID
	profile.UpdatedAt = s.now()
	return writeJSONAtomic(filepath.Join(s.userDir(userID), "profile.json"), profile)
}

func (s *FileStore) LoadMemories(ctx context.Context, userID string) ([]MemoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadMemoriesLocked(userID)
}

func (s *FileStore) loadMemoriesLocked(userID string) ([]MemoryEntry, error) {
	var entries []MemoryEntry
	if _, err := readJSON(filepath.Join(s.userDir(userID), "memories.json"), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *FileStore) AppendMemory(ctx context.Context, userID string, content, category string, tags []string, embedding []float32) (MemoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadMemoriesLocked(userID)
	if err != nil {
		return MemoryEntry{}, err
	}

	now := s.now()
	entry := MemoryEntry{
		MemoryID:       uuid.NewString(),
		Content:        content,
		Category:       category,
		Tags:           tags,
		SalienceScore:  MaxSalience,
		AccessCount:    0,
		Embedding:      embedding,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	entries = append(entries, entry)

	if err := writeJSONAtomic(filepath.Join(s.userDir(userID), "memories.json"), entries); err != nil {
		return MemoryEntry{}, err
	}
	return entry, nil
}

// Touch records an access against memoryID: bumps AccessCount, resets
// LastAccessedAt to now (which also resets the decay clock), and restores
// salience to MaxSalience, mirroring how a recalled-and-used fact should
// read as freshly relevant rather than still fading.
func (s *FileStore) Touch(ctx context.Context, userID, memoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadMemoriesLocked(userID)
	if err != nil {
		return err
	}

	found := false
	now := s.now()
	for i, e := range entries {
		if e.MemoryID != memoryID {
			continue
		}
		entries[i].AccessCount++
		entries[i].LastAccessedAt = now
		entries[i].SalienceScore = MaxSalience
		found = true
		break
	}
	if !found {
		return fmt.Errorf("memory: unknown memory_id %q for user %q", memoryID, userID)
	}
	return writeJSONAtomic(filepath.Join(s.userDir(userID), "memories.json"), entries)
}

func (s *FileStore) LoadSummaries(ctx context.Context, userID string) ([]Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var summaries []Summary
	if _, err := readJSON(filepath.Join(s.userDir(userID), "summaries.json"), &summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}

func (s *FileStore) AppendSummary(ctx context.Context, userID, content string, coversFrom, coversTo time.Time) (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var summaries []Summary
	if _, err := readJSON(filepath.Join(s.userDir(userID), "summaries.json"), &summaries); err != nil {
		return Summary{}, err
	}

	summary := Summary{
		SummaryID:  uuid.NewString(),
		Content:    content,
		CoversFrom: coversFrom,
		CoversTo:   coversTo,
		CreatedAt:  s.now(),
	}
	summaries = append(summaries, summary)

	if err := writeJSONAtomic(filepath.Join(s.userDir(userID), "summaries.json"), summaries); err != nil {
		return Summary{}, err
	}
	return summary, nil
}

func (s *FileStore) Cleanup(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadMemoriesLocked(userID)
	if err != nil {
		return 0, err
	}

	now := s.now()
	kept := entries[:0]
	removed := 0
	for _, e := range entries {
		e.SalienceScore = decaySalience(e.SalienceScore, e.LastAccessedAt, now)
		if isExpired(e, now) || e.SalienceScore <= MinSalience {
			removed++
			continue
		}
		kept = append(kept, e)
	}

	if removed == 0 {
		return 0, nil
	}
	if err := writeJSONAtomic(filepath.Join(s.userDir(userID), "memories.json"), kept); err != nil {
		return 0, err
	}
	return removed, nil
}

// readJSON reads and unmarshals path into v. A missing file is not an
// error — it reports ok=false so callers can start from a zero value,
// mirroring the registry's "missing state file starts empty" policy.
func readJSON(path string, v any) (ok bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("memory: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("memory: unmarshal %s: %w", path, err)
	}
	return true, nil
}

// writeJSONAtomic rewrites path via a temp-file-then-rename so a concurrent
// reader never observes a partially written snapshot.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("memory: marshal %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("memory: ensure dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*.json")
	if err != nil {
		return fmt.Errorf("memory: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("memory: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("memory: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("memory: rename temp file: %w", err)
	}
	return nil
}
