package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultCacheTTL is how long cached reads are served before the store
// reloads from disk.
const DefaultCacheTTL = 5 * time.Minute

// cacheEntry wraps a cached payload with its insertion time. Freshness is
// decided by the pure isFresh function; invalidation is always an explicit
// call, never implicit.
type cacheEntry[T any] struct {
	payload    T
	insertedAt time.Time
}

// isFresh reports whether a cache entry is still usable at now.
func isFresh[T any](e *cacheEntry[T], ttl time.Duration, now time.Time) bool {
	if e == nil {
		return false
	}
	return now.Sub(e.insertedAt) < ttl
}

// Store is the durable keyed storage for conversations, memory items, and
// the user profile. Records are JSON files; writes are atomic at the
// single-record granularity and corrupt records are quarantined on read.
//
// The store assumes a single writer per process. The internal mutex
// serializes writes within the process; concurrent writers from other
// processes are last-write-wins.
type Store struct {
	baseDir     string
	sessionsDir string
	notesDir    string
	patternsDir string
	profilePath string

	ttl time.Duration

	mu           sync.Mutex
	profileCache *cacheEntry[*UserProfile]
	recentCache  *cacheEntry[[]*Conversation]
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithCacheTTL overrides the cache time-to-live. A zero or negative TTL
// keeps DefaultCacheTTL, so an omitted config value does not turn the
// caches off.
func WithCacheTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewStore opens (and if necessary creates) a memory store rooted at
// baseDir.
func NewStore(baseDir string, opts ...StoreOption) (*Store, error) {
	personal := filepath.Join(baseDir, "personal")
	s := &Store{
		baseDir:     baseDir,
		sessionsDir: filepath.Join(personal, "work-sessions"),
		notesDir:    filepath.Join(personal, "my-notes"),
		patternsDir: filepath.Join(personal, "personal-patterns"),
		profilePath: filepath.Join(personal, "user-profile.json"),
		ttl:         DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(s)
	}

	shared := filepath.Join(baseDir, "shared")
	dirs := []string{
		s.sessionsDir,
		s.notesDir,
		s.patternsDir,
		filepath.Join(shared, "project-context"),
		filepath.Join(shared, "coding-patterns"),
		filepath.Join(shared, "common-issues"),
		filepath.Join(shared, "team-decisions"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", dir, err)
		}
	}

	log.Debug().Str("base_dir", baseDir).Msg("memory store opened")
	return s, nil
}

// BaseDir returns the root directory of the store.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// ─── Conversations ───────────────────────────────────────────────────────────

// conversationPath builds the session record filename. The start time is
// embedded so the directory listing reads chronologically.
func (s *Store) conversationPath(c *Conversation) string {
	name := fmt.Sprintf("%s-%s.json",
		c.StartTime.Format("2006-01-02-15-04-05"), c.SessionID)
	return filepath.Join(s.sessionsDir, name)
}

// SaveConversation persists the whole conversation as one record and
// invalidates the recent-conversations cache.
func (s *Store) SaveConversation(c *Conversation) error {
	if c == nil || c.SessionID == "" {
		return fmt.Errorf("conversation requires a session id")
	}
	if err := writeJSONFile(s.conversationPath(c), c); err != nil {
		return fmt.Errorf("save conversation %s: %w", c.SessionID, err)
	}

	s.mu.Lock()
	s.recentCache = nil
	s.mu.Unlock()

	log.Debug().Str("session_id", c.SessionID).Int("turns", len(c.Turns)).Msg("conversation saved")
	return nil
}

// LoadConversation returns the conversation for sessionID, or nil if no
// record exists. A corrupt record is quarantined and reported as absent.
func (s *Store) LoadConversation(sessionID string) (*Conversation, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id required")
	}
	for _, path := range recentFiles(s.sessionsDir, 0) {
		if !strings.HasSuffix(path, "-"+sessionID+".json") {
			continue
		}
		var conv Conversation
		if err := readJSONFile(path, &conv); err != nil {
			quarantineFile(path)
			return nil, nil
		}
		return &conv, nil
	}
	return nil, nil
}

// LoadRecentConversations returns up to limit conversations, most recent
// first. Corrupt records are skipped and quarantined, so the result may be
// shorter than limit even when more records exist on disk.
func (s *Store) LoadRecentConversations(limit int) []*Conversation {
	s.mu.Lock()
	cached := s.recentCache
	s.mu.Unlock()

	if isFresh(cached, s.ttl, time.Now()) && len(cached.payload) >= limit {
		return cached.payload[:limit]
	}

	var conversations []*Conversation
	// Fetch extra candidates so quarantined records do not starve the limit.
	for _, path := range recentFiles(s.sessionsDir, limit*2) {
		var conv Conversation
		if err := readJSONFile(path, &conv); err != nil {
			quarantineFile(path)
			continue
		}
		if conv.SessionID == "" || conv.StartTime.IsZero() {
			quarantineFile(path)
			continue
		}
		conversations = append(conversations, &conv)
		if len(conversations) >= limit {
			break
		}
	}

	s.mu.Lock()
	s.recentCache = &cacheEntry[[]*Conversation]{payload: conversations, insertedAt: time.Now()}
	s.mu.Unlock()

	return conversations
}

// DeleteConversation removes the record for sessionID. Missing records are
// not an error.
func (s *Store) DeleteConversation(sessionID string) error {
	for _, path := range recentFiles(s.sessionsDir, 0) {
		if strings.HasSuffix(path, "-"+sessionID+".json") {
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("delete conversation %s: %w", sessionID, err)
			}
			s.mu.Lock()
			s.recentCache = nil
			s.mu.Unlock()
			return nil
		}
	}
	return nil
}

// ─── Memory items ────────────────────────────────────────────────────────────

// itemDir maps a memory type to its record directory.
func (s *Store) itemDir(t MemoryType) string {
	if t == TypePattern {
		return s.patternsDir
	}
	return s.notesDir
}

// SaveMemoryItem persists a single memory item.
func (s *Store) SaveMemoryItem(item *MemoryItem) error {
	if item == nil || item.ID == "" {
		return fmt.Errorf("memory item requires an id")
	}
	path := filepath.Join(s.itemDir(item.Type), item.ID+".json")
	if err := writeJSONFile(path, item); err != nil {
		return fmt.Errorf("save memory item %s: %w", item.ID, err)
	}
	log.Debug().Str("item_id", item.ID).Str("type", string(item.Type)).Msg("memory item saved")
	return nil
}

// LoadMemoryItems returns stored memory items, optionally filtered by type.
// A nil filter loads notes and patterns. Corrupt records are quarantined
// and skipped. Items come back in filter order per directory, so repeated
// calls with the same filter see the same order.
func (s *Store) LoadMemoryItems(types []MemoryType) []*MemoryItem {
	if types == nil {
		types = []MemoryType{TypeNote, TypePattern}
	}

	var dirs []string
	seen := map[string]bool{}
	for _, t := range types {
		if dir := s.itemDir(t); !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}

	wanted := map[MemoryType]bool{}
	for _, t := range types {
		wanted[t] = true
	}

	var items []*MemoryItem
	for _, dir := range dirs {
		for _, path := range recentFiles(dir, 0) {
			var item MemoryItem
			if err := readJSONFile(path, &item); err != nil {
				quarantineFile(path)
				continue
			}
			if item.ID == "" || !wanted[item.Type] {
				continue
			}
			items = append(items, &item)
		}
	}
	return items
}

// ─── User profile ────────────────────────────────────────────────────────────

// LoadUserProfile returns the cached profile when fresh, otherwise reloads
// from disk. A missing or corrupt profile record falls back to the default
// profile; corruption quarantines the record first.
func (s *Store) LoadUserProfile() *UserProfile {
	s.mu.Lock()
	cached := s.profileCache
	s.mu.Unlock()

	if isFresh(cached, s.ttl, time.Now()) {
		return cached.payload
	}

	profile := DefaultProfile()
	if _, err := os.Stat(s.profilePath); err == nil {
		var loaded UserProfile
		if err := readJSONFile(s.profilePath, &loaded); err != nil {
			quarantineFile(s.profilePath)
		} else {
			if loaded.InteractionStyle == "" {
				loaded.InteractionStyle = StyleBalanced
			}
			profile = &loaded
		}
	}

	s.mu.Lock()
	s.profileCache = &cacheEntry[*UserProfile]{payload: profile, insertedAt: time.Now()}
	s.mu.Unlock()

	return profile
}

// SaveUserProfile persists the profile and repopulates the cache.
func (s *Store) SaveUserProfile(profile *UserProfile) error {
	if profile == nil {
		return fmt.Errorf("profile required")
	}
	if err := writeJSONFile(s.profilePath, profile); err != nil {
		return fmt.Errorf("save user profile: %w", err)
	}

	s.mu.Lock()
	s.profileCache = &cacheEntry[*UserProfile]{payload: profile, insertedAt: time.Now()}
	s.mu.Unlock()

	log.Debug().Str("name", profile.Name).Msg("user profile saved")
	return nil
}

// InvalidateCaches drops all cached reads. The next read reloads from disk.
func (s *Store) InvalidateCaches() {
	s.mu.Lock()
	s.profileCache = nil
	s.recentCache = nil
	s.mu.Unlock()
}

// ─── Maintenance ─────────────────────────────────────────────────────────────

// Stats summarizes the stored corpus.
type Stats struct {
	TotalConversations int       `json:"total_conversations"`
	TotalTurns         int       `json:"total_turns"`
	TotalMemoryItems   int       `json:"total_memory_items"`
	OldestConversation time.Time `json:"oldest_conversation"`
	NewestConversation time.Time `json:"newest_conversation"`
	StoragePath        string    `json:"storage_path"`
}

// Stats scans recent records and reports corpus-level counts.
func (s *Store) Stats() Stats {
	conversations := s.LoadRecentConversations(100)
	items := s.LoadMemoryItems(nil)

	stats := Stats{
		TotalConversations: len(conversations),
		TotalMemoryItems:   len(items),
		StoragePath:        s.baseDir,
	}
	for _, conv := range conversations {
		stats.TotalTurns += len(conv.Turns)
		if stats.OldestConversation.IsZero() || conv.StartTime.Before(stats.OldestConversation) {
			stats.OldestConversation = conv.StartTime
		}
		if conv.StartTime.After(stats.NewestConversation) {
			stats.NewestConversation = conv.StartTime
		}
	}
	return stats
}

// CleanupOlderThan deletes conversation records started before the cutoff
// and returns how many were removed. Unreadable records are left alone.
func (s *Store) CleanupOlderThan(age time.Duration) int {
	cutoff := time.Now().Add(-age)
	deleted := 0
	for _, path := range recentFiles(s.sessionsDir, 0) {
		var conv Conversation
		if err := readJSONFile(path, &conv); err != nil {
			continue
		}
		if conv.StartTime.Before(cutoff) {
			if err := os.Remove(path); err != nil {
				log.Warn().Err(err).Str("path", path).Msg("failed to remove old conversation")
				continue
			}
			deleted++
		}
	}
	if deleted > 0 {
		s.mu.Lock()
		s.recentCache = nil
		s.mu.Unlock()
		log.Info().Int("deleted", deleted).Msg("old conversations cleaned up")
	}
	return deleted
}
