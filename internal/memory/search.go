package memory

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog/log"
)

const (
	// RelevanceThreshold is the minimum score for a search hit.
	RelevanceThreshold = 0.1
	// SimilarityThreshold is the minimum blended score for find-similar.
	SimilarityThreshold = 0.2
	// exactMatchBonus is added per keyword shared by query and text.
	exactMatchBonus = 0.1
	// similarityTagWeight and similarityContentWeight blend tag overlap
	// with content relevance when finding similar items.
	similarityTagWeight     = 0.3
	similarityContentWeight = 0.7
)

// stopWords are dropped during tokenization. The set covers the English and
// Korean function words seen in user requests.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true,
	"이": true, "그": true, "저": true, "이것": true, "그것": true, "저것": true,
	"을": true, "를": true, "가": true, "은": true, "는": true,
	"에서": true, "에게": true, "에": true,
	"어떻게": true, "왜": true, "언제": true, "어디서": true, "무엇을": true,
	"어떤": true, "그런": true, "이런": true, "저런": true,
}

// ExtractKeywords tokenizes text into lowercase keywords: word tokens with
// stop words removed and tokens of two runes or fewer discarded.
func ExtractKeywords(text string) []string {
	lower := strings.ToLower(text)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var keywords []string
	for _, w := range words {
		if stopWords[w] {
			continue
		}
		if len([]rune(w)) <= 2 {
			continue
		}
		keywords = append(keywords, w)
	}
	return keywords
}

// keywordSet builds a set from extracted keywords.
func keywordSet(text string) map[string]bool {
	set := map[string]bool{}
	for _, kw := range ExtractKeywords(text) {
		set[kw] = true
	}
	return set
}

// jaccard computes |intersection| / |union| of two sets.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for kw := range a {
		if b[kw] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// Relevance scores text against query in [0,1]: Jaccard similarity over the
// two keyword sets plus a small per-exact-match bonus, clamped to 1.0. Given
// identical inputs the score is exactly reproducible.
func Relevance(query, text string) float64 {
	queryKeywords := keywordSet(query)
	if len(queryKeywords) == 0 {
		return 0
	}
	textKeywords := keywordSet(text)

	intersection := 0
	for kw := range queryKeywords {
		if textKeywords[kw] {
			intersection++
		}
	}
	union := len(queryKeywords) + len(textKeywords) - intersection
	if union == 0 {
		return 0
	}

	score := float64(intersection)/float64(union) + float64(intersection)*exactMatchBonus
	if score > 1.0 {
		return 1.0
	}
	return score
}

// tagSet normalizes tags into a lowercase set.
func tagSet(tags []string) map[string]bool {
	set := map[string]bool{}
	for _, tag := range tags {
		set[strings.ToLower(tag)] = true
	}
	return set
}

// Searcher runs relevance searches over a Store.
type Searcher struct {
	store *Store
}

// NewSearcher creates a Searcher over the given store.
func NewSearcher(store *Store) *Searcher {
	return &Searcher{store: store}
}

// sortByRelevance orders items by descending score. Ties keep discovery
// order, so rankings are deterministic for identical inputs.
func sortByRelevance(items []MemoryItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].RelevanceScore > items[j].RelevanceScore
	})
}

// SearchMemories scores conversation turns and stored memory items against
// the query, discards anything below RelevanceThreshold, and returns the
// top matches sorted by descending relevance.
func (s *Searcher) SearchMemories(query string, types []MemoryType, limit int) *SearchResult {
	start := time.Now()

	if types == nil {
		types = []MemoryType{TypeConversation, TypeNote, TypePattern}
	}
	wanted := map[MemoryType]bool{}
	for _, t := range types {
		wanted[t] = true
	}

	var candidates []MemoryItem

	if wanted[TypeConversation] {
		for _, conv := range s.store.LoadRecentConversations(20) {
			for _, turn := range conv.Turns {
				score := Relevance(query, turn.UserMessage+" "+turn.AssistantMessage)
				if score <= RelevanceThreshold {
					continue
				}
				candidates = append(candidates, MemoryItem{
					ID:             conv.SessionID,
					Content:        fmt.Sprintf("User: %s\nAssistant: %s", turn.UserMessage, turn.AssistantMessage),
					Type:           TypeConversation,
					Timestamp:      turn.Timestamp,
					RelevanceScore: score,
					Metadata:       map[string]any{"session_id": conv.SessionID, "title": conv.Title},
				})
			}
		}
	}

	// Conversation-typed saved items live alongside notes, so the same
	// filter covers both transcripts above and stored records here.
	for _, item := range s.store.LoadMemoryItems(types) {
		score := Relevance(query, item.Content)
		if score <= RelevanceThreshold {
			continue
		}
		scored := *item
		scored.RelevanceScore = score
		candidates = append(candidates, scored)
	}

	sortByRelevance(candidates)
	total := len(candidates)
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	log.Debug().Str("query", query).Int("found", total).Msg("memory search completed")
	return &SearchResult{
		Items:      candidates,
		Query:      query,
		TotalFound: total,
		SearchTime: time.Since(start),
		Strategy:   "keyword",
	}
}

// SearchConversations returns up to limit recent conversations containing a
// turn relevant to the query, most relevant first.
func (s *Searcher) SearchConversations(query string, limit int) []*Conversation {
	type scoredConv struct {
		conv  *Conversation
		score float64
	}
	var matches []scoredConv

	for _, conv := range s.store.LoadRecentConversations(20) {
		best := 0.0
		for _, turn := range conv.Turns {
			score := Relevance(query, turn.UserMessage+" "+turn.AssistantMessage)
			if score > best {
				best = score
			}
		}
		if best > RelevanceThreshold {
			matches = append(matches, scoredConv{conv: conv, score: best})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	result := make([]*Conversation, len(matches))
	for i, m := range matches {
		result[i] = m.conv
	}
	return result
}

// FindSimilarMemories ranks stored items by similarity to a reference item,
// blending tag-set overlap with content relevance. The reference item
// itself is excluded.
func (s *Searcher) FindSimilarMemories(ref *MemoryItem, limit int) *SearchResult {
	start := time.Now()

	refTags := tagSet(ref.Tags)
	var candidates []MemoryItem
	for _, item := range s.store.LoadMemoryItems(nil) {
		if item.ID == ref.ID {
			continue
		}
		score := similarityTagWeight*jaccard(refTags, tagSet(item.Tags)) +
			similarityContentWeight*Relevance(ref.Content, item.Content)
		if score <= SimilarityThreshold {
			continue
		}
		scored := *item
		scored.RelevanceScore = score
		candidates = append(candidates, scored)
	}

	sortByRelevance(candidates)
	total := len(candidates)
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	return &SearchResult{
		Items:      candidates,
		Query:      ref.Content,
		TotalFound: total,
		SearchTime: time.Since(start),
		Strategy:   "similarity",
	}
}
