// Package intake ingests detected action items: duplicate suppression,
// priority ordering, and the processing loop that hands items to
// classification and approval staging.
package intake

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"sync"

	"github.com/adjutant-ai/adjutant/internal/models"
)

var (
	whitespaceRe  = regexp.MustCompile(`\s+`)
	urlRe         = regexp.MustCompile(`https?://[^\s]+`)
	mentionRe     = regexp.MustCompile(`@\w+`)
	hashtagRe     = regexp.MustCompile(`#\w+`)
	punctuationRe = regexp.MustCompile(`[.,!?;:'"]+`)
)

// DedupTracker suppresses duplicates two ways: a per-(source, id) seen set,
// and a normalized content-hash map that catches the same event reported by
// two different sources. Once marked processed an identifier is never
// reprocessed unless explicitly cleared (test/recovery path only).
type DedupTracker struct {
	mu     sync.Mutex
	seen   map[string]bool
	hashes map[string]string // content hash -> first-seen dedup key
}

// NewDedupTracker creates an empty tracker.
func NewDedupTracker() *DedupTracker {
	return &DedupTracker{
		seen:   make(map[string]bool),
		hashes: make(map[string]string),
	}
}

// IsDuplicate reports whether the item was already seen, either by identity
// or by content.
func (d *DedupTracker) IsDuplicate(item models.ActionItem) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.seen[item.DedupKey()] {
		return true
	}
	_, dup := d.hashes[ContentHash(item)]
	return dup
}

// Mark records the item as processed.
func (d *DedupTracker) Mark(item models.ActionItem) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := item.DedupKey()
	d.seen[key] = true

	hash := ContentHash(item)
	if _, ok := d.hashes[hash]; !ok {
		d.hashes[hash] = key
	}
}

// Clear forgets everything. Recovery path only.
func (d *DedupTracker) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen = make(map[string]bool)
	d.hashes = make(map[string]string)
}

// Size returns the number of tracked identifiers.
func (d *DedupTracker) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// ContentHash fingerprints an item's normalized content for cross-source
// duplicate detection.
func ContentHash(item models.ActionItem) string {
	normalized := NormalizeContent(item.Title + " " + item.Content)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// NormalizeContent standardizes content for comparison: lowercase, collapsed
// whitespace, and placeholders for URLs, mentions and tags so the same event
// shared across platforms hashes identically.
func NormalizeContent(content string) string {
	normalized := strings.ToLower(content)
	normalized = urlRe.ReplaceAllString(normalized, "[URL]")
	normalized = mentionRe.ReplaceAllString(normalized, "[MENTION]")
	normalized = hashtagRe.ReplaceAllString(normalized, "[TAG]")
	normalized = punctuationRe.ReplaceAllString(normalized, "")
	normalized = whitespaceRe.ReplaceAllString(normalized, " ")
	return strings.TrimSpace(normalized)
}
