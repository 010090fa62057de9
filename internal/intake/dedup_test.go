package intake

import (
	"testing"

	"github.com/adjutant-ai/adjutant/internal/models"
)

func item(source models.ItemSource, id, title, content string) models.ActionItem {
	return models.ActionItem{
		ID:      id,
		Source:  source,
		Title:   title,
		Content: content,
	}
}

func TestDedupTracker_IdentityDuplicate(t *testing.T) {
	d := NewDedupTracker()
	a := item(models.ItemSourceEmail, "msg-1", "Pay the invoice", "invoice attached")

	if d.IsDuplicate(a) {
		t.Fatal("unseen item reported as duplicate")
	}
	d.Mark(a)
	if !d.IsDuplicate(a) {
		t.Fatal("marked item not reported as duplicate")
	}

	// Same id from a different source is a distinct identity.
	b := item(models.ItemSourceChat, "msg-1", "Completely different thing", "other text")
	if d.IsDuplicate(b) {
		t.Error("same id under different source treated as duplicate")
	}
}

func TestDedupTracker_ContentDuplicateAcrossSources(t *testing.T) {
	d := NewDedupTracker()

	d.Mark(item(models.ItemSourceEmail, "e-1", "Server is down!", "check https://status.example.com NOW"))

	// Same event reported over chat with cosmetic differences.
	dup := item(models.ItemSourceChat, "c-9", "server is DOWN", "check https://status.internal/page now")
	if !d.IsDuplicate(dup) {
		t.Error("content duplicate across sources not detected")
	}
}

func TestDedupTracker_ClearForgets(t *testing.T) {
	d := NewDedupTracker()
	a := item(models.ItemSourceEmail, "1", "title", "content")

	d.Mark(a)
	d.Clear()
	if d.IsDuplicate(a) {
		t.Error("cleared tracker still reports duplicate")
	}
	if d.Size() != 0 {
		t.Errorf("size after clear: %d", d.Size())
	}
}

func TestNormalizeContent(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases and collapses whitespace", "Hello   WORLD", "hello world"},
		{"replaces urls", "see https://a.example/x?y=1 please", "see [URL] please"},
		{"replaces mentions and tags", "@alice check #urgent", "[MENTION] check [TAG]"},
		{"strips punctuation", "done, right?!", "done right"},
		{"trims", "  padded  ", "padded"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeContent(tc.in); got != tc.want {
				t.Errorf("NormalizeContent(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestContentHash_Stable(t *testing.T) {
	a := item(models.ItemSourceEmail, "1", "Pay Invoice #42", "due friday")
	b := item(models.ItemSourceChat, "2", "pay invoice #99", "DUE   friday!")

	if ContentHash(a) != ContentHash(b) {
		t.Error("normalization-equivalent items hash differently")
	}

	c := item(models.ItemSourceEmail, "3", "unrelated", "text")
	if ContentHash(a) == ContentHash(c) {
		t.Error("unrelated items collided")
	}
}
