package resolve

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/kapu/untranslate-go/internal/domain"
)

func TestDescriptionCachePins(t *testing.T) {
	c := NewDescriptionCache()

	if _, ok := c.Get("vid1"); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Set("vid1", "original description")
	desc, ok := c.Get("vid1")
	if !ok || desc != "original description" {
		t.Fatalf("expected cached description, got %q ok=%v", desc, ok)
	}

	c.Set("vid1", "rewritten")
	if desc, _ := c.Get("vid1"); desc != "rewritten" {
		t.Fatalf("expected overwrite, got %q", desc)
	}
	if c.Len() != 1 {
		t.Fatalf("expected one entry, got %d", c.Len())
	}
}

func TestDescriptionCacheEmptyValueCounts(t *testing.T) {
	c := NewDescriptionCache()
	c.Set("vid1", "")
	if _, ok := c.Get("vid1"); !ok {
		t.Fatal("expected empty description to count as present")
	}
}

func TestDescriptionCacheIgnoresZeroID(t *testing.T) {
	c := NewDescriptionCache()
	c.Set("", "text")
	if c.Len() != 0 {
		t.Fatalf("expected zero id dropped, got %d entries", c.Len())
	}
	if _, ok := c.Get(""); ok {
		t.Fatal("expected miss for zero id")
	}
}

func TestLookasideDisabled(t *testing.T) {
	var nilLookaside *ChannelLookaside
	if nilLookaside.Enabled() {
		t.Fatal("expected nil lookaside disabled")
	}

	l := NewChannelLookaside(nil, zap.NewNop())
	if l.Enabled() {
		t.Fatal("expected lookaside without client disabled")
	}

	ref := domain.ChannelRef{ID: "UCabc"}
	text, err := l.Get(context.Background(), ref)
	if err != nil || text != nil {
		t.Fatalf("expected silent miss, got %+v err=%v", text, err)
	}
	if err := l.Set(context.Background(), ref, &ChannelText{ID: "UCabc"}); err != nil {
		t.Fatalf("expected silent no-op, got %v", err)
	}
}
