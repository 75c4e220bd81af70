package memory

import (
	"context"
	"testing"
	"time"
)

func TestStorage_ExpiryAndRemove(t *testing.T) {
	s := NewStorage()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	_ = s.SetItem(ctx, "a", "1", now.Add(time.Minute))
	_ = s.SetItem(ctx, "b", "2", time.Time{})

	if v, ok, _ := s.GetItem(ctx, "a"); !ok || v != "1" {
		t.Fatalf("a = %q ok=%v", v, ok)
	}
	now = now.Add(2 * time.Minute)
	if _, ok, _ := s.GetItem(ctx, "a"); ok {
		t.Fatalf("a should have expired")
	}
	if _, ok, _ := s.GetItem(ctx, "b"); !ok {
		t.Fatalf("b has no expiry and should remain")
	}
	_ = s.RemoveItem(ctx, "b")
	if _, ok, _ := s.GetItem(ctx, "b"); ok {
		t.Fatalf("b should be removed")
	}
}
