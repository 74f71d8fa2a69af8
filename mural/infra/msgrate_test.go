package infra

import (
	"testing"
	"time"

	"pixel-mural/mural/domain"
)

func TestMsgRateStore_GetSameKeyReturnsSameLimiter(t *testing.T) {
	s := NewMsgRateStore(10, 1)

	l1 := s.Get(domain.Key("k"))
	l2 := s.Get(domain.Key("k"))
	if l1 != l2 {
		t.Fatalf("expected same limiter pointer for same key")
	}
}

func TestMsgRateStore_LowBurstRejectsSecondImmediateAllow(t *testing.T) {
	s := NewMsgRateStore(0.02, 1)

	lim := s.Get(domain.Key("k"))
	if !lim.Allow() {
		t.Fatalf("expected first Allow to be true")
	}
	if lim.Allow() {
		t.Fatalf("expected second immediate Allow to be false (burst=1)")
	}
}

func TestMsgRateStore_CleanupRemovesIdleEntries(t *testing.T) {
	s := NewMsgRateStore(10, 1, WithMsgRateIdleTTL(2*time.Millisecond), WithMsgRateCleanupEvery(0))

	before := s.Get(domain.Key("k"))
	time.Sleep(4 * time.Millisecond)

	s.Cleanup()

	after := s.Get(domain.Key("k"))
	if before == after {
		t.Fatalf("expected limiter to be recreated after cleanup")
	}
}
