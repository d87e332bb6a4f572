package trendengine

import (
	"testing"
	"time"
)

func TestLoginLimiterBlocksAfterMax(t *testing.T) {
	limiter := NewLoginLimiter(2, 2*time.Second)
	ip := "203.0.113.10"

	if !limiter.Allow(ip) {
		t.Fatalf("expected first attempt to be allowed")
	}
	if !limiter.Allow(ip) {
		t.Fatalf("expected second attempt to be allowed")
	}
	if limiter.Allow(ip) {
		t.Fatalf("expected third attempt to be blocked")
	}
}

func TestLoginLimiterResetsAfterWindow(t *testing.T) {
	limiter := NewLoginLimiter(1, 150*time.Millisecond)
	ip := "203.0.113.20"

	if !limiter.Allow(ip) {
		t.Fatalf("expected first attempt to be allowed")
	}
	if limiter.Allow(ip) {
		t.Fatalf("expected second attempt to be blocked")
	}

	time.Sleep(200 * time.Millisecond)
	if !limiter.Allow(ip) {
		t.Fatalf("expected attempt after window to be allowed")
	}
}

func TestLoginLimiterIsPerIP(t *testing.T) {
	limiter := NewLoginLimiter(1, 2*time.Second)

	if !limiter.Allow("203.0.113.30") {
		t.Fatalf("expected first ip to be allowed")
	}
	if !limiter.Allow("203.0.113.31") {
		t.Fatalf("expected second ip to be allowed independently")
	}
	if limiter.Allow("203.0.113.30") {
		t.Fatalf("expected first ip to be blocked after max")
	}
}

func TestLoginLimiterSweepsIdleVisitors(t *testing.T) {
	limiter := NewLoginLimiter(1, 50*time.Millisecond)
	limiter.Allow("203.0.113.40")
	time.Sleep(120 * time.Millisecond)
	limiter.Allow("203.0.113.41")
	if _, ok := limiter.visitors["203.0.113.40"]; ok {
		t.Errorf("idle visitor not swept")
	}
}

func TestLoginLimiterCheckDoesNotConsume(t *testing.T) {
	limiter := NewLoginLimiter(2, 2*time.Second)
	ip := "203.0.113.50"

	for i := 0; i < 10; i++ {
		if !limiter.Check(ip) {
			t.Fatalf("check %d blocked without any recorded failure", i)
		}
	}
	limiter.Record(ip)
	if !limiter.Check(ip) {
		t.Fatalf("expected one failure to stay under the limit")
	}
	limiter.Record(ip)
	if limiter.Check(ip) {
		t.Fatalf("expected block after two failures")
	}
}
