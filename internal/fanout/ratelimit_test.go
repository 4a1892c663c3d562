package fanout

import (
	"testing"
	"time"
)

func TestRateLimiter_AllowsUpToBurstThenRejects(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !rl.Allow("client-a") {
			t.Fatalf("request %d should be allowed within burst", i)
		}
	}
	if rl.Allow("client-a") {
		t.Fatal("request beyond burst should be rejected")
	}
}

func TestRateLimiter_PerClientIsolation(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)

	if !rl.Allow("client-a") {
		t.Fatal("first request for client-a should be allowed")
	}
	if rl.Allow("client-a") {
		t.Fatal("second request for client-a should be rejected")
	}
	if !rl.Allow("client-b") {
		t.Fatal("client-b has its own bucket and should be allowed")
	}
}
