package outbox

import (
	"testing"
	"time"
)

func TestBackoffSchedule(t *testing.T) {
	want := map[int]time.Duration{
		0: 30 * time.Second,
		1: 30 * time.Second,
		2: 60 * time.Second,
		3: 120 * time.Second,
		4: 240 * time.Second,
		5: 480 * time.Second,
		6: 960 * time.Second,
		7: 1800 * time.Second,
		8: 1800 * time.Second,
		9: 1800 * time.Second,
	}
	for attempts, expected := range want {
		if got := Backoff(attempts); got != expected {
			t.Fatalf("Backoff(%d) = %v, want %v", attempts, got, expected)
		}
	}
}

func TestBackoffIsMonotonic(t *testing.T) {
	prev := time.Duration(0)
	for a := 1; a <= 8; a++ {
		got := Backoff(a)
		if got < prev {
			t.Fatalf("Backoff(%d)=%v is below Backoff(%d)=%v", a, got, a-1, prev)
		}
		prev = got
	}
}

func TestRetryPolicyExhausted(t *testing.T) {
	p := DefaultRetryPolicy()
	if p.Exhausted(7) {
		t.Fatalf("7 attempts should still retry")
	}
	if !p.Exhausted(8) {
		t.Fatalf("8 attempts should be terminal")
	}
	custom := RetryPolicy{BaseDelay: time.Second, MaxDelay: 5 * time.Second, MaxAttempts: 3}
	if got := custom.Delay(2); got != 4*time.Second {
		t.Fatalf("expected 4s, got %v", got)
	}
	if got := custom.Delay(3); got != 5*time.Second {
		t.Fatalf("expected cap at 5s, got %v", got)
	}
}
