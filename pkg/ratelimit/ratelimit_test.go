package ratelimit

import (
	"testing"
	"time"
)

func TestTokenBucket_Allow(t *testing.T) {
	bucket := NewTokenBucket(5, 1) // 5 capacity, 1 refill per second

	// Should allow first 5 requests
	for i := 0; i < 5; i++ {
		if !bucket.Allow() {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}

	// 6th request should be denied
	if bucket.Allow() {
		t.Error("6th request should be denied")
	}

	// Wait 1 second for refill
	time.Sleep(1100 * time.Millisecond)

	// Should allow 1 more request
	if !bucket.Allow() {
		t.Error("Request after refill should be allowed")
	}
}

func TestTokenBucket_AllowN(t *testing.T) {
	bucket := NewTokenBucket(10, 2) // 10 capacity, 2 refill per second

	if !bucket.AllowN(10) {
		t.Error("AllowN(10) should be allowed")
	}

	if bucket.AllowN(1) {
		t.Error("AllowN(1) should be denied after consuming all tokens")
	}

	// Wait 1 second (should refill 2 tokens)
	time.Sleep(1100 * time.Millisecond)

	if !bucket.AllowN(2) {
		t.Error("AllowN(2) should be allowed after refill")
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	limiter := NewRateLimiter(3, 1) // 3 capacity, 1 refill per second

	for i := 0; i < 3; i++ {
		if !limiter.Allow("user1") {
			t.Errorf("Request %d for user1 should be allowed", i+1)
		}
	}

	// 4th request should be denied
	if limiter.Allow("user1") {
		t.Error("4th request for user1 should be denied")
	}

	// Different key should have separate bucket
	if !limiter.Allow("user2") {
		t.Error("First request for user2 should be allowed")
	}
}

func TestRateLimiter_Refill(t *testing.T) {
	limiter := NewRateLimiter(5, 2) // 5 capacity, 2 refill per second

	for i := 0; i < 5; i++ {
		limiter.Allow("test")
	}

	if limiter.Allow("test") {
		t.Error("Request should be denied after consuming all tokens")
	}

	// Wait 1 second (should refill 2 tokens)
	time.Sleep(1100 * time.Millisecond)

	if !limiter.Allow("test") || !limiter.Allow("test") {
		t.Error("Should allow 2 requests after refill")
	}

	if limiter.Allow("test") {
		t.Error("3rd request should be denied")
	}
}

func TestRateLimiter_Reset(t *testing.T) {
	limiter := NewRateLimiter(2, 1)

	limiter.Allow("test")
	limiter.Allow("test")

	if limiter.Allow("test") {
		t.Error("Request should be denied")
	}

	limiter.Reset("test")

	if !limiter.Allow("test") {
		t.Error("Request should be allowed after reset")
	}
}

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	limiter := NewRateLimiter(100, 10)
	done := make(chan bool)

	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 10; j++ {
				limiter.Allow("concurrent")
			}
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	// Exactly 100 tokens existed, so the next request must be denied
	if limiter.Allow("concurrent") {
		t.Error("Request beyond capacity should be denied")
	}
}

func BenchmarkTokenBucket_Allow(b *testing.B) {
	bucket := NewTokenBucket(1000000, 100000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bucket.Allow()
	}
}

func BenchmarkRateLimiter_Allow(b *testing.B) {
	limiter := NewRateLimiter(1000000, 100000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		limiter.Allow("test")
	}
}
