// Copyright 2026 The Atelier Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestPurpose: Validates per-client rate limiting.
// Scope: Unit Test
// Security: Abuse protection
// Expected: Requests beyond the burst return 429 while another client is unaffected.
// Test Case ID: RL-01
func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	defer rl.Stop()

	handler := RateLimitMiddleware(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusNoContent, send("10.0.0.1:1111"))
	assert.Equal(t, http.StatusNoContent, send("10.0.0.1:2222"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:3333"))
	assert.Equal(t, http.StatusNoContent, send("10.0.0.2:1111"))
}

func TestRateLimiter_EvictIdle(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	defer rl.Stop()

	rl.GetLimiter("10.0.0.1")
	rl.evictIdle(time.Now().Add(time.Hour))

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Empty(t, rl.visitors)
}

// TestPurpose: Validates that forwarded addresses only count when they come from a trusted proxy.
// Scope: Unit Test
// Security: Rate limit evasion through spoofed X-Forwarded-For
// Expected: Untrusted peers are keyed by their own address; behind a trusted proxy the nearest untrusted hop is used.
// Test Case ID: RL-02
func TestRateLimiter_ClientIP(t *testing.T) {
	direct := NewRateLimiter(1, 1)
	defer direct.Stop()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:4321"
	assert.Equal(t, "192.0.2.1", direct.clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	assert.Equal(t, "192.0.2.1", direct.clientIP(req))

	proxied := NewRateLimiter(1, 1, WithTrustedProxies("192.0.2.1", "10.0.0.1"))
	defer proxied.Stop()
	assert.Equal(t, "203.0.113.5", proxied.clientIP(req))

	req.Header.Set("X-Forwarded-For", "198.51.100.7, 203.0.113.5, 10.0.0.1")
	assert.Equal(t, "203.0.113.5", proxied.clientIP(req))

	req.Header.Del("X-Forwarded-For")
	assert.Equal(t, "192.0.2.1", proxied.clientIP(req))
}

// TestPurpose: Validates that rotating X-Forwarded-For does not reset the limit.
// Scope: Unit Test
// Security: Rate limit evasion through spoofed X-Forwarded-For
// Expected: A direct client exceeding the burst gets 429 whatever header it sends.
// Test Case ID: RL-03
func TestRateLimitMiddleware_IgnoresSpoofedForwardedFor(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	defer rl.Stop()

	handler := RateLimitMiddleware(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(forwarded string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
		req.RemoteAddr = "192.0.2.9:5000"
		req.Header.Set("X-Forwarded-For", forwarded)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusNoContent, send("203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.2"))
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.3"))
}
