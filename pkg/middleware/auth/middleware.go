package auth

import (
	"context"
	"crypto/rsa"
	"sync"
	"time"
)

// Middleware resolves the caller from a dev header, an RS256 assertion cookie
// or a session API, in that order.
type Middleware struct {
	httpClient HTTPDoer
	sessionAPI string
	cookieName string
	adminRole  string
	devBypass  bool

	assertCookieName string
	assertKeyURL     string
	assertKeyFile    string
	assertKeyKID     string
	assertIssuer     string
	assertAudience   string
	assertLeeway     time.Duration

	stop context.CancelFunc

	// guarded by mu
	mu         sync.RWMutex
	assertKey  *rsa.PublicKey
	assertETag string
	cacheTTL   time.Duration
	lastFetch  time.Time
}

// Close stops the background key refresh, if one is running.
func (m *Middleware) Close() {
	if m.stop != nil {
		m.stop()
	}
}
