// Package resettoken implements the single-use password-reset token ledger.
//
// The ledger is deliberately process-local: a restart invalidates every
// outstanding reset token, which is acceptable for a one-hour, single-use
// credential. In a multi-instance deployment it would be replaced by a
// durable store with the same contract.
package resettoken

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultTTL is how long a minted token stays valid.
const DefaultTTL = time.Hour

type entry struct {
	email     string
	expiresAt time.Time
}

type expiration struct {
	token    string
	deadline time.Time
}

// Ledger maps outstanding reset tokens to the email they were minted for.
//
// All operations are safe under parallel access. A single worker goroutine
// evicts each token at its deadline; Lookup additionally checks the deadline
// itself so a lagging worker can never resurrect an expired token. The
// worker racing a Consume is benign — both converge to "token absent".
type Ledger struct {
	mu     sync.Mutex
	tokens map[string]entry

	ttl         time.Duration
	expirations chan expiration
	stop        chan struct{}
	done        chan struct{}
	logger      *slog.Logger
}

// New creates a ledger and starts its eviction worker.
func New(ttl time.Duration, logger *slog.Logger) *Ledger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	l := &Ledger{
		tokens: make(map[string]entry),
		ttl:    ttl,
		// Tokens are minted far slower than they expire; if the buffer
		// ever fills, the lazy deadline check in Lookup still holds.
		expirations: make(chan expiration, 1024),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		logger:      logger,
	}
	go l.evictLoop()
	return l
}

// Mint creates a token for the given email and registers its eviction.
// The token is the lowercase hex of 32 cryptographically random bytes.
func (l *Ledger) Mint(email string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("resettoken: generating token: %w", err)
	}
	token := hex.EncodeToString(buf)
	deadline := time.Now().Add(l.ttl)

	l.mu.Lock()
	l.tokens[token] = entry{email: email, expiresAt: deadline}
	l.mu.Unlock()

	select {
	case l.expirations <- expiration{token: token, deadline: deadline}:
	default:
		l.logger.Warn("reset token eviction queue full, relying on lazy expiry")
	}

	return token, nil
}

// Lookup returns the email a token was minted for, or ("", false) if the
// token is absent or past its deadline.
func (l *Ledger) Lookup(token string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.tokens[token]
	if !ok {
		return "", false
	}
	if time.Now().After(e.expiresAt) {
		delete(l.tokens, token)
		return "", false
	}
	return e.email, true
}

// Consume removes a token. Idempotent: consuming an absent token is a no-op.
func (l *Ledger) Consume(token string) {
	l.mu.Lock()
	delete(l.tokens, token)
	l.mu.Unlock()
}

// Len reports the number of outstanding tokens. Used by tests.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tokens)
}

// Shutdown stops the eviction worker. Outstanding tokens are discarded with
// the process; the ledger must not be used after Shutdown.
func (l *Ledger) Shutdown() {
	close(l.stop)
	<-l.done
}

// evictLoop sleeps until each token's deadline and removes it. Tokens are
// minted with a constant TTL, so deadlines arrive on the channel in order
// and a single sequential worker suffices.
func (l *Ledger) evictLoop() {
	defer close(l.done)

	for {
		select {
		case <-l.stop:
			return
		case exp := <-l.expirations:
			if wait := time.Until(exp.deadline); wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-l.stop:
					timer.Stop()
					return
				case <-timer.C:
				}
			}

			l.mu.Lock()
			if e, ok := l.tokens[exp.token]; ok && !time.Now().Before(e.expiresAt) {
				delete(l.tokens, exp.token)
			}
			l.mu.Unlock()
		}
	}
}
