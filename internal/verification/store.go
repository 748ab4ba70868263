// Package verification implements the one-time registration code store:
// concurrent, time-boxed entries keyed by normalized email/phone, consumed
// on first successful match.
package verification

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"
)

type codeEntry struct {
	code      string
	expiresAt time.Time
}

// Store holds pending verification codes.
type Store struct {
	mu           sync.Mutex
	codes        map[string]codeEntry
	ttl          time.Duration
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

// NewStore creates a store whose codes expire after ttl. A background
// goroutine evicts stale entries until Stop is called.
func NewStore(ttl time.Duration) *Store {
	s := &Store{
		codes:       make(map[string]codeEntry),
		ttl:         ttl,
		stopCleanup: make(chan struct{}),
	}
	go s.startCleanup()
	return s
}

func (s *Store) startCleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanExpired()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *Store) cleanExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, entry := range s.codes {
		if now.After(entry.expiresAt) {
			delete(s.codes, key)
			removed++
		}
	}
	return removed
}

// Stop shuts down the cleanup goroutine.
func (s *Store) Stop() {
	s.shutdownOnce.Do(func() {
		close(s.stopCleanup)
	})
}

// Generate creates a six-digit code for the identifier, replacing any
// previous one. The identifier is normalized (trimmed, lowercased) so that
// generation and verification agree on the key.
func (s *Store) Generate(identifier string) (string, error) {
	key := Normalize(identifier)
	if key == "" {
		return "", fmt.Errorf("empty identifier")
	}

	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64())

	s.mu.Lock()
	s.codes[key] = codeEntry{code: code, expiresAt: time.Now().Add(s.ttl)}
	s.mu.Unlock()

	return code, nil
}

// Verify checks the code for the identifier. A matching code is consumed:
// a second verification with the same code fails. Expired entries are
// removed on lookup.
func (s *Store) Verify(identifier, code string) bool {
	key := Normalize(identifier)
	code = strings.TrimSpace(code)
	if key == "" || code == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.codes[key]
	if !ok {
		return false
	}

	if time.Now().After(entry.expiresAt) {
		delete(s.codes, key)
		return false
	}

	if entry.code != code {
		return false
	}

	delete(s.codes, key)
	return true
}

// Size returns the number of pending codes.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.codes)
}

// Normalize canonicalizes an email/phone identifier for use as a store key.
func Normalize(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}
