package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/stashly/stashly-api/internal/types"
)

// GenerateOTP returns a fixed-length numeric one-time code from crypto/rand.
// Leading zeros are allowed, so every length-digit string is equally likely.
func GenerateOTP(length int) (string, error) {
	if length <= 0 {
		length = 6
	}
	var sb strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to generate one-time code: %w", err)
		}
		sb.WriteByte(byte('0' + n.Int64()))
	}
	return sb.String(), nil
}

var _ ChallengeStore = (*CacheChallengeStore)(nil)

// ChallengeStore keeps at most one live password-reset challenge per email.
// Put replaces any existing challenge (last write wins); Get returns
// types.ErrNotFound for absent or swept entries. Callers still check
// ExpiresAt against their own clock, the store's expiry is only the sweep.
type ChallengeStore interface {
	Put(challenge types.PasswordResetChallenge) error
	Get(email string) (*types.PasswordResetChallenge, error)
	Delete(email string) error
}

// CacheChallengeStore backs the challenge store with an in-process TTL cache.
// Expired entries are dropped lazily by the cache itself.
type CacheChallengeStore struct {
	cache *gocache.Cache
	ttl   time.Duration
}

func NewCacheChallengeStore(ttl time.Duration) *CacheChallengeStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CacheChallengeStore{
		cache: gocache.New(ttl, ttl),
		ttl:   ttl,
	}
}

func (s *CacheChallengeStore) Put(challenge types.PasswordResetChallenge) error {
	s.cache.Set(challengeKey(challenge.Email), challenge, s.ttl)
	return nil
}

func (s *CacheChallengeStore) Get(email string) (*types.PasswordResetChallenge, error) {
	v, ok := s.cache.Get(challengeKey(email))
	if !ok {
		return nil, types.ErrNotFound
	}
	challenge, ok := v.(types.PasswordResetChallenge)
	if !ok {
		return nil, types.ErrNotFound
	}
	return &challenge, nil
}

func (s *CacheChallengeStore) Delete(email string) error {
	s.cache.Delete(challengeKey(email))
	return nil
}

func challengeKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
