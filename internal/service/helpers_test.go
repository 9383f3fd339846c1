package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go-token-gate/internal/event"
	"go-token-gate/internal/metrics"
	"go-token-gate/internal/model"
	"go-token-gate/internal/repository"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type tokenFixture struct {
	tokens     *TokenService
	identities *repository.IdentityRepository
	sessions   *repository.SessionRepository
	bus        *event.InMemoryBus
	metrics    *metrics.Metrics
	clock      *fakeClock
}

func newTokenFixture(t *testing.T, mutate func(cfg *TokenConfig)) *tokenFixture {
	t.Helper()

	identities, err := repository.LoadIdentities("", bcrypt.MinCost)
	require.NoError(t, err)
	identityRepo, err := repository.NewIdentityRepository(identities)
	require.NoError(t, err)

	clock := newFakeClock()
	cfg := TokenConfig{
		AccessSecret:     "secretkey",
		RefreshSecret:    "refreshsecretkey",
		AccessTTL:        30 * time.Second,
		RefreshTTL:       7 * 24 * time.Hour,
		Rotation:         RotationAlways,
		RevokeOnMismatch: true,
		Now:              clock.Now,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	sessions := repository.NewSessionRepository()
	bus := event.NewBus(32)
	m := metrics.New()

	tokens, err := NewTokenService(cfg, identityRepo, sessions, bus, m)
	require.NoError(t, err)

	return &tokenFixture{
		tokens:     tokens,
		identities: identityRepo,
		sessions:   sessions,
		bus:        bus,
		metrics:    m,
		clock:      clock,
	}
}

func (f *tokenFixture) identity(t *testing.T, name string) model.Identity {
	t.Helper()

	identity, err := f.identities.FindByName(name)
	require.NoError(t, err)
	return identity
}
