package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/authkeeper/internal/server/uow"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// countingHasher records Verify calls on top of a real bcrypt hasher.
type countingHasher struct {
	auth.PasswordHasher
	mu       sync.Mutex
	verified []string
	hashErr  error
}

func (h *countingHasher) Hash(password string) (string, error) {
	if h.hashErr != nil {
		return "", h.hashErr
	}
	return h.PasswordHasher.Hash(password)
}

func (h *countingHasher) Verify(password, hash string) bool {
	h.mu.Lock()
	h.verified = append(h.verified, hash)
	h.mu.Unlock()
	return h.PasswordHasher.Verify(password, hash)
}

type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (o *recordingObserver) ObserveAuth(operation, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, operation+":"+outcome)
}

// brokenFactory fails every unit of work it opens.
type brokenFactory struct{}

func (brokenFactory) Begin(context.Context) (uow.UnitOfWork, error) {
	return nil, errors.Join(common.ErrStoreFailure, errors.New("connection refused"))
}

type fixture struct {
	store    *uow.MemoryStore
	hasher   *countingHasher
	clock    *clock
	codec    *auth.TokenCodec
	observer *recordingObserver
	auth     *AuthService
	users    *UserService
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.AccessTokenValidityDuration = 15 * time.Minute
	cfg.RefreshTokenValidityDuration = 7 * 24 * time.Hour
	return cfg
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithFactory(t, nil)
}

func newFixtureWithFactory(t *testing.T, f uow.Factory) *fixture {
	t.Helper()

	bh, err := auth.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)

	clk := &clock{now: time.Now().UTC()}
	codec, err := auth.NewTokenCodec([]byte("test-secret"), "HS256", auth.WithClock(clk.Now))
	require.NoError(t, err)

	store := uow.NewMemoryStore()
	if f == nil {
		f = store
	}

	fx := &fixture{
		store:    store,
		hasher:   &countingHasher{PasswordHasher: bh},
		clock:    clk,
		codec:    codec,
		observer: &recordingObserver{},
	}

	fx.auth, err = NewAuthService(f, fx.hasher, codec, testConfig(), logging.Nop{}, WithObserver(fx.observer))
	require.NoError(t, err)
	fx.users = NewUserService(f, logging.Nop{})
	return fx
}

// lostRaceFactory hands out units of work whose repository never sees the
// email on lookup but hits the unique index on insert, as a registration
// does when a concurrent one commits between the two statements.
type lostRaceFactory struct {
	mu      sync.Mutex
	creates int
	commits int
}

func (f *lostRaceFactory) Begin(context.Context) (uow.UnitOfWork, error) {
	return &lostRaceUnit{f: f}, nil
}

type lostRaceUnit struct {
	f     *lostRaceFactory
	state uow.State
}

func (u *lostRaceUnit) Users() users.Repository { return lostRaceRepo{f: u.f} }

func (u *lostRaceUnit) Commit() error {
	u.f.mu.Lock()
	u.f.commits++
	u.f.mu.Unlock()
	u.state = uow.StateCommitted
	return nil
}

func (u *lostRaceUnit) Rollback() error {
	u.state = uow.StateRolledBack
	return nil
}

func (u *lostRaceUnit) Close() error {
	u.state = uow.StateClosed
	return nil
}

func (u *lostRaceUnit) State() uow.State { return u.state }

type lostRaceRepo struct {
	f *lostRaceFactory
}

func (lostRaceRepo) FindByEmail(context.Context, string) (*models.User, error) {
	return nil, common.ErrorNotFound
}

func (lostRaceRepo) FindByID(context.Context, string) (*models.User, error) {
	return nil, common.ErrorNotFound
}

func (r lostRaceRepo) Create(context.Context, *models.User) (*models.User, error) {
	r.f.mu.Lock()
	r.f.creates++
	r.f.mu.Unlock()
	return nil, fmt.Errorf("insert user: %w", common.ErrorAlreadyExists)
}
