package uow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
	"github.com/google/uuid"
)

// MemoryStore is a process-local user table. Each unit of work it opens
// stages its inserts and applies them on Commit. An email inserted by an
// open unit is reserved until that unit finishes, so concurrent scopes see
// the same uniqueness outcome a database index would give them.
type MemoryStore struct {
	mu       sync.Mutex
	byID     map[string]models.User
	byEmail  map[string]string
	reserved map[string]*memoryUnit
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:     make(map[string]models.User),
		byEmail:  make(map[string]string),
		reserved: make(map[string]*memoryUnit),
		now:      time.Now,
	}
}

// Begin opens a unit of work against the store.
func (s *MemoryStore) Begin(ctx context.Context) (UnitOfWork, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrStoreFailure, err)
	}
	return &memoryUnit{store: s, state: StateActive}, nil
}

// Len reports how many committed users the store holds.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// Insert adds a committed user directly, bypassing any unit of work. It is
// meant for seeding fixtures.
func (s *MemoryStore) Insert(user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[user.Email]; ok {
		return common.ErrorAlreadyExists
	}
	if _, ok := s.reserved[user.Email]; ok {
		return common.ErrorAlreadyExists
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now().UTC()
	}
	s.byID[user.ID] = user
	s.byEmail[user.Email] = user.ID
	return nil
}

type memoryUnit struct {
	store  *MemoryStore
	state  dbx.State
	staged []models.User
}

func (u *memoryUnit) Users() users.Repository {
	if u.state == StateClosed {
		panic(closedPanic)
	}
	return &memoryRepository{unit: u}
}

func (u *memoryUnit) Commit() error {
	if u.state != StateActive {
		return fmt.Errorf("%w: commit in state %s: %w", common.ErrStoreFailure, u.state, dbx.ErrNotActive)
	}

	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range u.staged {
		s.byID[user.ID] = user
		s.byEmail[user.Email] = user.ID
		delete(s.reserved, user.Email)
	}
	u.staged = nil
	u.state = StateCommitted
	return nil
}

func (u *memoryUnit) Rollback() error {
	if u.state != StateActive {
		return nil
	}

	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range u.staged {
		if s.reserved[user.Email] == u {
			delete(s.reserved, user.Email)
		}
	}
	u.staged = nil
	u.state = StateRolledBack
	return nil
}

func (u *memoryUnit) Close() error {
	if u.state == StateClosed {
		return nil
	}
	err := u.Rollback()
	u.state = StateClosed
	return err
}

func (u *memoryUnit) State() State {
	return u.state
}

// memoryRepository reads through the unit's staged rows to the committed
// table, so a scope sees its own uncommitted writes.
type memoryRepository struct {
	unit *memoryUnit
}

func (r *memoryRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if err := r.check(ctx); err != nil {
		return nil, err
	}

	for _, user := range r.unit.staged {
		if user.Email == email {
			return &user, nil
		}
	}

	s := r.unit.store
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	user := s.byID[id]
	return &user, nil
}

func (r *memoryRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	if err := r.check(ctx); err != nil {
		return nil, err
	}

	for _, user := range r.unit.staged {
		if user.ID == id {
			return &user, nil
		}
	}

	s := r.unit.store
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &user, nil
}

func (r *memoryRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if err := r.check(ctx); err != nil {
		return nil, err
	}

	s := r.unit.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[user.Email]; ok {
		return nil, common.ErrorAlreadyExists
	}
	if _, ok := s.reserved[user.Email]; ok {
		return nil, common.ErrorAlreadyExists
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	user.CreatedAt = s.now().UTC()

	s.reserved[user.Email] = r.unit
	r.unit.staged = append(r.unit.staged, *user)
	return user, nil
}

func (r *memoryRepository) check(ctx context.Context) error {
	if r.unit.state != StateActive {
		return fmt.Errorf("%w: %w", common.ErrStoreFailure, dbx.ErrNotActive)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", common.ErrStoreFailure, err)
	}
	return nil
}
