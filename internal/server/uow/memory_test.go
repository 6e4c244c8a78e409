package uow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createUser(ctx context.Context, u UnitOfWork, email string) (*models.User, error) {
	return u.Users().Create(ctx, &models.User{Email: email, PasswordHash: "h"})
}

func TestMemory_CommitMakesWritesVisible(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var id string
	err := Run(ctx, s, func(ctx context.Context, u UnitOfWork) error {
		user, err := createUser(ctx, u, "a@example.com")
		if err != nil {
			return err
		}
		id = user.ID

		own, err := u.Users().FindByEmail(ctx, "a@example.com")
		require.NoError(t, err, "scope sees its own staged write")
		require.Equal(t, id, own.ID)

		return u.Commit()
	})
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())

	err = Run(ctx, s, func(ctx context.Context, u UnitOfWork) error {
		got, err := u.Users().FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "a@example.com", got.Email)
		assert.Equal(t, models.RoleUser, got.Role)
		assert.False(t, got.CreatedAt.IsZero())
		return nil
	})
	require.NoError(t, err)
}

func TestMemory_UncommittedWritesAreDiscarded(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	err := Run(ctx, s, func(ctx context.Context, u UnitOfWork) error {
		_, err := createUser(ctx, u, "a@example.com")
		return err
	})
	require.NoError(t, err)
	require.Equal(t, 0, s.Len())

	err = Run(ctx, s, func(ctx context.Context, u UnitOfWork) error {
		_, err := createUser(ctx, u, "a@example.com")
		require.NoError(t, err, "reservation must be released on rollback")
		return nil
	})
	require.NoError(t, err)
}

func TestMemory_ErrorAndPanicRollBack(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	boom := errors.New("boom")
	err := Run(ctx, s, func(ctx context.Context, u UnitOfWork) error {
		if _, err := createUser(ctx, u, "a@example.com"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.Panics(t, func() {
		_ = Run(ctx, s, func(ctx context.Context, u UnitOfWork) error {
			_, _ = createUser(ctx, u, "b@example.com")
			panic("kaboom")
		})
	})
	require.Equal(t, 0, s.Len())
}

func TestMemory_DuplicateEmail(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Insert(models.User{Email: "a@example.com", PasswordHash: "h"}))
	require.ErrorIs(t, s.Insert(models.User{Email: "a@example.com"}), common.ErrorAlreadyExists)

	err := Run(context.Background(), s, func(ctx context.Context, u UnitOfWork) error {
		_, err := createUser(ctx, u, "a@example.com")
		return err
	})
	require.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestMemory_ConcurrentScopesReserveEmail(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first, err := s.Begin(ctx)
	require.NoError(t, err)
	second, err := s.Begin(ctx)
	require.NoError(t, err)

	_, err = createUser(ctx, first, "race@example.com")
	require.NoError(t, err)

	_, err = createUser(ctx, second, "race@example.com")
	require.ErrorIs(t, err, common.ErrorAlreadyExists)

	require.NoError(t, first.Commit())
	require.NoError(t, first.Close())
	require.NoError(t, second.Close())
	require.Equal(t, 1, s.Len())
}

func TestMemory_ParallelCreates(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	const n = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		dupes     int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := Run(ctx, s, func(ctx context.Context, u UnitOfWork) error {
				if _, err := createUser(ctx, u, "same@example.com"); err != nil {
					return err
				}
				return u.Commit()
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, common.ErrorAlreadyExists):
				dupes++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, successes)
	require.Equal(t, n-1, dupes)
	require.Equal(t, 1, s.Len())
}

func TestMemory_StateTransitions(t *testing.T) {
	s := NewMemoryStore()

	u, err := s.Begin(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateActive, u.State())

	require.NoError(t, u.Commit())
	require.Equal(t, StateCommitted, u.State())
	require.ErrorIs(t, u.Commit(), common.ErrStoreFailure)

	require.NoError(t, u.Close())
	require.Equal(t, StateClosed, u.State())
	require.NoError(t, u.Close())
	require.Panics(t, func() { u.Users() })
}

func TestMemory_ReadsAfterFinishFail(t *testing.T) {
	s := NewMemoryStore()

	u, err := s.Begin(context.Background())
	require.NoError(t, err)
	repo := u.Users()
	require.NoError(t, u.Rollback())

	_, err = repo.FindByEmail(context.Background(), "a@example.com")
	require.ErrorIs(t, err, common.ErrStoreFailure)
}

func TestMemory_CanceledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Begin(ctx)
	require.ErrorIs(t, err, common.ErrStoreFailure)
	require.ErrorIs(t, err, context.Canceled)
}
