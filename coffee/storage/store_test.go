package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coredatabase "github.com/m3rciful/coffeebot/core/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := coredatabase.Config{Driver: coredatabase.DriverSQLite, Path: filepath.Join(t.TempDir(), "coffee.db")}
	require.NoError(t, coredatabase.RunMigrations(cfg, Migrations))
	db, err := coredatabase.Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db)
}

func TestUnknownUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	exists, err := s.UserExists(ctx, 1)
	require.NoError(t, err)
	assert.False(t, exists)

	name, count, err := s.GetUserInfo(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, name)
	assert.Zero(t, count)

	orders, err := s.ListOrders(ctx, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestOrderCountIsMonotonic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertOrder(ctx, 7, "Аня К", "Латте", 2))
	exists, err := s.UserExists(ctx, 7)
	require.NoError(t, err)
	assert.True(t, exists)

	for i := 0; i < 2; i++ {
		name, _, err := s.GetUserInfo(ctx, 7)
		require.NoError(t, err)
		require.NoError(t, s.IncrementOrderCount(ctx, 7))
		require.NoError(t, s.InsertOrder(ctx, 7, *name, "Эспрессо", 0))
	}

	name, count, err := s.GetUserInfo(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, name)
	assert.Equal(t, "Аня К", *name)
	assert.Equal(t, 3, count)

	orders, err := s.ListOrders(ctx, 7, 0)
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, []int{3, 2, 1}, []int{orders[0].OrderCount, orders[1].OrderCount, orders[2].OrderCount})
	assert.Equal(t, "Латте", orders[2].Drink)
	assert.Equal(t, 2, orders[2].Sugar)
	assert.False(t, orders[0].CreatedAt.IsZero())

	latest, err := s.ListOrders(ctx, 7, 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, orders[0].ID, latest[0].ID)
}

func TestUsersAreIsolated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for u := int64(1); u <= 5; u++ {
		wg.Add(1)
		go func(u int64) {
			defer wg.Done()
			assert.NoError(t, s.InsertOrder(ctx, u, "user", "Американо", 1))
		}(u)
	}
	wg.Wait()

	for u := int64(1); u <= 5; u++ {
		orders, err := s.ListOrders(ctx, u, 0)
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, 1, orders[0].OrderCount)
	}
}

func TestSugarOutOfRangeIsRejected(t *testing.T) {
	s := newTestStore(t)
	err := s.InsertOrder(context.Background(), 1, "x", "Латте", 9)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStorage))

	exists, err := s.UserExists(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, exists, "failed insert must roll back the user row")
}

func TestClosedPoolMarksErrStorage(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.db.Close())
	_, err := s.UserExists(context.Background(), 1)
	assert.True(t, errors.Is(err, ErrStorage))
	assert.Error(t, s.Ping(context.Background()))
}

func TestWithinTxRollsBackIncrement(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertOrder(ctx, 7, "Аня", "Латте", 1))

	err := s.WithinTx(ctx, func(tx *Store) error {
		require.NoError(t, tx.IncrementOrderCount(ctx, 7))
		_, count, err := tx.GetUserInfo(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
		return tx.InsertOrder(ctx, 7, "Аня", "Латте", 9)
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStorage))

	_, count, err := s.GetUserInfo(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, s.WithinTx(ctx, func(tx *Store) error {
		if err := tx.IncrementOrderCount(ctx, 7); err != nil {
			return err
		}
		return tx.InsertOrder(ctx, 7, "Аня", "Эспрессо", 0)
	}))
	orders, err := s.ListOrders(ctx, 7, 0)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, 2, orders[0].OrderCount)
}
