package metastore

import (
	"context"
	"testing"
	"time"

	"civicrelay/pkg/errs"
	"civicrelay/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{InMemory: true}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func record(id string, created time.Time) *types.ProjectRecord {
	return &types.ProjectRecord{
		ID:        types.ProjectID(id),
		Title:     "Project " + id,
		ContentID: types.ContentID("hash-" + id),
		Status:    types.StatusProposed,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestCreateAndGet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, record("p1", time.Now())))

	got, err := s.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Project p1", got.Title)
	assert.Equal(t, types.ContentID("hash-p1"), got.ContentID)
	assert.False(t, got.DeletionRequested)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, errs.NotFound)
}

func TestCreateNeverOverwrites(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, record("p1", time.Now())))

	dup := record("p1", time.Now())
	dup.ContentID = "other"
	assert.ErrorIs(t, s.Create(ctx, dup), ErrExists)

	got, err := s.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, types.ContentID("hash-p1"), got.ContentID)
}

func TestCreateValidates(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.Create(ctx, &types.ProjectRecord{Status: types.StatusProposed}), errs.Validation)
	assert.ErrorIs(t, s.Create(ctx, &types.ProjectRecord{ID: "x", Status: "archived"}), errs.Validation)
}

func TestListNewestFirstWithFilter(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Create(ctx, record("old", base)))
	require.NoError(t, s.Create(ctx, record("mid", base.Add(time.Hour))))
	require.NoError(t, s.Create(ctx, record("new", base.Add(2*time.Hour))))
	_, err := s.RequestDeletion(ctx, "mid")
	require.NoError(t, err)

	all, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, types.ProjectID("new"), all[0].ID)
	assert.Equal(t, types.ProjectID("old"), all[2].ID)

	yes := true
	pending, err := s.List(ctx, Filter{DeletionRequested: &yes})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, types.ProjectID("mid"), pending[0].ID)

	no := false
	kept, err := s.List(ctx, Filter{DeletionRequested: &no})
	require.NoError(t, err)
	assert.Len(t, kept, 2)
}

func TestListEmptyIsNotNil(t *testing.T) {
	s := openStore(t)
	all, err := s.List(context.Background(), Filter{})
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)
}

func TestDeletionRequestIsMonotonic(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, record("p1", time.Now())))

	rec, err := s.RequestDeletion(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, rec.DeletionRequested)

	rec, err = s.RequestDeletion(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, rec.DeletionRequested)

	_, err = s.Update(ctx, "p1", func(r *types.ProjectRecord) error {
		r.DeletionRequested = false
		return nil
	})
	assert.ErrorIs(t, err, ErrDeletionRevoked)

	got, err := s.Get(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, got.DeletionRequested)

	_, err = s.RequestDeletion(ctx, "missing")
	assert.ErrorIs(t, err, errs.NotFound)
}

func TestContentIDIsNeverReassigned(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, record("p1", time.Now())))

	_, err := s.Update(ctx, "p1", func(r *types.ProjectRecord) error {
		r.ContentID = "replacement"
		return nil
	})
	assert.ErrorIs(t, err, ErrContentIDReassigned)

	rec, err := s.Update(ctx, "p1", func(r *types.ProjectRecord) error {
		r.VotesFor++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.VotesFor)
	assert.Equal(t, types.ContentID("hash-p1"), rec.ContentID)
}

func TestDelete(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, record("p1", time.Now())))

	require.NoError(t, s.Delete(ctx, "p1"))
	_, err := s.Get(ctx, "p1")
	assert.ErrorIs(t, err, errs.NotFound)

	assert.ErrorIs(t, s.Delete(ctx, "p1"), errs.NotFound)
}

func TestCanceledContext(t *testing.T) {
	s := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Create(ctx, record("p1", time.Now())), context.Canceled)
	_, err := s.List(ctx, Filter{})
	assert.ErrorIs(t, err, context.Canceled)
}
