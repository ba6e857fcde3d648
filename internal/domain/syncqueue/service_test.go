package syncqueue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
)

func TestStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusSynced, false},
		{StatusProcessing, StatusSynced, true},
		{StatusProcessing, StatusError, true},
		{StatusProcessing, StatusPending, true},
		{StatusError, StatusProcessing, true},
		{StatusError, StatusPending, true},
		{StatusError, StatusSynced, false},
		{StatusSynced, StatusPending, false},
		{StatusSynced, StatusProcessing, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestStatus_Claimable(t *testing.T) {
	assert.True(t, StatusPending.Claimable())
	assert.True(t, StatusError.Claimable())
	assert.False(t, StatusProcessing.Claimable())
	assert.False(t, StatusSynced.Claimable())
}

type stubRepo struct {
	Repository
	resetIDs   []id.ID
	staleAfter time.Duration
	stats      Stats
	entry      *Entry
}

func (r *stubRepo) ResetToPending(_ context.Context, ids []id.ID) (int64, error) {
	r.resetIDs = ids
	return int64(len(ids)), nil
}

func (r *stubRepo) ResetStale(_ context.Context, olderThan time.Duration) (int64, error) {
	r.staleAfter = olderThan
	return 3, nil
}

func (r *stubRepo) Stats(context.Context) (Stats, error) { return r.stats, nil }

func (r *stubRepo) Get(_ context.Context, txID id.ID) (*Entry, error) {
	if r.entry == nil || r.entry.TransactionID != txID {
		return nil, ErrEntryNotFound
	}
	return r.entry, nil
}

func TestService_Reset(t *testing.T) {
	ctx := context.Background()

	t.Run("explicit ids", func(t *testing.T) {
		repo := &stubRepo{}
		ids := []id.ID{id.New(), id.New()}
		n, err := NewService(repo).Reset(ctx, ids, 0)
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)
		assert.Equal(t, ids, repo.resetIDs)
	})

	t.Run("stale processing", func(t *testing.T) {
		repo := &stubRepo{}
		n, err := NewService(repo).Reset(ctx, nil, 10*time.Minute)
		require.NoError(t, err)
		assert.EqualValues(t, 3, n)
		assert.Equal(t, 10*time.Minute, repo.staleAfter)
	})

	t.Run("nothing to select", func(t *testing.T) {
		_, err := NewService(&stubRepo{}).Reset(ctx, nil, 0)
		assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	})
}

func TestService_Stats(t *testing.T) {
	var st Stats
	st.Set(StatusPending, 4)
	st.Set(StatusError, 1)

	got, err := NewService(&stubRepo{stats: st}).Stats(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 4, got.Pending)
	assert.EqualValues(t, 1, got.Error)
	assert.EqualValues(t, 4, got.ByStatus()["pending"])
}

func TestService_Get(t *testing.T) {
	entry := &Entry{TransactionID: id.New(), Status: StatusError, Attempts: 2}
	svc := NewService(&stubRepo{entry: entry})

	got, err := svc.Get(context.Background(), entry.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, StatusError, got.Status)

	_, err = svc.Get(context.Background(), id.New())
	assert.True(t, apperror.IsNotFound(err))
}
