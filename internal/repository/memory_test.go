package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-gate/internal/model"
)

func TestMemTicketRepo_MarkUsedOnlyOnce(t *testing.T) {
	repo := NewMemTicketRepo()
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, &model.Ticket{TicketID: "a", TicketNumber: "0001", IDCardNumber: "X", Event: "E"}))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(by uint64) {
			defer wg.Done()
			ok, err := repo.MarkUsed(ctx, "a", time.Now(), by)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(uint64(i + 1))
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	got, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, got.Used)
	assert.NotNil(t, got.ScannedAt)
	assert.NotNil(t, got.ScannedBy)
}

func TestMemTicketRepo_UniqueKeys(t *testing.T) {
	repo := NewMemTicketRepo()
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, &model.Ticket{TicketID: "a", TicketNumber: "0001", IDCardNumber: "X", Event: "E"}))
	assert.ErrorIs(t, repo.Insert(ctx, &model.Ticket{TicketID: "b", TicketNumber: "0001", IDCardNumber: "Y", Event: "E"}), ErrDuplicateNumber)
	assert.ErrorIs(t, repo.Insert(ctx, &model.Ticket{TicketID: "c", TicketNumber: "0002", IDCardNumber: "X", Event: "E"}), ErrConflict)
	require.NoError(t, repo.Insert(ctx, &model.Ticket{TicketID: "d", TicketNumber: "0003", IDCardNumber: "X", Event: "F"}))

	ev := "F"
	_, err := repo.Update(ctx, "a", model.TicketPatch{Event: &ev})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestMemTicketRepo_QueryOrdersByNumber(t *testing.T) {
	repo := NewMemTicketRepo()
	ctx := context.Background()
	for _, n := range []string{"10000", "0002", "9999", "0001"} {
		require.NoError(t, repo.Insert(ctx, &model.Ticket{TicketID: "t" + n, TicketNumber: n, IDCardNumber: n, Event: "E"}))
	}
	out, err := repo.Query(ctx, model.TicketFilter{})
	require.NoError(t, err)
	var got []string
	for _, tk := range out {
		got = append(got, tk.TicketNumber)
	}
	assert.Equal(t, []string{"0001", "0002", "9999", "10000"}, got)
}

func TestMemTicketRepo_HighWater(t *testing.T) {
	repo := NewMemTicketRepo()
	ctx := context.Background()
	for _, n := range []string{"0003", "0012"} {
		require.NoError(t, repo.Insert(ctx, &model.Ticket{TicketID: "t" + n, TicketNumber: n, IDCardNumber: n, Event: "E"}))
	}
	top, err := repo.MaxSequence(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), top)

	require.NoError(t, repo.Raise(ctx, TicketSequenceKey, 20))
	require.NoError(t, repo.Raise(ctx, TicketSequenceKey, 4))
	cur, err := repo.Current(ctx, TicketSequenceKey)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), cur)

	n, err := repo.Next(ctx, TicketSequenceKey)
	require.NoError(t, err)
	assert.Equal(t, uint64(21), n)
}
