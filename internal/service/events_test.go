package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-gate/internal/access"
	"github.com/iliyamo/ticket-gate/internal/repository"
)

func TestEvents(t *testing.T) {
	svc := NewEvents(repository.NewMemEventRepo())
	ctx := context.Background()

	e, err := svc.Create(ctx, subadmin, NewEvent{Name: " Opening Night ", Date: "2025-09-06", Location: "Hall A"})
	require.NoError(t, err)
	assert.Equal(t, "Opening Night", e.Name)
	assert.NotEmpty(t, e.ID)

	_, err = svc.Create(ctx, subadmin, NewEvent{Name: "Opening Night", Date: "2025-09-06"})
	assert.ErrorIs(t, err, repository.ErrConflict)
	_, err = svc.Create(ctx, subadmin, NewEvent{Name: "Opening Night", Date: "06/09/2025"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Create(ctx, editor, NewEvent{Name: "Other", Date: "2025-09-07"})
	assert.ErrorIs(t, err, access.ErrForbidden)

	list, err := svc.List(ctx, editor)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	_, err = svc.List(ctx, scanner)
	assert.ErrorIs(t, err, access.ErrForbidden)

	assert.ErrorIs(t, svc.Delete(ctx, subadmin, e.ID), access.ErrForbidden)
	require.NoError(t, svc.Delete(ctx, admin, e.ID))
	assert.ErrorIs(t, svc.Delete(ctx, admin, e.ID), repository.ErrNotFound)
}
