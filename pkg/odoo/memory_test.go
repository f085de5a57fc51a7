package odoo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	contractx "github.com/tanpawarit/odoo-assistant/agent/contract"
)

func TestMemoryStoreIlikeSearch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.Create(ctx, "res.partner", map[string]any{"name": "John Doe"})
	require.NoError(t, err)
	_, err = s.Create(ctx, "res.partner", map[string]any{"name": "Jane"})
	require.NoError(t, err)
	_, err = s.Create(ctx, "account.move", map[string]any{"name": "JOHN/2024/001"})
	require.NoError(t, err)

	ids, err := s.Search(ctx, "res.partner", []any{[]any{"name", "ilike", "jOhN"}})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids)

	all, err := s.Search(ctx, "res.partner", nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMemoryStoreRejectsUnknownOperator(t *testing.T) {
	t.Parallel()

	_, err := NewMemoryStore().Search(context.Background(), "res.partner", []any{[]any{"name", "child_of", 1}})
	assert.ErrorIs(t, err, contractx.ErrValidation)
}

func TestMemoryStoreWriteMissing(t *testing.T) {
	t.Parallel()

	err := NewMemoryStore().Write(context.Background(), "res.partner", []int64{5}, map[string]any{"name": "x"})
	assert.ErrorIs(t, err, contractx.ErrNotFound)
}

func TestMemoryStoreReadReturnsCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore()
	id, err := s.Create(ctx, "res.partner", map[string]any{"name": "John"})
	require.NoError(t, err)

	recs, err := s.Read(ctx, "res.partner", []int64{id, 42})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	recs[0]["name"] = "changed"

	again, err := s.Read(ctx, "res.partner", []int64{id})
	require.NoError(t, err)
	assert.Equal(t, "John", again[0]["name"])
}

func TestMemoryStoreDenyAllow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore()
	s.Deny("res.partner", contractx.RightWrite)
	assert.ErrorIs(t, s.CheckAccess(ctx, "res.partner", contractx.RightWrite), contractx.ErrPermission)
	assert.NoError(t, s.CheckAccess(ctx, "res.partner", contractx.RightCreate))

	s.Allow("res.partner", contractx.RightWrite)
	assert.NoError(t, s.CheckAccess(ctx, "res.partner", contractx.RightWrite))
}
