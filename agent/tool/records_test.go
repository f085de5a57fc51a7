package tool

import (
	"context"
	"errors"
	"testing"

	contractx "github.com/tanpawarit/odoo-assistant/agent/contract"
	odoox "github.com/tanpawarit/odoo-assistant/pkg/odoo"
)

func newActions(t *testing.T) (*ActionSet, *odoox.MemoryStore) {
	t.Helper()
	store := odoox.NewMemoryStore()
	actions, err := NewActionSet(store)
	if err != nil {
		t.Fatalf("NewActionSet() error = %v", err)
	}
	return actions, store
}

func TestCreateThenReadRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	actions, store := newActions(t)

	created, err := actions.Create(ctx, "res.partner", map[string]any{"name": "John Doe", "email": "john@example.com"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	id, ok := created["id"].(int64)
	if !ok {
		t.Fatalf("created record has no id: %#v", created)
	}

	records, err := store.Read(ctx, "res.partner", []int64{id})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(records) != 1 || records[0]["email"] != "john@example.com" || records[0]["name"] != "John Doe" {
		t.Fatalf("unexpected read-back: %#v", records)
	}
}

func TestUpdateReflectsNewFields(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	actions, store := newActions(t)
	id, err := store.Create(ctx, "account.move", map[string]any{"name": "INV/001", "state": "draft"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	updated, err := actions.Update(ctx, "account.move", id, map[string]any{"state": "posted"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated["state"] != "posted" {
		t.Fatalf("update result = %#v", updated)
	}

	records, err := store.Read(ctx, "account.move", []int64{id})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if records[0]["state"] != "posted" || records[0]["name"] != "INV/001" {
		t.Fatalf("read after update = %#v", records[0])
	}
}

func TestCreateDeniedDoesNotMutate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	actions, store := newActions(t)
	store.Deny("res.partner", contractx.RightCreate)

	_, err := actions.Create(ctx, "res.partner", map[string]any{"name": "John"})
	if !errors.Is(err, contractx.ErrPermission) {
		t.Fatalf("expected ErrPermission, got %v", err)
	}
	if n := store.Len("res.partner"); n != 0 {
		t.Fatalf("store holds %d records after a denied create", n)
	}
}

func TestUpdateDeniedDoesNotMutate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	actions, store := newActions(t)
	id, err := store.Create(ctx, "res.partner", map[string]any{"name": "John"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	store.Deny("res.partner", contractx.RightWrite)

	_, err = actions.Update(ctx, "res.partner", id, map[string]any{"name": "Jack"})
	if !errors.Is(err, contractx.ErrPermission) {
		t.Fatalf("expected ErrPermission, got %v", err)
	}
	records, _ := store.Read(ctx, "res.partner", []int64{id})
	if records[0]["name"] != "John" {
		t.Fatalf("record changed after denied update: %#v", records[0])
	}
}

func TestUpdateMissingRecord(t *testing.T) {
	t.Parallel()

	actions, _ := newActions(t)
	_, err := actions.Update(context.Background(), "res.partner", 404, map[string]any{"name": "x"})
	if !errors.Is(err, contractx.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSearchIsCaseInsensitiveSubstring(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	actions, store := newActions(t)
	for _, name := range []string{"John Doe", "Big JOHNSON Ltd", "Alice"} {
		if _, err := store.Create(ctx, "res.partner", map[string]any{"name": name}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	records, err := actions.Search(ctx, "res.partner", "john")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 matches, got %#v", records)
	}

	none, err := actions.Search(ctx, "res.partner", "zzz")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v", none)
	}
}

func TestActionsRejectEmptyModel(t *testing.T) {
	t.Parallel()

	actions, _ := newActions(t)
	if _, err := actions.Search(context.Background(), " ", "x"); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
