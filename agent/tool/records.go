package tool

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/odoo-assistant/agent/contract"
)

// ActionSet performs access-checked record operations against a RecordStore.
// Every call goes to the store; nothing is cached.
type ActionSet struct {
	store contractx.RecordStore
}

func NewActionSet(store contractx.RecordStore) (*ActionSet, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: record store is required", contractx.ErrValidation)
	}
	return &ActionSet{store: store}, nil
}

// NameFilter is the store filter matching records whose name contains query,
// case-insensitively.
func NameFilter(query string) []any {
	return []any{[]any{"name", "ilike", query}}
}

func (a *ActionSet) Search(ctx context.Context, model, query string) ([]contractx.Record, error) {
	model, err := normalizeModel(model)
	if err != nil {
		return nil, err
	}

	ids, err := a.store.Search(ctx, model, NameFilter(strings.TrimSpace(query)))
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", model, err)
	}
	if len(ids) == 0 {
		return []contractx.Record{}, nil
	}

	records, err := a.store.Read(ctx, model, ids)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", model, err)
	}
	return records, nil
}

func (a *ActionSet) Create(ctx context.Context, model string, fields map[string]any) (contractx.Record, error) {
	model, err := normalizeModel(model)
	if err != nil {
		return nil, err
	}
	if err := a.store.CheckAccess(ctx, model, contractx.RightCreate); err != nil {
		return nil, fmt.Errorf("create %s: %w", model, err)
	}

	id, err := a.store.Create(ctx, model, fields)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", model, err)
	}
	return a.readOne(ctx, model, id)
}

func (a *ActionSet) Update(ctx context.Context, model string, id int64, fields map[string]any) (contractx.Record, error) {
	model, err := normalizeModel(model)
	if err != nil {
		return nil, err
	}
	if err := a.store.CheckAccess(ctx, model, contractx.RightWrite); err != nil {
		return nil, fmt.Errorf("update %s: %w", model, err)
	}
	if _, err := a.readOne(ctx, model, id); err != nil {
		return nil, err
	}

	if err := a.store.Write(ctx, model, []int64{id}, fields); err != nil {
		return nil, fmt.Errorf("update %s id=%d: %w", model, id, err)
	}
	return a.readOne(ctx, model, id)
}

func (a *ActionSet) readOne(ctx context.Context, model string, id int64) (contractx.Record, error) {
	records, err := a.store.Read(ctx, model, []int64{id})
	if err != nil {
		return nil, fmt.Errorf("read %s id=%d: %w", model, id, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s id=%d", contractx.ErrNotFound, model, id)
	}
	return records[0], nil
}

func normalizeModel(model string) (string, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return "", fmt.Errorf("%w: model name is required", contractx.ErrValidation)
	}
	return model, nil
}
