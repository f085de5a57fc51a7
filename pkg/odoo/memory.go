package odoo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	contractx "github.com/tanpawarit/odoo-assistant/agent/contract"
)

// MemoryStore is an in-process RecordStore. It understands the filter
// operators "=", "!=", "like" and "ilike" and is used for local runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]map[int64]contractx.Record
	nextID  int64
	denied  map[string]struct{}
}

var _ contractx.RecordStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]map[int64]contractx.Record),
		denied:  make(map[string]struct{}),
	}
}

// Deny makes CheckAccess fail for right on model.
func (s *MemoryStore) Deny(model, right string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.denied[accessKey(model, right)] = struct{}{}
}

// Allow reverts a previous Deny.
func (s *MemoryStore) Allow(model, right string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.denied, accessKey(model, right))
}

// Len returns the number of records held for model.
func (s *MemoryStore) Len(model string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records[model])
}

func (s *MemoryStore) CheckAccess(_ context.Context, model string, right string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, denied := s.denied[accessKey(model, right)]; denied {
		return fmt.Errorf("%w: %s on %s", contractx.ErrPermission, right, model)
	}
	return nil
}

func (s *MemoryStore) Search(_ context.Context, model string, domain []any) ([]int64, error) {
	conds, err := parseDomain(domain)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0)
	for id, rec := range s.records[model] {
		if matchAll(rec, conds) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Read skips ids that do not exist.
func (s *MemoryStore) Read(_ context.Context, model string, ids []int64) ([]contractx.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]contractx.Record, 0, len(ids))
	for _, id := range ids {
		rec, ok := s.records[model][id]
		if !ok {
			continue
		}
		out = append(out, cloneRecord(rec))
	}
	return out, nil
}

func (s *MemoryStore) Create(_ context.Context, model string, fields map[string]any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	rec := cloneRecord(fields)
	rec["id"] = id
	if s.records[model] == nil {
		s.records[model] = make(map[int64]contractx.Record)
	}
	s.records[model][id] = rec
	return id, nil
}

func (s *MemoryStore) Write(_ context.Context, model string, ids []int64, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if _, ok := s.records[model][id]; !ok {
			return fmt.Errorf("%w: %s id=%d", contractx.ErrNotFound, model, id)
		}
	}
	for _, id := range ids {
		rec := s.records[model][id]
		for k, v := range fields {
			if k == "id" {
				continue
			}
			rec[k] = v
		}
	}
	return nil
}

type condition struct {
	field string
	op    string
	value any
}

func parseDomain(domain []any) ([]condition, error) {
	conds := make([]condition, 0, len(domain))
	for _, item := range domain {
		term, ok := item.([]any)
		if !ok || len(term) != 3 {
			return nil, fmt.Errorf("%w: filter term must be [field, operator, value]", contractx.ErrValidation)
		}
		field, ok := term[0].(string)
		if !ok {
			return nil, fmt.Errorf("%w: filter field must be a string", contractx.ErrValidation)
		}
		op, ok := term[1].(string)
		if !ok {
			return nil, fmt.Errorf("%w: filter operator must be a string", contractx.ErrValidation)
		}
		switch op {
		case "=", "!=", "like", "ilike":
		default:
			return nil, fmt.Errorf("%w: unsupported filter operator %q", contractx.ErrValidation, op)
		}
		conds = append(conds, condition{field: field, op: op, value: term[2]})
	}
	return conds, nil
}

func matchAll(rec contractx.Record, conds []condition) bool {
	for _, c := range conds {
		if !c.match(rec[c.field]) {
			return false
		}
	}
	return true
}

func (c condition) match(v any) bool {
	switch c.op {
	case "=":
		return fmt.Sprint(v) == fmt.Sprint(c.value)
	case "!=":
		return fmt.Sprint(v) != fmt.Sprint(c.value)
	case "like":
		s, ok := v.(string)
		return ok && strings.Contains(s, fmt.Sprint(c.value))
	case "ilike":
		s, ok := v.(string)
		return ok && strings.Contains(strings.ToLower(s), strings.ToLower(fmt.Sprint(c.value)))
	}
	return false
}

func cloneRecord(in map[string]any) contractx.Record {
	out := make(contractx.Record, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}

func accessKey(model, right string) string {
	return model + "\x00" + right
}
