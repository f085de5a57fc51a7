package tool

import (
	"context"
	"errors"
	"strings"
	"testing"

	contractx "github.com/tanpawarit/odoo-assistant/agent/contract"
	promptx "github.com/tanpawarit/odoo-assistant/agent/prompt"
	odoox "github.com/tanpawarit/odoo-assistant/pkg/odoo"
)

func domainSpec(t *testing.T, domain contractx.Domain) promptx.DomainSpec {
	t.Helper()
	c, err := promptx.LoadCatalog()
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}
	spec, ok := c.Lookup(domain)
	if !ok {
		t.Fatalf("domain %s missing", domain)
	}
	return spec
}

func TestBuildForDomainAccounting(t *testing.T) {
	t.Parallel()

	actions, _ := newActions(t)
	table, err := BuildForDomain(domainSpec(t, contractx.DomainAccounting), actions)
	if err != nil {
		t.Fatalf("BuildForDomain() error = %v", err)
	}

	infos := table.Infos()
	if len(infos) != 4 {
		t.Fatalf("expected 4 tool infos, got %d", len(infos))
	}
	if infos[0].Name != "search_accounting" {
		t.Fatalf("unexpected first tool: %s", infos[0].Name)
	}
	if infos[3].Name != ToolMathEvaluate {
		t.Fatalf("unexpected last tool: %s", infos[3].Name)
	}
}

func TestBuildForDomainCRMHasNoMath(t *testing.T) {
	t.Parallel()

	actions, _ := newActions(t)
	table, err := BuildForDomain(domainSpec(t, contractx.DomainCRM), actions)
	if err != nil {
		t.Fatalf("BuildForDomain() error = %v", err)
	}
	got := strings.Join(table.Names(), ",")
	if got != "create_record,search_crm,update_record" {
		t.Fatalf("unexpected tools: %s", got)
	}
}

func TestExecutorSearchesDomainModel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := odoox.NewMemoryStore()
	actions, _ := NewActionSet(store)
	if _, err := store.Create(ctx, "res.partner", map[string]any{"name": "John"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := store.Create(ctx, "account.move", map[string]any{"name": "John invoice"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	table, err := BuildForDomain(domainSpec(t, contractx.DomainCRM), actions)
	if err != nil {
		t.Fatalf("BuildForDomain() error = %v", err)
	}
	out, err := table.Executor()(ctx, contractx.ActionRequest{Name: "search_crm", Args: map[string]any{"query": "john"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	records, ok := out.Result.([]contractx.Record)
	if !ok || len(records) != 1 || records[0]["name"] != "John" {
		t.Fatalf("unexpected result: %#v", out.Result)
	}
}

func TestExecutorFoldsActionErrors(t *testing.T) {
	t.Parallel()

	store := odoox.NewMemoryStore()
	store.Deny("res.partner", contractx.RightCreate)
	actions, _ := NewActionSet(store)
	table, err := BuildForDomain(domainSpec(t, contractx.DomainCRM), actions)
	if err != nil {
		t.Fatalf("BuildForDomain() error = %v", err)
	}
	exec := table.Executor()

	cases := []contractx.ActionRequest{
		{Name: ToolCreateRecord, Args: map[string]any{"model": "res.partner", "fields": map[string]any{"name": "x"}}},
		{Name: ToolUpdateRecord, Args: map[string]any{"model": "res.partner", "id": 1.5, "fields": map[string]any{}}},
		{Name: ToolUpdateRecord, Args: map[string]any{"model": "res.partner", "id": float64(9), "fields": map[string]any{}}},
		{Name: "drop_database", Args: nil},
	}
	for _, req := range cases {
		out, err := exec(context.Background(), req)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", req.Name, err)
		}
		if !out.Failed() {
			t.Fatalf("%s: expected failed result, got %#v", req.Name, out)
		}
	}
}

func TestExecutorMathEvaluate(t *testing.T) {
	t.Parallel()

	actions, _ := newActions(t)
	table, err := BuildForDomain(domainSpec(t, contractx.DomainAccounting), actions)
	if err != nil {
		t.Fatalf("BuildForDomain() error = %v", err)
	}
	out, err := table.Executor()(context.Background(), contractx.ActionRequest{
		Name: ToolMathEvaluate,
		Args: map[string]any{"expression": "2 + 3 * (4 - 1)"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, ok := out.Result.(MathEvaluateOutput)
	if !ok {
		t.Fatalf("unexpected result type: %T", out.Result)
	}
	if result.Result != 11 {
		t.Fatalf("unexpected result: %v", result.Result)
	}

	bad, err := table.Executor()(context.Background(), contractx.ActionRequest{
		Name: ToolMathEvaluate,
		Args: map[string]any{"expression": "2 + abc"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bad.Error == "" {
		t.Fatal("expected validation error")
	}
}

type recorderFunc func(ctx context.Context, domain contractx.Domain, req contractx.ActionRequest, res contractx.ActionResult) error

func (f recorderFunc) RecordAction(ctx context.Context, domain contractx.Domain, req contractx.ActionRequest, res contractx.ActionResult) error {
	return f(ctx, domain, req, res)
}

func TestWithRecorderIgnoresRecorderFailure(t *testing.T) {
	t.Parallel()

	var seen []string
	rec := recorderFunc(func(_ context.Context, domain contractx.Domain, req contractx.ActionRequest, _ contractx.ActionResult) error {
		seen = append(seen, domain.String()+":"+req.Name)
		return errors.New("audit down")
	})
	inner := func(_ context.Context, req contractx.ActionRequest) (contractx.ActionResult, error) {
		return contractx.ActionResult{Name: req.Name, Result: "ok"}, nil
	}

	out, err := WithRecorder(inner, contractx.DomainCRM, rec)(context.Background(), contractx.ActionRequest{Name: "search_crm"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Result != "ok" {
		t.Fatalf("unexpected result: %#v", out)
	}
	if len(seen) != 1 || seen[0] != "crm:search_crm" {
		t.Fatalf("unexpected recorder calls: %v", seen)
	}
}
