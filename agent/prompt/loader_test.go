package prompt

import (
	"errors"
	"testing"

	contractx "github.com/tanpawarit/odoo-assistant/agent/contract"
)

func TestLoadCatalogDefaults(t *testing.T) {
	t.Parallel()

	c, err := LoadCatalog()
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}
	if c.Default != contractx.DomainCRM {
		t.Fatalf("default = %q, want crm", c.Default)
	}
	acc, ok := c.Lookup(contractx.DomainAccounting)
	if !ok {
		t.Fatal("accounting domain missing")
	}
	if acc.Search.Model != "account.move" || acc.Search.Tool != "search_accounting" {
		t.Fatalf("unexpected accounting search spec: %#v", acc.Search)
	}
	if len(acc.Keywords) != 6 {
		t.Fatalf("unexpected accounting keywords: %#v", acc.Keywords)
	}
	crm, ok := c.Lookup(contractx.DomainCRM)
	if !ok || crm.Search.Model != "res.partner" {
		t.Fatalf("unexpected crm spec: %#v", crm)
	}
}

func TestLoadPromptSet(t *testing.T) {
	t.Parallel()

	c, err := LoadCatalog()
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}
	set, err := LoadPromptSet(c)
	if err != nil {
		t.Fatalf("LoadPromptSet() error = %v", err)
	}
	for _, name := range c.Names() {
		if _, err := set.For(name); err != nil {
			t.Fatalf("prompt for %s: %v", name, err)
		}
	}
	if _, err := set.For("hr"); !errors.Is(err, contractx.ErrPromptMissing) {
		t.Fatalf("expected ErrPromptMissing, got %v", err)
	}
}

func TestParseCatalogRejectsUnknownDefault(t *testing.T) {
	t.Parallel()

	_, err := ParseCatalog([]byte("default: hr\ndomains:\n  - name: crm\n"))
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestWithDefault(t *testing.T) {
	t.Parallel()

	c, err := LoadCatalog()
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}
	acc, err := c.WithDefault(contractx.DomainAccounting)
	if err != nil {
		t.Fatalf("WithDefault() error = %v", err)
	}
	if acc.Default != contractx.DomainAccounting || c.Default != contractx.DomainCRM {
		t.Fatalf("unexpected defaults: copy=%s original=%s", acc.Default, c.Default)
	}
	if _, err := c.WithDefault("sales"); err == nil {
		t.Fatal("expected error for unknown default")
	}
}
