package classifier

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	contractx "github.com/tanpawarit/odoo-assistant/agent/contract"
	promptx "github.com/tanpawarit/odoo-assistant/agent/prompt"
)

func catalog(t *testing.T) promptx.Catalog {
	t.Helper()
	c, err := promptx.LoadCatalog()
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}
	return c
}

func keywordClassifier(t *testing.T) *Keyword {
	t.Helper()
	c := catalog(t)
	k, err := NewKeyword(c.Default, RulesFromCatalog(c))
	if err != nil {
		t.Fatalf("NewKeyword() error = %v", err)
	}
	return k
}

func TestKeywordClassify(t *testing.T) {
	t.Parallel()

	k := keywordClassifier(t)
	cases := []struct {
		message string
		want    contractx.Domain
	}{
		{"Please pay this INVOICE", contractx.DomainAccounting},
		{"post the journal entry for the expense", contractx.DomainAccounting},
		{"Find customer John", contractx.DomainCRM},
		{"new lead from the fair", contractx.DomainCRM},
		// one keyword each: tie goes to the default domain
		{"invoice for the customer", contractx.DomainCRM},
		// no keyword at all
		{"hello there", contractx.DomainCRM},
		{"", contractx.DomainCRM},
		// substring containment, not tokenization
		{"accounts payable", contractx.DomainAccounting},
	}
	for _, tc := range cases {
		got, err := k.Classify(context.Background(), tc.message)
		if err != nil {
			t.Fatalf("Classify(%q) error = %v", tc.message, err)
		}
		if got != tc.want {
			t.Fatalf("Classify(%q) = %s, want %s", tc.message, got, tc.want)
		}
	}
}

func TestKeywordTieFollowsConfiguredDefault(t *testing.T) {
	t.Parallel()

	c, err := catalog(t).WithDefault(contractx.DomainAccounting)
	if err != nil {
		t.Fatalf("WithDefault() error = %v", err)
	}
	k, err := NewKeyword(c.Default, RulesFromCatalog(c))
	if err != nil {
		t.Fatalf("NewKeyword() error = %v", err)
	}
	for _, msg := range []string{"hello there", "invoice for the customer"} {
		got, _ := k.Classify(context.Background(), msg)
		if got != contractx.DomainAccounting {
			t.Fatalf("Classify(%q) = %s, want accounting", msg, got)
		}
	}
	got, _ := k.Classify(context.Background(), "crm contact")
	if got != contractx.DomainCRM {
		t.Fatalf("Classify(crm contact) = %s, want crm", got)
	}
}

func TestNewKeywordRejectsUnknownDefault(t *testing.T) {
	t.Parallel()

	_, err := NewKeyword("hr", RulesFromCatalog(catalog(t)))
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

// dummyEmbedder maps texts to fixed vectors; unknown texts get fallback.
type dummyEmbedder struct {
	vectors  map[string][]float64
	fallback []float64
	err      error
	calls    int
}

func (d *dummyEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	out := make([][]float64, 0, len(texts))
	for _, text := range texts {
		if v, ok := d.vectors[text]; ok {
			out = append(out, v)
			continue
		}
		out = append(out, d.fallback)
	}
	return out, nil
}

func anchorEmbedder(message []float64) *dummyEmbedder {
	return &dummyEmbedder{
		vectors: map[string][]float64{
			"invoice bill payment account expense journal": {1, 0},
			"lead customer opportunity crm contact":        {0, 1},
		},
		fallback: message,
	}
}

func TestEmbeddingClassifyOrthogonalAnchors(t *testing.T) {
	t.Parallel()

	c := catalog(t)
	cases := []struct {
		name    string
		message []float64
		want    contractx.Domain
	}{
		{"accounting axis", []float64{1, 0}, contractx.DomainAccounting},
		{"crm axis", []float64{0, 1}, contractx.DomainCRM},
		{"closer to accounting", []float64{0.9, 0.1}, contractx.DomainAccounting},
		{"diagonal tie", []float64{1, 1}, contractx.DomainCRM},
		{"zero vector", []float64{0, 0}, contractx.DomainCRM},
	}
	for _, tc := range cases {
		emb := anchorEmbedder(tc.message)
		e, err := NewEmbedding(context.Background(), c.Default, RulesFromCatalog(c), emb)
		if err != nil {
			t.Fatalf("%s: NewEmbedding() error = %v", tc.name, err)
		}
		got, err := e.Classify(context.Background(), "Show me an invoice")
		if err != nil {
			t.Fatalf("%s: Classify() error = %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: Classify() = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestEmbeddingAnchorsComputedOnce(t *testing.T) {
	t.Parallel()

	c := catalog(t)
	emb := anchorEmbedder([]float64{1, 0})
	e, err := NewEmbedding(context.Background(), c.Default, RulesFromCatalog(c), emb)
	if err != nil {
		t.Fatalf("NewEmbedding() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := e.Classify(context.Background(), "Show me an invoice"); err != nil {
			t.Fatalf("Classify() error = %v", err)
		}
	}
	if emb.calls != 4 {
		t.Fatalf("embedder calls = %d, want 1 for anchors + 3 messages", emb.calls)
	}
}

func TestEmbeddingErrorsPropagate(t *testing.T) {
	t.Parallel()

	c := catalog(t)
	emb := anchorEmbedder([]float64{1, 0})
	e, err := NewEmbedding(context.Background(), c.Default, RulesFromCatalog(c), emb)
	if err != nil {
		t.Fatalf("NewEmbedding() error = %v", err)
	}

	emb.err = errors.New("connection refused")
	if _, err := e.Classify(context.Background(), "Show me an invoice"); !errors.Is(err, contractx.ErrEmbeddingService) {
		t.Fatalf("expected ErrEmbeddingService, got %v", err)
	}

	_, err = NewEmbedding(context.Background(), c.Default, RulesFromCatalog(c), &dummyEmbedder{err: errors.New("down")})
	if !errors.Is(err, contractx.ErrEmbeddingService) {
		t.Fatalf("expected ErrEmbeddingService from construction, got %v", err)
	}
}

func TestNewSelectsStrategy(t *testing.T) {
	t.Parallel()

	c := catalog(t)
	kw, err := New(context.Background(), ModeKeywords, c, nil)
	if err != nil {
		t.Fatalf("New(keywords) error = %v", err)
	}
	if _, ok := kw.(*Keyword); !ok {
		t.Fatalf("New(keywords) = %T", kw)
	}

	emb, err := New(context.Background(), ModeEmbedding, c, anchorEmbedder([]float64{1, 0}))
	if err != nil {
		t.Fatalf("New(embedding) error = %v", err)
	}
	if _, ok := emb.(*Embedding); !ok {
		t.Fatalf("New(embedding) = %T", emb)
	}

	if _, err := New(context.Background(), ModeEmbedding, c, nil); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation without embedder, got %v", err)
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	for raw, want := range map[string]Mode{"": ModeKeywords, "KEYWORDS": ModeKeywords, "embedding": ModeEmbedding} {
		got, err := ParseMode(raw)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q) = %s, %v", raw, got, err)
		}
	}
	if _, err := ParseMode("llm"); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
