package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	contractx "github.com/tanpawarit/odoo-assistant/agent/contract"
)

var vocabulary = []string{"invoice", "customer", "payment", "lead"}

// wordEmbedder counts vocabulary words, one dimension per word.
type wordEmbedder struct {
	err error
}

func (w wordEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	if w.err != nil {
		return nil, w.err
	}
	out := make([][]float64, 0, len(texts))
	for _, text := range texts {
		lowered := strings.ToLower(text)
		vec := make([]float64, len(vocabulary))
		for i, word := range vocabulary {
			vec[i] = float64(strings.Count(lowered, word))
		}
		out = append(out, vec)
	}
	return out, nil
}

func newTestIndex(t *testing.T, emb embedding.Embedder) *Index {
	t.Helper()
	idx, err := Open(filepath.Join(t.TempDir(), "index.db"), emb)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestRetrieveRanksByCosine(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, wordEmbedder{})

	require.NoError(t, idx.Replace(ctx, []Passage{
		{Source: "a.md", Content: "How to create an invoice"},
		{Source: "b.md", Content: "Register a customer payment"},
		{Source: "c.md", Content: "Convert a lead into a customer"},
		{Source: "d.md", Content: "Invoice numbering and invoice layout"},
		{Source: "e.md", Content: "Lead scoring"},
	}))

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	docs, err := idx.Retrieve(ctx, "invoice")
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Contains(t, []string{"a.md", "d.md"}, docs[0].MetaData[MetaSource])
	assert.Contains(t, []string{"a.md", "d.md"}, docs[1].MetaData[MetaSource])

	one, err := idx.Retrieve(ctx, "lead", retriever.WithTopK(1))
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "Lead scoring", one[0].Content)
}

func TestReplaceDropsPreviousContent(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, wordEmbedder{})

	require.NoError(t, idx.Replace(ctx, []Passage{{Source: "a", Content: "invoice"}, {Source: "b", Content: "lead"}}))
	require.NoError(t, idx.Replace(ctx, []Passage{{Source: "c", Content: "payment"}}))

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEmbeddingFailureKeepsIndex(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	good, err := Open(path, wordEmbedder{})
	require.NoError(t, err)
	require.NoError(t, good.Replace(ctx, []Passage{{Source: "a", Content: "invoice"}}))
	require.NoError(t, good.Close())

	bad, err := Open(path, wordEmbedder{err: errors.New("unreachable")})
	require.NoError(t, err)
	t.Cleanup(func() { bad.Close() })

	err = bad.Replace(ctx, []Passage{{Source: "b", Content: "lead"}})
	require.ErrorIs(t, err, contractx.ErrEmbeddingService)
	n, err := bad.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = bad.Retrieve(ctx, "invoice")
	assert.ErrorIs(t, err, contractx.ErrEmbeddingService)
	assert.True(t, Exists(path))
}

func TestSplitterOverlap(t *testing.T) {
	ctx := context.Background()
	words := make([]string, 600)
	for i := range words {
		words[i] = fmt.Sprintf("w%04d", i)
	}
	text := strings.Join(words, " ") // 3599 runes

	split, err := Splitter{Size: 1000, Overlap: 200}.Transformer(ctx)
	require.NoError(t, err)
	chunks, err := split.Transform(ctx, []*schema.Document{{ID: "doc", Content: text}})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 4)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Content), 1000)
	}
	// consecutive chunks share text
	first := strings.Fields(chunks[1].Content)[0]
	assert.Contains(t, chunks[0].Content, first)
}

func TestSplitterDefaults(t *testing.T) {
	s := Splitter{}.normalized()
	assert.Equal(t, Splitter{Size: DefaultChunkSize, Overlap: DefaultChunkOverlap}, s)

	s = Splitter{Size: 100, Overlap: 400}.normalized()
	assert.Equal(t, Splitter{Size: 100, Overlap: 20}, s)
}

func TestIngestReadsDocumentFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "guides"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "invoices.md"), []byte("# Invoices\nCreate an invoice from a sales order."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "guides", "crm.rst"), []byte("Leads become customers."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("Payment terms are 30 days."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "logo.png"), []byte{0x89, 0x50}, 0o644))

	idx := newTestIndex(t, wordEmbedder{})
	report, err := Ingest(ctx, idx, dir, Splitter{})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Files)
	assert.Equal(t, 3, report.Passages)

	docs, err := idx.Retrieve(ctx, "invoice", retriever.WithTopK(1))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "invoices.md", docs[0].MetaData[MetaSource])

	_, err = Ingest(ctx, idx, filepath.Join(dir, "missing"), Splitter{})
	assert.ErrorIs(t, err, contractx.ErrValidation)
}
