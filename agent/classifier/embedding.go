package classifier

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/odoo-assistant/agent/contract"
)

// Embedding scores a message by cosine similarity between its embedding and
// each domain's anchor vector. Anchors are computed once in NewEmbedding.
type Embedding struct {
	def      contractx.Domain
	domains  []contractx.Domain
	anchors  [][]float64
	embedder embedding.Embedder
}

var _ contractx.Classifier = (*Embedding)(nil)

func NewEmbedding(ctx context.Context, def contractx.Domain, rules []Rule, embedder embedding.Embedder) (*Embedding, error) {
	if err := validateRules(def, rules); err != nil {
		return nil, err
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", contractx.ErrValidation)
	}

	texts := make([]string, 0, len(rules))
	e := &Embedding{def: def, embedder: embedder}
	for _, r := range rules {
		anchor := strings.TrimSpace(r.Anchor)
		if anchor == "" {
			anchor = strings.Join(r.Keywords, " ")
		}
		if anchor == "" {
			return nil, fmt.Errorf("%w: domain %s has no anchor text", contractx.ErrValidation, r.Domain)
		}
		texts = append(texts, anchor)
		e.domains = append(e.domains, r.Domain)
	}

	vectors, err := embedder.EmbedStrings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: embed anchors: %v", contractx.ErrEmbeddingService, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d anchor vectors, got %d", contractx.ErrEmbeddingService, len(texts), len(vectors))
	}
	e.anchors = vectors
	return e, nil
}

func (e *Embedding) Classify(ctx context.Context, message string) (contractx.Domain, error) {
	vectors, err := e.embedder.EmbedStrings(ctx, []string{message})
	if err != nil {
		return "", fmt.Errorf("%w: %v", contractx.ErrEmbeddingService, err)
	}
	if len(vectors) != 1 {
		return "", fmt.Errorf("%w: expected 1 vector, got %d", contractx.ErrEmbeddingService, len(vectors))
	}

	scores := make([]float64, len(e.anchors))
	for i, anchor := range e.anchors {
		scores[i] = cosineSimilarity(vectors[0], anchor)
	}

	domain := pick(e.def, e.domains, scores)
	log.Ctx(ctx).Debug().
		Str("strategy", string(ModeEmbedding)).
		Floats64("scores", scores).
		Str("domain", domain.String()).
		Msg("message classified")
	return domain, nil
}

// cosineSimilarity computes dot(a,b) / (||a|| * ||b||).
// Returns 0 for zero-length vectors, length mismatch, or NaN/Inf results.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	result := dot / denom
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0
	}
	return result
}
