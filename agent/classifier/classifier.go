package classifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/embedding"
	contractx "github.com/tanpawarit/odoo-assistant/agent/contract"
	promptx "github.com/tanpawarit/odoo-assistant/agent/prompt"
)

type Mode string

const (
	ModeKeywords  Mode = "keywords"
	ModeEmbedding Mode = "embedding"
)

func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeKeywords, "keyword":
		return ModeKeywords, nil
	case ModeEmbedding, "embeddings":
		return ModeEmbedding, nil
	default:
		return "", fmt.Errorf("%w: unknown classifier mode %q", contractx.ErrValidation, raw)
	}
}

// Rule is what a classifier knows about one domain.
type Rule struct {
	Domain   contractx.Domain
	Keywords []string
	Anchor   string
}

func RulesFromCatalog(c promptx.Catalog) []Rule {
	rules := make([]Rule, 0, len(c.Domains))
	for _, d := range c.Domains {
		rules = append(rules, Rule{Domain: d.Name, Keywords: d.Keywords, Anchor: d.Anchor})
	}
	return rules
}

// New builds the classifier selected by mode. The embedding strategy computes
// its anchors here, so construction may call the embedding backend.
func New(ctx context.Context, mode Mode, c promptx.Catalog, embedder embedding.Embedder) (contractx.Classifier, error) {
	rules := RulesFromCatalog(c)
	switch mode {
	case ModeKeywords:
		return NewKeyword(c.Default, rules)
	case ModeEmbedding:
		return NewEmbedding(ctx, c.Default, rules, embedder)
	default:
		return nil, fmt.Errorf("%w: unknown classifier mode %q", contractx.ErrValidation, mode)
	}
}

func validateRules(def contractx.Domain, rules []Rule) error {
	if len(rules) == 0 {
		return fmt.Errorf("%w: classifier needs at least one domain", contractx.ErrValidation)
	}
	for _, r := range rules {
		if r.Domain == def {
			return nil
		}
	}
	return fmt.Errorf("%w: default domain %q has no rule", contractx.ErrValidation, def)
}

// pick returns the domain with the strictly highest score. The default domain
// holds the lead until another domain beats it, so every tie goes to it.
func pick(def contractx.Domain, domains []contractx.Domain, scores []float64) contractx.Domain {
	best := def
	bestScore := 0.0
	for i, d := range domains {
		if d == def {
			bestScore = scores[i]
			break
		}
	}
	for i, d := range domains {
		if d != def && scores[i] > bestScore {
			best, bestScore = d, scores[i]
		}
	}
	return best
}
