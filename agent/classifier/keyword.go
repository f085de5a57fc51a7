package classifier

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/odoo-assistant/agent/contract"
)

// Keyword scores a message by how many trigger words of each domain it
// contains as substrings of the lower-cased text.
type Keyword struct {
	def      contractx.Domain
	domains  []contractx.Domain
	keywords [][]string
}

var _ contractx.Classifier = (*Keyword)(nil)

func NewKeyword(def contractx.Domain, rules []Rule) (*Keyword, error) {
	if err := validateRules(def, rules); err != nil {
		return nil, err
	}
	k := &Keyword{def: def}
	for _, r := range rules {
		words := make([]string, 0, len(r.Keywords))
		for _, w := range r.Keywords {
			if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
				words = append(words, w)
			}
		}
		k.domains = append(k.domains, r.Domain)
		k.keywords = append(k.keywords, words)
	}
	return k, nil
}

func (k *Keyword) Classify(ctx context.Context, message string) (contractx.Domain, error) {
	lowered := strings.ToLower(message)
	scores := make([]float64, len(k.domains))
	for i, words := range k.keywords {
		for _, w := range words {
			if strings.Contains(lowered, w) {
				scores[i]++
			}
		}
	}

	domain := pick(k.def, k.domains, scores)
	log.Ctx(ctx).Debug().
		Str("strategy", string(ModeKeywords)).
		Floats64("scores", scores).
		Str("domain", domain.String()).
		Msg("message classified")
	return domain, nil
}
