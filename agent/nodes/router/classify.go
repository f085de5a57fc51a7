package routernode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/odoo-assistant/agent/contract"
)

func Classify(ctx context.Context, in *GraphState, classifier contractx.Classifier) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	domain, err := classifier.Classify(ctx, in.Text)
	if err != nil {
		return nil, err
	}
	in.Domain = domain
	return in, nil
}
