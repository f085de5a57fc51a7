package routernode

import (
	"fmt"

	contractx "github.com/tanpawarit/odoo-assistant/agent/contract"
)

func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	return GraphOutput{Reply: in.Reply, Domain: in.Domain}, nil
}
