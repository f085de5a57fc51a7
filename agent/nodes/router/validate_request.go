package routernode

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/odoo-assistant/agent/contract"
)

type GraphInput struct {
	Text string
}

type GraphOutput struct {
	Reply  string
	Domain contractx.Domain
}

type GraphState struct {
	Text   string
	Domain contractx.Domain
	Reply  string
}

// ValidateRequest rejects blank messages. The text itself is passed on
// untouched so the selected agent sees exactly what the caller sent.
func ValidateRequest(in GraphInput) (*GraphState, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, fmt.Errorf("%w: message is empty", contractx.ErrInvalidMessage)
	}
	return &GraphState{Text: in.Text}, nil
}
