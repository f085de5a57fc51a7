package routernode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/odoo-assistant/agent/contract"
)

// Dispatch hands the message to the one agent owning the classified domain.
func Dispatch(
	ctx context.Context,
	in *GraphState,
	agents map[contractx.Domain]contractx.DomainAgent,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	agent, err := PickAgent(in.Domain, agents)
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).Debug().Str("domain", in.Domain.String()).Msg("dispatching message")
	reply, err := agent.Handle(ctx, in.Text)
	if err != nil {
		return nil, err
	}
	in.Reply = reply
	return in, nil
}

func PickAgent(domain contractx.Domain, agents map[contractx.Domain]contractx.DomainAgent) (contractx.DomainAgent, error) {
	agent, ok := agents[domain]
	if !ok || agent == nil {
		return nil, fmt.Errorf("%w: no agent for domain=%q", contractx.ErrValidation, domain)
	}
	return agent, nil
}
