package router

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/odoo-assistant/agent/contract"
	nodex "github.com/tanpawarit/odoo-assistant/agent/nodes/router"
)

var ErrInvalidMessage = contractx.ErrInvalidMessage

// Result is a routed reply together with the domain that produced it.
type Result struct {
	Reply  string
	Domain contractx.Domain
}

// Router classifies each message and dispatches it to exactly one agent.
// It keeps no history of its own and never retries or falls back.
type Router struct {
	classifier contractx.Classifier
	agents     map[contractx.Domain]contractx.DomainAgent

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]
}

// New requires an agent for every domain in domains.
func New(
	classifier contractx.Classifier,
	agents map[contractx.Domain]contractx.DomainAgent,
	domains []contractx.Domain,
) (*Router, error) {
	if classifier == nil {
		return nil, fmt.Errorf("%w: classifier is required", contractx.ErrValidation)
	}
	if len(domains) == 0 {
		return nil, fmt.Errorf("%w: at least one domain is required", contractx.ErrValidation)
	}
	owned := make(map[contractx.Domain]contractx.DomainAgent, len(domains))
	for _, d := range domains {
		agent, err := nodex.PickAgent(d, agents)
		if err != nil {
			return nil, err
		}
		owned[d] = agent
	}

	r := &Router{
		classifier: classifier,
		agents:     owned,
	}
	graphRunner, err := r.compileRunGraph(context.Background())
	if err != nil {
		return nil, err
	}
	r.graphRunner = graphRunner
	return r, nil
}

func (r *Router) Run(ctx context.Context, message string) (string, error) {
	out, err := r.Route(ctx, message)
	if err != nil {
		return "", err
	}
	return out.Reply, nil
}

// Route is Run that also reports the chosen domain.
func (r *Router) Route(ctx context.Context, message string) (Result, error) {
	out, err := r.graphRunner.Invoke(ctx, nodex.GraphInput{Text: message})
	if err != nil {
		return Result{}, err
	}
	return Result{Reply: out.Reply, Domain: out.Domain}, nil
}

func (r *Router) Classify(ctx context.Context, message string) (contractx.Domain, error) {
	return r.classifier.Classify(ctx, message)
}

// Stream classifies the message and returns the selected agent's fragment
// stream. Agents without streaming support answer in a single fragment.
func (r *Router) Stream(ctx context.Context, message string) (contractx.Domain, *schema.StreamReader[string], error) {
	st, err := nodex.ValidateRequest(nodex.GraphInput{Text: message})
	if err != nil {
		return "", nil, err
	}
	if st, err = nodex.Classify(ctx, st, r.classifier); err != nil {
		return "", nil, err
	}
	agent, err := nodex.PickAgent(st.Domain, r.agents)
	if err != nil {
		return "", nil, err
	}

	if streaming, ok := agent.(contractx.StreamingAgent); ok {
		sr, err := streaming.Stream(ctx, st.Text)
		if err != nil {
			return "", nil, err
		}
		return st.Domain, sr, nil
	}

	reply, err := agent.Handle(ctx, st.Text)
	if err != nil {
		return "", nil, err
	}
	return st.Domain, schema.StreamReaderFromArray([]string{reply}), nil
}
