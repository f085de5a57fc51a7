package domain

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/retriever"
	contractx "github.com/tanpawarit/odoo-assistant/agent/contract"
	llmx "github.com/tanpawarit/odoo-assistant/agent/llm"
	promptx "github.com/tanpawarit/odoo-assistant/agent/prompt"
	toolx "github.com/tanpawarit/odoo-assistant/agent/tool"
)

// ModelFactory returns the chat model of one domain.
type ModelFactory func(ctx context.Context, domain contractx.Domain) (einomodel.ToolCallingChatModel, error)

// OpenRouterModels builds one model per domain from cfg, honouring the
// per-domain overrides.
func OpenRouterModels(cfg llmx.Config) ModelFactory {
	return func(ctx context.Context, domain contractx.Domain) (einomodel.ToolCallingChatModel, error) {
		modelCfg := cfg.OpenRouterFor(domain)
		return modelCfg.ChatModel(ctx)
	}
}

type RegistryConfig struct {
	Catalog promptx.Catalog
	Prompts promptx.PromptSet
	Models  ModelFactory
	// Actions is optional; without it agents get no tools.
	Actions   *toolx.ActionSet
	Retriever retriever.Retriever
	Recorder  contractx.ActionRecorder

	TopK          int
	MaxToolRounds int
	StreamBuffer  int
	HistoryTurns  int
}

// NewRegistry builds one agent per catalog domain.
func NewRegistry(ctx context.Context, cfg RegistryConfig) (map[contractx.Domain]*Agent, error) {
	if cfg.Models == nil {
		return nil, fmt.Errorf("%w: model factory is required", contractx.ErrValidation)
	}
	if err := cfg.Catalog.Validate(); err != nil {
		return nil, err
	}

	agents := make(map[contractx.Domain]*Agent, len(cfg.Catalog.Domains))
	for _, spec := range cfg.Catalog.Domains {
		systemPrompt, err := cfg.Prompts.For(spec.Name)
		if err != nil {
			return nil, err
		}
		chatModel, err := cfg.Models(ctx, spec.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: create %s model: %v", contractx.ErrModelInvoke, spec.Name, err)
		}

		var tools *toolx.Table
		if cfg.Actions != nil {
			tools, err = toolx.BuildForDomain(spec, cfg.Actions)
			if err != nil {
				return nil, err
			}
		}

		agent, err := New(ctx, Config{
			Domain:        spec.Name,
			SystemPrompt:  systemPrompt,
			Model:         chatModel,
			Retriever:     cfg.Retriever,
			Tools:         tools,
			Recorder:      cfg.Recorder,
			TopK:          cfg.TopK,
			MaxToolRounds: cfg.MaxToolRounds,
			StreamBuffer:  cfg.StreamBuffer,
			HistoryTurns:  cfg.HistoryTurns,
		})
		if err != nil {
			return nil, err
		}
		agents[spec.Name] = agent
	}
	return agents, nil
}
