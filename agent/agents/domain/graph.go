package domain

import (
	"context"
	"fmt"
	"strings"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

type turnInput struct {
	Message string
	History []*schema.Message
}

// compilePromptGraph builds retrieve -> prompt. The retrieve step is a pass
// through when no retriever is configured.
func compilePromptGraph(
	ctx context.Context,
	name string,
	systemPrompt string,
	docs retriever.Retriever,
	topK int,
) (compose.Runnable[turnInput, []*schema.Message], error) {
	templates := []schema.MessagesTemplate{
		schema.SystemMessage("{system_prompt}"),
	}
	if docs != nil {
		templates = append(templates, schema.SystemMessage("Relevant documentation:\n{context}"))
	}
	templates = append(templates,
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{input}"),
	)
	template := einoprompt.FromMessages(schema.FString, templates...)

	graph := compose.NewGraph[turnInput, []*schema.Message]()
	if err := graph.AddLambdaNode("retrieve",
		compose.InvokableLambda(func(ctx context.Context, in turnInput) (map[string]any, error) {
			vars := map[string]any{
				"system_prompt": systemPrompt,
				"history":       in.History,
				"input":         in.Message,
			}
			if docs == nil {
				return vars, nil
			}

			passages, err := docs.Retrieve(ctx, in.Message, retriever.WithTopK(topK))
			if err != nil {
				return nil, fmt.Errorf("retrieve documentation: %w", err)
			}
			parts := make([]string, 0, len(passages))
			for _, p := range passages {
				if p == nil || strings.TrimSpace(p.Content) == "" {
					continue
				}
				parts = append(parts, strings.TrimSpace(p.Content))
			}
			vars["context"] = strings.Join(parts, "\n\n")
			return vars, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add retrieve node: %w", err)
	}
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add prompt node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "retrieve"); err != nil {
		return nil, fmt.Errorf("add edge start->retrieve: %w", err)
	}
	if err := graph.AddEdge("retrieve", "prompt"); err != nil {
		return nil, fmt.Errorf("add edge retrieve->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", compose.END); err != nil {
		return nil, fmt.Errorf("add edge prompt->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName(name))
	if err != nil {
		return nil, fmt.Errorf("compile prompt graph: %w", err)
	}
	return runner, nil
}
