package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/odoo-assistant/agent/contract"
	memoryx "github.com/tanpawarit/odoo-assistant/agent/memory"
	toolx "github.com/tanpawarit/odoo-assistant/agent/tool"
)

const (
	DefaultTopK          = 3
	DefaultMaxToolRounds = 5
	DefaultStreamBuffer  = 8
)

type Config struct {
	Domain       contractx.Domain
	SystemPrompt string
	Model        einomodel.ToolCallingChatModel
	// Retriever is optional; without it no documentation is added.
	Retriever retriever.Retriever
	// Tools is optional; without it the model answers in text only.
	Tools    *toolx.Table
	Recorder contractx.ActionRecorder

	TopK          int
	MaxToolRounds int
	StreamBuffer  int
	HistoryTurns  int
}

// Agent answers messages of one domain. It owns its conversation memory and
// handles one message at a time; a stream counts until its producer returns.
type Agent struct {
	turnMu sync.Mutex

	domain       contractx.Domain
	model        einomodel.BaseChatModel
	promptRunner compose.Runnable[turnInput, []*schema.Message]
	executor     toolx.Executor
	memory       *memoryx.Buffer
	maxRounds    int
	streamBuffer int
}

var _ contractx.StreamingAgent = (*Agent)(nil)

func New(ctx context.Context, cfg Config) (*Agent, error) {
	if cfg.Domain == "" {
		return nil, fmt.Errorf("%w: agent domain is required", contractx.ErrValidation)
	}
	if cfg.Model == nil {
		return nil, fmt.Errorf("%w: chat model is required for domain=%s", contractx.ErrValidation, cfg.Domain)
	}
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		return nil, fmt.Errorf("%w: domain=%s", contractx.ErrPromptMissing, cfg.Domain)
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = DefaultMaxToolRounds
	}
	if cfg.StreamBuffer <= 0 {
		cfg.StreamBuffer = DefaultStreamBuffer
	}

	a := &Agent{
		domain:       cfg.Domain,
		model:        cfg.Model,
		memory:       memoryx.NewBuffer(cfg.HistoryTurns),
		maxRounds:    cfg.MaxToolRounds,
		streamBuffer: cfg.StreamBuffer,
	}

	if cfg.Tools != nil && len(cfg.Tools.Infos()) > 0 {
		bound, err := cfg.Model.WithTools(cfg.Tools.Infos())
		if err != nil {
			return nil, fmt.Errorf("%w: bind tools for domain=%s: %v", contractx.ErrModelInvoke, cfg.Domain, err)
		}
		a.model = bound
		a.executor = toolx.WithRecorder(cfg.Tools.Executor(), cfg.Domain, cfg.Recorder)
	}

	runner, err := compilePromptGraph(ctx, "domain."+cfg.Domain.String()+".prompt_graph", strings.TrimSpace(cfg.SystemPrompt), cfg.Retriever, cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("%w: domain=%s: %v", contractx.ErrModelInvoke, cfg.Domain, err)
	}
	a.promptRunner = runner
	return a, nil
}

func (a *Agent) Domain() contractx.Domain {
	return a.domain
}

// History returns the recorded turns, oldest first.
func (a *Agent) History() []contractx.Turn {
	a.turnMu.Lock()
	defer a.turnMu.Unlock()
	return a.memory.Turns()
}

func (a *Agent) Handle(ctx context.Context, message string) (string, error) {
	a.turnMu.Lock()
	defer a.turnMu.Unlock()

	start := time.Now()
	msgs, err := a.buildMessages(ctx, message)
	if err != nil {
		return "", err
	}

	reply, rounds, err := a.runToolLoop(ctx, msgs, a.generate)
	if err != nil {
		return "", err
	}

	a.memory.Append(message, reply)
	log.Ctx(ctx).Debug().
		Str("domain", a.domain.String()).
		Int("tool_rounds", rounds).
		Dur("duration", time.Since(start)).
		Msg("domain agent replied")
	return reply, nil
}

func (a *Agent) buildMessages(ctx context.Context, message string) ([]*schema.Message, error) {
	msgs, err := a.promptRunner.Invoke(ctx, turnInput{Message: message, History: a.memory.Messages()})
	if err != nil {
		return nil, fmt.Errorf("domain=%s: build prompt: %w", a.domain, err)
	}
	return msgs, nil
}

// step produces one model message for the conversation so far.
type step func(ctx context.Context, msgs []*schema.Message) (*schema.Message, error)

func (a *Agent) generate(ctx context.Context, msgs []*schema.Message) (*schema.Message, error) {
	out, err := a.model.Generate(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("%w: domain=%s: %v", contractx.ErrLLMBackend, a.domain, err)
	}
	if out == nil {
		return nil, fmt.Errorf("%w: domain=%s: empty model response", contractx.ErrSchemaViolation, a.domain)
	}
	return out, nil
}

// runToolLoop calls the model until it answers without action requests.
// Failed actions are folded back as tool messages and never abort the loop.
func (a *Agent) runToolLoop(ctx context.Context, msgs []*schema.Message, next step) (string, int, error) {
	var lastFailure string
	for round := 0; ; round++ {
		out, err := next(ctx, msgs)
		if err != nil {
			return "", round, err
		}

		if len(out.ToolCalls) == 0 || a.executor == nil {
			reply := strings.TrimSpace(out.Content)
			if reply != "" {
				return reply, round, nil
			}
			if lastFailure != "" {
				return lastFailure, round, nil
			}
			return "", round, fmt.Errorf("%w: domain=%s: model returned no text", contractx.ErrSchemaViolation, a.domain)
		}

		if round >= a.maxRounds {
			reply := fmt.Sprintf("I could not finish this request within %d action steps.", a.maxRounds)
			if lastFailure != "" {
				reply += " " + lastFailure
			}
			return reply, round, nil
		}

		msgs = append(msgs, &schema.Message{
			Role:      schema.Assistant,
			Content:   out.Content,
			ToolCalls: out.ToolCalls,
		})
		for _, call := range out.ToolCalls {
			res, err := a.execute(ctx, call)
			if err != nil {
				return "", round, err
			}
			if res.Failed() {
				lastFailure = explainFailure(res)
			}
			msgs = append(msgs, schema.ToolMessage(encodeResult(res), call.ID))
		}
	}
}

func (a *Agent) execute(ctx context.Context, call schema.ToolCall) (contractx.ActionResult, error) {
	req := contractx.ActionRequest{
		CallID: call.ID,
		Name:   strings.TrimSpace(call.Function.Name),
		Args:   map[string]any{},
	}
	if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Args); err != nil {
			err = fmt.Errorf("%w: invalid arguments for %s: %v", contractx.ErrValidation, req.Name, err)
			return contractx.ActionResult{Name: req.Name, Error: err.Error()}, nil
		}
	}

	log.Ctx(ctx).Debug().
		Str("domain", a.domain.String()).
		Str("action", req.Name).
		Msg("executing action")
	return a.executor(ctx, req)
}

func explainFailure(res contractx.ActionResult) string {
	return fmt.Sprintf("The %s action failed: %s.", res.Name, strings.TrimSuffix(res.Error, "."))
}

func encodeResult(res contractx.ActionResult) string {
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Sprintf(`{"name":%q,"error":%q}`, res.Name, "unencodable result: "+err.Error())
	}
	return string(raw)
}
