package server

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/odoo-assistant/agent/contract"
)

const serializedStreamBuffer = 8

// SerializeAgents wraps every agent so that it handles one message at a
// time. Agents own their conversation memory, and concurrent requests must
// not interleave turns.
func SerializeAgents[A contractx.DomainAgent](agents map[contractx.Domain]A) map[contractx.Domain]contractx.DomainAgent {
	out := make(map[contractx.Domain]contractx.DomainAgent, len(agents))
	for d, a := range agents {
		base := &serialAgent{next: a}
		if streaming, ok := contractx.DomainAgent(a).(contractx.StreamingAgent); ok {
			out[d] = &serialStreamingAgent{serialAgent: base, stream: streaming}
			continue
		}
		out[d] = base
	}
	return out
}

type serialAgent struct {
	mu   sync.Mutex
	next contractx.DomainAgent
}

func (a *serialAgent) Handle(ctx context.Context, message string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.next.Handle(ctx, message)
}

type serialStreamingAgent struct {
	*serialAgent
	stream contractx.StreamingAgent
}

// Stream holds the agent's lock until the inner producer has finished. When
// the returned reader is closed early the inner stream is cancelled and
// drained, so the next message waits for the abandoned turn to wind down.
func (a *serialStreamingAgent) Stream(ctx context.Context, message string) (*schema.StreamReader[string], error) {
	a.mu.Lock()
	ctx, cancel := context.WithCancel(ctx)
	inner, err := a.stream.Stream(ctx, message)
	if err != nil {
		cancel()
		a.mu.Unlock()
		return nil, err
	}

	sr, sw := schema.Pipe[string](serializedStreamBuffer)
	go func() {
		defer a.mu.Unlock()
		defer sw.Close()
		defer inner.Close()
		defer cancel()
		open := true
		for {
			chunk, err := inner.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if open {
				if closed := sw.Send(chunk, err); closed {
					open = false
					cancel()
				}
			}
		}
	}()
	return sr, nil
}
