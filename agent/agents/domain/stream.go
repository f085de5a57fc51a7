package domain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/odoo-assistant/agent/contract"
)

var errStreamClosed = errors.New("stream closed by reader")

// Stream answers like Handle but delivers the reply in fragments through a
// bounded pipe. The joined fragments always equal the reply Handle would
// return, and the turn is recorded before the reader sees EOF. A reader that
// closes early, or a cancelled ctx, stops the producer before anything is
// recorded. The agent stays busy until the producer has returned.
func (a *Agent) Stream(ctx context.Context, message string) (*schema.StreamReader[string], error) {
	a.turnMu.Lock()
	msgs, err := a.buildMessages(ctx, message)
	if err != nil {
		a.turnMu.Unlock()
		return nil, err
	}

	sr, sw := schema.Pipe[string](a.streamBuffer)
	go func() {
		defer a.turnMu.Unlock()
		defer sw.Close()
		defer func() {
			if r := recover(); r != nil {
				sw.Send("", fmt.Errorf("domain=%s: stream panic: %v", a.domain, r))
			}
		}()

		var trim fragmentTrimmer
		send := func(fragment string) error {
			if fragment == "" {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if closed := sw.Send(fragment, nil); closed {
				return errStreamClosed
			}
			return nil
		}

		// Without actions the model cannot ask for any, so every round is the
		// final one and text goes out as it arrives. Otherwise a round's text
		// is held until the round ends without action requests.
		live := a.executor == nil
		var held []string
		reply, _, err := a.runToolLoop(ctx, msgs, func(ctx context.Context, msgs []*schema.Message) (*schema.Message, error) {
			held = held[:0]
			return a.streamStep(ctx, msgs, func(fragment string) error {
				if live {
					return send(trim.push(fragment))
				}
				held = append(held, fragment)
				return nil
			})
		})
		if errors.Is(err, errStreamClosed) {
			log.Ctx(ctx).Debug().Str("domain", a.domain.String()).Msg("stream reader went away")
			return
		}
		if err != nil {
			sw.Send("", err)
			return
		}

		if !live {
			// Failure explanations and the step limit message are built by
			// the agent, not streamed by the model.
			fragments := held
			if strings.TrimSpace(strings.Join(held, "")) != reply {
				fragments = []string{reply}
			}
			for _, f := range fragments {
				if err := send(trim.push(f)); err != nil {
					if !errors.Is(err, errStreamClosed) {
						sw.Send("", err)
					}
					return
				}
			}
		}

		if ctx.Err() != nil {
			sw.Send("", ctx.Err())
			return
		}
		a.memory.Append(message, reply)
	}()
	return sr, nil
}

// fragmentTrimmer drops leading and trailing whitespace of a fragment
// sequence without buffering the text in between, so the joined output
// equals strings.TrimSpace of the joined input.
type fragmentTrimmer struct {
	started bool
	pending string
}

func (t *fragmentTrimmer) push(fragment string) string {
	if !t.started {
		fragment = strings.TrimLeftFunc(fragment, unicode.IsSpace)
		if fragment == "" {
			return ""
		}
		t.started = true
	}
	fragment = t.pending + fragment
	body := strings.TrimRightFunc(fragment, unicode.IsSpace)
	t.pending = fragment[len(body):]
	return body
}

// streamStep runs one streamed model call, handing every text fragment to
// forward as it arrives.
func (a *Agent) streamStep(ctx context.Context, msgs []*schema.Message, forward func(string) error) (*schema.Message, error) {
	reader, err := a.model.Stream(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("%w: domain=%s: %v", contractx.ErrLLMBackend, a.domain, err)
	}
	defer reader.Close()

	var chunks []*schema.Message
	for {
		chunk, err := reader.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: domain=%s: %v", contractx.ErrLLMBackend, a.domain, err)
		}
		if chunk == nil {
			continue
		}
		chunks = append(chunks, chunk)
		if err := forward(chunk.Content); err != nil {
			return nil, err
		}
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: domain=%s: empty model stream", contractx.ErrSchemaViolation, a.domain)
	}
	out, err := schema.ConcatMessages(chunks)
	if err != nil {
		return nil, fmt.Errorf("%w: domain=%s: concat stream: %v", contractx.ErrSchemaViolation, a.domain, err)
	}
	return out, nil
}
