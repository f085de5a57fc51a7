package memory

import (
	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/odoo-assistant/agent/contract"
)

// Buffer is the ordered, append-only conversation memory of one agent.
// It is not safe for concurrent use; callers serialise access per agent.
type Buffer struct {
	turns    []contractx.Turn
	maxTurns int
}

// NewBuffer returns an empty buffer. maxTurns > 0 limits how many of the most
// recent turns Messages returns; all turns are kept regardless.
func NewBuffer(maxTurns int) *Buffer {
	return &Buffer{maxTurns: maxTurns}
}

func (b *Buffer) Append(user, assistant string) {
	b.turns = append(b.turns, contractx.Turn{User: user, Assistant: assistant})
}

func (b *Buffer) Len() int {
	return len(b.turns)
}

// Turns returns a copy of every recorded turn, oldest first.
func (b *Buffer) Turns() []contractx.Turn {
	out := make([]contractx.Turn, len(b.turns))
	copy(out, b.turns)
	return out
}

// Messages renders the history window as alternating user/assistant messages.
func (b *Buffer) Messages() []*schema.Message {
	turns := b.turns
	if b.maxTurns > 0 && len(turns) > b.maxTurns {
		turns = turns[len(turns)-b.maxTurns:]
	}
	out := make([]*schema.Message, 0, len(turns)*2)
	for _, t := range turns {
		out = append(out, schema.UserMessage(t.User), schema.AssistantMessage(t.Assistant, nil))
	}
	return out
}
