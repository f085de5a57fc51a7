package memory

import (
	"testing"

	"github.com/cloudwego/eino/schema"
)

func TestBufferAppendKeepsOrder(t *testing.T) {
	t.Parallel()

	b := NewBuffer(0)
	b.Append("hi", "hello")
	b.Append("find john", "found 1 contact")

	turns := b.Turns()
	if len(turns) != 2 || turns[0].User != "hi" || turns[1].Assistant != "found 1 contact" {
		t.Fatalf("unexpected turns: %#v", turns)
	}

	msgs := b.Messages()
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	if msgs[0].Role != schema.User || msgs[1].Role != schema.Assistant || msgs[2].Content != "find john" {
		t.Fatalf("unexpected messages: %#v", msgs)
	}
}

func TestBufferWindowDoesNotDropTurns(t *testing.T) {
	t.Parallel()

	b := NewBuffer(1)
	b.Append("a", "1")
	b.Append("b", "2")

	msgs := b.Messages()
	if len(msgs) != 2 || msgs[0].Content != "b" {
		t.Fatalf("unexpected window: %#v", msgs)
	}
	if b.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", b.Len())
	}
}

func TestTurnsReturnsCopy(t *testing.T) {
	t.Parallel()

	b := NewBuffer(0)
	b.Append("a", "1")
	turns := b.Turns()
	turns[0].User = "changed"
	if b.Turns()[0].User != "a" {
		t.Fatal("Turns() must not expose internal storage")
	}
}
