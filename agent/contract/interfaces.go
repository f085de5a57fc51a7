package contract

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// Classifier maps a message to exactly one domain.
type Classifier interface {
	Classify(ctx context.Context, message string) (Domain, error)
}

// DomainAgent answers messages that belong to a single domain.
type DomainAgent interface {
	Handle(ctx context.Context, message string) (string, error)
}

// StreamingAgent is a DomainAgent that can also deliver its answer in fragments.
// The reader is finite and must be drained or closed by the caller.
type StreamingAgent interface {
	DomainAgent
	Stream(ctx context.Context, message string) (*schema.StreamReader[string], error)
}

// RecordStore is the remote business-data system. Search takes an Odoo style
// domain filter, e.g. []any{[]any{"name", "ilike", "john"}}.
type RecordStore interface {
	Search(ctx context.Context, model string, domain []any) ([]int64, error)
	Read(ctx context.Context, model string, ids []int64) ([]Record, error)
	Create(ctx context.Context, model string, fields map[string]any) (int64, error)
	Write(ctx context.Context, model string, ids []int64, fields map[string]any) error
	CheckAccess(ctx context.Context, model string, right string) error
}

// ActionRecorder receives every action the agents execute.
type ActionRecorder interface {
	RecordAction(ctx context.Context, domain Domain, req ActionRequest, res ActionResult) error
}
