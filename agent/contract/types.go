package contract

import "strings"

// Domain is the label the classifier assigns to a message.
type Domain string

const (
	DomainCRM        Domain = "crm"
	DomainAccounting Domain = "accounting"
)

func (d Domain) String() string {
	return string(d)
}

// ParseDomain normalises a configured domain name.
func ParseDomain(raw string) Domain {
	return Domain(strings.ToLower(strings.TrimSpace(raw)))
}

// Record is one remote record as returned by a read.
type Record = map[string]any

// Access rights checked before a mutation.
const (
	RightRead   = "read"
	RightCreate = "create"
	RightWrite  = "write"
)

// ActionRequest is an action call emitted by the model.
type ActionRequest struct {
	CallID string         `json:"call_id,omitempty"`
	Name   string         `json:"name"`
	Args   map[string]any `json:"args,omitempty"`
}

// ActionResult is what an action returned, or why it failed.
type ActionResult struct {
	Name   string `json:"name"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (r ActionResult) Failed() bool {
	return r.Error != ""
}

// Turn is one exchange held in an agent's conversation memory.
type Turn struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}
