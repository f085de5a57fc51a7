package contract

import "errors"

var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrPromptMissing   = errors.New("required prompt is missing")
	ErrValidation      = errors.New("validation failed")
	ErrInvalidMessage  = errors.New("invalid message")

	ErrPermission       = errors.New("permission denied")
	ErrNotFound         = errors.New("record not found")
	ErrConnection       = errors.New("record store unreachable")
	ErrRemoteFault      = errors.New("record store rejected the request")
	ErrLLMBackend       = errors.New("language model backend failed")
	ErrEmbeddingService = errors.New("embedding service failed")
	ErrUnknownAction    = errors.New("unknown action")
)

// IsActionError reports whether err is a failure that an agent reports back
// to the user instead of aborting the turn.
func IsActionError(err error) bool {
	return errors.Is(err, ErrPermission) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConnection) ||
		errors.Is(err, ErrRemoteFault) ||
		errors.Is(err, ErrUnknownAction) ||
		errors.Is(err, ErrValidation)
}
