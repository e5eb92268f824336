package event

import (
	"errors"
	"fmt"
)

// maxCauseChain caps how many wrapped causes are recorded per error.
const maxCauseChain = 5

// ProviderError carries provider-specific context (HTTP status, provider
// name) through an error chain so EmitError can surface it structurally.
// The rendering pipeline wraps provider call failures in this type.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: status %d", e.Provider, e.StatusCode)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NormalizeError flattens an arbitrary error into a structured payload:
// top-level message, the unwrap chain capped at maxCauseChain entries, and
// provider fields when a ProviderError is anywhere in the chain.
func NormalizeError(err error) map[string]any {
	if err == nil {
		return map[string]any{"message": "unknown error"}
	}

	p := map[string]any{"message": err.Error()}

	var causes []string
	for cause := errors.Unwrap(err); cause != nil && len(causes) < maxCauseChain; cause = errors.Unwrap(cause) {
		causes = append(causes, cause.Error())
	}
	if len(causes) > 0 {
		p["causes"] = causes
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		p["provider"] = provErr.Provider
		p["http_status"] = provErr.StatusCode
	}
	return p
}
