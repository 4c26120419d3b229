package types

import "errors"

// Failure classes for upstream sources. These never cross the exposed
// operations: each component absorbs them and degrades instead.
var (
	ErrSourceUnavailable  = errors.New("source unavailable")
	ErrMalformedResponse  = errors.New("malformed response")
	ErrCredentialsMissing = errors.New("credentials missing")
	ErrExhausted          = errors.New("exhausted")
)
