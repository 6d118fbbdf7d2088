package models

import "errors"

// Error taxonomy shared by clients, the caller and the front-ends.
// Concrete errors wrap one of these and are matched with errors.Is.
var (
	ErrTransport             = errors.New("transport error")
	ErrRateLimited           = errors.New("rate limited")
	ErrNotFound              = errors.New("not found")
	ErrMalformedResponse     = errors.New("malformed response")
	ErrAllProvidersExhausted = errors.New("all providers exhausted")
	ErrNoProviderConfigured  = errors.New("no provider configured")
	ErrInvalidQuery          = errors.New("invalid query")
)
