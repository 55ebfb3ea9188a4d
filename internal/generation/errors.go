package generation

import "errors"

// Common errors returned by the generation package
var (
	// ErrGenerationFailed is returned when a generate call fails for a reason
	// that is neither transient nor one of the more specific cases below
	ErrGenerationFailed = errors.New("failed to generate answer")

	// ErrInvalidResponse is returned when the remote response cannot be used
	// (no candidates, empty content)
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when the remote service blocks the content
	// via its safety filters; never retried
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrTransientFailure is returned for temporary errors (network failures,
	// overload/rate-limit responses) that might resolve on retry
	ErrTransientFailure = errors.New("transient error from language model")

	// ErrCacheContentTooSmall is returned when the document is below the
	// provider-defined minimum size for a context cache
	ErrCacheContentTooSmall = errors.New("content below minimum size for context cache")

	// ErrCacheNotFound is returned when deleting a cache that no longer exists,
	// most commonly because it already expired server-side
	ErrCacheNotFound = errors.New("context cache not found")

	// ErrInvalidConfig is returned when the remote client configuration is invalid
	ErrInvalidConfig = errors.New("invalid generation client configuration")
)
