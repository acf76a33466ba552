package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed = fmt.Errorf("authentication failed")

	// Search errors. These never escape the search adapter; they classify outcomes.
	ErrQueryTimeout = fmt.Errorf("query timed out")
	ErrRedirect     = fmt.Errorf("search redirected")
	ErrMalformed    = fmt.Errorf("malformed search response")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")

	// Persistence errors
	ErrConversionNotFound = fmt.Errorf("conversion not found")

	// Job errors
	ErrJobNotFound       = fmt.Errorf("job not found")
	ErrInvalidTransition = fmt.Errorf("invalid job state transition")
	ErrCircuitOpen       = fmt.Errorf("circuit breaker: consecutive batch failures")
	ErrGlobalTimeout     = fmt.Errorf("global timeout exceeded")
	ErrBatchTimeout      = fmt.Errorf("batch deadline exceeded")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
