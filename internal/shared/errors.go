package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig       = fmt.Errorf("configuration not found")
	ErrInvalidConfig       = fmt.Errorf("invalid configuration")
	ErrUnknownStoreDriver  = fmt.Errorf("unknown store driver")
	ErrBadFeatureConstants = fmt.Errorf("bad feature constants")

	// Payload and persistence errors
	ErrMalformedPayload = fmt.Errorf("malformed payload")
	ErrBlobNotFound     = fmt.Errorf("blob not found")
	ErrStoreFailure     = fmt.Errorf("store operation failed")

	// Service and transport errors
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrForwardingDisabled = fmt.Errorf("forwarding transport not configured")
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrTimeout            = fmt.Errorf("operation timed out")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
