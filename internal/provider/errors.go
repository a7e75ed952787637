package provider

import (
	"errors"
	"fmt"
)

var (
	// ErrPipelineNotFound indicates the pipeline doesn't exist on the platform
	ErrPipelineNotFound = errors.New("pipeline not found on platform")

	// ErrExecutionNotFound indicates the job execution doesn't exist
	ErrExecutionNotFound = errors.New("job execution not found on platform")

	// ErrUnauthorized indicates platform authentication failed
	ErrUnauthorized = errors.New("platform authentication failed")

	// ErrPlatformUnavailable indicates the platform is temporarily unavailable
	ErrPlatformUnavailable = errors.New("platform temporarily unavailable")
)

// PlatformError represents a platform-specific transport error
type PlatformError struct {
	Code    int
	Message string
	Err     error
}

func (e *PlatformError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("platform error %d: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("platform error %d: %s", e.Code, e.Message)
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}
