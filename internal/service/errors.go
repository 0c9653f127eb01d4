package service

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownCamera       = errors.New("unknown camera")
	ErrUnauthorized        = errors.New("invalid report token")
	ErrMissingImage        = errors.New("no image attached")
	ErrInvalidReport       = errors.New("invalid occupancy report")
	ErrOccupancyOutOfRange = errors.New("free spots must be between 0 and the lot capacity")
	ErrInvalidCameraConfig = errors.New("camera config must be valid JSON")
	ErrInvalidReference    = errors.New("referenced parking lot does not exist")
	ErrMalformedResponse   = errors.New("inference service returned a malformed response")
)

// InferenceServiceError means the inference service answered with a
// non-2xx status. Status and Body are safe to show to the caller.
type InferenceServiceError struct {
	Status int
	Body   string
}

func (e *InferenceServiceError) Error() string {
	return fmt.Sprintf("inference service returned %d: %s", e.Status, e.Body)
}

// InferenceTransportError means the inference service could not be reached
// (timeout, refused connection, DNS, open circuit). Message is for logs only.
type InferenceTransportError struct {
	Message string
	Err     error
}

func (e *InferenceTransportError) Error() string {
	return "inference transport failure: " + e.Message
}

func (e *InferenceTransportError) Unwrap() error {
	return e.Err
}

// StorageError wraps a failure to persist a camera image.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string {
	return "storing image: " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether a forward failure may succeed on a retry.
// Upstream rejections are final; transport failures are not.
func IsRetryable(err error) bool {
	var transportErr *InferenceTransportError
	return errors.As(err, &transportErr)
}
