package domain

import (
	"errors"
	"fmt"
)

var (
	ErrJobNotFound  = errors.New("extraction job not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrTemporary    = errors.New("temporary failure")

	// Pipeline taxonomy. ErrPhaseParse fails the run fast: a partial
	// structure from the model is never trusted. ErrUploadFailed and
	// ErrModelService surface external-service failures; retry policy is
	// the caller's decision.
	ErrPhaseParse   = errors.New("model response parse failure")
	ErrUploadFailed = errors.New("document upload failed")
	ErrModelService = errors.New("model service failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
