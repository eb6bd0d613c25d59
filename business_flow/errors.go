// Package businessflow contains the core business logic and use cases for
// pipeline run workflows.
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	ErrRunNotFound       = errors.New("pipeline run not found")
	ErrSourceFileMissing = errors.New("source file does not exist")
	ErrCategoryIDInvalid = errors.New("category id is not a valid uuid")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func IsRunNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound)
}

func IsSourceFileMissing(err error) bool {
	return errors.Is(err, ErrSourceFileMissing)
}
