package core

import "errors"

// Error taxonomy surfaced by the API. Anything that does not match one of
// these is treated as an internal failure.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidInput = errors.New("invalid input")
)

// InvalidInput wraps err so that errors.Is(err, ErrInvalidInput) holds while
// the original cause stays reachable.
func InvalidInput(err error) error {
	if err == nil {
		return nil
	}
	return &inputError{err: err}
}

type inputError struct {
	err error
}

func (e *inputError) Error() string {
	return ErrInvalidInput.Error() + ": " + e.err.Error()
}

func (e *inputError) Is(target error) bool {
	return target == ErrInvalidInput
}

func (e *inputError) Unwrap() error {
	return e.err
}

// InputReason describes why input was rejected, without any wrapping
// context added on the way up.
func InputReason(err error) string {
	var ie *inputError
	if errors.As(err, &ie) {
		return ie.err.Error()
	}
	return ErrInvalidInput.Error()
}
