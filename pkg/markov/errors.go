package markov

import (
	"errors"
	"fmt"
)

// ErrEmptyModel is returned when generation is requested without a seed and
// the model's chain table has no contexts to start from.
var ErrEmptyModel = errors.New("markov: model has no trained contexts")

// ErrMalformedSnapshot is returned (wrapped, with detail) when persisted
// model data fails structural validation on load. The load fails atomically;
// no partially-populated model is ever returned.
var ErrMalformedSnapshot = errors.New("markov: malformed model snapshot")

// ValidationError reports an invalid model or generation parameter. It is
// returned before any training or generation work begins.
type ValidationError struct {
	Param  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("markov: invalid %s: %s", e.Param, e.Reason)
}

func validationErr(param, format string, args ...any) error {
	return &ValidationError{Param: param, Reason: fmt.Sprintf(format, args...)}
}
