package engine

import (
	"fmt"
	"strings"

	"taskflow/internal/workflow/types"
)

// Kind classifies an action failure.
type Kind int

const (
	// KindInput is a malformed or contradictory action. Never retried.
	KindInput Kind = iota
	// KindRun means the executor failed.
	KindRun
	// KindValidator means a validator expression evaluated to false.
	KindValidator
	// KindValidatorUnexpected means a validator expression could not be evaluated.
	KindValidatorUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindRun:
		return "run"
	case KindValidator:
		return "validator"
	case KindValidatorUnexpected:
		return "validator-unexpected"
	}
	return "unknown"
}

// ActionError is returned when an action fails.
type ActionError struct {
	Kind      Kind
	Action    string
	Message   string
	Validator *types.Validator // set for KindValidator
	Err       error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s\nThe action in progress was %q.", e.Message, e.Action)
}

func (e *ActionError) Unwrap() error { return e.Err }

func actionErrorf(kind Kind, a *types.Action, format string, args ...interface{}) *ActionError {
	return &ActionError{Kind: kind, Action: a.Name, Message: fmt.Sprintf(format, args...)}
}

// TaskError is a task-level failure: a bad task definition or a failed
// action re-raised at the task boundary.
type TaskError struct {
	Task    string
	Message string
	Err     error
}

func (e *TaskError) Error() string { return e.Message }

func (e *TaskError) Unwrap() error { return e.Err }

// AggregateError reports that one or more branches of an async task failed.
// Each branch failure has already been printed when this is returned.
type AggregateError struct {
	Task string
	Errs []error
}

func (e *AggregateError) Error() string {
	msgs := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		msgs = append(msgs, err.Error())
	}
	return "Async task set failed.\n" + strings.Join(msgs, "\n")
}

func (e *AggregateError) Unwrap() []error { return e.Errs }

// isKind inspects only the top-level error. A validator failure nested inside
// a hook's task error is not a validator failure of the action itself.
func isKind(err error, kind Kind) bool {
	ae, ok := err.(*ActionError)
	return ok && ae.Kind == kind
}

func isValidatorFailure(err error) bool {
	return isKind(err, KindValidator)
}
