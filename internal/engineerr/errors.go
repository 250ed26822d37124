// Package engineerr defines the typed error kinds shared across the
// attribute-selection engine.
package engineerr

import "fmt"

// Kind identifies a category of engine error.
type Kind string

const (
	// MissingMetadata is raised when a dataset lacks the mandatory index
	// columns (browser_id, time_of_collect).
	MissingMetadata Kind = "MISSING_METADATA"

	// DuplicateAttributeId is raised when adding an attribute id already
	// present in an AttributeSet.
	DuplicateAttributeId Kind = "DUPLICATE_ATTRIBUTE_ID"

	// KeyNotFound is raised on a lookup miss: an attribute id/name, or a
	// column absent from a view.
	KeyNotFound Kind = "KEY_NOT_FOUND"

	// ValueError is raised on an empty input where at least one row or
	// attribute is required (entropy, top-k share).
	ValueError Kind = "VALUE_ERROR"

	// IncorrectWeightDimensions is raised when a cost-measure weight map
	// does not have exactly the expected key set.
	IncorrectWeightDimensions Kind = "INCORRECT_WEIGHT_DIMENSIONS"

	// ExplorationNotRun is raised when an accessor is called before Run.
	ExplorationNotRun Kind = "EXPLORATION_NOT_RUN"

	// SensitivityThresholdUnreachable is raised when the feasibility check
	// fails, or when an accessor is called on an async run that failed it.
	SensitivityThresholdUnreachable Kind = "SENSITIVITY_THRESHOLD_UNREACHABLE"

	// InvalidParameter is raised for out-of-range construction parameters,
	// e.g. FPSelect's explored-paths count below 1.
	InvalidParameter Kind = "INVALID_PARAMETER"

	// TraceSchemaError is raised when a loaded trace has a type-mismatched
	// field; the error carries the offending field path.
	TraceSchemaError Kind = "TRACE_SCHEMA_ERROR"
)

// EngineError is the structured error returned by every package in this
// module. It carries a Kind for programmatic dispatch and wraps an optional
// cause.
type EngineError struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// New creates an EngineError of the given kind.
func New(kind Kind, format string, args ...interface{}) *EngineError {
	return &EngineError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an EngineError of the given kind around a cause.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *EngineError {
	return &EngineError{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether err is an EngineError of the given kind.
func Is(err error, kind Kind) bool {
	var engErr *EngineError
	for err != nil {
		if e, ok := err.(*EngineError); ok {
			engErr = e
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return engErr != nil && engErr.Kind == kind
}
