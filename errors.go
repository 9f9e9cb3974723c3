package protomap

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic error handling.
// Use errors.Is() to check for these error types.
var (
	// ErrItemNotFound is returned when an item is not found in DynamoDB operations.
	ErrItemNotFound = errors.New("item not found")

	// ErrStaticMismatch indicates a static column saw a value other than its configured constant.
	ErrStaticMismatch = errors.New("unexpected static value")

	// ErrMalformedValue indicates a prefixed column read a value lacking its prefix.
	ErrMalformedValue = errors.New("malformed value")

	// ErrInvalidCodec indicates a codec definition is neither a Codec nor a Codec constructor.
	ErrInvalidCodec = errors.New("invalid codec")

	// ErrInvalidValue indicates a codec was asked to encode or decode a value of the wrong type.
	ErrInvalidValue = errors.New("invalid value")

	// ErrUnknownColumn indicates a column reference did not resolve on the model.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrDuplicateColumn indicates a column name or storage name is already bound on the model.
	ErrDuplicateColumn = errors.New("duplicate column")

	// ErrMissingKey indicates a model has no hash key, or a key value was not provided.
	ErrMissingKey = errors.New("missing key")

	// ErrNoModel indicates no registered model could load an item.
	ErrNoModel = errors.New("no matching model")

	// ErrUnprocessedItems indicates DynamoDB kept rejecting batch writes until retries ran out.
	ErrUnprocessedItems = errors.New("unprocessed items")

	// ErrConditionFailed indicates a conditional write was rejected by DynamoDB.
	ErrConditionFailed = errors.New("condition failed")
)

// ValueError reports a value rejected by a transform codec.
// It wraps ErrStaticMismatch or ErrMalformedValue.
type ValueError struct {
	Err   error // Underlying sentinel error
	Value any   // The offending value
	Want  any   // The expected static value or prefix
}

func (e *ValueError) Error() string {
	switch {
	case errors.Is(e.Err, ErrStaticMismatch):
		return fmt.Sprintf("%s: got %v instead of static %v", e.Err.Error(), e.Value, e.Want)
	case errors.Is(e.Err, ErrMalformedValue):
		return fmt.Sprintf("%s: %v missing prefix %v", e.Err.Error(), e.Value, e.Want)
	}
	return fmt.Sprintf("%s: %v", e.Err.Error(), e.Value)
}

func (e *ValueError) Unwrap() error {
	return e.Err
}

// ColumnError reports a codec failure for a single column of a model.
type ColumnError struct {
	Model     string // Model name
	Column    string // Attribute name
	Operation string // encode or decode
	Err       error  // Original codec error
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("failed to %s %s.%s: %v", e.Operation, e.Model, e.Column, e.Err)
}

func (e *ColumnError) Unwrap() error {
	return e.Err
}
