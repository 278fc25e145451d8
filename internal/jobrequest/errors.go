package jobrequest

import (
	"errors"
	"fmt"
)

// ErrValidation is the root of every client-side validation failure. None of these
// errors ever reach the network; the user corrects the input and resubmits.
var ErrValidation = errors.New("invalid job request")

var (
	ErrMissingFile     = fmt.Errorf("%w: a CSV file is required", ErrValidation)
	ErrInvalidScenario = fmt.Errorf("%w: scenario must be explicit_geometry or sparse_geometry", ErrValidation)
	ErrMissingColumn   = fmt.Errorf("%w: column selection missing", ErrValidation)
	ErrUnknownColumn   = fmt.Errorf("%w: column not in CSV header", ErrValidation)
	ErrMissingSpacing  = fmt.Errorf("%w: station spacing must be a positive number for sparse geometry", ErrValidation)
)

// Column identifies one of the three column selections.
type Column string

const (
	ColumnX     Column = "x_column"
	ColumnY     Column = "y_column"
	ColumnValue Column = "value_column"
)

// MissingColumnError reports which column selection was left empty.
type MissingColumnError struct {
	Which Column
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s is required", e.Which)
}

func (e *MissingColumnError) Unwrap() error { return ErrMissingColumn }

// UnknownColumnError reports a selection that is not among the parsed headers.
type UnknownColumnError struct {
	Which  Column
	Column string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("%s %q is not a column of the uploaded CSV", e.Which, e.Column)
}

func (e *UnknownColumnError) Unwrap() error { return ErrUnknownColumn }
