package pipeline

import "errors"

// ErrWrongState is returned when an operation is attempted outside the
// state it is legal in (e.g. Write after Finish).
var ErrWrongState = errors.New("pipeline: operation not legal in current state")
