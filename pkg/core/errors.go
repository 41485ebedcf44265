package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidReport is the root of ingress validation errors.
	ErrInvalidReport  = errors.New("invalid report")
	ErrEmptyMachineID = fmt.Errorf("%w: machine id is required", ErrInvalidReport)

	// ErrStoreUnavailable wraps persistence failures surfaced to callers.
	ErrStoreUnavailable = errors.New("state store unavailable")
)
