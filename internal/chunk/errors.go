package chunk

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidContainer = errors.New("invalid paletted container")
	ErrInvalidSection   = errors.New("invalid chunk section data")
	ErrOutOfWorld       = errors.New("position outside of chunk bounds")
	ErrUnknownState     = errors.New("state id outside of registry")
)

// ContainerError describes why a paletted container could not be decoded.
type ContainerError struct {
	Reason string
}

func (e *ContainerError) Error() string {
	return "invalid paletted container: " + e.Reason
}

func (e *ContainerError) Is(target error) bool { return target == ErrInvalidContainer }

func containerErrorf(format string, args ...any) error {
	return &ContainerError{Reason: fmt.Sprintf(format, args...)}
}
