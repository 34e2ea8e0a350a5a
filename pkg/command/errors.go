package command

import (
	"errors"
	"fmt"

	"github.com/jwebster45206/story-state/pkg/statepath"
)

// Execution-time failures. Syntax failures surface as
// statepath.ErrMalformedAddress.
var (
	ErrMissingParent   = errors.New("missing parent container")
	ErrTypeMismatch    = errors.New("type mismatch")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrFieldAbsent     = errors.New("field absent")
)

// Error ties a failure to the command that caused it. Index is the
// command's position in its batch, or -1 when applied on its own.
type Error struct {
	Index   int
	Command Command
	Err     error
}

func (e *Error) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s %s: %v", e.Command.Action, e.Command.Key, e.Err)
	}
	return fmt.Sprintf("command %d (%s %s): %v", e.Index, e.Command.Action, e.Command.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsMalformed reports whether err is an address syntax error.
func IsMalformed(err error) bool {
	return errors.Is(err, statepath.ErrMalformedAddress)
}

func stepError(kind error, p statepath.Path, depth int, detail string) error {
	at := statepath.Path(p[:depth+1]).String()
	if detail == "" {
		return fmt.Errorf("%w at %s", kind, at)
	}
	return fmt.Errorf("%w at %s: %s", kind, at, detail)
}
