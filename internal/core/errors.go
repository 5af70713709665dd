package core

import (
	"errors"
	"fmt"
)

// ErrDeclined is returned when the user does not confirm a command.
var ErrDeclined = errors.New("cancelled by user")

// Reason identifies which local check rejected a command.
type Reason int

const (
	ReasonNoTransport Reason = iota + 1
	ReasonEmptyFolderName
	ReasonNoSourceName
	ReasonNoDestinationName
	ReasonDestinationNotDirectory
	ReasonInPlaceMove
	ReasonSamePath
)

var reasonMessages = map[Reason]string{
	ReasonNoTransport:             "not connected to the node",
	ReasonEmptyFolderName:         "no folder name",
	ReasonNoSourceName:            "no file name",
	ReasonNoDestinationName:       "no destination name",
	ReasonDestinationNotDirectory: "destination is not a directory",
	ReasonInPlaceMove:             "cannot move a file in-place",
	ReasonSamePath:                "source and destination are the same path",
}

func (r Reason) String() string {
	if msg, ok := reasonMessages[r]; ok {
		return msg
	}
	return fmt.Sprintf("reason(%d)", int(r))
}

// PreconditionError is returned when a command fails local validation.
// Nothing has been sent when it is seen.
type PreconditionError struct {
	Command string
	Reason  Reason
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Command, e.Reason)
}

// IsPrecondition reports whether err is a PreconditionError, optionally
// matching one of reasons.
func IsPrecondition(err error, reasons ...Reason) bool {
	var pe *PreconditionError
	if !errors.As(err, &pe) {
		return false
	}
	if len(reasons) == 0 {
		return true
	}
	for _, r := range reasons {
		if pe.Reason == r {
			return true
		}
	}
	return false
}
