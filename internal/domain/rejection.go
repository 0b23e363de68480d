package domain

import (
	"errors"
	"fmt"
)

// Rejection is a validation failure for a single transaction. It is
// always recoverable: the orchestrator records a skipped transaction
// and moves on to the next one. Anything else coming out of a handler
// is treated as an unexpected failure and goes through the peer
// consensus check.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string {
	return r.Reason
}

// Rejectf builds a Rejection with a formatted reason.
func Rejectf(format string, args ...any) *Rejection {
	return &Rejection{Reason: fmt.Sprintf(format, args...)}
}

// IsRejection reports whether err is (or wraps) a validation rejection.
func IsRejection(err error) bool {
	var r *Rejection
	return errors.As(err, &r)
}
