package tracker

import "errors"

// ErrResetInProgress rejects writes attempted while a reset is executing.
// The caller should retry; resets are rare and short.
var ErrResetInProgress = errors.New("reset in progress")

// ErrPersistenceDegraded is returned together with a valid identity id when
// the vector store could not be updated after a retry. The identity stays
// usable in-memory for the remainder of the session.
var ErrPersistenceDegraded = errors.New("persistence degraded")

// MalformedObservationError rejects an observation before it reaches
// matching; no identity is created or mutated.
type MalformedObservationError struct {
	Reason string
}

func (e *MalformedObservationError) Error() string {
	return "malformed observation: " + e.Reason
}

// IsMalformed reports whether err is a MalformedObservationError.
func IsMalformed(err error) bool {
	var m *MalformedObservationError
	return errors.As(err, &m)
}
