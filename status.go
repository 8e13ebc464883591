package hnx

import "strconv"

// Status is an internal (Zircon style) status code. OK is 0 and failures are
// strictly negative.
type Status int32

const (
	OK                  Status = 0
	ErrInternal         Status = -1
	ErrNotSupported     Status = -2
	ErrNoResources      Status = -3
	ErrNoMemory         Status = -4
	ErrInvalidArgs      Status = -10
	ErrBadHandle        Status = -11
	ErrWrongType        Status = -12
	ErrBadState         Status = -13
	ErrTimeout          Status = -14
	ErrShouldWait       Status = -15
	ErrCanceled         Status = -16
	ErrPeerClosed       Status = -17
	ErrNotFound         Status = -18
	ErrAlreadyExists    Status = -19
	ErrPermissionDenied Status = -30

	// ErrAbiMismatch is raised only by the version gate.
	ErrAbiMismatch Status = -40
)

var statusNames = map[Status]string{
	OK:                  "ZX_OK",
	ErrInternal:         "ZX_ERR_INTERNAL",
	ErrNotSupported:     "ZX_ERR_NOT_SUPPORTED",
	ErrNoResources:      "ZX_ERR_NO_RESOURCES",
	ErrNoMemory:         "ZX_ERR_NO_MEMORY",
	ErrInvalidArgs:      "ZX_ERR_INVALID_ARGS",
	ErrBadHandle:        "ZX_ERR_BAD_HANDLE",
	ErrWrongType:        "ZX_ERR_WRONG_TYPE",
	ErrBadState:         "ZX_ERR_BAD_STATE",
	ErrTimeout:          "ZX_ERR_TIMEOUT",
	ErrShouldWait:       "ZX_ERR_SHOULD_WAIT",
	ErrCanceled:         "ZX_ERR_CANCELED",
	ErrPeerClosed:       "ZX_ERR_PEER_CLOSED",
	ErrNotFound:         "ZX_ERR_NOT_FOUND",
	ErrAlreadyExists:    "ZX_ERR_ALREADY_EXISTS",
	ErrPermissionDenied: "ZX_ERR_PERMISSION_DENIED",
	ErrAbiMismatch:      "ZX_ERR_ABI_MISMATCH",
}

func (s Status) Error() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "status " + strconv.Itoa(int(s))
}

// Known reports whether s belongs to the fixed internal status set.
func (s Status) Known() bool {
	_, ok := statusNames[s]
	return ok
}
