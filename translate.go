package hnx

import (
	"context"
	"errors"
)

// Domain selects how a syscall reports its result.
type Domain uint8

const (
	// DomainInternal results are 0 or a negative Status.
	DomainInternal Domain = iota
	// DomainPosix results are 0 or a positive Errno.
	DomainPosix
)

func (d Domain) String() string {
	switch d {
	case DomainInternal:
		return "internal"
	case DomainPosix:
		return "posix"
	}
	return "unknown"
}

var toPosix = map[Status]Errno{
	OK:                  ESUCCESS,
	ErrInternal:         EIO,
	ErrNotSupported:     ENOSYS,
	ErrNoResources:      EMFILE,
	ErrNoMemory:         ENOMEM,
	ErrInvalidArgs:      EINVAL,
	ErrBadHandle:        EBADF,
	ErrWrongType:        EBADF,
	ErrBadState:         EBUSY,
	ErrTimeout:          EAGAIN,
	ErrShouldWait:       EAGAIN,
	ErrCanceled:         EINTR,
	ErrPeerClosed:       EPIPE,
	ErrNotFound:         ENOENT,
	ErrAlreadyExists:    EEXIST,
	ErrPermissionDenied: EACCES,
	ErrAbiMismatch:      ENOEXEC,
}

var toInternal = map[Errno]Status{
	ESUCCESS:  OK,
	EIO:       ErrInternal,
	ENOSYS:    ErrNotSupported,
	EMFILE:    ErrNoResources,
	ENFILE:    ErrNoResources,
	ENOMEM:    ErrNoMemory,
	EINVAL:    ErrInvalidArgs,
	EBADF:     ErrBadHandle,
	EBUSY:     ErrBadState,
	EAGAIN:    ErrTimeout,
	ETIMEDOUT: ErrTimeout,
	EINTR:     ErrCanceled,
	EPIPE:     ErrPeerClosed,
	ENOENT:    ErrNotFound,
	ESRCH:     ErrNotFound,
	EEXIST:    ErrAlreadyExists,
	EACCES:    ErrPermissionDenied,
	EPERM:     ErrPermissionDenied,
	ENOTDIR:   ErrInvalidArgs,
	EISDIR:    ErrInvalidArgs,
	EFAULT:    ErrInvalidArgs,
	E2BIG:     ErrInvalidArgs,
	ERANGE:    ErrInvalidArgs,
	ENOEXEC:   ErrInvalidArgs,
}

// ToPosix maps an internal status to its POSIX errno. Statuses without a
// natural counterpart map to EIO.
func ToPosix(s Status) Errno {
	if e, ok := toPosix[s]; ok {
		return e
	}
	return EIO
}

// ToInternal maps a POSIX errno to its internal status. Errnos without a
// natural counterpart map to ErrInternal.
func ToInternal(e Errno) Status {
	if s, ok := toInternal[e]; ok {
		return s
	}
	return ErrInternal
}

// StatusOf reduces any error returned by a handler to an internal status.
func StatusOf(err error) Status {
	if err == nil {
		return OK
	}
	var s Status
	if errors.As(err, &s) {
		if s.Known() {
			return s
		}
		return ErrInternal
	}
	var e Errno
	if errors.As(err, &e) {
		return ToInternal(e)
	}
	switch {
	case errors.Is(err, context.Canceled):
		return ErrCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	}
	return ErrInternal
}

// Encode renders err as a raw result code in the given domain.
func Encode(d Domain, err error) int32 {
	s := StatusOf(err)
	if d == DomainPosix {
		return int32(ToPosix(s))
	}
	return int32(s)
}
