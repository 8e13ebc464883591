package hnx

import "strconv"

// Errno is a POSIX error number. Success is 0 and failures are strictly positive.
type Errno int32

const (
	ESUCCESS Errno = iota
	EPERM
	ENOENT
	ESRCH
	EINTR
	EIO
	ENXIO
	E2BIG
	ENOEXEC
	EBADF
	ECHILD // 10
	EAGAIN
	ENOMEM
	EACCES
	EFAULT
	ENOTBLK
	EBUSY
	EEXIST
	EXDEV
	ENODEV
	ENOTDIR // 20
	EISDIR
	EINVAL
	ENFILE
	EMFILE
	ENOTTY
	ETXTBSY
	EFBIG
	ENOSPC
	ESPIPE
	EROFS // 30
	EMLINK
	EPIPE
	EDOM
	ERANGE

	ENOSYS    Errno = 38
	ETIMEDOUT Errno = 110
)

var errnoNames = [...]string{
	ESUCCESS: "success",
	EPERM:    "operation not permitted",
	ENOENT:   "no such file or directory",
	ESRCH:    "no such process",
	EINTR:    "interrupted system call",
	EIO:      "input/output error",
	ENXIO:    "no such device or address",
	E2BIG:    "argument list too long",
	ENOEXEC:  "exec format error",
	EBADF:    "bad file descriptor",
	ECHILD:   "no child processes",
	EAGAIN:   "resource temporarily unavailable",
	ENOMEM:   "cannot allocate memory",
	EACCES:   "permission denied",
	EFAULT:   "bad address",
	ENOTBLK:  "block device required",
	EBUSY:    "device or resource busy",
	EEXIST:   "file exists",
	EXDEV:    "invalid cross-device link",
	ENODEV:   "no such device",
	ENOTDIR:  "not a directory",
	EISDIR:   "is a directory",
	EINVAL:   "invalid argument",
	ENFILE:   "too many open files in system",
	EMFILE:   "too many open files",
	ENOTTY:   "inappropriate ioctl for device",
	ETXTBSY:  "text file busy",
	EFBIG:    "file too large",
	ENOSPC:   "no space left on device",
	ESPIPE:   "illegal seek",
	EROFS:    "read-only file system",
	EMLINK:   "too many links",
	EPIPE:    "broken pipe",
	EDOM:     "numerical argument out of domain",
	ERANGE:   "numerical result out of range",
}

func (e Errno) Error() string {
	if e >= 0 && int(e) < len(errnoNames) {
		return errnoNames[e]
	}
	switch e {
	case ENOSYS:
		return "function not implemented"
	case ETIMEDOUT:
		return "connection timed out"
	}
	return "errno " + strconv.Itoa(int(e))
}
