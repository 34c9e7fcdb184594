package defs

import "golang.org/x/sys/unix"

const (
	EPERM  Err_t = 1
	ESRCH  Err_t = 3
	EINTR  Err_t = 4
	ECHILD Err_t = 10
	EAGAIN Err_t = 11
	ENOMEM Err_t = 12
	EFAULT Err_t = 14
	EINVAL Err_t = 22
	ENOSYS Err_t = 38
)

// a waitid with WNOHANG found no child in a reportable state.
const ENOCHILDREADY = EAGAIN

// Err_t is a kernel error code. kernel paths return it negated, 0 means
// success.
type Err_t int

func (e Err_t) Error() string {
	return e.Errno().Error()
}

// Errno returns the positive errno number of e.
func (e Err_t) Errno() unix.Errno {
	if e < 0 {
		return unix.Errno(-e)
	}
	return unix.Errno(e)
}
