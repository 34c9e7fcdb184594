package defs

import "github.com/sanjaysanjel019/serenity/util"

const (
	SYS_GETPID  = 39
	SYS_EXIT    = 60
	SYS_KILL    = 62
	SYS_GETPPID = 110
	SYS_WAITID  = 247

	PROT_NONE  = 0x0
	PROT_READ  = 0x1
	PROT_WRITE = 0x2

	// waitid idtypes
	P_ALL  = 0
	P_PID  = 1
	P_PGID = 2

	// waitid options
	WNOHANG    = 0x1
	WUNTRACED  = 0x2
	WSTOPPED   = WUNTRACED
	WEXITED    = 0x4
	WCONTINUED = 0x8
	WOPTMASK   = WNOHANG | WSTOPPED | WEXITED | WCONTINUED

	// SIGCHLD si_code values
	CLD_EXITED    = 1
	CLD_KILLED    = 2
	CLD_DUMPED    = 3
	CLD_TRAPPED   = 4
	CLD_STOPPED   = 5
	CLD_CONTINUED = 6
)

// layout of the waitid parameter block in user memory
const (
	WP_IDTYPE  = 0
	WP_ID      = 4
	WP_INFOP   = 8
	WP_OPTIONS = 16
	WPSIZE     = 24
)

type Waitid_params_t struct {
	Idtype  int
	Id      int
	Infop   int
	Options int
}

func (wp *Waitid_params_t) Decode(b []uint8) {
	if len(b) < WPSIZE {
		panic("short params")
	}
	wp.Idtype = int(int32(util.Readn(b, 4, WP_IDTYPE)))
	wp.Id = int(int32(util.Readn(b, 4, WP_ID)))
	wp.Infop = util.Readn(b, 8, WP_INFOP)
	wp.Options = int(int32(util.Readn(b, 4, WP_OPTIONS)))
}

func (wp *Waitid_params_t) Encode() []uint8 {
	ret := make([]uint8, WPSIZE)
	util.Writen(ret, 4, WP_IDTYPE, wp.Idtype)
	util.Writen(ret, 4, WP_ID, wp.Id)
	util.Writen(ret, 8, WP_INFOP, wp.Infop)
	util.Writen(ret, 4, WP_OPTIONS, wp.Options)
	return ret
}

// layout of siginfo_t in user memory
const (
	SI_SIGNO  = 0
	SI_CODE   = 4
	SI_PID    = 8
	SI_UID    = 12
	SI_ADDR   = 16
	SI_STATUS = 24
	SI_VALUE  = 32
	SISIZE    = 40
)

// the status record returned by waitid. it is built fresh for every wait
// and never stored by the kernel.
type Siginfo_t struct {
	Signo  int
	Code   int
	Pid    int
	Uid    int
	Status int
}

func (si *Siginfo_t) Bytes() []uint8 {
	ret := make([]uint8, SISIZE)
	util.Writen(ret, 4, SI_SIGNO, si.Signo)
	util.Writen(ret, 4, SI_CODE, si.Code)
	util.Writen(ret, 4, SI_PID, si.Pid)
	util.Writen(ret, 4, SI_UID, si.Uid)
	util.Writen(ret, 4, SI_STATUS, si.Status)
	return ret
}

func (si *Siginfo_t) Decode(b []uint8) {
	if len(b) < SISIZE {
		panic("short siginfo")
	}
	si.Signo = int(int32(util.Readn(b, 4, SI_SIGNO)))
	si.Code = int(int32(util.Readn(b, 4, SI_CODE)))
	si.Pid = int(int32(util.Readn(b, 4, SI_PID)))
	si.Uid = util.Readn(b, 4, SI_UID)
	si.Status = int(int32(util.Readn(b, 4, SI_STATUS)))
}

func Cldstr(code int) string {
	switch code {
	case CLD_EXITED:
		return "exited"
	case CLD_KILLED:
		return "killed"
	case CLD_DUMPED:
		return "dumped"
	case CLD_TRAPPED:
		return "trapped"
	case CLD_STOPPED:
		return "stopped"
	case CLD_CONTINUED:
		return "continued"
	}
	return "unknown"
}
