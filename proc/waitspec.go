package proc

import "github.com/sanjaysanjel019/serenity/defs"

type Wskind_t int

const (
	WS_ANY Wskind_t = iota
	WS_PID
	// process group and uid filters; rejected at resolution
	WS_UNSUPPORTED
)

// Waitspec_t says which children a wait is for and which of their state
// changes it wants to hear about.
type Waitspec_t struct {
	Kind Wskind_t
	// defs.WAIT_ANY unless Kind is WS_PID
	Target  int
	Options int
}

func (ws Waitspec_t) Noblock() bool {
	return ws.Options&defs.WNOHANG != 0
}

func (ws Waitspec_t) wants(c Wcause_t) bool {
	switch c {
	case W_EXITED:
		return ws.Options&defs.WEXITED != 0
	case W_STOPPED:
		return ws.Options&defs.WSTOPPED != 0
	case W_CONTINUED:
		return ws.Options&defs.WCONTINUED != 0
	case W_GONE:
		return ws.Kind == WS_PID
	case W_NOCHILD:
		return ws.Kind == WS_ANY
	}
	return false
}

func (ws Waitspec_t) matches(ev wevent_t) bool {
	switch ws.Kind {
	case WS_ANY:
	case WS_PID:
		if ws.Target != ev.pid {
			return false
		}
	default:
		return false
	}
	return ws.wants(ev.cause)
}

// Waitspec resolves a waitid (idtype, id, options) triple for caller p. a
// specific pid must name an existing child of p right now, since a pid that
// does not exist can never satisfy the wait later. exits are reported when
// no report class is requested.
func (pt *Ptable_t) Waitspec(p *Proc_t, idtype, id, options int) (Waitspec_t, defs.Err_t) {
	var zs Waitspec_t
	if options&^defs.WOPTMASK != 0 {
		return zs, -defs.EINVAL
	}
	if options&(defs.WEXITED|defs.WSTOPPED|defs.WCONTINUED) == 0 {
		options |= defs.WEXITED
	}
	switch idtype {
	case defs.P_ALL:
		return Waitspec_t{Kind: WS_ANY, Target: defs.WAIT_ANY, Options: options}, 0
	case defs.P_PID:
		// no waiting for yourself!
		if id == p.Pid {
			return zs, -defs.ECHILD
		}
		pt.Lock()
		c, ok := pt.procs[id]
		ischild := ok && c.Ppid == p.Pid
		pt.Unlock()
		if !ischild {
			return zs, -defs.ECHILD
		}
		return Waitspec_t{Kind: WS_PID, Target: id, Options: options}, 0
	default:
		// no process group or uid filters
		return Waitspec_t{Kind: WS_UNSUPPORTED}, -defs.EINVAL
	}
}
