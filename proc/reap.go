package proc

import "fmt"

import "github.com/sanjaysanjel019/serenity/defs"
import "github.com/sanjaysanjel019/serenity/stats"

// Reap consumes zombie p: it builds p's final status, removes p from the
// ptable and releases p's slot in its parent's wait queue. the ptable lock
// must be held. reaping twice means the ptable is corrupt.
func (pt *Ptable_t) Reap(p *Proc_t) defs.Siginfo_t {
	pt.lockassert()
	return pt._reap(p)
}

func (pt *Ptable_t) _reap(p *Proc_t) defs.Siginfo_t {
	if p.reaped {
		panic(fmt.Sprintf("pid %v reaped twice", p.Pid))
	}
	if !p.dead {
		panic(fmt.Sprintf("pid %v reaped alive", p.Pid))
	}
	si := defs.Siginfo_t{
		Signo: defs.SIGCHLD,
		Pid:   p.Pid,
		Uid:   p.Uid,
	}
	switch {
	case p.termsig != 0 && p.coredump:
		si.Code = defs.CLD_DUMPED
		si.Status = p.termsig
	case p.termsig != 0:
		si.Code = defs.CLD_KILLED
		si.Status = p.termsig
	default:
		si.Code = defs.CLD_EXITED
		si.Status = p.exitstatus
	}
	for _, t := range p.threads {
		pt._thread_del(p, t)
	}
	delete(pt.procs, p.Pid)
	p.reaped = true
	if parent, ok := pt.procs[p.Ppid]; ok {
		parent.Mywait.reaped(p.Pid)
	}
	stats.Procs.Dec()
	stats.Reaps.WithLabelValues(defs.Cldstr(si.Code)).Inc()
	plog.Debug().Int("pid", p.Pid).Int("ppid", p.Ppid).Str("code", defs.Cldstr(si.Code)).Int("status", si.Status).Msg("reaped")
	return si
}

// Report builds the status record of a live child without changing it. a
// stopped thread reports a stop; any other live state counts as continued.
func (pt *Ptable_t) Report(p *Proc_t, t *Thread_t) defs.Siginfo_t {
	pt.lockassert()
	si := defs.Siginfo_t{
		Signo:  defs.SIGCHLD,
		Pid:    p.Pid,
		Uid:    p.Uid,
		Status: t.Stop_signal,
	}
	switch t.state {
	case Stopped:
		si.Code = defs.CLD_STOPPED
	case Running, Runnable, Blocked, Dying, Queued:
		si.Code = defs.CLD_CONTINUED
	default:
		panic(fmt.Sprintf("report on %v thread", t.state))
	}
	stats.Reports.WithLabelValues(defs.Cldstr(si.Code)).Inc()
	return si
}

// Collect produces the status of child pid of p after a wait resolved to
// it: a zombie is reaped, a live child is reported. ECHILD if the child
// vanished in the meantime, e.g. reaped by a racing waiter.
func (pt *Ptable_t) Collect(p *Proc_t, pid int) (defs.Siginfo_t, defs.Err_t) {
	var zs defs.Siginfo_t
	pt.Lock()
	defer pt.Unlock()
	c, ok := pt.procs[pid]
	if !ok || c.Ppid != p.Pid {
		return zs, -defs.ECHILD
	}
	if c.dead {
		return pt._reap(c), 0
	}
	t, ok := c._rep()
	if !ok {
		return zs, -defs.ECHILD
	}
	return pt.Report(c, t), 0
}
