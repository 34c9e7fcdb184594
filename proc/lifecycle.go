package proc

import "fmt"
import "sort"

import "github.com/sanjaysanjel019/serenity/defs"

func (pt *Ptable_t) _set_state(t *Thread_t, st Tstate_t) {
	pt.lockassert()
	if !Valid_transition(t.state, st) {
		panic(fmt.Sprintf("tid %v: bad transition %v -> %v", t.Tid, t.state, st))
	}
	t.state = st
}

// _rep returns the thread whose state stands for the whole process: the
// main thread, or the oldest live thread once the main thread is dead.
func (p *Proc_t) _rep() (*Thread_t, bool) {
	p.pt.lockassert()
	if t, ok := p.threads[p.tid0]; ok && t.state != Dead {
		return t, true
	}
	var ret *Thread_t
	for _, t := range p.threads {
		if t.state == Dead {
			continue
		}
		if ret == nil || t.Tid < ret.Tid {
			ret = t
		}
	}
	return ret, ret != nil
}

func (p *Proc_t) _nlive() int {
	ret := 0
	for _, t := range p.threads {
		if t.state != Dead {
			ret++
		}
	}
	return ret
}

func (p *Proc_t) _sorted() []*Thread_t {
	ret := make([]*Thread_t, 0, len(p.threads))
	for _, t := range p.threads {
		ret = append(ret, t)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Tid < ret[j].Tid })
	return ret
}

// _notify tells p's parent, if any, about a state change of p. the new
// state is already visible in the ptable.
func (pt *Ptable_t) _notify(p *Proc_t, cause Wcause_t) bool {
	pt.lockassert()
	parent, ok := pt.procs[p.Ppid]
	if !ok || parent.dead {
		return false
	}
	plog.Debug().Int("pid", p.Pid).Int("ppid", p.Ppid).Str("cause", cause.String()).Msg("notify")
	parent.Mywait.post(p.Pid, cause)
	return true
}

// Set_state moves thread tid through a scheduler transition. Stopped and
// Dead are only entered through Stop and Thread_dead. a representative
// thread leaving Stopped, for Dying too, reports a continue to the parent;
// a later exit replaces it.
func (pt *Ptable_t) Set_state(tid defs.Tid_t, st Tstate_t) defs.Err_t {
	if st == Stopped || st == Dead {
		return -defs.EINVAL
	}
	pt.Lock()
	defer pt.Unlock()
	t, ok := pt.threads[tid]
	if !ok || t.state == Dead {
		return -defs.ESRCH
	}
	p := pt.procs[t.Pid]
	old := t.state
	rep, _ := p._rep()
	pt._set_state(t, st)
	if old == Stopped && rep == t {
		pt._notify(p, W_CONTINUED)
	}
	return 0
}

// Stop stops every live thread of pid, recording sig as the stop signal.
func (pt *Ptable_t) Stop(pid, sig int) defs.Err_t {
	pt.Lock()
	defer pt.Unlock()
	p, ok := pt.procs[pid]
	if !ok || p.dead {
		return -defs.ESRCH
	}
	changed := false
	for _, t := range p._sorted() {
		switch t.state {
		case Stopped, Dying, Dead:
			continue
		}
		pt._set_state(t, Stopped)
		t.Stop_signal = sig
		changed = true
	}
	if changed {
		pt._notify(p, W_STOPPED)
	}
	return 0
}

// Continue makes every stopped thread of pid runnable again.
func (pt *Ptable_t) Continue(pid int) defs.Err_t {
	pt.Lock()
	defer pt.Unlock()
	p, ok := pt.procs[pid]
	if !ok || p.dead {
		return -defs.ESRCH
	}
	changed := false
	for _, t := range p._sorted() {
		if t.state == Stopped {
			pt._set_state(t, Runnable)
			changed = true
		}
	}
	if changed {
		pt._notify(p, W_CONTINUED)
	}
	return 0
}

// Thread_dead terminates a single thread, passing it through Dying. the
// process dies with its last thread.
func (pt *Ptable_t) Thread_dead(tid defs.Tid_t, status int) defs.Err_t {
	pt.Lock()
	defer pt.Unlock()
	t, ok := pt.threads[tid]
	if !ok || t.state == Dead {
		return -defs.ESRCH
	}
	pt._thread_dead(pt.procs[t.Pid], t, status, true)
	return 0
}

func (pt *Ptable_t) _thread_dead(p *Proc_t, t *Thread_t, status int, usestatus bool) {
	if t.state != Dying {
		pt._set_state(t, Dying)
	}
	pt._set_state(t, Dead)
	if usestatus {
		p.exitstatus = status & 0xff
	}
	if t.Tid == p.tid0 {
		// the zombie keeps its main thread record until it is reaped
		pt.Notes.Del(t.Tid)
	} else {
		pt._thread_del(p, t)
	}
	if p._nlive() == 0 {
		pt._proc_dead(p)
	}
}

func (pt *Ptable_t) _doomall(p *Proc_t) {
	for _, t := range p.threads {
		if t.state != Dead {
			t.note.Doom()
		}
	}
}

func (pt *Ptable_t) _killall(p *Proc_t) {
	for _, t := range p._sorted() {
		if t.state != Dead {
			pt._thread_dead(p, t, 0, false)
		}
	}
}

// Exit terminates every thread of pid with exit code status.
func (pt *Ptable_t) Exit(pid, status int) defs.Err_t {
	pt.Lock()
	defer pt.Unlock()
	p, ok := pt.procs[pid]
	if !ok || p.dead {
		return -defs.ESRCH
	}
	p.exitstatus = status & 0xff
	pt._doomall(p)
	pt._killall(p)
	return 0
}

// Kill delivers sig to pid: stop and continue signals stop and resume it,
// 0 only checks that it exists, anything else terminates it.
func (pt *Ptable_t) Kill(pid, sig int) defs.Err_t {
	switch sig {
	case defs.SIGSTOP, defs.SIGTSTP:
		return pt.Stop(pid, sig)
	case defs.SIGCONT:
		return pt.Continue(pid)
	}
	if sig < 0 || sig > 64 {
		return -defs.EINVAL
	}
	pt.Lock()
	defer pt.Unlock()
	p, ok := pt.procs[pid]
	if !ok || p.dead {
		return -defs.ESRCH
	}
	if sig == 0 {
		return 0
	}
	p.termsig = sig
	p.coredump = defs.Coresig(sig)
	pt._doomall(p)
	pt._killall(p)
	return 0
}

func (pt *Ptable_t) _proc_dead(p *Proc_t) {
	if p.dead {
		panic("dies twice")
	}
	p.dead = true
	pt._reparent(p)
	plog.Debug().Int("pid", p.Pid).Int("status", p.exitstatus).Int("sig", p.termsig).Msg("proc dead")
	if !pt._notify(p, W_EXITED) {
		// nobody can ever reap it
		pt._reap(p)
	}
}

// _reparent hands p's children to init; their zombies are reported to init
// again. without init, zombie children are reaped on the spot.
func (pt *Ptable_t) _reparent(p *Proc_t) {
	kids := p.Mywait.abandon()
	sort.Ints(kids)
	initp, ok := pt.procs[1]
	hasinit := ok && initp != p && !initp.dead
	for _, pid := range kids {
		c, ok := pt.procs[pid]
		if !ok {
			panic("child not in ptable")
		}
		if hasinit {
			c.Ppid = initp.Pid
			initp.Mywait.adopt(pid)
			if c.dead {
				initp.Mywait.post(pid, W_EXITED)
			}
		} else {
			c.Ppid = 0
			if c.dead {
				pt._reap(c)
			}
		}
	}
}

func (pt *Ptable_t) park(tid defs.Tid_t) {
	pt.Lock()
	if t, ok := pt.threads[tid]; ok && t.state == Running {
		pt._set_state(t, Blocked)
	}
	pt.Unlock()
}

func (pt *Ptable_t) unpark(tid defs.Tid_t) {
	pt.Lock()
	if t, ok := pt.threads[tid]; ok && t.state == Blocked {
		pt._set_state(t, Running)
	}
	pt.Unlock()
}
