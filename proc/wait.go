package proc

import "sync"

import "github.com/sanjaysanjel019/serenity/defs"
import "github.com/sanjaysanjel019/serenity/stats"

// requirements for waitid:
// - wait for a pid that is not my child must fail
// - wait when there are no children must fail
// - a child's exit, stop or continue is reported to at most one waiter
// - a waiter learns which child woke it from the waker, without rescanning
type Wcause_t int

const (
	W_NONE Wcause_t = iota
	W_EXITED
	W_STOPPED
	W_CONTINUED
	// the awaited child was reaped by another waiter
	W_GONE
	// the last child was reaped
	W_NOCHILD
)

var wcausestr = [...]string{"none", "exited", "stopped", "continued", "gone", "nochild"}

func (c Wcause_t) String() string {
	if c < W_NONE || c > W_NOCHILD {
		return "bad"
	}
	return wcausestr[c]
}

type wevent_t struct {
	pid   int
	cause Wcause_t
}

// a parked waiter. the waker fills in pid and cause and sets done before
// closing wakech; all of it under the Wait_t lock.
type blocker_t struct {
	spec   Waitspec_t
	tid    defs.Tid_t
	pid    int
	cause  Wcause_t
	done   bool
	wakech chan struct{}
}

// Wait_t is a process's wait queue for its children. its lock is separate
// from the ptable lock and ordered after it.
type Wait_t struct {
	sync.Mutex
	Pid int
	// unreaped children, live or zombie
	children map[int]bool
	// reportable events nobody has claimed yet, oldest first
	pending []wevent_t
	// parked waiters, oldest first
	parked []*blocker_t

	parks      stats.Counter_t
	dispatches stats.Counter_t
}

func (w *Wait_t) Wait_init(mypid int) {
	w.Pid = mypid
	w.children = make(map[int]bool)
}

// if there are more unreaped children than noproc, _start() returns false
// and pid is not added.
func (w *Wait_t) _start(pid int, noproc uint) bool {
	w.Lock()
	defer w.Unlock()
	if uint(len(w.children)) >= noproc {
		return false
	}
	w.children[pid] = true
	return true
}

func (w *Wait_t) Nchildren() int {
	w.Lock()
	defer w.Unlock()
	return len(w.children)
}

func (w *Wait_t) Nparked() int {
	w.Lock()
	defer w.Unlock()
	return len(w.parked)
}

func (w *Wait_t) Npending() int {
	w.Lock()
	defer w.Unlock()
	return len(w.pending)
}

// Parks is the number of times a waiter went to sleep on w.
func (w *Wait_t) Parks() int64 {
	return w.parks.Load()
}

// Dispatches is the number of events handed directly to a parked waiter.
func (w *Wait_t) Dispatches() int64 {
	return w.dispatches.Load()
}

func (w *Wait_t) _wake(i int, ev wevent_t) {
	b := w.parked[i]
	copy(w.parked[i:], w.parked[i+1:])
	w.parked[len(w.parked)-1] = nil
	w.parked = w.parked[:len(w.parked)-1]
	b.pid = ev.pid
	b.cause = ev.cause
	b.done = true
	close(b.wakech)
	stats.Wakeups.WithLabelValues(ev.cause.String()).Inc()
}

func (w *Wait_t) _unpark(b *blocker_t) {
	for i := range w.parked {
		if w.parked[i] == b {
			copy(w.parked[i:], w.parked[i+1:])
			w.parked[len(w.parked)-1] = nil
			w.parked = w.parked[:len(w.parked)-1]
			return
		}
	}
	panic("blocker not parked")
}

func (w *Wait_t) _drop(pid int) {
	n := w.pending[:0]
	for _, ev := range w.pending {
		if ev.pid != pid {
			n = append(n, ev)
		}
	}
	w.pending = n
}

func (w *Wait_t) _find(pid int) int {
	for i, ev := range w.pending {
		if ev.pid == pid {
			return i
		}
	}
	return -1
}

// _dispatch hands a stop, continue or exit event to the oldest parked
// waiter that wants it, or leaves it pending. a newer event supersedes an
// unclaimed older one for the same child.
func (w *Wait_t) _dispatch(ev wevent_t) {
	if !w.children[ev.pid] {
		panic("event for a non-child")
	}
	if i := w._find(ev.pid); i >= 0 {
		if w.pending[i].cause == W_EXITED {
			panic("event after exit")
		}
		w._drop(ev.pid)
	}
	for i, b := range w.parked {
		if b.spec.matches(ev) {
			w._wake(i, ev)
			w.dispatches.Inc()
			return
		}
	}
	w.pending = append(w.pending, ev)
}

func (w *Wait_t) post(pid int, cause Wcause_t) {
	w.Lock()
	w._dispatch(wevent_t{pid, cause})
	w.Unlock()
}

// _wakeall wakes every parked waiter wanting ev; for W_GONE and W_NOCHILD,
// which are not consumed.
func (w *Wait_t) _wakeall(ev wevent_t) {
	for i := 0; i < len(w.parked); {
		if w.parked[i].spec.matches(ev) {
			w._wake(i, ev)
		} else {
			i++
		}
	}
}

// _claim removes and returns the oldest pending event spec wants.
func (w *Wait_t) _claim(spec Waitspec_t) (wevent_t, bool) {
	for i, ev := range w.pending {
		if spec.matches(ev) {
			copy(w.pending[i:], w.pending[i+1:])
			w.pending = w.pending[:len(w.pending)-1]
			return ev, true
		}
	}
	return wevent_t{}, false
}

// Requeue gives back an event returned by Wait that the caller could not
// deliver. a newer event for the same child wins over the returned one.
func (w *Wait_t) Requeue(pid int, cause Wcause_t) {
	w.Lock()
	w._requeue(wevent_t{pid, cause})
	w.Unlock()
}

func (w *Wait_t) _requeue(ev wevent_t) {
	switch ev.cause {
	case W_EXITED, W_STOPPED, W_CONTINUED:
	default:
		return
	}
	if !w.children[ev.pid] || w._find(ev.pid) >= 0 {
		return
	}
	stats.Requeues.Inc()
	plog.Debug().Int("ppid", w.Pid).Int("pid", ev.pid).Str("cause", ev.cause.String()).Msg("requeue")
	w._dispatch(ev)
}

// reaped forgets child pid. waiters for that pid, and any-child waiters if
// no child is left, are woken so they can fail with ECHILD.
func (w *Wait_t) reaped(pid int) {
	w.Lock()
	defer w.Unlock()
	if !w.children[pid] {
		panic("reaped a non-child")
	}
	delete(w.children, pid)
	w._drop(pid)
	w._wakeall(wevent_t{pid, W_GONE})
	if len(w.children) == 0 {
		w._wakeall(wevent_t{defs.WAIT_ANY, W_NOCHILD})
	}
}

// adopt takes pid as a child regardless of limits; used for orphans.
func (w *Wait_t) adopt(pid int) {
	w.Lock()
	w.children[pid] = true
	w.Unlock()
}

// abandon forgets every child and pending event and returns the children.
func (w *Wait_t) abandon() []int {
	w.Lock()
	defer w.Unlock()
	ret := make([]int, 0, len(w.children))
	for pid := range w.children {
		ret = append(ret, pid)
	}
	w.children = make(map[int]bool)
	w.pending = nil
	for len(w.parked) != 0 {
		b := w.parked[0]
		if b.spec.Kind == WS_PID {
			w._wake(0, wevent_t{b.spec.Target, W_GONE})
		} else {
			w._wake(0, wevent_t{defs.WAIT_ANY, W_NOCHILD})
		}
	}
	return ret
}

// Wait blocks thread tid of p until a child matching spec has a state
// change to report and returns the child's pid and what happened to it. it
// never sleeps with the ptable lock held. errors: ECHILD if there is no
// child to wait for or the awaited children were reaped meanwhile,
// ENOCHILDREADY if spec is non-blocking and nothing is ready, EINTR if the
// thread was interrupted or its process is exiting.
func (p *Proc_t) Wait(tid defs.Tid_t, spec Waitspec_t) (int, Wcause_t, defs.Err_t) {
	// a thread of an exiting process loses its note; it never sleeps again
	// and must not consume events meant for its live siblings.
	note, ok := p.pt.Notes.Get(tid)
	if !ok || note.Doomed() {
		return 0, W_NONE, -defs.EINTR
	}
	w := &p.Mywait

	w.Lock()
	switch spec.Kind {
	case WS_ANY:
		if len(w.children) == 0 {
			w.Unlock()
			return 0, W_NONE, -defs.ECHILD
		}
	case WS_PID:
		if !w.children[spec.Target] {
			w.Unlock()
			return 0, W_NONE, -defs.ECHILD
		}
	default:
		panic("unresolved wait spec")
	}
	if ev, ok := w._claim(spec); ok {
		w.Unlock()
		return ev.pid, ev.cause, 0
	}
	if spec.Noblock() {
		w.Unlock()
		return 0, W_NONE, -defs.ENOCHILDREADY
	}
	if err := note.Pending(); err != 0 {
		w.Unlock()
		return 0, W_NONE, err
	}
	b := &blocker_t{spec: spec, tid: tid, wakech: make(chan struct{})}
	w.parked = append(w.parked, b)
	w.parks.Inc()
	w.Unlock()

	stats.Parked.Inc()
	p.pt.park(tid)
	plog.Debug().Int("pid", p.Pid).Int("tid", int(tid)).Int("target", spec.Target).Msg("park")

	intr := false
	select {
	case <-b.wakech:
	case <-note.Killnaps.Killch:
		intr = true
	}

	p.pt.unpark(tid)
	stats.Parked.Dec()

	if intr {
		w.Lock()
		if b.done {
			// the wake raced the interrupt; pass the event on
			w._requeue(wevent_t{b.pid, b.cause})
		} else {
			w._unpark(b)
		}
		w.Unlock()
		return 0, W_NONE, note.Consume()
	}
	plog.Debug().Int("pid", p.Pid).Int("tid", int(tid)).Int("child", b.pid).Str("cause", b.cause.String()).Msg("wake")
	switch b.cause {
	case W_GONE, W_NOCHILD:
		return 0, b.cause, -defs.ECHILD
	}
	return b.pid, b.cause, 0
}
