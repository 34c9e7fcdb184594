package tinfo

import "sync"

import "github.com/puzpuzpuz/xsync/v4"

import "github.com/sanjaysanjel019/serenity/defs"

type Tnote_t struct {
	Tid defs.Tid_t
	// a doomed thread belongs to an exiting process; every later sleep
	// fails immediately.
	Isdoomed bool
	// protects Isdoomed and Killnaps.Kerr, and is a leaf lock
	sync.Mutex
	Killnaps struct {
		// one pending interrupt at most
		Killch chan bool
		Kerr   defs.Err_t
	}
}

func Mknote(tid defs.Tid_t) *Tnote_t {
	ret := &Tnote_t{Tid: tid}
	ret.Killnaps.Killch = make(chan bool, 1)
	return ret
}

func (t *Tnote_t) Doomed() bool {
	t.Lock()
	ret := t.Isdoomed
	t.Unlock()
	return ret
}

// Interrupt makes the thread's current or next sleep return err.
func (t *Tnote_t) Interrupt(err defs.Err_t) {
	if err == 0 {
		panic("must be non-zero")
	}
	t.Lock()
	kn := &t.Killnaps
	if kn.Kerr == 0 {
		kn.Kerr = err
	}
	select {
	case kn.Killch <- true:
	default:
	}
	t.Unlock()
}

func (t *Tnote_t) Doom() {
	t.Lock()
	t.Isdoomed = true
	t.Unlock()
	t.Interrupt(-defs.EINTR)
}

// Pending returns the error of an interrupt delivered while the thread was
// not sleeping, consuming it, or 0.
func (t *Tnote_t) Pending() defs.Err_t {
	select {
	case <-t.Killnaps.Killch:
		return t.Consume()
	default:
	}
	t.Lock()
	defer t.Unlock()
	if t.Isdoomed {
		return -defs.EINTR
	}
	return 0
}

// Consume returns the error that accompanied a receive on Killch.
func (t *Tnote_t) Consume() defs.Err_t {
	t.Lock()
	defer t.Unlock()
	ret := t.Killnaps.Kerr
	if !t.Isdoomed {
		t.Killnaps.Kerr = 0
	}
	if ret == 0 {
		ret = -defs.EINTR
	}
	return ret
}

// Threadinfo_t maps thread ids to notes so that interrupts can be delivered
// by id. lookups never block behind the process table lock.
type Threadinfo_t struct {
	notes *xsync.Map[defs.Tid_t, *Tnote_t]
}

func (ti *Threadinfo_t) Init() {
	ti.notes = xsync.NewMap[defs.Tid_t, *Tnote_t]()
}

func (ti *Threadinfo_t) Get(tid defs.Tid_t) (*Tnote_t, bool) {
	return ti.notes.Load(tid)
}

func (ti *Threadinfo_t) Set(tid defs.Tid_t, n *Tnote_t) {
	ti.notes.Store(tid, n)
}

func (ti *Threadinfo_t) Del(tid defs.Tid_t) {
	ti.notes.Delete(tid)
}
