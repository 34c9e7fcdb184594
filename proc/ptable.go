package proc

import "fmt"
import "sort"
import "sync"

import "go.uber.org/atomic"

import "github.com/sanjaysanjel019/serenity/defs"
import "github.com/sanjaysanjel019/serenity/limits"
import "github.com/sanjaysanjel019/serenity/logger"
import "github.com/sanjaysanjel019/serenity/stats"
import "github.com/sanjaysanjel019/serenity/tinfo"
import "github.com/sanjaysanjel019/serenity/vm"

var plog = logger.Component("proc")

// per-process limits
type Ulimit_t struct {
	Noproc uint
}

type Thread_t struct {
	Tid defs.Tid_t
	Pid int
	// state and Stop_signal are protected by the ptable lock
	state       Tstate_t
	Stop_signal int
	note        *tinfo.Tnote_t
}

type Proc_t struct {
	Pid  int
	Uid  int
	Name string
	// protected by the ptable lock; changes when the parent exits
	Ppid int
	// main thread; its tid equals the pid
	tid0 defs.Tid_t

	// threads that are not dead yet, plus the dead main thread of a zombie.
	// protected by the ptable lock.
	threads map[defs.Tid_t]*Thread_t

	// address space shared by all threads
	Vm *vm.Vm_t

	// waitinfo for my child processes
	Mywait Wait_t

	Ulim Ulimit_t

	// protected by the ptable lock
	exitstatus int
	termsig    int
	coredump   bool
	dead       bool
	reaped     bool

	pt *Ptable_t
}

func (p *Proc_t) Tid0() defs.Tid_t {
	return p.tid0
}

func (p *Proc_t) Ptable() *Ptable_t {
	return p.pt
}

// Ptable_t is the process registry. a single short-held lock protects both
// maps and every record's lifecycle fields; it is never held while a thread
// sleeps. code outside this package holds pids and tids, never records,
// across a sleep.
type Ptable_t struct {
	mu      sync.Mutex
	held    bool
	procs   map[int]*Proc_t
	threads map[defs.Tid_t]*Thread_t
	// notes of live threads, readable without the lock
	Notes    tinfo.Threadinfo_t
	nthreads int
	lastid   *atomic.Int32
	Lim      *limits.Syslimit_t
}

func Mkptable(lim *limits.Syslimit_t) *Ptable_t {
	pt := &Ptable_t{
		procs:   make(map[int]*Proc_t),
		threads: make(map[defs.Tid_t]*Thread_t),
		lastid:  atomic.NewInt32(0),
		Lim:     lim,
	}
	pt.Notes.Init()
	return pt
}

func (pt *Ptable_t) Lock() {
	pt.mu.Lock()
	pt.held = true
}

func (pt *Ptable_t) Unlock() {
	pt.held = false
	pt.mu.Unlock()
}

func (pt *Ptable_t) lockassert() {
	if !pt.held {
		panic("ptable lock must be held")
	}
}

func (pt *Ptable_t) Proc_check(pid int) (*Proc_t, bool) {
	pt.Lock()
	p, ok := pt.procs[pid]
	pt.Unlock()
	return p, ok
}

func (pt *Ptable_t) Proc_check_inner(pid int) (*Proc_t, bool) {
	pt.lockassert()
	p, ok := pt.procs[pid]
	return p, ok
}

func (pt *Ptable_t) Thread_check(tid defs.Tid_t) (*Thread_t, bool) {
	pt.Lock()
	t, ok := pt.threads[tid]
	pt.Unlock()
	return t, ok
}

// Tstate returns the current state of thread tid.
func (pt *Ptable_t) Tstate(tid defs.Tid_t) (Tstate_t, bool) {
	pt.Lock()
	defer pt.Unlock()
	t, ok := pt.threads[tid]
	if !ok {
		return 0, false
	}
	return t.state, true
}

func (pt *Ptable_t) Nprocs() int {
	pt.Lock()
	ret := len(pt.procs)
	pt.Unlock()
	return ret
}

func (pt *Ptable_t) Getppid(p *Proc_t) int {
	pt.Lock()
	ret := p.Ppid
	pt.Unlock()
	return ret
}

// Dead reports whether pid names a zombie.
func (pt *Ptable_t) Dead(pid int) bool {
	pt.Lock()
	defer pt.Unlock()
	p, ok := pt.procs[pid]
	return ok && p.dead
}

// Pids returns the pids in the table, zombies included, in ascending order.
func (pt *Ptable_t) Pids() []int {
	pt.Lock()
	ret := make([]int, 0, len(pt.procs))
	for pid := range pt.procs {
		ret = append(ret, pid)
	}
	pt.Unlock()
	sort.Ints(ret)
	return ret
}

func (pt *Ptable_t) _thread_new(p *Proc_t, tid defs.Tid_t) *Thread_t {
	pt.lockassert()
	if _, ok := pt.threads[tid]; ok {
		panic(fmt.Sprintf("tid %v exists", tid))
	}
	t := &Thread_t{Tid: tid, Pid: p.Pid, state: Running}
	t.note = tinfo.Mknote(tid)
	pt.threads[tid] = t
	p.threads[tid] = t
	pt.Notes.Set(tid, t.note)
	pt.nthreads++
	return t
}

func (pt *Ptable_t) _thread_del(p *Proc_t, t *Thread_t) {
	pt.lockassert()
	delete(pt.threads, t.Tid)
	delete(p.threads, t.Tid)
	pt.Notes.Del(t.Tid)
	pt.nthreads--
	if pt.nthreads < 0 {
		panic("neg threads")
	}
}

// Proc_new creates a process with one running thread whose tid equals the
// new pid. parent may be nil for the first process (init). fails with
// ENOMEM if the system-wide thread limit or the parent's child limit is
// reached.
func (pt *Ptable_t) Proc_new(parent *Proc_t, uid int, name string) (*Proc_t, defs.Err_t) {
	pt.Lock()
	defer pt.Unlock()
	if pt.nthreads >= pt.Lim.Sysprocs {
		limits.Lhits.Inc()
		return nil, -defs.ENOMEM
	}
	if parent != nil && parent.dead {
		return nil, -defs.ESRCH
	}
	pid := int(pt.lastid.Inc())
	if _, ok := pt.procs[pid]; ok {
		panic("pid exists")
	}
	ret := &Proc_t{
		Pid:     pid,
		Uid:     uid,
		Name:    name,
		tid0:    defs.Tid_t(pid),
		threads: make(map[defs.Tid_t]*Thread_t),
		Vm:      vm.Mkvm(pt.Lim.Pages),
		Ulim:    Ulimit_t{Noproc: pt.Lim.Noproc},
		pt:      pt,
	}
	ret.Mywait.Wait_init(pid)
	if parent != nil {
		ret.Ppid = parent.Pid
		if !parent.Mywait._start(pid, parent.Ulim.Noproc) {
			limits.Lhits.Inc()
			return nil, -defs.ENOMEM
		}
	}
	pt.procs[pid] = ret
	pt._thread_new(ret, ret.tid0)
	stats.Procs.Inc()
	plog.Debug().Int("pid", pid).Int("ppid", ret.Ppid).Str("name", name).Msg("proc new")
	return ret, 0
}

// Thread_new adds a running thread to p.
func (pt *Ptable_t) Thread_new(p *Proc_t) (defs.Tid_t, defs.Err_t) {
	pt.Lock()
	defer pt.Unlock()
	if p.dead {
		return 0, -defs.ESRCH
	}
	if pt.nthreads >= pt.Lim.Sysprocs {
		limits.Lhits.Inc()
		return 0, -defs.ENOMEM
	}
	tid := defs.Tid_t(pt.lastid.Inc())
	pt._thread_new(p, tid)
	return tid, 0
}

// Interrupt makes thread tid's current or next wait fail with EINTR.
func (pt *Ptable_t) Interrupt(tid defs.Tid_t) defs.Err_t {
	n, ok := pt.Notes.Get(tid)
	if !ok {
		return -defs.ESRCH
	}
	n.Interrupt(-defs.EINTR)
	return 0
}
