package kernel

import "testing"
import "time"

import "github.com/prometheus/client_golang/prometheus/testutil"
import "github.com/stretchr/testify/assert"
import "github.com/stretchr/testify/require"

import "github.com/sanjaysanjel019/serenity/defs"
import "github.com/sanjaysanjel019/serenity/limits"
import "github.com/sanjaysanjel019/serenity/proc"
import "github.com/sanjaysanjel019/serenity/stats"
import "github.com/sanjaysanjel019/serenity/vm"

const ubase = 0x200000

func mkinit(t *testing.T) (*proc.Ptable_t, *proc.Proc_t) {
	pt := proc.Mkptable(limits.MkSysLimit())
	initp, err := pt.Proc_new(nil, 0, "init")
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, defs.Err_t(0), initp.Vm.Mmap(ubase, 2*vm.PGSIZE, defs.PROT_READ|defs.PROT_WRITE))
	return pt, initp
}

func fork(t *testing.T, pt *proc.Ptable_t, parent *proc.Proc_t, uid int) *proc.Proc_t {
	c, err := pt.Proc_new(parent, uid, "child")
	require.Equal(t, defs.Err_t(0), err)
	return c
}

type uret struct {
	si  defs.Siginfo_t
	ret int
}

func bguwait(p *proc.Proc_t, tid defs.Tid_t, va, idtype, id, options int) chan uret {
	ch := make(chan uret, 1)
	go func() {
		si, ret := Uwait(p, tid, va, idtype, id, options)
		ch <- uret{si, ret}
	}()
	return ch
}

func waitparked(t *testing.T, p *proc.Proc_t, n int) {
	require.Eventually(t, func() bool { return p.Mywait.Nparked() == n },
		5*time.Second, time.Millisecond)
}

func recv(t *testing.T, ch chan uret) uret {
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("waitid never returned")
	}
	return uret{}
}

func putparams(t *testing.T, p *proc.Proc_t, va int, params defs.Waitid_params_t) {
	ub := &vm.Userbuf_t{}
	ub.Ub_init(p.Vm, va, defs.WPSIZE)
	n, err := ub.Uiowrite(params.Encode())
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, defs.WPSIZE, n)
}

func infop(t *testing.T, p *proc.Proc_t, va int) []uint8 {
	buf := make([]uint8, defs.SISIZE)
	require.Equal(t, defs.Err_t(0), p.Vm.User2k(buf, va+defs.WPSIZE))
	return buf
}

func TestExitedChild(t *testing.T) {
	pt, initp := mkinit(t)
	c := fork(t, pt, initp, 1000)
	ch := bguwait(initp, initp.Tid0(), ubase, defs.P_ALL, 0, 0)
	waitparked(t, initp, 1)

	require.Equal(t, defs.Err_t(0), pt.Set_state(c.Tid0(), proc.Dying))
	require.Equal(t, defs.Err_t(0), pt.Thread_dead(c.Tid0(), 0))
	r := recv(t, ch)
	require.Equal(t, 0, r.ret)
	assert.Equal(t, defs.Siginfo_t{Signo: defs.SIGCHLD, Code: defs.CLD_EXITED, Pid: c.Pid, Uid: 1000}, r.si)
	_, ok := pt.Proc_check(c.Pid)
	assert.False(t, ok)
}

func TestStoppedChild(t *testing.T) {
	pt, initp := mkinit(t)
	var c *proc.Proc_t
	for c == nil || c.Pid < 7 {
		c = fork(t, pt, initp, 0)
	}
	ch := bguwait(initp, initp.Tid0(), ubase, defs.P_PID, 7, defs.WSTOPPED)
	waitparked(t, initp, 1)

	require.Equal(t, defs.Err_t(0), pt.Stop(7, defs.SIGSTOP))
	r := recv(t, ch)
	require.Equal(t, 0, r.ret)
	assert.Equal(t, defs.CLD_STOPPED, r.si.Code)
	assert.Equal(t, defs.SIGSTOP, r.si.Status)
	assert.Equal(t, 7, r.si.Pid)
	_, ok := pt.Proc_check(7)
	assert.True(t, ok)
}

func TestNohang(t *testing.T) {
	pt, initp := mkinit(t)
	fork(t, pt, initp, 0)
	_, ret := Uwait(initp, initp.Tid0(), ubase, defs.P_ALL, 0, defs.WNOHANG|defs.WEXITED)
	assert.Equal(t, int(-defs.ENOCHILDREADY), ret)
	assert.Equal(t, int64(0), initp.Mywait.Parks())
	assert.Equal(t, make([]uint8, defs.SISIZE), infop(t, initp, ubase))
}

func TestInterrupted(t *testing.T) {
	pt, initp := mkinit(t)
	c := fork(t, pt, initp, 0)
	before := testutil.ToFloat64(stats.Waits.WithLabelValues("eintr"))
	ch := bguwait(initp, initp.Tid0(), ubase, defs.P_ALL, 0, defs.WEXITED|defs.WSTOPPED)
	waitparked(t, initp, 1)

	require.Equal(t, defs.Err_t(0), pt.Interrupt(initp.Tid0()))
	r := recv(t, ch)
	assert.Equal(t, int(-defs.EINTR), r.ret)
	assert.Equal(t, make([]uint8, defs.SISIZE), infop(t, initp, ubase))
	st, _ := pt.Tstate(c.Tid0())
	assert.Equal(t, proc.Running, st)
	assert.Equal(t, before+1, testutil.ToFloat64(stats.Waits.WithLabelValues("eintr")))
}

func TestNotAChild(t *testing.T) {
	_, initp := mkinit(t)
	_, ret := Uwait(initp, initp.Tid0(), ubase, defs.P_PID, 999, defs.WEXITED)
	assert.Equal(t, int(-defs.ECHILD), ret)
	_, ret = Uwait(initp, initp.Tid0(), ubase, defs.P_ALL, 0, defs.WEXITED)
	assert.Equal(t, int(-defs.ECHILD), ret)
	assert.Equal(t, int64(0), initp.Mywait.Parks())
}

func TestBadArguments(t *testing.T) {
	pt, initp := mkinit(t)
	fork(t, pt, initp, 0)
	_, ret := Uwait(initp, initp.Tid0(), ubase, defs.P_PGID, 1, defs.WEXITED)
	assert.Equal(t, int(-defs.EINVAL), ret)
	_, ret = Uwait(initp, initp.Tid0(), ubase, defs.P_ALL, 0, 0x40)
	assert.Equal(t, int(-defs.EINVAL), ret)

	// parameter block in unmapped memory
	assert.Equal(t, int(-defs.EFAULT), Sys_waitid(initp, initp.Tid0(), 0x900000))
	// parameter block straddles into unmapped memory
	assert.Equal(t, int(-defs.EFAULT), Sys_waitid(initp, initp.Tid0(), ubase+2*vm.PGSIZE-8))

	// infop is checked before sleeping
	params := defs.Waitid_params_t{Idtype: defs.P_ALL, Infop: 0x900000, Options: defs.WEXITED}
	putparams(t, initp, ubase, params)
	assert.Equal(t, int(-defs.EFAULT), Sys_waitid(initp, initp.Tid0(), ubase))
	params.Infop = ubase + 2*vm.PGSIZE - 8
	putparams(t, initp, ubase, params)
	assert.Equal(t, int(-defs.EFAULT), Sys_waitid(initp, initp.Tid0(), ubase))
	assert.Equal(t, int64(0), initp.Mywait.Parks())
}

// infop is unmapped or write protected by another thread while the caller
// sleeps. the call fails without writing and the child's exit stays
// collectable.
func TestInfopChangesWhileParked(t *testing.T) {
	for _, unmap := range []bool{true, false} {
		pt, initp := mkinit(t)
		c := fork(t, pt, initp, 0)
		va := ubase + vm.PGSIZE
		ch := bguwait(initp, initp.Tid0(), va, defs.P_ALL, 0, defs.WEXITED)
		waitparked(t, initp, 1)

		if unmap {
			require.Equal(t, defs.Err_t(0), initp.Vm.Munmap(va, vm.PGSIZE))
		} else {
			require.Equal(t, defs.Err_t(0), initp.Vm.Mprotect(va, vm.PGSIZE, defs.PROT_READ))
		}
		require.Equal(t, defs.Err_t(0), pt.Exit(c.Pid, 9))
		r := recv(t, ch)
		require.Equal(t, int(-defs.EFAULT), r.ret)
		assert.True(t, pt.Dead(c.Pid), "zombie reaped by a faulting waitid")
		assert.Equal(t, 1, initp.Mywait.Npending())
		if !unmap {
			assert.Equal(t, make([]uint8, defs.SISIZE), infop(t, initp, va))
		}

		si, ret := Uwait(initp, initp.Tid0(), ubase, defs.P_ALL, 0, defs.WEXITED|defs.WNOHANG)
		require.Equal(t, 0, ret)
		assert.Equal(t, c.Pid, si.Pid)
		assert.Equal(t, 9, si.Status)
		_, ok := pt.Proc_check(c.Pid)
		assert.False(t, ok)
	}
}

func TestRacingWaiters(t *testing.T) {
	const nwait = 6
	pt, initp := mkinit(t)
	c := fork(t, pt, initp, 0)
	require.Equal(t, defs.Err_t(0), initp.Vm.Mmap(ubase+2*vm.PGSIZE, nwait*vm.PGSIZE, defs.PROT_READ|defs.PROT_WRITE))
	chs := make([]chan uret, nwait)
	for i := range chs {
		tid, err := pt.Thread_new(initp)
		require.Equal(t, defs.Err_t(0), err)
		chs[i] = bguwait(initp, tid, ubase+(2+i)*vm.PGSIZE, defs.P_ALL, 0, defs.WEXITED)
	}
	waitparked(t, initp, nwait)
	require.Equal(t, defs.Err_t(0), pt.Kill(c.Pid, defs.SIGKILL))

	won := 0
	for _, ch := range chs {
		r := recv(t, ch)
		switch r.ret {
		case 0:
			won++
			assert.Equal(t, defs.CLD_KILLED, r.si.Code)
			assert.Equal(t, defs.SIGKILL, r.si.Status)
		case int(-defs.ECHILD):
		default:
			t.Fatalf("unexpected %v", r.ret)
		}
	}
	assert.Equal(t, 1, won)
}

func TestSyscalls(t *testing.T) {
	pt, initp := mkinit(t)
	a := fork(t, pt, initp, 1000)
	b := fork(t, pt, initp, 2000)
	assert.Equal(t, a.Pid, Syscall(a, a.Tid0(), defs.SYS_GETPID, 0, 0))
	assert.Equal(t, initp.Pid, Syscall(a, a.Tid0(), defs.SYS_GETPPID, 0, 0))
	assert.Equal(t, int(-defs.ENOSYS), Syscall(a, a.Tid0(), 4096, 0, 0))

	assert.Equal(t, int(-defs.EPERM), Syscall(a, a.Tid0(), defs.SYS_KILL, b.Pid, defs.SIGKILL))
	assert.Equal(t, int(-defs.ESRCH), Syscall(a, a.Tid0(), defs.SYS_KILL, 999, defs.SIGKILL))
	assert.Equal(t, 0, Syscall(a, a.Tid0(), defs.SYS_KILL, a.Pid, 0))
	assert.Equal(t, 0, Syscall(initp, initp.Tid0(), defs.SYS_KILL, b.Pid, defs.SIGSTOP))

	si, ret := Uwait(initp, initp.Tid0(), ubase, defs.P_PID, b.Pid, defs.WSTOPPED|defs.WNOHANG)
	require.Equal(t, 0, ret)
	assert.Equal(t, defs.CLD_STOPPED, si.Code)
	assert.Equal(t, 2000, si.Uid)

	assert.Equal(t, 0, Syscall(a, a.Tid0(), defs.SYS_EXIT, 42, 0))
	si, ret = Uwait(initp, initp.Tid0(), ubase, defs.P_PID, a.Pid, defs.WEXITED)
	require.Equal(t, 0, ret)
	assert.Equal(t, defs.CLD_EXITED, si.Code)
	assert.Equal(t, 42, si.Status)
}

// a thread whose process was killed by a sibling while it was on its way
// into waitid fails with EINTR and leaves the siblings' events alone.
func TestWaitAfterOwnExit(t *testing.T) {
	pt, initp := mkinit(t)
	p := fork(t, pt, initp, 0)
	gc := fork(t, pt, p, 0)
	require.Equal(t, defs.Err_t(0), p.Vm.Mmap(ubase, vm.PGSIZE, defs.PROT_READ|defs.PROT_WRITE))
	tid, err := pt.Thread_new(p)
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, defs.Err_t(0), pt.Exit(gc.Pid, 0))
	require.Equal(t, 1, p.Mywait.Npending())

	require.Equal(t, defs.Err_t(0), pt.Exit(p.Pid, 0))
	_, ret := Uwait(p, tid, ubase, defs.P_ALL, 0, defs.WEXITED)
	assert.Equal(t, int(-defs.EINTR), ret)
	assert.Equal(t, int64(0), p.Mywait.Parks())

	// the orphaned zombie went to init and is still collectable there
	si, ret := Uwait(initp, initp.Tid0(), ubase, defs.P_PID, gc.Pid, defs.WEXITED|defs.WNOHANG)
	require.Equal(t, 0, ret)
	assert.Equal(t, gc.Pid, si.Pid)
}

// a doomed thread still in the table cannot wait either, even after its
// first interrupt was consumed
func TestWaitWhileDoomed(t *testing.T) {
	pt, initp := mkinit(t)
	p := fork(t, pt, initp, 0)
	fork(t, pt, p, 0)
	require.Equal(t, defs.Err_t(0), p.Vm.Mmap(ubase, vm.PGSIZE, defs.PROT_READ|defs.PROT_WRITE))
	tid, err := pt.Thread_new(p)
	require.Equal(t, defs.Err_t(0), err)
	note, ok := pt.Notes.Get(tid)
	require.True(t, ok)
	note.Doom()
	require.Equal(t, -defs.EINTR, note.Pending())

	_, ret := Uwait(p, tid, ubase, defs.P_ALL, 0, defs.WEXITED)
	assert.Equal(t, int(-defs.EINTR), ret)
	assert.Equal(t, int64(0), p.Mywait.Parks())
}
