package kernel

import "github.com/sanjaysanjel019/serenity/defs"
import "github.com/sanjaysanjel019/serenity/logger"
import "github.com/sanjaysanjel019/serenity/proc"
import "github.com/sanjaysanjel019/serenity/stats"
import "github.com/sanjaysanjel019/serenity/vm"

var klog = logger.Component("kernel")

// Syscall runs system call sysno for thread tid of p and returns its result,
// a negative errno on failure.
func Syscall(p *proc.Proc_t, tid defs.Tid_t, sysno, a1, a2 int) int {
	switch sysno {
	case defs.SYS_WAITID:
		return Sys_waitid(p, tid, a1)
	case defs.SYS_GETPID:
		return p.Pid
	case defs.SYS_GETPPID:
		return p.Ptable().Getppid(p)
	case defs.SYS_EXIT:
		return sys_exit(p, a1)
	case defs.SYS_KILL:
		return sys_kill(p, a1, a2)
	default:
		klog.Warn().Int("pid", p.Pid).Int("sysno", sysno).Msg("unknown syscall")
		return int(-defs.ENOSYS)
	}
}

func sys_exit(p *proc.Proc_t, status int) int {
	return int(p.Ptable().Exit(p.Pid, status))
}

func sys_kill(p *proc.Proc_t, pid, sig int) int {
	pt := p.Ptable()
	target, ok := pt.Proc_check(pid)
	if !ok {
		return int(-defs.ESRCH)
	}
	if p.Uid != 0 && p.Uid != target.Uid {
		return int(-defs.EPERM)
	}
	return int(pt.Kill(pid, sig))
}

// Sys_waitid waits for a child of p to change state and writes a siginfo
// describing the change to params.infop. uparams is the user address of a
// defs.Waitid_params_t block.
func Sys_waitid(p *proc.Proc_t, tid defs.Tid_t, uparams int) int {
	ret := sys_waitid(p, tid, uparams)
	stats.Waits.WithLabelValues(stats.Errname(ret)).Inc()
	return int(ret)
}

func sys_waitid(p *proc.Proc_t, tid defs.Tid_t, uparams int) defs.Err_t {
	var params defs.Waitid_params_t
	buf := make([]uint8, defs.WPSIZE)
	ub := &vm.Userbuf_t{}
	ub.Ub_init(p.Vm, uparams, len(buf))
	if n, err := ub.Uioread(buf); err != 0 {
		return -defs.EFAULT
	} else if n != ub.Totalsz() {
		panic("short params read")
	}
	params.Decode(buf)

	if err := p.Vm.Validate_write(params.Infop, defs.SISIZE); err != 0 {
		return -defs.EFAULT
	}

	klog.Debug().Int("pid", p.Pid).Int("tid", int(tid)).Int("idtype", params.Idtype).
		Int("id", params.Id).Int("options", params.Options).Msg("waitid")

	pt := p.Ptable()
	spec, err := pt.Waitspec(p, params.Idtype, params.Id, params.Options)
	if err != 0 {
		return err
	}
	pid, cause, err := p.Wait(tid, spec)
	if err != 0 {
		return err
	}

	// while we slept other threads could have unmapped or write-protected
	// infop. validate it again and keep the address space locked until the
	// siginfo is written.
	p.Vm.Lock_pmap()
	defer p.Vm.Unlock_pmap()
	if err := p.Vm.Validate_inner(params.Infop, defs.SISIZE, true); err != 0 {
		klog.Warn().Int("pid", p.Pid).Int("child", pid).Msg("infop went bad during waitid")
		p.Mywait.Requeue(pid, cause)
		return -defs.EFAULT
	}
	si, err := pt.Collect(p, pid)
	if err != 0 {
		return err
	}
	out := &vm.Userbuf_t{}
	out.Ub_init(p.Vm, params.Infop, defs.SISIZE)
	if _, err := out.Uiowrite_inner(si.Bytes()); err != 0 {
		panic("validated infop faulted")
	}
	return 0
}
