package kernel

import "github.com/sanjaysanjel019/serenity/defs"
import "github.com/sanjaysanjel019/serenity/proc"
import "github.com/sanjaysanjel019/serenity/vm"

// Uwait performs waitid the way a user program does: it writes the
// parameter block at va, with the siginfo following it, into p's memory,
// makes the call and reads the siginfo back. va must start a writable
// mapping of at least defs.WPSIZE+defs.SISIZE bytes.
func Uwait(p *proc.Proc_t, tid defs.Tid_t, va, idtype, id, options int) (defs.Siginfo_t, int) {
	var si defs.Siginfo_t
	infop := va + defs.WPSIZE
	params := defs.Waitid_params_t{Idtype: idtype, Id: id, Infop: infop, Options: options}
	ub := &vm.Userbuf_t{}
	ub.Ub_init(p.Vm, va, defs.WPSIZE)
	if _, err := ub.Uiowrite(params.Encode()); err != 0 {
		return si, int(err)
	}
	ret := Syscall(p, tid, defs.SYS_WAITID, va, 0)
	if ret != 0 {
		return si, ret
	}
	buf := make([]uint8, defs.SISIZE)
	if err := p.Vm.User2k(buf, infop); err != 0 {
		return si, int(err)
	}
	si.Decode(buf)
	return si, 0
}
