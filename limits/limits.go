package limits

import "go.uber.org/atomic"

var Lhits = atomic.NewInt64(0)

type Syslimit_t struct {
	// total threads in the system, protected by the process table lock
	Sysprocs int
	// unreaped children (live or zombie) a single process may have
	Noproc uint
	// pages a single address space may map
	Pages int
}

var Syslimit *Syslimit_t = MkSysLimit()

func MkSysLimit() *Syslimit_t {
	return &Syslimit_t{
		Sysprocs: 1e4,
		Noproc:   1 << 10,
		Pages:    1 << 15,
	}
}
