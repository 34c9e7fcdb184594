package main

import (
	"time"

	"github.com/pkg/errors"

	"github.com/sanjaysanjel019/serenity/defs"
	"github.com/sanjaysanjel019/serenity/limits"
	"github.com/sanjaysanjel019/serenity/proc"
	"github.com/sanjaysanjel019/serenity/vm"
)

// where every waiting thread of init keeps its waitid block; one page per
// thread.
const ubase = 0x100000

// boot creates a process table holding only init (pid 1), with one mapped
// page for waitid blocks.
func boot(lim *limits.Syslimit_t) (*proc.Ptable_t, *proc.Proc_t, error) {
	pt := proc.Mkptable(lim)
	initp, err := pt.Proc_new(nil, 0, "init")
	if err != 0 {
		return nil, nil, errors.Wrap(err, "create init")
	}
	if err := initp.Vm.Mmap(ubase, vm.PGSIZE, defs.PROT_READ|defs.PROT_WRITE); err != 0 {
		return nil, nil, errors.Wrap(err, "map init page")
	}
	return pt, initp, nil
}

// uslot maps and returns a private page of init for waiting thread i.
func uslot(initp *proc.Proc_t, i int) (int, error) {
	va := ubase + (i+1)*vm.PGSIZE
	if err := initp.Vm.Mmap(va, vm.PGSIZE, defs.PROT_READ|defs.PROT_WRITE); err != 0 {
		return 0, errors.Wrapf(err, "map slot %d", i)
	}
	return va, nil
}

// parked waits until n threads of p sleep in waitid.
func parked(p *proc.Proc_t, n int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for p.Mywait.Nparked() < n {
		if time.Now().After(deadline) {
			return errors.Errorf("only %d of %d waiters parked", p.Mywait.Nparked(), n)
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}
