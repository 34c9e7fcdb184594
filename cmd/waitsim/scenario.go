package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/phuslu/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sanjaysanjel019/serenity/defs"
	"github.com/sanjaysanjel019/serenity/kernel"
	"github.com/sanjaysanjel019/serenity/limits"
	"github.com/sanjaysanjel019/serenity/proc"
)

const parkTimeout = 5 * time.Second

type scenario struct {
	name string
	desc string
	run  func(lim *limits.Syslimit_t) (string, error)
}

var scenarios = []scenario{
	{"a", "blocking any-child wait sees its only child exit", scenarioA},
	{"b", "wait for pid 7 with WSTOPPED sees it stop with SIGSTOP", scenarioB},
	{"c", "WNOHANG with nothing to report fails without sleeping", scenarioC},
	{"d", "an interrupted wait leaves infop and the child alone", scenarioD},
	{"e", "wait for a pid that never existed fails at once", scenarioE},
}

var scenarioCmd = &cobra.Command{
	Use:   "scenario [a|b|c|d|e|all]...",
	Short: "run the reference waitid scenarios",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			args = []string{"all"}
		}
		want := map[string]bool{}
		for _, a := range args {
			want[strings.ToLower(a)] = true
		}
		failed := 0
		for _, s := range scenarios {
			if !want["all"] && !want[s.name] {
				continue
			}
			res, err := s.run(limits.Syslimit)
			if err != nil {
				failed++
				log.Error().Str("scenario", s.name).Err(err).Msg(s.desc)
				continue
			}
			log.Info().Str("scenario", s.name).Str("result", res).Msg(s.desc)
		}
		if failed != 0 {
			return errors.Errorf("%d scenario(s) failed", failed)
		}
		return nil
	},
}

func sistr(si defs.Siginfo_t) string {
	return fmt.Sprintf("signo=%d code=%s pid=%d uid=%d status=%d",
		si.Signo, defs.Cldstr(si.Code), si.Pid, si.Uid, si.Status)
}

type wres struct {
	si  defs.Siginfo_t
	ret int
}

func bgwait(p *proc.Proc_t, tid defs.Tid_t, va, idtype, id, options int) chan wres {
	ch := make(chan wres, 1)
	go func() {
		si, ret := kernel.Uwait(p, tid, va, idtype, id, options)
		ch <- wres{si, ret}
	}()
	return ch
}

// result waits for a background waitid to return.
func result(ch chan wres) (wres, error) {
	select {
	case r := <-ch:
		return r, nil
	case <-time.After(parkTimeout):
		return wres{}, errors.New("waitid never returned")
	}
}

func scenarioA(lim *limits.Syslimit_t) (string, error) {
	pt, initp, err := boot(lim)
	if err != nil {
		return "", err
	}
	child, cerr := pt.Proc_new(initp, 1000, "child")
	if cerr != 0 {
		return "", errors.Wrap(cerr, "fork")
	}
	ch := bgwait(initp, initp.Tid0(), ubase, defs.P_ALL, 0, 0)
	if err := parked(initp, 1, parkTimeout); err != nil {
		return "", err
	}
	if err := pt.Set_state(child.Tid0(), proc.Dying); err != 0 {
		return "", errors.Wrap(err, "set dying")
	}
	if err := pt.Thread_dead(child.Tid0(), 3); err != 0 {
		return "", errors.Wrap(err, "thread dead")
	}
	r, err := result(ch)
	if err != nil {
		return "", err
	}
	if r.ret != 0 {
		return "", errors.Wrap(defs.Err_t(r.ret), "waitid")
	}
	if r.si.Code != defs.CLD_EXITED || r.si.Pid != child.Pid || r.si.Status != 3 {
		return "", errors.Errorf("unexpected siginfo %s", sistr(r.si))
	}
	if _, ok := pt.Proc_check(child.Pid); ok {
		return "", errors.New("child still in the process table")
	}
	return sistr(r.si), nil
}

func scenarioB(lim *limits.Syslimit_t) (string, error) {
	pt, initp, err := boot(lim)
	if err != nil {
		return "", err
	}
	var child *proc.Proc_t
	for child == nil || child.Pid < 7 {
		c, cerr := pt.Proc_new(initp, 1000, "child")
		if cerr != 0 {
			return "", errors.Wrap(cerr, "fork")
		}
		child = c
	}
	if child.Pid != 7 {
		return "", errors.Errorf("child got pid %d", child.Pid)
	}
	ch := bgwait(initp, initp.Tid0(), ubase, defs.P_PID, 7, defs.WSTOPPED)
	if err := parked(initp, 1, parkTimeout); err != nil {
		return "", err
	}
	if err := pt.Stop(7, defs.SIGSTOP); err != 0 {
		return "", errors.Wrap(err, "stop")
	}
	r, err := result(ch)
	if err != nil {
		return "", err
	}
	if r.ret != 0 {
		return "", errors.Wrap(defs.Err_t(r.ret), "waitid")
	}
	if r.si.Code != defs.CLD_STOPPED || r.si.Status != defs.SIGSTOP || r.si.Pid != 7 {
		return "", errors.Errorf("unexpected siginfo %s", sistr(r.si))
	}
	if _, ok := pt.Thread_check(7); !ok {
		return "", errors.New("thread 7 left the process table")
	}
	return sistr(r.si), nil
}

func scenarioC(lim *limits.Syslimit_t) (string, error) {
	pt, initp, err := boot(lim)
	if err != nil {
		return "", err
	}
	if _, cerr := pt.Proc_new(initp, 1000, "child"); cerr != 0 {
		return "", errors.Wrap(cerr, "fork")
	}
	start := time.Now()
	_, ret := kernel.Uwait(initp, initp.Tid0(), ubase, defs.P_ALL, 0, defs.WNOHANG|defs.WEXITED)
	if ret != int(-defs.ENOCHILDREADY) {
		return "", errors.Errorf("waitid returned %d", ret)
	}
	if initp.Mywait.Parks() != 0 {
		return "", errors.New("WNOHANG waiter slept")
	}
	return fmt.Sprintf("%v after %v, 0 parks", defs.Err_t(ret), time.Since(start)), nil
}

func scenarioD(lim *limits.Syslimit_t) (string, error) {
	pt, initp, err := boot(lim)
	if err != nil {
		return "", err
	}
	child, cerr := pt.Proc_new(initp, 1000, "child")
	if cerr != 0 {
		return "", errors.Wrap(cerr, "fork")
	}
	ch := bgwait(initp, initp.Tid0(), ubase, defs.P_ALL, 0, defs.WEXITED|defs.WSTOPPED)
	if err := parked(initp, 1, parkTimeout); err != nil {
		return "", err
	}
	if err := pt.Interrupt(initp.Tid0()); err != 0 {
		return "", errors.Wrap(err, "interrupt")
	}
	r, err := result(ch)
	if err != nil {
		return "", err
	}
	if r.ret != int(-defs.EINTR) {
		return "", errors.Errorf("waitid returned %d", r.ret)
	}
	buf := make([]uint8, defs.SISIZE)
	if err := initp.Vm.User2k(buf, ubase+defs.WPSIZE); err != 0 {
		return "", errors.Wrap(err, "read infop")
	}
	for _, b := range buf {
		if b != 0 {
			return "", errors.New("infop written by interrupted wait")
		}
	}
	st, _ := pt.Tstate(child.Tid0())
	if st != proc.Running {
		return "", errors.Errorf("child is %v", st)
	}
	return fmt.Sprintf("%v, child %d %v", defs.Err_t(r.ret), child.Pid, st), nil
}

func scenarioE(lim *limits.Syslimit_t) (string, error) {
	_, initp, err := boot(lim)
	if err != nil {
		return "", err
	}
	_, ret := kernel.Uwait(initp, initp.Tid0(), ubase, defs.P_PID, 4242, defs.WEXITED)
	if ret != int(-defs.ECHILD) {
		return "", errors.Errorf("waitid returned %d", ret)
	}
	if initp.Mywait.Parks() != 0 {
		return "", errors.New("waiter slept")
	}
	return defs.Err_t(ret).Error(), nil
}
