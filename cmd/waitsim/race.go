package main

import (
	"time"

	"github.com/phuslu/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/sanjaysanjel019/serenity/defs"
	"github.com/sanjaysanjel019/serenity/kernel"
	"github.com/sanjaysanjel019/serenity/limits"
)

var (
	raceWaiters  int
	raceChildren int
)

var raceCmd = &cobra.Command{
	Use:   "race",
	Short: "let many any-child waiters race for exiting children",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := race(limits.Syslimit, raceWaiters, raceChildren)
		if err != nil {
			return err
		}
		log.Info().Int("waiters", raceWaiters).Int("children", raceChildren).
			Int64("reaped", res.reaped).Int64("echild", res.echild).
			Dur("took", res.took).Msg("race done")
		return nil
	},
}

func init() {
	raceCmd.Flags().IntVarP(&raceWaiters, "waiters", "w", 8, "threads of init waiting concurrently")
	raceCmd.Flags().IntVarP(&raceChildren, "children", "c", 4, "children that exit")
}

type raceres struct {
	reaped int64
	echild int64
	took   time.Duration
}

// race parks nwait threads of init in any-child waits, then lets nchild
// children exit. every exit must be reaped by exactly one waiter and the
// rest must see ECHILD once no child is left.
func race(lim *limits.Syslimit_t, nwait, nchild int) (raceres, error) {
	var res raceres
	if nwait < nchild || nchild <= 0 {
		return res, errors.Errorf("need 0 < children <= waiters, got %d/%d", nchild, nwait)
	}
	pt, initp, err := boot(lim)
	if err != nil {
		return res, err
	}
	pids := make([]int, nchild)
	for i := range pids {
		c, cerr := pt.Proc_new(initp, 1000, "racer")
		if cerr != 0 {
			return res, errors.Wrap(cerr, "fork")
		}
		pids[i] = c.Pid
	}

	// threads and slots first, so that a failure leaves nobody parked
	tids := make([]defs.Tid_t, nwait)
	vas := make([]int, nwait)
	for i := range tids {
		tid, terr := pt.Thread_new(initp)
		if terr != 0 {
			return res, errors.Wrap(terr, "thread")
		}
		va, err := uslot(initp, i)
		if err != nil {
			return res, err
		}
		tids[i], vas[i] = tid, va
	}

	start := time.Now()
	reaped := atomic.NewInt64(0)
	echild := atomic.NewInt64(0)
	seen := make([]atomic.Int32, nchild+pids[0]+1)
	var g errgroup.Group
	for i := range tids {
		tid, va := tids[i], vas[i]
		g.Go(func() error {
			si, ret := kernel.Uwait(initp, tid, va, defs.P_ALL, 0, defs.WEXITED)
			switch ret {
			case 0:
				reaped.Inc()
				if seen[si.Pid].Inc() != 1 {
					return errors.Errorf("pid %d reaped twice", si.Pid)
				}
			case int(-defs.ECHILD):
				echild.Inc()
			default:
				return errors.Wrap(defs.Err_t(ret), "waitid")
			}
			return nil
		})
	}
	// interrupts every waiter and waits for all of them before failing
	abort := func(err error) (raceres, error) {
		for _, tid := range tids {
			pt.Interrupt(tid)
		}
		g.Wait()
		return res, err
	}
	if err := parked(initp, nwait, parkTimeout); err != nil {
		return abort(err)
	}
	for _, pid := range pids {
		if err := pt.Exit(pid, 0); err != 0 {
			return abort(errors.Wrapf(err, "exit %d", pid))
		}
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	res.reaped = reaped.Load()
	res.echild = echild.Load()
	res.took = time.Since(start)
	if res.reaped != int64(nchild) || res.echild != int64(nwait-nchild) {
		return res, errors.Errorf("reaped %d, echild %d", res.reaped, res.echild)
	}
	return res, nil
}
