package proc

import "fmt"

// Tstate_t is a thread's lifecycle state. only Dead is terminal.
type Tstate_t int

const (
	Running Tstate_t = iota
	Runnable
	Blocked
	Stopped
	Dying
	Queued
	Dead
)

var tstatestr = [...]string{
	Running:  "running",
	Runnable: "runnable",
	Blocked:  "blocked",
	Stopped:  "stopped",
	Dying:    "dying",
	Queued:   "queued",
	Dead:     "dead",
}

func (s Tstate_t) String() string {
	if s < Running || s > Dead {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return tstatestr[s]
}

func tbit(ss ...Tstate_t) uint {
	var ret uint
	for _, s := range ss {
		ret |= 1 << uint(s)
	}
	return ret
}

// allowed successors of each state
var transitions = [...]uint{
	Running:  tbit(Runnable, Blocked, Stopped, Dying),
	Runnable: tbit(Running, Queued, Stopped, Dying),
	Blocked:  tbit(Running, Runnable, Stopped, Dying),
	Stopped:  tbit(Running, Runnable, Dying),
	Dying:    tbit(Dead),
	Queued:   tbit(Running, Runnable, Stopped, Dying),
	Dead:     0,
}

func Valid_transition(from, to Tstate_t) bool {
	if from < Running || from > Dead || to < Running || to > Dead {
		return false
	}
	return transitions[from]&(1<<uint(to)) != 0
}
