package defs

type Tid_t int

// identifier used in place of a pid when any child may satisfy a wait
const WAIT_ANY = -1

const (
	SIGKILL = 9
	SIGSEGV = 11
	SIGCHLD = 17
	SIGCONT = 18
	SIGSTOP = 19
	SIGTSTP = 20
)

// signals whose default action dumps core
func Coresig(sig int) bool {
	switch sig {
	case 3, 4, 5, 6, 7, 8, SIGSEGV, 24, 25, 31:
		return true
	}
	return false
}
