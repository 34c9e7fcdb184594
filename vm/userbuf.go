package vm

import "github.com/sanjaysanjel019/serenity/defs"
import "github.com/sanjaysanjel019/serenity/util"

// Userbuf_t is a cursor over a range of user memory. each transfer holds the
// pmap lock, so a concurrent unmap by another thread lands entirely before
// or after it. after a faulting read the cursor stays on the first byte that
// was not moved, and the read can be retried once the memory is back.
type Userbuf_t struct {
	as    *Vm_t
	start int
	size  int
	done  int
}

func (ub *Userbuf_t) Ub_init(as *Vm_t, uva, size int) {
	if size < 0 {
		panic("negative length")
	}
	*ub = Userbuf_t{as: as, start: uva, size: size}
}

func (ub *Userbuf_t) Remain() int {
	return ub.size - ub.done
}

func (ub *Userbuf_t) Totalsz() int {
	return ub.size
}

// Uioread copies from user memory into dst until dst is full or the buffer
// is exhausted.
func (ub *Userbuf_t) Uioread(dst []uint8) (int, defs.Err_t) {
	ub.as.Lock_pmap()
	defer ub.as.Unlock_pmap()
	return ub.move(dst)
}

// Uiowrite copies as much of src as fits into the rest of the buffer. the
// copy is all or nothing: a fault anywhere in the destination writes no byte
// and leaves the cursor where it was.
func (ub *Userbuf_t) Uiowrite(src []uint8) (int, defs.Err_t) {
	ub.as.Lock_pmap()
	defer ub.as.Unlock_pmap()
	return ub.Uiowrite_inner(src)
}

func (ub *Userbuf_t) Uiowrite_inner(src []uint8) (int, defs.Err_t) {
	n := util.Min(len(src), ub.Remain())
	if err := ub.as.K2user_inner(src[:n], ub.start+ub.done); err != 0 {
		return 0, err
	}
	ub.done += n
	return n, 0
}

func (ub *Userbuf_t) move(kbuf []uint8) (int, defs.Err_t) {
	ub.as.Lockassert_pmap()
	moved := 0
	for moved < len(kbuf) && ub.Remain() > 0 {
		pg, err := ub.as.Userdmap8_inner(ub.start+ub.done, false)
		if err != 0 {
			return moved, err
		}
		n := util.Min(len(pg), util.Min(ub.Remain(), len(kbuf)-moved))
		copy(kbuf[moved:moved+n], pg)
		moved += n
		ub.done += n
	}
	return moved, 0
}
