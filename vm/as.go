package vm

import "sync"

import "github.com/sanjaysanjel019/serenity/defs"
import "github.com/sanjaysanjel019/serenity/util"

const (
	PGSHIFT  = 12
	PGSIZE   = 1 << PGSHIFT
	PGOFFSET = PGSIZE - 1

	PTE_P = 1 << 0
	PTE_W = 1 << 1
	PTE_U = 1 << 2

	// lowest mappable user address; the zero page is never mapped
	USERMIN = PGSIZE
	// one past the highest user address
	USERMAX = 1 << 47
)

type Pg_t [PGSIZE]uint8

type Pte_t struct {
	Flags int
	Pg    *Pg_t
}

// Vm_t is a user address space shared by all threads of a process. every
// lookup of a user address and the access through it happens with the pmap
// lock held, so a concurrent unmap/protect by another thread is either fully
// before or fully after the access.
type Vm_t struct {
	sync.Mutex
	pgfltaken bool
	// page number -> pte
	pmap map[int]*Pte_t
	// max pages mapped
	Pglimit int
}

func Mkvm(pglimit int) *Vm_t {
	return &Vm_t{pmap: make(map[int]*Pte_t), Pglimit: pglimit}
}

func (as *Vm_t) Lock_pmap() {
	as.Lock()
	as.pgfltaken = true
}

func (as *Vm_t) Unlock_pmap() {
	as.pgfltaken = false
	as.Unlock()
}

func (as *Vm_t) Lockassert_pmap() {
	if !as.pgfltaken {
		panic("pgfl lock must be held")
	}
}

func pgrange(va, l int) (int, int, bool) {
	if va < USERMIN || l <= 0 || va+l > USERMAX || va+l < va {
		return 0, 0, false
	}
	return va >> PGSHIFT, util.Roundup(va+l, PGSIZE) >> PGSHIFT, true
}

func prot2pte(prot int) int {
	if prot&(defs.PROT_READ|defs.PROT_WRITE) == 0 {
		return 0
	}
	ret := PTE_P | PTE_U
	if prot&defs.PROT_WRITE != 0 {
		ret |= PTE_W
	}
	return ret
}

// Mmap maps zeroed anonymous memory at the page aligned address va,
// replacing any existing mapping in the range.
func (as *Vm_t) Mmap(va, l, prot int) defs.Err_t {
	if va&PGOFFSET != 0 {
		return -defs.EINVAL
	}
	start, end, ok := pgrange(va, l)
	if !ok {
		return -defs.EINVAL
	}
	as.Lock_pmap()
	defer as.Unlock_pmap()
	add := 0
	for pgn := start; pgn < end; pgn++ {
		if _, ok := as.pmap[pgn]; !ok {
			add++
		}
	}
	if len(as.pmap)+add > as.Pglimit {
		return -defs.ENOMEM
	}
	flags := prot2pte(prot)
	for pgn := start; pgn < end; pgn++ {
		as.pmap[pgn] = &Pte_t{Flags: flags, Pg: new(Pg_t)}
	}
	return 0
}

// Munmap removes every mapping in the range; unmapped pages are ignored.
func (as *Vm_t) Munmap(va, l int) defs.Err_t {
	if va&PGOFFSET != 0 {
		return -defs.EINVAL
	}
	start, end, ok := pgrange(va, l)
	if !ok {
		return -defs.EINVAL
	}
	as.Lock_pmap()
	for pgn := start; pgn < end; pgn++ {
		delete(as.pmap, pgn)
	}
	as.Unlock_pmap()
	return 0
}

// Mprotect fails with ENOMEM, changing nothing, if part of the range is
// unmapped.
func (as *Vm_t) Mprotect(va, l, prot int) defs.Err_t {
	if va&PGOFFSET != 0 {
		return -defs.EINVAL
	}
	start, end, ok := pgrange(va, l)
	if !ok {
		return -defs.EINVAL
	}
	as.Lock_pmap()
	defer as.Unlock_pmap()
	for pgn := start; pgn < end; pgn++ {
		if _, ok := as.pmap[pgn]; !ok {
			return -defs.ENOMEM
		}
	}
	flags := prot2pte(prot)
	for pgn := start; pgn < end; pgn++ {
		as.pmap[pgn].Flags = flags
	}
	return 0
}

func (as *Vm_t) Mapped() int {
	as.Lock_pmap()
	ret := len(as.pmap)
	as.Unlock_pmap()
	return ret
}

// returns the rest of the page containing va.
func (as *Vm_t) Userdmap8_inner(va int, k2u bool) ([]uint8, defs.Err_t) {
	as.Lockassert_pmap()

	if va < USERMIN || va >= USERMAX {
		return nil, -defs.EFAULT
	}
	pte, ok := as.pmap[va>>PGSHIFT]
	if !ok {
		return nil, -defs.EFAULT
	}
	ecode := PTE_P | PTE_U
	if k2u {
		ecode |= PTE_W
	}
	if pte.Flags&ecode != ecode {
		return nil, -defs.EFAULT
	}
	voff := va & PGOFFSET
	return pte.Pg[voff:], 0
}

// Validate_inner checks that every page of [va, va+n) is present and user
// accessible, and writable if write is set.
func (as *Vm_t) Validate_inner(va, n int, write bool) defs.Err_t {
	as.Lockassert_pmap()
	start, end, ok := pgrange(va, n)
	if !ok {
		return -defs.EFAULT
	}
	for pgn := start; pgn < end; pgn++ {
		if _, err := as.Userdmap8_inner(pgn<<PGSHIFT, write); err != 0 {
			return err
		}
	}
	return 0
}

func (as *Vm_t) Validate_write(va, n int) defs.Err_t {
	as.Lock_pmap()
	ret := as.Validate_inner(va, n, true)
	as.Unlock_pmap()
	return ret
}

func (as *Vm_t) Validate_read(va, n int) defs.Err_t {
	as.Lock_pmap()
	ret := as.Validate_inner(va, n, false)
	as.Unlock_pmap()
	return ret
}

// nothing is written unless the whole destination is writable.
func (as *Vm_t) K2user_inner(src []uint8, uva int) defs.Err_t {
	as.Lockassert_pmap()
	if len(src) == 0 {
		return 0
	}
	if err := as.Validate_inner(uva, len(src), true); err != 0 {
		return err
	}
	cnt := 0
	for len(src) != 0 {
		dst, err := as.Userdmap8_inner(uva+cnt, true)
		if err != 0 {
			panic("validated page vanished")
		}
		c := copy(dst, src)
		src = src[c:]
		cnt += c
	}
	return 0
}

// copies len(dst) bytes from userspace address uva to dst
func (as *Vm_t) User2k(dst []uint8, uva int) defs.Err_t {
	as.Lock_pmap()
	ret := as.User2k_inner(dst, uva)
	as.Unlock_pmap()
	return ret
}

func (as *Vm_t) User2k_inner(dst []uint8, uva int) defs.Err_t {
	as.Lockassert_pmap()
	cnt := 0
	for len(dst) != 0 {
		src, err := as.Userdmap8_inner(uva+cnt, false)
		if err != 0 {
			return err
		}
		c := copy(dst, src)
		dst = dst[c:]
		cnt += c
	}
	return 0
}
