package kernel

import (
	"slices"
	"sync"

	"github.com/wnxd/hnx"
	"github.com/wnxd/microdbg/emulator"
)

const (
	mmapBase = 0x7000_0000_0000
	mmapTop  = 0x7fff_ffff_f000
)

type region struct {
	addr uint64
	size uint64
	prot emulator.MemProt
}

func (r region) end() uint64 {
	return r.addr + r.size
}

// addressSpace tracks a client's mapped regions, sorted by address and
// never overlapping.
type addressSpace struct {
	rw      sync.Mutex
	regions []region
}

func (as *addressSpace) reset() {
	as.rw.Lock()
	as.regions = nil
	as.rw.Unlock()
}

// checkProt accepts the emulator's protection bits, which share the
// PROT_READ, PROT_WRITE and PROT_EXEC encoding.
func checkProt(prot uint64) (emulator.MemProt, error) {
	if prot&^uint64(emulator.MEM_PROT_ALL) != 0 {
		return emulator.MEM_PROT_NONE, hnx.ErrInvalidArgs
	}
	return emulator.MemProt(prot), nil
}

// span validates a page range and returns its aligned end.
func span(addr, size uint64) (uint64, error) {
	if size == 0 || !pageAligned(addr) {
		return 0, hnx.ErrInvalidArgs
	}
	size, ok := pageAlign(size)
	if !ok || addr+size < addr {
		return 0, hnx.ErrInvalidArgs
	}
	return addr + size, nil
}

func (as *addressSpace) overlapsLocked(addr, end uint64) bool {
	for _, r := range as.regions {
		if addr < r.end() && r.addr < end {
			return true
		}
	}
	return false
}

// findLocked returns the lowest free gap of size bytes at or above mmapBase.
func (as *addressSpace) findLocked(size uint64) (uint64, bool) {
	if size > mmapTop-mmapBase {
		return 0, false
	}
	addr := uint64(mmapBase)
	for _, r := range as.regions {
		if r.end() <= addr {
			continue
		}
		if r.addr >= addr+size {
			break
		}
		addr = r.end()
	}
	return addr, addr+size <= mmapTop
}

func (as *addressSpace) insertLocked(r region) {
	i, _ := slices.BinarySearchFunc(as.regions, r.addr, func(e region, addr uint64) int {
		switch {
		case e.addr < addr:
			return -1
		case e.addr > addr:
			return 1
		}
		return 0
	})
	as.regions = slices.Insert(as.regions, i, r)
}

func (as *addressSpace) mmap(addr, size uint64, prot emulator.MemProt) (uint64, error) {
	as.rw.Lock()
	defer as.rw.Unlock()
	if addr == 0 {
		aligned, ok := pageAlign(size)
		if size == 0 || !ok {
			return 0, hnx.ErrInvalidArgs
		}
		addr, ok = as.findLocked(aligned)
		if !ok {
			return 0, hnx.ErrNoMemory
		}
		size = aligned
	} else {
		end, err := span(addr, size)
		if err != nil {
			return 0, err
		}
		if as.overlapsLocked(addr, end) {
			return 0, hnx.ErrAlreadyExists
		}
		size = end - addr
	}
	as.insertLocked(region{addr: addr, size: size, prot: prot})
	return addr, nil
}

// carveLocked removes [addr, end) from every region, splitting as needed, and
// returns the pieces removed.
func (as *addressSpace) carveLocked(addr, end uint64) []region {
	var kept, cut []region
	for _, r := range as.regions {
		if end <= r.addr || r.end() <= addr {
			kept = append(kept, r)
			continue
		}
		if r.addr < addr {
			kept = append(kept, region{addr: r.addr, size: addr - r.addr, prot: r.prot})
		}
		if r.end() > end {
			kept = append(kept, region{addr: end, size: r.end() - end, prot: r.prot})
		}
		lo, hi := max(r.addr, addr), min(r.end(), end)
		cut = append(cut, region{addr: lo, size: hi - lo, prot: r.prot})
	}
	slices.SortFunc(kept, func(a, b region) int {
		switch {
		case a.addr < b.addr:
			return -1
		case a.addr > b.addr:
			return 1
		}
		return 0
	})
	as.regions = kept
	return cut
}

func (as *addressSpace) munmap(addr, size uint64) error {
	end, err := span(addr, size)
	if err != nil {
		return err
	}
	as.rw.Lock()
	as.carveLocked(addr, end)
	as.rw.Unlock()
	return nil
}

// mprotect changes the protection of a fully mapped range.
func (as *addressSpace) mprotect(addr, size uint64, prot emulator.MemProt) error {
	end, err := span(addr, size)
	if err != nil {
		return err
	}
	as.rw.Lock()
	defer as.rw.Unlock()
	covered := uint64(0)
	for _, r := range as.regions {
		lo, hi := max(r.addr, addr), min(r.end(), end)
		if lo < hi {
			covered += hi - lo
		}
	}
	if covered != end-addr {
		return hnx.ErrNoMemory
	}
	for _, r := range as.carveLocked(addr, end) {
		r.prot = prot
		as.insertLocked(r)
	}
	return nil
}

// lookup returns the region containing addr.
func (as *addressSpace) lookup(addr uint64) (region, bool) {
	as.rw.Lock()
	defer as.rw.Unlock()
	for _, r := range as.regions {
		if addr >= r.addr && addr < r.end() {
			return r, true
		}
	}
	return region{}, false
}

func (k *Kernel) mmap(c *Call) error {
	prot, err := checkProt(c.Arg(2))
	if err != nil {
		return err
	}
	addr, err := c.Client.mm.mmap(c.Arg(0), c.Arg(1), prot)
	if err != nil {
		return err
	}
	c.Return(addr)
	return nil
}

func (k *Kernel) munmap(c *Call) error {
	return c.Client.mm.munmap(c.Arg(0), c.Arg(1))
}

func (k *Kernel) mprotect(c *Call) error {
	prot, err := checkProt(c.Arg(2))
	if err != nil {
		return err
	}
	return c.Client.mm.mprotect(c.Arg(0), c.Arg(1), prot)
}
