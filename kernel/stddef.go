package kernel

const (
	pageSize = 0x1000
	pageMask = pageSize - 1
)

func pageAligned(x uint64) bool {
	return x&pageMask == 0
}

// pageAlign rounds x up to a page boundary. ok is false on overflow.
func pageAlign(x uint64) (aligned uint64, ok bool) {
	aligned = (x + pageMask) &^ pageMask
	return aligned, aligned >= x
}
