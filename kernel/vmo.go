package kernel

import (
	"sync"

	"github.com/wnxd/hnx"
	"go.uber.org/zap"
)

// VMO is a sized, zero-filled byte store. Backing memory is only allocated up
// to the highest byte written.
type VMO struct {
	object
	rw   sync.RWMutex
	size uint64
	max  uint64
	data []byte
	phys uint64
	// file VMOs grow on write and read short at the end.
	file bool
}

func newVMO(size, max uint64) (*VMO, error) {
	if size == 0 || size > max {
		return nil, hnx.ErrInvalidArgs
	}
	v := &VMO{size: size, max: max}
	v.init()
	return v, nil
}

func newFileVMO(max uint64) *VMO {
	v := &VMO{max: max, file: true}
	v.init()
	return v
}

func (v *VMO) Type() hnx.ObjectType {
	return hnx.ObjVMO
}

func (v *VMO) Size() uint64 {
	v.rw.RLock()
	defer v.rw.RUnlock()
	return v.size
}

// Phys returns the physical address backing a driver VMO, or 0.
func (v *VMO) Phys() uint64 {
	return v.phys
}

func (v *VMO) read(off, n uint64) ([]byte, error) {
	v.rw.RLock()
	defer v.rw.RUnlock()
	if off >= v.size {
		if v.file {
			return nil, nil
		}
		return nil, hnx.ErrInvalidArgs
	}
	n = min(n, v.size-off)
	buf := make([]byte, n)
	if off < uint64(len(v.data)) {
		copy(buf, v.data[off:])
	}
	return buf, nil
}

func (v *VMO) write(off uint64, p []byte) (int, error) {
	v.rw.Lock()
	defer v.rw.Unlock()
	end := off + uint64(len(p))
	if end < off {
		return 0, hnx.ErrInvalidArgs
	}
	if len(p) == 0 {
		return 0, nil
	}
	if v.file {
		if end > v.max {
			return 0, hnx.ErrNoMemory
		}
		v.size = max(v.size, end)
	} else if off >= v.size {
		return 0, hnx.ErrInvalidArgs
	} else {
		end = min(end, v.size)
	}
	if uint64(len(v.data)) < end {
		grown := make([]byte, end)
		copy(grown, v.data)
		v.data = grown
	}
	return copy(v.data[off:end], p), nil
}

func (v *VMO) truncate() {
	v.rw.Lock()
	v.size = 0
	v.data = nil
	v.rw.Unlock()
}

func (v *VMO) destroy() {
	v.truncate()
}

func (k *Kernel) admitVMO(size uint64) error {
	if size == 0 || size > k.cfg.VMO.MaxSize {
		return hnx.ErrInvalidArgs
	}
	if !k.cfg.VMO.CheckHostMemory {
		return nil
	}
	avail, err := availableMemory()
	if err != nil {
		k.log.Warn("host memory query failed", zap.Error(err))
		return nil
	}
	if size > avail {
		return hnx.ErrNoMemory
	}
	return nil
}

func (k *Kernel) vmo_create(c *Call) error {
	size := c.Arg(0)
	if err := k.admitVMO(size); err != nil {
		return err
	}
	v, err := newVMO(size, k.cfg.VMO.MaxSize)
	if err != nil {
		return err
	}
	return k.returnHandle(c, v, hnx.RightsBasic|hnx.RightMap)
}

func (k *Kernel) vmo_read(c *Call) error {
	v := objectArg[*VMO](c, 0)
	buf, err := v.read(c.Arg(1), c.Arg(2))
	if err != nil {
		return err
	}
	c.SetData(buf)
	c.Return(uint64(len(buf)))
	return nil
}

func (k *Kernel) vmo_write(c *Call) error {
	v := objectArg[*VMO](c, 0)
	n, err := v.write(c.Arg(1), c.Data())
	if err != nil {
		return err
	}
	c.Return(uint64(n))
	return nil
}
