package kernel

import (
	"sync"

	"github.com/wnxd/hnx"
	"go.uber.org/zap"
)

const (
	maxIRQ  = 1019
	dmaBase = 0x4000_0000
)

// driver tracks user-space driver registrations. A client registers at most
// one driver name and owns the IRQ lines it requested until it exits.
type driver struct {
	rw      sync.Mutex
	names   map[string]int32
	owners  map[int32]string
	irqs    map[uint32]int32
	dmaNext uint64
}

func (d *driver) ctor() {
	d.names = make(map[string]int32)
	d.owners = make(map[int32]string)
	d.irqs = make(map[uint32]int32)
	d.dmaNext = dmaBase
}

func (d *driver) dtor() {
	d.rw.Lock()
	d.names = nil
	d.owners = nil
	d.irqs = nil
	d.rw.Unlock()
}

func (d *driver) register(pid int32, name string) error {
	d.rw.Lock()
	defer d.rw.Unlock()
	if d.names == nil {
		return hnx.ErrBadState
	}
	if _, ok := d.owners[pid]; ok {
		return hnx.ErrBadState
	}
	if _, ok := d.names[name]; ok {
		return hnx.ErrAlreadyExists
	}
	d.names[name] = pid
	d.owners[pid] = name
	return nil
}

func (d *driver) registered(pid int32) bool {
	d.rw.Lock()
	defer d.rw.Unlock()
	_, ok := d.owners[pid]
	return ok
}

func (d *driver) requestIRQ(pid int32, irq uint32) error {
	d.rw.Lock()
	defer d.rw.Unlock()
	if _, ok := d.owners[pid]; !ok {
		return hnx.ErrBadState
	}
	if _, ok := d.irqs[irq]; ok {
		return hnx.ErrAlreadyExists
	}
	d.irqs[irq] = pid
	return nil
}

func (d *driver) allocDMA(size uint64) uint64 {
	d.rw.Lock()
	defer d.rw.Unlock()
	phys := d.dmaNext
	d.dmaNext += size
	return phys
}

// releaseAll drops the driver name and IRQ lines owned by pid.
func (d *driver) releaseAll(pid int32) {
	d.rw.Lock()
	defer d.rw.Unlock()
	if name, ok := d.owners[pid]; ok {
		delete(d.names, name)
		delete(d.owners, pid)
	}
	for irq, owner := range d.irqs {
		if owner == pid {
			delete(d.irqs, irq)
		}
	}
}

func (k *Kernel) driver_register(c *Call) error {
	name := string(c.Data())
	if name == "" {
		return hnx.ErrInvalidArgs
	}
	if err := k.driver.register(c.Client.pid, name); err != nil {
		return err
	}
	c.Client.log.Info("driver registered", zap.String("driver", name))
	return nil
}

func (k *Kernel) driver_request_irq(c *Call) error {
	irq := c.Arg(0)
	if irq > maxIRQ {
		return hnx.ErrInvalidArgs
	}
	return k.driver.requestIRQ(c.Client.pid, uint32(irq))
}

func (k *Kernel) driver_map_mmio(c *Call) error {
	if !k.driver.registered(c.Client.pid) {
		return hnx.ErrBadState
	}
	phys := c.Arg(0)
	end, err := span(phys, c.Arg(1))
	if err != nil {
		return err
	}
	v, err := newVMO(end-phys, k.cfg.VMO.MaxSize)
	if err != nil {
		return err
	}
	v.phys = phys
	return k.returnHandle(c, v, hnx.RightsIO|hnx.RightMap)
}

func (k *Kernel) driver_dma_alloc(c *Call) error {
	if !k.driver.registered(c.Client.pid) {
		return hnx.ErrBadState
	}
	size, ok := pageAlign(c.Arg(0))
	if !ok || size == 0 {
		return hnx.ErrInvalidArgs
	}
	if err := k.admitVMO(size); err != nil {
		return err
	}
	v, err := newVMO(size, k.cfg.VMO.MaxSize)
	if err != nil {
		return err
	}
	v.phys = k.driver.allocDMA(size)
	if err := k.returnHandle(c, v, hnx.RightsIO|hnx.RightMap); err != nil {
		return err
	}
	c.Return(v.phys)
	return nil
}
