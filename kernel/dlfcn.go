package kernel

import (
	"sync"

	"github.com/wnxd/hnx"
)

type library struct {
	name string
	refs int
}

// dlfcn is a client's table of opened libraries. Opening a library twice
// returns the same id and needs two closes.
type dlfcn struct {
	rw     sync.Mutex
	libs   map[uint64]*library
	byName map[string]uint64
	next   uint64
}

func (d *dlfcn) ctor() {
	d.libs = make(map[uint64]*library)
	d.byName = make(map[string]uint64)
	d.next = 1
}

func (d *dlfcn) dtor() {
	d.rw.Lock()
	d.libs = nil
	d.byName = nil
	d.rw.Unlock()
}

func (d *dlfcn) open(name string) (uint64, error) {
	d.rw.Lock()
	defer d.rw.Unlock()
	if d.libs == nil {
		return 0, hnx.ErrBadState
	}
	if id, ok := d.byName[name]; ok {
		d.libs[id].refs++
		return id, nil
	}
	id := d.next
	d.next++
	d.libs[id] = &library{name: name, refs: 1}
	d.byName[name] = id
	return id, nil
}

func (d *dlfcn) get(id uint64) (*library, error) {
	d.rw.Lock()
	defer d.rw.Unlock()
	lib, ok := d.libs[id]
	if !ok {
		return nil, hnx.ErrBadHandle
	}
	return lib, nil
}

func (d *dlfcn) close(id uint64) error {
	d.rw.Lock()
	defer d.rw.Unlock()
	lib, ok := d.libs[id]
	if !ok {
		return hnx.ErrBadHandle
	}
	lib.refs--
	if lib.refs == 0 {
		delete(d.libs, id)
		delete(d.byName, lib.name)
	}
	return nil
}

func (k *Kernel) dlopen(c *Call) error {
	name := string(c.Data())
	if _, ok := k.cfg.Libraries[name]; !ok {
		return hnx.ErrNotFound
	}
	id, err := c.Client.libs.open(name)
	if err != nil {
		return err
	}
	c.Return(id)
	return nil
}

func (k *Kernel) dlclose(c *Call) error {
	return c.Client.libs.close(c.Arg(0))
}

func (k *Kernel) dlsym(c *Call) error {
	lib, err := c.Client.libs.get(c.Arg(0))
	if err != nil {
		return err
	}
	addr, ok := k.cfg.Libraries[lib.name][string(c.Data())]
	if !ok {
		return hnx.ErrNotFound
	}
	c.Return(addr)
	return nil
}
