package kernel

import (
	"container/heap"
	"context"
	"sync"

	"github.com/wnxd/hnx"
)

type entry struct {
	obj    Object
	rights hnx.Rights
	// ctx ends when the handle is closed; calls blocked on it are canceled.
	ctx    context.Context
	cancel context.CancelFunc
}

// freeList is a min-heap of released handle values.
type freeList []hnx.Handle

func (f freeList) Len() int           { return len(f) }
func (f freeList) Less(i, j int) bool { return f[i] < f[j] }
func (f freeList) Swap(i, j int)      { f[i], f[j] = f[j], f[i] }
func (f *freeList) Push(x any)        { *f = append(*f, x.(hnx.Handle)) }
func (f *freeList) Pop() any {
	old := *f
	h := old[len(old)-1]
	*f = old[:len(old)-1]
	return h
}

// HandleTable maps a client's handle values to kernel objects. Values start at
// 1 and the lowest released value is reused first. All operations are atomic
// with respect to each other; lookups share a read lock.
type HandleTable struct {
	rw      sync.RWMutex
	entries []*entry // entries[h-1]
	free    freeList
	live    int
	max     int
	closed  bool
}

func NewHandleTable(max int) *HandleTable {
	return &HandleTable{max: max}
}

// Create binds obj to the lowest free handle value. If obj has no other
// reference and the table refuses it, obj is destroyed.
func (t *HandleTable) Create(obj Object, rights hnx.Rights) (hnx.Handle, error) {
	t.rw.Lock()
	h, err := t.insertLocked(obj, rights)
	t.rw.Unlock()
	if err != nil {
		discard(obj)
	}
	return h, err
}

func (t *HandleTable) insertLocked(obj Object, rights hnx.Rights) (hnx.Handle, error) {
	if t.closed {
		return hnx.HandleInvalid, hnx.ErrBadState
	}
	if t.live >= t.max {
		return hnx.HandleInvalid, hnx.ErrNoResources
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &entry{obj: obj, rights: rights &^ hnx.SameRights, ctx: ctx, cancel: cancel}
	var h hnx.Handle
	if t.free.Len() > 0 {
		h = heap.Pop(&t.free).(hnx.Handle)
		t.entries[h-1] = e
	} else {
		t.entries = append(t.entries, e)
		h = hnx.Handle(len(t.entries))
	}
	t.live++
	retain(obj)
	return h, nil
}

func (t *HandleTable) lookupLocked(h hnx.Handle) (*entry, error) {
	if h == hnx.HandleInvalid || int(h) > len(t.entries) {
		return nil, hnx.ErrBadHandle
	}
	e := t.entries[h-1]
	if e == nil {
		return nil, hnx.ErrBadHandle
	}
	return e, nil
}

func check(e *entry, typ hnx.ObjectType, rights hnx.Rights) error {
	if typ != hnx.ObjAny && e.obj.Type() != typ {
		return hnx.ErrWrongType
	}
	if !e.rights.Contains(rights) {
		return hnx.ErrPermissionDenied
	}
	return nil
}

// Resolve returns the object behind h. It fails with ErrBadHandle when h is
// not allocated, ErrWrongType when the object is not a typ (ObjAny matches
// every type) and ErrPermissionDenied when h lacks rights. It never mutates the table.
func (t *HandleTable) Resolve(h hnx.Handle, typ hnx.ObjectType, rights hnx.Rights) (Object, error) {
	t.rw.RLock()
	defer t.rw.RUnlock()
	e, err := t.lookupLocked(h)
	if err != nil {
		return nil, err
	}
	if err := check(e, typ, rights); err != nil {
		return nil, err
	}
	return e.obj, nil
}

// acquire is Resolve plus a reference held for the duration of a call, and
// the context that ends when h is closed. The caller must release the object.
func (t *HandleTable) acquire(h hnx.Handle, typ hnx.ObjectType, rights hnx.Rights) (Object, context.Context, error) {
	t.rw.RLock()
	defer t.rw.RUnlock()
	e, err := t.lookupLocked(h)
	if err != nil {
		return nil, nil, err
	}
	if err := check(e, typ, rights); err != nil {
		return nil, nil, err
	}
	retain(e.obj)
	return e.obj, e.ctx, nil
}

// Rights returns the rights h carries.
func (t *HandleTable) Rights(h hnx.Handle) (hnx.Rights, error) {
	t.rw.RLock()
	defer t.rw.RUnlock()
	e, err := t.lookupLocked(h)
	if err != nil {
		return hnx.RightsNone, err
	}
	return e.rights, nil
}

// Duplicate binds the object behind h to a new handle value. rights must be a
// subset of the source rights, or SameRights.
func (t *HandleTable) Duplicate(h hnx.Handle, rights hnx.Rights) (hnx.Handle, error) {
	t.rw.Lock()
	defer t.rw.Unlock()
	e, err := t.lookupLocked(h)
	if err != nil {
		return hnx.HandleInvalid, err
	}
	if !e.rights.Contains(hnx.RightDuplicate) {
		return hnx.HandleInvalid, hnx.ErrPermissionDenied
	}
	if rights&hnx.SameRights != 0 {
		rights = e.rights
	} else if !e.rights.Contains(rights) {
		return hnx.HandleInvalid, hnx.ErrInvalidArgs
	}
	return t.insertLocked(e.obj, rights)
}

// Close unbinds h and drops its reference, destroying the object when it was
// the last one.
func (t *HandleTable) Close(h hnx.Handle) error {
	t.rw.Lock()
	e, err := t.lookupLocked(h)
	if err != nil {
		t.rw.Unlock()
		return err
	}
	t.entries[h-1] = nil
	heap.Push(&t.free, h)
	t.live--
	t.rw.Unlock()

	e.cancel()
	release(e.obj)
	return nil
}

// CloseAll closes every live handle and refuses new ones. Only the first call
// has any effect.
func (t *HandleTable) CloseAll() {
	t.rw.Lock()
	if t.closed {
		t.rw.Unlock()
		return
	}
	t.closed = true
	entries := t.entries
	t.entries = nil
	t.free = nil
	t.live = 0
	t.rw.Unlock()

	for _, e := range entries {
		if e == nil {
			continue
		}
		e.cancel()
		release(e.obj)
	}
}

// Len returns the number of live handles.
func (t *HandleTable) Len() int {
	t.rw.RLock()
	defer t.rw.RUnlock()
	return t.live
}
