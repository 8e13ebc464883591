package kernel

import (
	"sync"
	"sync/atomic"

	"github.com/wnxd/hnx"
)

var nextKoid atomic.Uint64

// Object is a reference-counted kernel object. The variants are fixed:
// *Channel, *Process, *Thread, *VMO, *Endpoint and *Socket.
type Object interface {
	Type() hnx.ObjectType
	Koid() uint64
	header() *object
	destroy()
}

// object is the state every variant embeds.
type object struct {
	koid uint64
	refs atomic.Int32
	once sync.Once
}

func (o *object) init() {
	o.koid = nextKoid.Add(1)
}

func (o *object) Koid() uint64 {
	return o.koid
}

func (o *object) header() *object {
	return o
}

// Refs returns the number of live references, for diagnostics.
func Refs(obj Object) int {
	return int(obj.header().refs.Load())
}

func retain(obj Object) {
	obj.header().refs.Add(1)
}

// release drops one reference and destroys obj when it was the last.
func release(obj Object) {
	h := obj.header()
	if h.refs.Add(-1) == 0 {
		h.once.Do(obj.destroy)
	}
}

// discard destroys an object that never got a reference.
func discard(obj Object) {
	h := obj.header()
	if h.refs.Load() == 0 {
		h.once.Do(obj.destroy)
	}
}
