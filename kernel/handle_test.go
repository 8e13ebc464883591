package kernel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnxd/hnx"
)

type testObject struct {
	object
	typ       hnx.ObjectType
	destroyed atomic.Int32
}

func newTestObject(typ hnx.ObjectType) *testObject {
	o := &testObject{typ: typ}
	o.init()
	return o
}

func (o *testObject) Type() hnx.ObjectType {
	return o.typ
}

func (o *testObject) destroy() {
	o.destroyed.Add(1)
}

func TestHandleTableCreate(t *testing.T) {
	tab := NewHandleTable(8)
	a := newTestObject(hnx.ObjChannel)
	h1, err := tab.Create(a, hnx.RightsBasic)
	require.NoError(t, err)
	h2, err := tab.Create(newTestObject(hnx.ObjVMO), hnx.RightsBasic)
	require.NoError(t, err)
	assert.Equal(t, hnx.Handle(1), h1)
	assert.Equal(t, hnx.Handle(2), h2)
	assert.Equal(t, 2, tab.Len())
	assert.Equal(t, 1, Refs(a))

	obj, err := tab.Resolve(h1, hnx.ObjChannel, hnx.RightRead)
	require.NoError(t, err)
	assert.Same(t, a, obj)
}

func TestHandleTableReusesLowest(t *testing.T) {
	tab := NewHandleTable(8)
	for range 5 {
		_, err := tab.Create(newTestObject(hnx.ObjVMO), hnx.RightsBasic)
		require.NoError(t, err)
	}
	require.NoError(t, tab.Close(4))
	require.NoError(t, tab.Close(2))

	h, err := tab.Create(newTestObject(hnx.ObjVMO), hnx.RightsBasic)
	require.NoError(t, err)
	assert.Equal(t, hnx.Handle(2), h)
	h, err = tab.Create(newTestObject(hnx.ObjVMO), hnx.RightsBasic)
	require.NoError(t, err)
	assert.Equal(t, hnx.Handle(4), h)
	h, err = tab.Create(newTestObject(hnx.ObjVMO), hnx.RightsBasic)
	require.NoError(t, err)
	assert.Equal(t, hnx.Handle(6), h)
}

func TestHandleTableFull(t *testing.T) {
	tab := NewHandleTable(2)
	for range 2 {
		_, err := tab.Create(newTestObject(hnx.ObjVMO), hnx.RightsBasic)
		require.NoError(t, err)
	}
	o := newTestObject(hnx.ObjVMO)
	h, err := tab.Create(o, hnx.RightsBasic)
	assert.ErrorIs(t, err, hnx.ErrNoResources)
	assert.Equal(t, hnx.HandleInvalid, h)
	assert.Equal(t, int32(1), o.destroyed.Load())
	assert.Equal(t, 2, tab.Len())
}

func TestHandleTableResolve(t *testing.T) {
	tab := NewHandleTable(8)
	h, err := tab.Create(newTestObject(hnx.ObjChannel), hnx.RightRead)
	require.NoError(t, err)

	tests := []struct {
		name   string
		h      hnx.Handle
		typ    hnx.ObjectType
		rights hnx.Rights
		want   error
	}{
		{"ok", h, hnx.ObjChannel, hnx.RightRead, nil},
		{"any type", h, hnx.ObjAny, hnx.RightsNone, nil},
		{"invalid", hnx.HandleInvalid, hnx.ObjAny, hnx.RightsNone, hnx.ErrBadHandle},
		{"unallocated", 99, hnx.ObjAny, hnx.RightsNone, hnx.ErrBadHandle},
		{"wrong type", h, hnx.ObjVMO, hnx.RightRead, hnx.ErrWrongType},
		{"missing right", h, hnx.ObjChannel, hnx.RightWrite, hnx.ErrPermissionDenied},
		// type is checked before rights
		{"wrong type and right", h, hnx.ObjVMO, hnx.RightWrite, hnx.ErrWrongType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tab.Resolve(tt.h, tt.typ, tt.rights)
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
	assert.Equal(t, 1, tab.Len())
}

func TestHandleTableDuplicate(t *testing.T) {
	tab := NewHandleTable(8)
	o := newTestObject(hnx.ObjVMO)
	h, err := tab.Create(o, hnx.RightsBasic)
	require.NoError(t, err)

	ro, err := tab.Duplicate(h, hnx.RightRead)
	require.NoError(t, err)
	rights, err := tab.Rights(ro)
	require.NoError(t, err)
	assert.Equal(t, hnx.RightRead, rights)
	assert.Equal(t, 2, Refs(o))

	same, err := tab.Duplicate(h, hnx.SameRights)
	require.NoError(t, err)
	rights, err = tab.Rights(same)
	require.NoError(t, err)
	assert.Equal(t, hnx.RightsBasic, rights)

	_, err = tab.Duplicate(h, hnx.RightsBasic|hnx.RightExecute)
	assert.ErrorIs(t, err, hnx.ErrInvalidArgs)

	// ro lacks RightDuplicate
	_, err = tab.Duplicate(ro, hnx.RightRead)
	assert.ErrorIs(t, err, hnx.ErrPermissionDenied)

	_, err = tab.Duplicate(42, hnx.SameRights)
	assert.ErrorIs(t, err, hnx.ErrBadHandle)
}

func TestHandleTableClose(t *testing.T) {
	tab := NewHandleTable(8)
	o := newTestObject(hnx.ObjVMO)
	h, err := tab.Create(o, hnx.RightsBasic)
	require.NoError(t, err)
	dup, err := tab.Duplicate(h, hnx.SameRights)
	require.NoError(t, err)

	require.NoError(t, tab.Close(h))
	assert.Zero(t, o.destroyed.Load())
	_, err = tab.Resolve(h, hnx.ObjAny, hnx.RightsNone)
	assert.ErrorIs(t, err, hnx.ErrBadHandle)
	assert.ErrorIs(t, tab.Close(h), hnx.ErrBadHandle)

	require.NoError(t, tab.Close(dup))
	assert.Equal(t, int32(1), o.destroyed.Load())
	assert.Zero(t, tab.Len())
}

func TestHandleTableAcquireOutlivesClose(t *testing.T) {
	tab := NewHandleTable(8)
	o := newTestObject(hnx.ObjVMO)
	h, err := tab.Create(o, hnx.RightsBasic)
	require.NoError(t, err)

	obj, ctx, err := tab.acquire(h, hnx.ObjVMO, hnx.RightRead)
	require.NoError(t, err)
	require.NoError(t, tab.Close(h))
	assert.Error(t, ctx.Err())
	assert.Zero(t, o.destroyed.Load())

	release(obj)
	assert.Equal(t, int32(1), o.destroyed.Load())
}

func TestHandleTableCloseAll(t *testing.T) {
	tab := NewHandleTable(8)
	objs := []*testObject{newTestObject(hnx.ObjVMO), newTestObject(hnx.ObjChannel)}
	for _, o := range objs {
		_, err := tab.Create(o, hnx.RightsBasic)
		require.NoError(t, err)
	}
	tab.CloseAll()
	tab.CloseAll()
	for _, o := range objs {
		assert.Equal(t, int32(1), o.destroyed.Load())
	}
	assert.Zero(t, tab.Len())

	o := newTestObject(hnx.ObjVMO)
	_, err := tab.Create(o, hnx.RightsBasic)
	assert.ErrorIs(t, err, hnx.ErrBadState)
	assert.Equal(t, int32(1), o.destroyed.Load())
}
