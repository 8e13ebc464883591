package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wnxd/hnx"
	"github.com/wnxd/hnx/internal/config"
)

func TestVMOReadWrite(t *testing.T) {
	k := newTestKernel(t)
	c := attach(t, k)
	h := mustCall(t, c, hnx.NR_vmo_create, nil, 16).Out[0]

	resp := mustCall(t, c, hnx.NR_vmo_read, nil, h, 0, 4)
	assert.Equal(t, []byte{0, 0, 0, 0}, resp.Data)

	resp = mustCall(t, c, hnx.NR_vmo_write, []byte("abcdef"), h, 4)
	assert.Equal(t, []uint64{6}, resp.Out)
	resp = mustCall(t, c, hnx.NR_vmo_read, nil, h, 2, 6)
	assert.Equal(t, []byte("\x00\x00abcd"), resp.Data)

	// writes and reads clamp to the size
	resp = mustCall(t, c, hnx.NR_vmo_write, []byte("0123456789"), h, 12)
	assert.Equal(t, []uint64{4}, resp.Out)
	resp = mustCall(t, c, hnx.NR_vmo_read, nil, h, 12, 100)
	assert.Equal(t, []byte("0123"), resp.Data)

	assert.Equal(t, status(hnx.ErrInvalidArgs), call(c, hnx.NR_vmo_read, nil, h, 16, 1).Code)
	assert.Equal(t, status(hnx.ErrInvalidArgs), call(c, hnx.NR_vmo_write, []byte("x"), h, 16).Code)
}

func TestVMOCreateLimits(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.VMO.MaxSize = 1 << 20
	k := newTestKernelWith(t, cfg)
	c := attach(t, k)
	assert.Equal(t, status(hnx.ErrInvalidArgs), call(c, hnx.NR_vmo_create, nil, 0).Code)
	assert.Equal(t, status(hnx.ErrInvalidArgs), call(c, hnx.NR_vmo_create, nil, 1<<20+1).Code)
	mustCall(t, c, hnx.NR_vmo_create, nil, 1<<20)
}

func TestVMORights(t *testing.T) {
	k := newTestKernel(t)
	c := attach(t, k)
	h := mustCall(t, c, hnx.NR_vmo_create, nil, 16).Out[0]
	rights, err := c.Handles().Rights(hnx.Handle(h))
	assert.NoError(t, err)
	assert.True(t, rights.Contains(hnx.RightsBasic|hnx.RightMap))

	ro := mustCall(t, c, hnx.NR_handle_duplicate, nil, h, uint64(hnx.RightRead)).Out[0]
	mustCall(t, c, hnx.NR_vmo_read, nil, ro, 0, 1)
	assert.Equal(t, status(hnx.ErrPermissionDenied), call(c, hnx.NR_vmo_write, []byte("x"), ro, 0).Code)
}

func TestFileVMOGrows(t *testing.T) {
	v := newFileVMO(8)
	n, err := v.write(2, []byte("abc"))
	assert.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, uint64(5), v.Size())

	buf, err := v.read(0, 100)
	assert.NoError(t, err)
	assert.Equal(t, []byte("\x00\x00abc"), buf)
	buf, err = v.read(5, 1)
	assert.NoError(t, err)
	assert.Empty(t, buf)

	_, err = v.write(6, []byte("xyz"))
	assert.ErrorIs(t, err, hnx.ErrNoMemory)

	v.truncate()
	assert.Zero(t, v.Size())
}
