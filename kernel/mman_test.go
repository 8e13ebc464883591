package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnxd/hnx"
	"github.com/wnxd/microdbg/emulator"
)

func TestAddressSpaceMmap(t *testing.T) {
	var as addressSpace
	a, err := as.mmap(0, 1, emulator.MEM_PROT_READ)
	require.NoError(t, err)
	assert.Equal(t, uint64(mmapBase), a)
	b, err := as.mmap(0, 2*pageSize, emulator.MEM_PROT_READ)
	require.NoError(t, err)
	assert.Equal(t, uint64(mmapBase+pageSize), b)

	require.NoError(t, as.munmap(a, pageSize))
	c, err := as.mmap(0, pageSize, emulator.MEM_PROT_WRITE)
	require.NoError(t, err)
	assert.Equal(t, a, c, "lowest gap is reused")

	_, err = as.mmap(b, pageSize, emulator.MEM_PROT_READ)
	assert.ErrorIs(t, err, hnx.ErrAlreadyExists)
	_, err = as.mmap(0x1001, pageSize, emulator.MEM_PROT_READ)
	assert.ErrorIs(t, err, hnx.ErrInvalidArgs)
	_, err = as.mmap(0, 0, emulator.MEM_PROT_READ)
	assert.ErrorIs(t, err, hnx.ErrInvalidArgs)
	_, err = as.mmap(0, mmapTop, emulator.MEM_PROT_READ)
	assert.ErrorIs(t, err, hnx.ErrNoMemory)

	fixed, err := as.mmap(0x1000_0000, 3, emulator.MEM_PROT_READ)
	require.NoError(t, err)
	r, ok := as.lookup(fixed + pageSize - 1)
	require.True(t, ok)
	assert.Equal(t, region{addr: 0x1000_0000, size: pageSize, prot: emulator.MEM_PROT_READ}, r)
}

func TestAddressSpaceMunmapSplits(t *testing.T) {
	var as addressSpace
	base, err := as.mmap(0, 4*pageSize, emulator.MEM_PROT_READ|emulator.MEM_PROT_WRITE)
	require.NoError(t, err)

	require.NoError(t, as.munmap(base+pageSize, pageSize))
	_, ok := as.lookup(base + pageSize)
	assert.False(t, ok)
	lo, ok := as.lookup(base)
	require.True(t, ok)
	assert.Equal(t, uint64(pageSize), lo.size)
	hi, ok := as.lookup(base + 2*pageSize)
	require.True(t, ok)
	assert.Equal(t, base+2*pageSize, hi.addr)
	assert.Equal(t, uint64(2*pageSize), hi.size)

	// unmapping holes is fine
	require.NoError(t, as.munmap(base, 8*pageSize))
	assert.Empty(t, as.regions)
}

func TestAddressSpaceMprotect(t *testing.T) {
	var as addressSpace
	base, err := as.mmap(0, 3*pageSize, emulator.MEM_PROT_READ)
	require.NoError(t, err)

	require.NoError(t, as.mprotect(base+pageSize, pageSize, emulator.MEM_PROT_READ|emulator.MEM_PROT_EXEC))
	r, ok := as.lookup(base + pageSize)
	require.True(t, ok)
	assert.Equal(t, emulator.MEM_PROT_READ|emulator.MEM_PROT_EXEC, r.prot)
	r, ok = as.lookup(base + 2*pageSize)
	require.True(t, ok)
	assert.Equal(t, emulator.MEM_PROT_READ, r.prot)
	assert.Len(t, as.regions, 3)

	assert.ErrorIs(t, as.mprotect(base, 4*pageSize, emulator.MEM_PROT_READ), hnx.ErrNoMemory)
}

const (
	protR  = uint64(emulator.MEM_PROT_READ)
	protRW = uint64(emulator.MEM_PROT_READ | emulator.MEM_PROT_WRITE)
)

func TestMmapSyscalls(t *testing.T) {
	k := newTestKernel(t)
	c := attach(t, k)

	addr := mustCall(t, c, hnx.NR_mmap, nil, 0, 100, protRW).Out[0]
	assert.Equal(t, uint64(mmapBase), addr)
	assert.Equal(t, errno(hnx.EINVAL), call(c, hnx.NR_mmap, nil, 0, 100, 0x10).Code)
	assert.Equal(t, errno(hnx.EEXIST), call(c, hnx.NR_mmap, nil, addr, 100, protR).Code)
	mustCall(t, c, hnx.NR_mprotect, nil, addr, pageSize, protR)
	assert.Equal(t, errno(hnx.ENOMEM), call(c, hnx.NR_mprotect, nil, addr+pageSize, pageSize, protR).Code)
	assert.Equal(t, errno(hnx.EINVAL), call(c, hnx.NR_munmap, nil, addr+1, pageSize).Code)
	mustCall(t, c, hnx.NR_munmap, nil, addr, pageSize)

	// address spaces are per client
	other := attach(t, k)
	assert.Equal(t, uint64(mmapBase), mustCall(t, other, hnx.NR_mmap, nil, 0, 1, protR).Out[0])
}

func TestPageAlign(t *testing.T) {
	v, ok := pageAlign(1)
	assert.True(t, ok)
	assert.Equal(t, uint64(pageSize), v)
	v, ok = pageAlign(pageSize)
	assert.True(t, ok)
	assert.Equal(t, uint64(pageSize), v)
	_, ok = pageAlign(^uint64(0))
	assert.False(t, ok)
	assert.True(t, pageAligned(0x7000))
	assert.False(t, pageAligned(0x7001))
}

func TestCheckProt(t *testing.T) {
	prot, err := checkProt(uint64(emulator.MEM_PROT_ALL))
	require.NoError(t, err)
	assert.Equal(t, emulator.MEM_PROT_ALL, prot)
	prot, err = checkProt(0)
	require.NoError(t, err)
	assert.Equal(t, emulator.MEM_PROT_NONE, prot)
	_, err = checkProt(uint64(emulator.MEM_PROT_EXEC) << 1)
	assert.ErrorIs(t, err, hnx.ErrInvalidArgs)
}
