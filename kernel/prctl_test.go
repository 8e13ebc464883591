package kernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnxd/hnx"
)

func TestProcessIdentity(t *testing.T) {
	k := newTestKernel(t)
	parent := attach(t, k)
	child := attach(t, k, WithParent(parent.Pid()))

	assert.Equal(t, []uint64{uint64(child.Pid())}, mustCall(t, child, hnx.NR_getpid, nil).Out)
	assert.Equal(t, []uint64{uint64(parent.Pid())}, mustCall(t, child, hnx.NR_getppid, nil).Out)
	assert.Equal(t, []uint64{uint64(child.Pid())}, mustCall(t, child, hnx.NR_getpgid, nil, 0).Out)
	assert.Equal(t, errno(hnx.ENOSYS), call(child, hnx.NR_fork, nil).Code)
}

func TestSetpgid(t *testing.T) {
	k := newTestKernel(t)
	parent := attach(t, k)
	child := attach(t, k, WithParent(parent.Pid()))
	stranger := attach(t, k)

	mustCall(t, parent, hnx.NR_setpgid, nil, uint64(child.Pid()), 77)
	assert.Equal(t, []uint64{77}, mustCall(t, stranger, hnx.NR_getpgid, nil, uint64(child.Pid())).Out)
	assert.Equal(t, errno(hnx.EACCES), call(stranger, hnx.NR_setpgid, nil, uint64(child.Pid()), 1).Code)

	mustCall(t, child, hnx.NR_setpgid, nil, 0, 0)
	assert.Equal(t, child.Pid(), child.Pgid())
	assert.Equal(t, errno(hnx.EINVAL), call(child, hnx.NR_setpgid, nil, 0, uint64(1<<32-1)).Code)
	assert.Equal(t, errno(hnx.ENOENT), call(child, hnx.NR_getpgid, nil, 9999).Code)
}

func TestWait4(t *testing.T) {
	k := newTestKernel(t)
	parent := attach(t, k)
	child := attach(t, k, WithParent(parent.Pid()))
	pid := uint64(child.Pid())

	mustCall(t, child, hnx.NR_exit, nil, 3)
	require.True(t, child.Exited())

	// the zombie stays until it is reaped
	_, ok := k.Lookup(child.Pid())
	assert.False(t, ok)
	resp := mustCall(t, parent, hnx.NR_wait4, nil, pid)
	assert.Equal(t, []uint64{pid, 3}, resp.Out)
	assert.Equal(t, errno(hnx.ENOENT), call(parent, hnx.NR_wait4, nil, pid).Code)

	stranger := attach(t, k)
	assert.Equal(t, errno(hnx.ENOENT), call(stranger, hnx.NR_wait4, nil, uint64(parent.Pid())).Code)
}

func TestWait4BlocksUntilKilled(t *testing.T) {
	k := newTestKernel(t)
	parent := attach(t, k)
	child := attach(t, k, WithParent(parent.Pid()))
	pid := uint64(child.Pid())

	done := make(chan hnx.Response, 1)
	go func() {
		done <- call(parent, hnx.NR_wait4, nil, pid)
	}()
	time.Sleep(5 * time.Millisecond)
	mustCall(t, parent, hnx.NR_kill, nil, pid, SIGTERM)

	select {
	case resp := <-done:
		require.Zero(t, resp.Code)
		assert.Equal(t, []uint64{pid, 128 + SIGTERM}, resp.Out)
	case <-time.After(5 * time.Second):
		t.Fatal("wait4 did not return")
	}
}

func TestKill(t *testing.T) {
	k := newTestKernel(t)
	a := attach(t, k)
	b := attach(t, k)

	mustCall(t, a, hnx.NR_kill, nil, uint64(b.Pid()), 0)
	assert.False(t, b.Exited())
	assert.Equal(t, errno(hnx.ENOENT), call(a, hnx.NR_kill, nil, 9999, 0).Code)
	assert.Equal(t, errno(hnx.EINVAL), call(a, hnx.NR_kill, nil, uint64(b.Pid()), NSIG+1).Code)

	mustCall(t, a, hnx.NR_kill, nil, uint64(b.Pid()), SIGKILL)
	code, err := b.Wait(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int32(128+SIGKILL), code)
	assert.Equal(t, errno(hnx.ENOENT), call(a, hnx.NR_kill, nil, uint64(b.Pid()), 0).Code)

	// killing yourself ends the client
	mustCall(t, a, hnx.NR_kill, nil, 0, SIGKILL)
	assert.True(t, a.Exited())
	assert.Equal(t, errno(hnx.EBUSY), call(a, hnx.NR_getpid, nil).Code)
}

func TestParentExitDropsZombies(t *testing.T) {
	k := newTestKernel(t)
	parent := attach(t, k)
	child := attach(t, k, WithParent(parent.Pid()))
	require.NoError(t, child.Close())

	k.prctl.rw.RLock()
	_, zombie := k.prctl.procs[child.Pid()]
	k.prctl.rw.RUnlock()
	assert.True(t, zombie)

	require.NoError(t, parent.Close())
	k.prctl.rw.RLock()
	defer k.prctl.rw.RUnlock()
	assert.NotContains(t, k.prctl.procs, child.Pid())
	assert.NotContains(t, k.prctl.procs, parent.Pid())
}
