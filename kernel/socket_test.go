package kernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnxd/hnx"
)

func listenOn(t *testing.T, c *Client, port, backlog uint64) uint64 {
	t.Helper()
	s := mustCall(t, c, hnx.NR_socket, nil).Out[0]
	mustCall(t, c, hnx.NR_bind, nil, s, port)
	mustCall(t, c, hnx.NR_listen, nil, s, backlog)
	return s
}

func TestSocketStream(t *testing.T) {
	k := newTestKernel(t)
	server := attach(t, k)
	client := attach(t, k)

	ln := listenOn(t, server, 8080, 0)
	cs := mustCall(t, client, hnx.NR_socket, nil).Out[0]
	mustCall(t, client, hnx.NR_connect, nil, cs, 8080)
	srv := mustCall(t, server, hnx.NR_accept, nil, ln).Out[0]

	resp := mustCall(t, client, hnx.NR_send, []byte("hello"), cs)
	assert.Equal(t, []uint64{5}, resp.Out)
	resp = mustCall(t, server, hnx.NR_recv, nil, srv, 3, 0)
	assert.Equal(t, []byte("hel"), resp.Data)
	resp = mustCall(t, server, hnx.NR_recv, nil, srv, 10, 0)
	assert.Equal(t, []byte("lo"), resp.Data)

	mustCall(t, server, hnx.NR_send, []byte("bye"), srv)
	resp = mustCall(t, client, hnx.NR_recv, nil, cs, 10, 0)
	assert.Equal(t, []byte("bye"), resp.Data)

	mustCall(t, client, hnx.NR_handle_close, nil, cs)
	resp = mustCall(t, server, hnx.NR_recv, nil, srv, 10, 0)
	assert.Empty(t, resp.Data)
	assert.Equal(t, []uint64{0}, resp.Out)
	assert.Equal(t, errno(hnx.EPIPE), call(server, hnx.NR_send, []byte("x"), srv).Code)
}

func TestSocketErrors(t *testing.T) {
	k := newTestKernel(t)
	c := attach(t, k)
	listenOn(t, c, 9000, 0)

	s := mustCall(t, c, hnx.NR_socket, nil).Out[0]
	assert.Equal(t, errno(hnx.EINVAL), call(c, hnx.NR_bind, nil, s, 0).Code)
	assert.Equal(t, errno(hnx.EINVAL), call(c, hnx.NR_bind, nil, s, 70000).Code)
	assert.Equal(t, errno(hnx.EEXIST), call(c, hnx.NR_bind, nil, s, 9000).Code)
	assert.Equal(t, errno(hnx.EBUSY), call(c, hnx.NR_listen, nil, s, 0).Code)
	assert.Equal(t, errno(hnx.EBUSY), call(c, hnx.NR_accept, nil, s).Code)
	assert.Equal(t, errno(hnx.EBUSY), call(c, hnx.NR_send, []byte("x"), s).Code)
	assert.Equal(t, errno(hnx.EBUSY), call(c, hnx.NR_recv, nil, s, 1, 0).Code)
	assert.Equal(t, errno(hnx.ENOENT), call(c, hnx.NR_connect, nil, s, 9001).Code)

	// a failed connect leaves the socket usable
	mustCall(t, c, hnx.NR_connect, nil, s, 9000)
	assert.Equal(t, errno(hnx.EBUSY), call(c, hnx.NR_connect, nil, s, 9000).Code)

	vmo := mustCall(t, c, hnx.NR_vmo_create, nil, 16).Out[0]
	assert.Equal(t, errno(hnx.EBADF), call(c, hnx.NR_bind, nil, vmo, 1).Code)
}

func TestSocketBacklog(t *testing.T) {
	k := newTestKernel(t)
	c := attach(t, k)
	ln := listenOn(t, c, 7000, 1)

	a := mustCall(t, c, hnx.NR_socket, nil).Out[0]
	b := mustCall(t, c, hnx.NR_socket, nil).Out[0]
	mustCall(t, c, hnx.NR_connect, nil, a, 7000)
	assert.Equal(t, errno(hnx.EAGAIN), call(c, hnx.NR_connect, nil, b, 7000).Code)

	// closing the listener drops the pending connection
	mustCall(t, c, hnx.NR_handle_close, nil, ln)
	assert.Equal(t, errno(hnx.EPIPE), call(c, hnx.NR_send, []byte("x"), a).Code)

	// and frees the port
	listenOn(t, c, 7000, 0)
}

func TestSocketAcceptBlocks(t *testing.T) {
	k := newTestKernel(t)
	c := attach(t, k)
	ln := listenOn(t, c, 6000, 0)

	done := make(chan hnx.Response, 1)
	go func() {
		done <- call(c, hnx.NR_accept, nil, ln)
	}()
	time.Sleep(5 * time.Millisecond)
	s := mustCall(t, c, hnx.NR_socket, nil).Out[0]
	mustCall(t, c, hnx.NR_connect, nil, s, 6000)

	select {
	case resp := <-done:
		require.Zero(t, resp.Code)
		require.Len(t, resp.Out, 1)
	case <-time.After(5 * time.Second):
		t.Fatal("accept did not return")
	}
}

func TestSocketRecvTimeout(t *testing.T) {
	k := newTestKernel(t)
	c := attach(t, k)
	ln := listenOn(t, c, 5000, 0)
	s := mustCall(t, c, hnx.NR_socket, nil).Out[0]
	mustCall(t, c, hnx.NR_connect, nil, s, 5000)
	mustCall(t, c, hnx.NR_accept, nil, ln)

	timeout := uint64(5 * time.Millisecond)
	assert.Equal(t, errno(hnx.EAGAIN), call(c, hnx.NR_recv, nil, s, 4, timeout).Code)
	resp := mustCall(t, c, hnx.NR_recv, nil, s, 0, 0)
	assert.Equal(t, []uint64{0}, resp.Out)
}
