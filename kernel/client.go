package kernel

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/wnxd/hnx"
	"go.uber.org/zap"
)

var _ hnx.Client = (*Client)(nil)

// Client is the per-process context every syscall runs against. It owns the
// handle table, the fd table, the address space and the loaded libraries.
type Client struct {
	kernel     *Kernel
	id         uuid.UUID
	pid        int32
	ppid       int32
	pgid       atomic.Int32
	abi        hnx.Version
	compatible bool
	handles    *HandleTable
	files      fdTable
	mm         addressSpace
	libs       dlfcn
	log        *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	code   int32
	exited chan struct{}
}

type ClientOption func(*attachOptions)

type attachOptions struct {
	pid  int32
	ppid int32
}

// WithPid requests a specific pid instead of the next free one.
func WithPid(pid int32) ClientOption {
	return func(o *attachOptions) {
		o.pid = pid
	}
}

// WithParent records ppid as the parent, which may then wait4 the client.
func WithParent(ppid int32) ClientOption {
	return func(o *attachOptions) {
		o.ppid = ppid
	}
}

// Attach connects a client declaring abi. The version gate runs once here; an
// incompatible client is still returned but every call it makes fails with
// ErrAbiMismatch, and it is not entered in the process table. Attaching a
// pid that is in use fails with ErrAlreadyExists.
func (k *Kernel) Attach(abi hnx.Version, opts ...ClientOption) (*Client, error) {
	var o attachOptions
	for _, opt := range opts {
		opt(&o)
	}
	c := &Client{
		kernel:     k,
		id:         uuid.New(),
		ppid:       o.ppid,
		abi:        abi,
		compatible: k.version.CheckCompatible(abi.Major, abi.Minor),
		handles:    NewHandleTable(k.cfg.Handles.Max),
		exited:     make(chan struct{}),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.files.ctor(k.cfg.Handles.Max)
	c.libs.ctor()
	c.log = k.log.With(zap.Stringer("client", c.id))

	if !c.compatible {
		c.pid = o.pid
		c.log.Warn("abi version rejected",
			zap.Stringer("abi", abi),
			zap.Stringer("kernel", k.version))
		return c, nil
	}
	pid, err := k.prctl.register(c, o.pid)
	if err != nil {
		c.cancel()
		return nil, err
	}
	c.pid = pid
	c.pgid.Store(pid)
	c.log = c.log.With(zap.Int32("pid", pid))
	c.log.Debug("client attached", zap.Stringer("abi", abi))
	return c, nil
}

func (c *Client) ID() uuid.UUID {
	return c.id
}

func (c *Client) Pid() int32 {
	return c.pid
}

func (c *Client) Ppid() int32 {
	return c.ppid
}

func (c *Client) Pgid() int32 {
	return c.pgid.Load()
}

func (c *Client) ABI() hnx.Version {
	return c.abi
}

// Compatible reports the cached version gate verdict.
func (c *Client) Compatible() bool {
	return c.compatible
}

func (c *Client) Handles() *HandleTable {
	return c.handles
}

// Syscall dispatches req on behalf of the client.
func (c *Client) Syscall(ctx context.Context, req hnx.Request) hnx.Response {
	return c.kernel.Dispatch(ctx, c, req)
}

// Exited reports whether the client has been torn down.
func (c *Client) Exited() bool {
	select {
	case <-c.exited:
		return true
	default:
		return false
	}
}

// Wait blocks until the client exits and returns its exit code.
func (c *Client) Wait(ctx context.Context) (int32, error) {
	select {
	case <-c.exited:
		return c.code, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Close tears the client down with exit code 0 unless it already exited.
func (c *Client) Close() error {
	c.exit(0)
	return nil
}

// exit tears the client down: calls in flight are canceled, every handle and
// fd is closed and kernel-wide registrations are dropped. Only the first call
// has any effect.
func (c *Client) exit(code int32) {
	c.once.Do(func() {
		c.code = code
		c.cancel()
		c.handles.CloseAll()
		c.files.dtor()
		c.mm.reset()
		c.libs.dtor()
		if c.compatible {
			c.kernel.driver.releaseAll(c.pid)
			c.kernel.prctl.unregister(c)
		}
		close(c.exited)
		c.log.Debug("client exited", zap.Int32("code", code))
	})
}
