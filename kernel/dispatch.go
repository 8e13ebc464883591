package kernel

import (
	"context"
	"fmt"
	"math"

	"github.com/wnxd/hnx"
	"go.uber.org/zap"
)

type ArgKind uint8

const (
	ArgValue ArgKind = iota
	ArgHandle
)

// Arg describes one register argument of a syscall. Handle arguments are
// resolved by the dispatcher before the handler runs.
type Arg struct {
	Name   string
	Kind   ArgKind
	Type   hnx.ObjectType
	Rights hnx.Rights
}

func value(name string) Arg {
	return Arg{Name: name, Kind: ArgValue}
}

func handle(name string, typ hnx.ObjectType, rights hnx.Rights) Arg {
	return Arg{Name: name, Kind: ArgHandle, Type: typ, Rights: rights}
}

type Handler func(*Call) error

// Descriptor is the registry entry of one syscall.
type Descriptor struct {
	NR       hnx.NR
	Name     string
	Band     hnx.Band
	Args     []Arg
	MinMinor uint32
	Handler  Handler
}

// Domain is the encoding every result of this syscall uses.
func (d *Descriptor) Domain() hnx.Domain {
	return d.Band.Domain
}

func (d *Descriptor) String() string {
	return fmt.Sprintf("%s(%#04x)", d.Name, uint32(d.NR))
}

// Call is a syscall in flight. Its context ends when the caller gives up, a
// handle argument is closed, or the client is torn down.
type Call struct {
	context.Context
	Client *Client
	Desc   *Descriptor
	args   []uint64
	objs   []Object
	data   []byte
	out    []uint64
	res    []byte
}

func (c *Call) Arg(i int) uint64 {
	if i < len(c.args) {
		return c.args[i]
	}
	return 0
}

func (c *Call) Handle(i int) hnx.Handle {
	return handleArg(c.Arg(i))
}

// handleArg narrows a register to a handle. Values wider than 32 bits never
// name a handle.
func handleArg(v uint64) hnx.Handle {
	if v > math.MaxUint32 {
		return hnx.HandleInvalid
	}
	return hnx.Handle(v)
}

// Object returns the resolved object of handle argument i.
func (c *Call) Object(i int) Object {
	return c.objs[i]
}

// Data returns the request buffer.
func (c *Call) Data() []byte {
	return c.data
}

// Return appends values to the response.
func (c *Call) Return(vals ...uint64) {
	c.out = append(c.out, vals...)
}

// SetData sets the response buffer.
func (c *Call) SetData(p []byte) {
	c.res = p
}

func objectArg[T Object](c *Call, i int) T {
	return c.objs[i].(T)
}

// Dispatch serves one raw request on behalf of client. Handle arguments are
// resolved before the handler runs; any failure short-circuits. The result
// is encoded in the domain of the band req.NR belongs to.
func (k *Kernel) Dispatch(ctx context.Context, client *Client, req hnx.Request) hnx.Response {
	domain := hnx.DomainInternal
	if band, ok := hnx.BandOf(req.NR); ok {
		domain = band.Domain
	}
	fail := func(err error) hnx.Response {
		return hnx.Response{Code: hnx.Encode(domain, err)}
	}

	if !client.Compatible() {
		client.log.Warn("call from incompatible client", zap.Uint32("nr", uint32(req.NR)), zap.Stringer("abi", client.abi))
		return fail(hnx.ErrAbiMismatch)
	}
	if client.Exited() {
		return fail(hnx.ErrBadState)
	}
	desc := k.sys.Get(req.NR)
	if desc == nil {
		client.log.Debug("unsupported syscall", zap.Uint32("nr", uint32(req.NR)))
		return fail(hnx.ErrNotSupported)
	}
	if len(req.Args) < len(desc.Args) {
		return fail(hnx.ErrInvalidArgs)
	}
	if client.abi.Minor < desc.MinMinor {
		return fail(hnx.ErrNotSupported)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(client.ctx, cancel)
	defer stop()

	call := &Call{
		Client: client,
		Desc:   desc,
		args:   req.Args,
		objs:   make([]Object, len(desc.Args)),
		data:   req.Data,
	}
	defer func() {
		for _, obj := range call.objs {
			if obj != nil {
				release(obj)
			}
		}
	}()
	for i, arg := range desc.Args {
		if arg.Kind != ArgHandle {
			continue
		}
		obj, hctx, err := client.handles.acquire(handleArg(req.Args[i]), arg.Type, arg.Rights)
		if err != nil {
			client.log.Debug("handle resolution failed",
				zap.String("syscall", desc.Name),
				zap.String("arg", arg.Name),
				zap.Uint64("handle", req.Args[i]),
				zap.Error(err))
			return fail(err)
		}
		call.objs[i] = obj
		stop := context.AfterFunc(hctx, cancel)
		defer stop()
	}
	call.Context = ctx

	err := k.invoke(call)
	resp := hnx.Response{Code: hnx.Encode(desc.Domain(), err)}
	if err == nil {
		resp.Out = call.out
		resp.Data = call.res
	}
	client.log.Debug("syscall",
		zap.String("syscall", desc.Name),
		zap.Uint32("nr", uint32(desc.NR)),
		zap.Int32("code", resp.Code))
	return resp
}

func (k *Kernel) invoke(call *Call) (err error) {
	defer func() {
		if r := recover(); r != nil {
			call.Client.log.Error("syscall handler panicked",
				zap.String("syscall", call.Desc.Name),
				zap.Any("panic", r),
				zap.Stack("stack"))
			err = hnx.ErrInternal
		}
	}()
	return call.Desc.Handler(call)
}
