package kernel

import "github.com/wnxd/hnx"

// Endpoint is a rendezvous point for request messages and wake tokens. Every
// handle to it both sends and receives.
type Endpoint struct {
	object
	futex
	inbox   *queue[message]
	maxSize int
}

func newEndpoint(maxSize, maxQueued int) *Endpoint {
	ep := &Endpoint{inbox: newQueue[message](maxQueued), maxSize: maxSize}
	ep.init()
	return ep
}

func (ep *Endpoint) Type() hnx.ObjectType {
	return hnx.ObjEndpoint
}

func (ep *Endpoint) send(op uint64, data []byte) error {
	if len(data) > ep.maxSize {
		return hnx.ErrInvalidArgs
	}
	return ep.inbox.push(message{op: op, data: append([]byte(nil), data...)})
}

func (ep *Endpoint) destroy() {
	ep.inbox.shutdown(hnx.ErrCanceled, true)
	ep.futex.dtor()
}

func (k *Kernel) ep_create(c *Call) error {
	ep := newEndpoint(k.cfg.Channel.MaxMessageSize, k.cfg.Channel.MaxQueued)
	return k.returnHandle(c, ep, hnx.RightsBasic)
}

func (k *Kernel) ep_send(c *Call) error {
	ep := objectArg[*Endpoint](c, 0)
	return ep.send(c.Arg(1), c.Data())
}

func (k *Kernel) ep_recv(c *Call) error {
	ep := objectArg[*Endpoint](c, 0)
	ctx, cancel := withTimeout(c, c.Arg(1))
	defer cancel()
	msg, err := ep.inbox.pop(ctx, true)
	if err != nil {
		return err
	}
	c.SetData(msg.data)
	c.Return(msg.op, uint64(len(msg.data)))
	return nil
}
