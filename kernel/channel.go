package kernel

import (
	"sync"

	"github.com/wnxd/hnx"
)

// peerLink ties the two ends of a pipe together. An end is removed when it
// is destroyed.
type peerLink[T any] struct {
	mu   sync.Mutex
	ends [2]*T
}

func (l *peerLink[T]) peer(side int) *T {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ends[1-side]
}

// detach removes one end and returns the other.
func (l *peerLink[T]) detach(side int) *T {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ends[side] = nil
	return l.ends[1-side]
}

// Channel is one end of a bidirectional message pipe. Messages written to one
// end queue up on the other.
type Channel struct {
	object
	link    *peerLink[Channel]
	side    int
	inbox   *queue[message]
	maxSize int
}

func newChannelPair(maxSize, maxQueued int) (*Channel, *Channel) {
	link := new(peerLink[Channel])
	for i := range link.ends {
		c := &Channel{link: link, side: i, inbox: newQueue[message](maxQueued), maxSize: maxSize}
		c.init()
		link.ends[i] = c
	}
	return link.ends[0], link.ends[1]
}

func (c *Channel) Type() hnx.ObjectType {
	return hnx.ObjChannel
}

// Peer returns the other end, or nil once it has been destroyed.
func (c *Channel) Peer() *Channel {
	return c.link.peer(c.side)
}

func (c *Channel) write(data []byte) error {
	if len(data) > c.maxSize {
		return hnx.ErrInvalidArgs
	}
	peer := c.Peer()
	if peer == nil {
		return hnx.ErrPeerClosed
	}
	return peer.inbox.push(message{data: append([]byte(nil), data...)})
}

func (c *Channel) destroy() {
	peer := c.link.detach(c.side)
	c.inbox.shutdown(hnx.ErrPeerClosed, true)
	if peer != nil {
		peer.inbox.shutdown(hnx.ErrPeerClosed, false)
	}
}

const channelReadNonblock = 1

func (k *Kernel) channel_create(c *Call) error {
	a, b := newChannelPair(k.cfg.Channel.MaxMessageSize, k.cfg.Channel.MaxQueued)
	h0, err := c.Client.handles.Create(a, hnx.RightsBasic)
	if err != nil {
		discard(b)
		return err
	}
	h1, err := c.Client.handles.Create(b, hnx.RightsBasic)
	if err != nil {
		c.Client.handles.Close(h0)
		return err
	}
	c.Return(uint64(h0), uint64(h1))
	return nil
}

func (k *Kernel) channel_write(c *Call) error {
	ch := objectArg[*Channel](c, 0)
	if err := ch.write(c.Data()); err != nil {
		return err
	}
	c.Return(uint64(len(c.Data())))
	return nil
}

func (k *Kernel) channel_read(c *Call) error {
	ch := objectArg[*Channel](c, 0)
	ctx, cancel := withTimeout(c, c.Arg(2))
	defer cancel()
	msg, err := ch.inbox.pop(ctx, c.Arg(1)&channelReadNonblock == 0)
	if err != nil {
		return err
	}
	c.SetData(msg.data)
	c.Return(uint64(len(msg.data)))
	return nil
}
