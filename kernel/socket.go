package kernel

import (
	"errors"
	"sync"

	"github.com/wnxd/hnx"
)

const (
	defaultBacklog = 16
	maxPort        = 0xffff
)

type sockState uint8

const (
	sockFresh sockState = iota
	sockConnecting
	sockBound
	sockListening
	sockConnected
	sockClosed
)

// Socket is a loopback stream socket. Listening sockets queue connected
// server ends until they are accepted.
type Socket struct {
	object
	net     *network
	rw      sync.Mutex
	state   sockState
	port    uint16
	backlog *queue[*Socket]
	link    *peerLink[Socket]
	side    int
	inbox   *queue[[]byte]
}

func (s *Socket) Type() hnx.ObjectType {
	return hnx.ObjSocket
}

func (s *Socket) destroy() {
	s.rw.Lock()
	state, port, backlog, link := s.state, s.port, s.backlog, s.link
	s.state = sockClosed
	s.rw.Unlock()

	if state == sockBound || state == sockListening {
		s.net.unbind(s, port)
	}
	if backlog != nil {
		backlog.shutdown(hnx.ErrBadState, true)
	}
	if link != nil {
		peer := link.detach(s.side)
		s.inbox.shutdown(hnx.ErrPeerClosed, true)
		if peer != nil {
			peer.inbox.shutdown(hnx.ErrPeerClosed, false)
		}
	}
}

// network is the loopback port space shared by every client.
type network struct {
	rw        sync.RWMutex
	ports     map[uint16]*Socket
	maxQueued int
}

func (n *network) ctor(maxQueued int) {
	n.ports = make(map[uint16]*Socket)
	n.maxQueued = maxQueued
}

func (n *network) dtor() {
	n.rw.Lock()
	n.ports = nil
	n.rw.Unlock()
}

func (n *network) newSocket() *Socket {
	s := &Socket{net: n}
	s.init()
	return s
}

func (n *network) bind(s *Socket, port uint16) error {
	n.rw.Lock()
	defer n.rw.Unlock()
	if n.ports == nil {
		return hnx.ErrBadState
	}
	if _, ok := n.ports[port]; ok {
		return hnx.ErrAlreadyExists
	}
	n.ports[port] = s
	return nil
}

func (n *network) unbind(s *Socket, port uint16) {
	n.rw.Lock()
	if n.ports[port] == s {
		delete(n.ports, port)
	}
	n.rw.Unlock()
}

// backlog returns the accept queue of the socket listening on port.
func (n *network) backlog(port uint16) (*queue[*Socket], bool) {
	n.rw.RLock()
	l, ok := n.ports[port]
	n.rw.RUnlock()
	if !ok {
		return nil, false
	}
	l.rw.Lock()
	defer l.rw.Unlock()
	if l.state != sockListening {
		return nil, false
	}
	return l.backlog, true
}

// pair links a and b as the two ends of a connection.
func (n *network) pair(a, b *Socket) {
	link := &peerLink[Socket]{ends: [2]*Socket{a, b}}
	for i, s := range link.ends {
		s.link = link
		s.side = i
		s.inbox = newQueue[[]byte](n.maxQueued)
		s.state = sockConnected
	}
}

// dial connects s to the listener on port and queues the server end for
// accept. The caller has already moved s to sockConnecting.
func (n *network) dial(s *Socket, port uint16) error {
	backlog, ok := n.backlog(port)
	if !ok {
		return hnx.ErrNotFound
	}
	srv := n.newSocket()
	s.rw.Lock()
	n.pair(s, srv)
	s.rw.Unlock()
	err := backlog.push(srv)
	if err == nil {
		return nil
	}
	s.rw.Lock()
	s.link.detach(s.side)
	s.link, s.inbox, s.state = nil, nil, sockConnecting
	s.rw.Unlock()
	discard(srv)
	if errors.Is(err, hnx.ErrBadState) {
		return hnx.ErrNotFound
	}
	return err
}

func (s *Socket) peer() (*Socket, error) {
	s.rw.Lock()
	state, link := s.state, s.link
	s.rw.Unlock()
	if state != sockConnected {
		return nil, hnx.ErrBadState
	}
	return link.peer(s.side), nil
}

func (k *Kernel) socket(c *Call) error {
	return k.returnHandle(c, k.network.newSocket(), hnx.RightsBasic)
}

func (k *Kernel) bind(c *Call) error {
	s := objectArg[*Socket](c, 0)
	port := c.Arg(1)
	if port == 0 || port > maxPort {
		return hnx.ErrInvalidArgs
	}
	s.rw.Lock()
	defer s.rw.Unlock()
	if s.state != sockFresh {
		return hnx.ErrBadState
	}
	if err := k.network.bind(s, uint16(port)); err != nil {
		return err
	}
	s.state = sockBound
	s.port = uint16(port)
	return nil
}

func (k *Kernel) listen(c *Call) error {
	s := objectArg[*Socket](c, 0)
	backlog := int(min(c.Arg(1), uint64(k.cfg.Channel.MaxQueued)))
	if backlog == 0 {
		backlog = min(defaultBacklog, k.cfg.Channel.MaxQueued)
	}
	s.rw.Lock()
	defer s.rw.Unlock()
	if s.state != sockBound {
		return hnx.ErrBadState
	}
	s.backlog = newQueue[*Socket](backlog)
	s.backlog.onDrop = func(pending *Socket) { discard(pending) }
	s.state = sockListening
	return nil
}

func (k *Kernel) connect(c *Call) error {
	s := objectArg[*Socket](c, 0)
	port := c.Arg(1)
	if port == 0 || port > maxPort {
		return hnx.ErrInvalidArgs
	}
	s.rw.Lock()
	if s.state != sockFresh {
		s.rw.Unlock()
		return hnx.ErrBadState
	}
	s.state = sockConnecting
	s.rw.Unlock()

	if err := k.network.dial(s, uint16(port)); err != nil {
		s.rw.Lock()
		s.state = sockFresh
		s.rw.Unlock()
		return err
	}
	return nil
}

func (k *Kernel) accept(c *Call) error {
	s := objectArg[*Socket](c, 0)
	s.rw.Lock()
	listening, backlog := s.state == sockListening, s.backlog
	s.rw.Unlock()
	if !listening {
		return hnx.ErrBadState
	}
	srv, err := backlog.pop(c, true)
	if err != nil {
		return err
	}
	return k.returnHandle(c, srv, hnx.RightsBasic)
}

func (k *Kernel) send(c *Call) error {
	s := objectArg[*Socket](c, 0)
	data := c.Data()
	if len(data) > k.cfg.Channel.MaxMessageSize {
		return hnx.ErrInvalidArgs
	}
	peer, err := s.peer()
	if err != nil {
		return err
	}
	if peer == nil {
		return hnx.ErrPeerClosed
	}
	if len(data) > 0 {
		if err := peer.inbox.push(append([]byte(nil), data...)); err != nil {
			return err
		}
	}
	c.Return(uint64(len(data)))
	return nil
}

// recv returns up to len bytes. A closed peer with nothing left to read
// yields zero bytes.
func (k *Kernel) recv(c *Call) error {
	s := objectArg[*Socket](c, 0)
	if _, err := s.peer(); err != nil {
		return err
	}
	n := c.Arg(1)
	if n == 0 {
		c.Return(0)
		return nil
	}
	ctx, cancel := withTimeout(c, c.Arg(2))
	defer cancel()
	chunk, err := s.inbox.pop(ctx, true)
	if errors.Is(err, hnx.ErrPeerClosed) {
		c.Return(0)
		return nil
	}
	if err != nil {
		return err
	}
	if uint64(len(chunk)) > n {
		s.inbox.unshift(chunk[n:])
		chunk = chunk[:n]
	}
	c.SetData(chunk)
	c.Return(uint64(len(chunk)))
	return nil
}
