package kernel

import (
	"io"
	"strings"

	"github.com/wnxd/hnx"
	"github.com/wnxd/hnx/internal/config"
	"go.uber.org/zap"
)

type Kernel struct {
	cfg     *config.Config
	version hnx.Version
	log     *zap.Logger
	sys     *Registry
	fcntl
	network
	driver
	prctl
}

type Option func(*Kernel)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(k *Kernel) {
		k.log = log
	}
}

// WithConsole routes fds 0, 1 and 2 of every client.
func WithConsole(in io.Reader, out io.Writer) Option {
	return func(k *Kernel) {
		k.fcntl.stdin = in
		k.fcntl.stdout = out
	}
}

func NewKernel(cfg *config.Config, opts ...Option) (*Kernel, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	version, err := cfg.KernelVersion()
	if err != nil {
		return nil, err
	}
	k := &Kernel{
		cfg:     cfg,
		version: version,
		log:     zap.NewNop(),
	}
	k.fcntl.stdin = strings.NewReader("")
	k.fcntl.stdout = io.Discard
	for _, opt := range opts {
		opt(k)
	}
	k.fcntl.ctor()
	k.network.ctor(cfg.Channel.MaxQueued)
	k.driver.ctor()
	k.prctl.ctor()
	k.sys = NewRegistry(k.syscalls())
	k.log.Info("kernel ready",
		zap.Stringer("version", k.version),
		zap.Int("syscalls", len(k.sys.descs)))
	return k, nil
}

// Close tears down every attached client and releases kernel-wide objects.
func (k *Kernel) Close() error {
	for _, c := range k.prctl.clients() {
		c.exit(0)
	}
	k.prctl.dtor()
	k.driver.dtor()
	k.network.dtor()
	k.fcntl.dtor()
	return nil
}

func (k *Kernel) Version() hnx.Version {
	return k.version
}

func (k *Kernel) Config() *config.Config {
	return k.cfg
}

func (k *Kernel) Syscall() *Registry {
	return k.sys
}

func (k *Kernel) Logger() *zap.Logger {
	return k.log
}

// Lookup returns the live client with the given pid.
func (k *Kernel) Lookup(pid int32) (*Client, bool) {
	return k.prctl.lookup(pid)
}
