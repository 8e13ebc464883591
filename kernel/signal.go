package kernel

import (
	"github.com/wnxd/hnx"
	"go.uber.org/zap"
)

const (
	SIGKILL = 9
	SIGTERM = 15
	NSIG    = 64
)

// kill delivers sig to pid. Signal 0 only checks that the target exists; any
// other signal terminates it with exit code 128+sig.
func (k *Kernel) kill(c *Call) error {
	sig := int32(c.Arg(1))
	if sig < 0 || sig > NSIG {
		return hnx.ErrInvalidArgs
	}
	t, err := k.target(c, int32(c.Arg(0)))
	if err != nil {
		return err
	}
	if sig == 0 {
		return nil
	}
	c.Client.log.Debug("signal delivered",
		zap.Int32("target", t.pid),
		zap.Int32("sig", sig))
	t.exit(128 + sig)
	return nil
}

func (k *Kernel) exit(c *Call) error {
	c.Client.exit(int32(c.Arg(0)))
	return nil
}
