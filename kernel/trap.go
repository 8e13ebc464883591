package kernel

import (
	"context"
	"errors"
	"unsafe"

	"github.com/wnxd/hnx"
	"github.com/wnxd/microdbg/debugger"
	"github.com/wnxd/microdbg/emulator"
	emu_arm "github.com/wnxd/microdbg/emulator/arm"
	emu_arm64 "github.com/wnxd/microdbg/emulator/arm64"
)

// maxTrapData bounds the user buffer a trapped syscall may pass in X6/X7.
const maxTrapData = 1 << 20

// Trap serves `svc #0` instructions of an emulated arm64 guest as syscalls of
// one client. X8 holds the number, X0..X5 the arguments and X6/X7 the address
// and length of the user buffer. The result code is written to X0, returned
// values to X1..X5 and response data back into the user buffer.
type Trap struct {
	client   hnx.Client
	intrHook debugger.HookHandler
}

func NewTrap(dbg debugger.Debugger, client hnx.Client) (*Trap, error) {
	if dbg.Emulator().Arch() != emulator.ARCH_ARM64 {
		return nil, errors.ErrUnsupported
	}
	t := &Trap{client: client}
	hook, err := dbg.AddHook(emulator.HOOK_TYPE_INTR, t.arm64Intr, nil, 1, 0)
	if err != nil {
		return nil, err
	}
	t.intrHook = hook
	return t, nil
}

func (t *Trap) Close() error {
	t.intrHook.Close()
	return nil
}

func (t *Trap) arm64Intr(ctx debugger.Context, intno uint64, data any) debugger.HookResult {
	if intno != emu_arm.ARM_INTR_EXCP_SWI {
		return debugger.HookResult_Next
	}
	pc, err := ctx.RegRead(emu_arm64.ARM64_REG_PC)
	if err != nil {
		return debugger.HookResult_Next
	}
	var code uint32
	err = ctx.ToPointer(pc-4).MemReadPtr(4, unsafe.Pointer(&code))
	if err != nil {
		return debugger.HookResult_Next
	}
	if svc := (code >> 5) & 0xffff; svc != 0 {
		return debugger.HookResult_Next
	}
	nr, err := ctx.RegRead(emu_arm64.ARM64_REG_X8)
	if err != nil {
		return debugger.HookResult_Next
	}
	regs, err := ctx.RegReadBatch(emu_arm64.ARM64_REG_X0, emu_arm64.ARM64_REG_X1, emu_arm64.ARM64_REG_X2, emu_arm64.ARM64_REG_X3, emu_arm64.ARM64_REG_X4, emu_arm64.ARM64_REG_X5, emu_arm64.ARM64_REG_X6, emu_arm64.ARM64_REG_X7)
	if err != nil {
		return debugger.HookResult_Next
	}
	req := hnx.Request{NR: hnx.NR(nr), Args: regs[:6]}
	ptr, size := regs[6], min(regs[7], maxTrapData)
	if ptr != 0 && size != 0 {
		req.Data = make([]byte, size)
		err = ctx.ToPointer(ptr).MemReadPtr(size, unsafe.Pointer(&req.Data[0]))
		if err != nil {
			ctx.RegWrite(emu_arm64.ARM64_REG_X0, t.fault(req.NR))
			return debugger.HookResult_Done
		}
	}
	resp := t.client.Syscall(context.Background(), req)
	if n := min(uint64(len(resp.Data)), size); n != 0 {
		ctx.ToPointer(ptr).MemWritePtr(n, unsafe.Pointer(&resp.Data[0]))
	}
	for i, v := range resp.Out {
		switch i {
		case 0:
			ctx.RegWrite(emu_arm64.ARM64_REG_X1, v)
		case 1:
			ctx.RegWrite(emu_arm64.ARM64_REG_X2, v)
		case 2:
			ctx.RegWrite(emu_arm64.ARM64_REG_X3, v)
		case 3:
			ctx.RegWrite(emu_arm64.ARM64_REG_X4, v)
		case 4:
			ctx.RegWrite(emu_arm64.ARM64_REG_X5, v)
		}
	}
	ctx.RegWrite(emu_arm64.ARM64_REG_X0, uint64(int64(resp.Code)))
	return debugger.HookResult_Done
}

// fault encodes an unreadable user buffer for nr.
func (t *Trap) fault(nr hnx.NR) uint64 {
	if band, ok := hnx.BandOf(nr); ok && band.Domain == hnx.DomainPosix {
		return uint64(hnx.EFAULT)
	}
	status := hnx.ErrInvalidArgs
	return uint64(int64(status))
}
