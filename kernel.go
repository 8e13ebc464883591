package hnx

import "context"

// Client is a process attached to a kernel. Every syscall it issues is served
// against its own handle table.
type Client interface {
	Pid() int32
	Compatible() bool
	Syscall(ctx context.Context, req Request) Response
	Close() error
}
