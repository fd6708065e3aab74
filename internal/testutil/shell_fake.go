package testutil

import (
	"context"
	"sync"
)

// FakeShell records commands sent to a remote shell and answers them
// from a handler.
type FakeShell struct {
	mu sync.Mutex

	// Handler produces the output for a command. A nil handler echoes
	// nothing.
	Handler func(cmd string) (string, error)

	// Commands lists every command received, in order
	Commands []string
}

// Run implements the remote shell contract.
func (f *FakeShell) Run(ctx context.Context, cmd string) (string, error) {
	f.mu.Lock()
	f.Commands = append(f.Commands, cmd)
	handler := f.Handler
	f.mu.Unlock()

	if handler == nil {
		return "", nil
	}
	return handler(cmd)
}

// CallCount returns how many commands were run.
func (f *FakeShell) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Commands)
}
