package parley

import (
	"fmt"
	"sort"
	"sync"
)

// CommandFunc handles one named command addressed to this member. The data
// map is the command's payload; the return value travels back to the sender
// as this recipient's CommandResult.
type CommandFunc func(data map[string]any) any

// CommandRegistry maps command names to handlers. Safe for concurrent use;
// registration usually happens before login but late registration is allowed.
type CommandRegistry struct {
	mu    sync.RWMutex
	funcs map[string]CommandFunc
}

// NewCommandRegistry returns an empty registry.
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{funcs: make(map[string]CommandFunc)}
}

// Register binds name to fn, replacing any previous binding.
func (r *CommandRegistry) Register(name string, fn CommandFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

// Unregister removes a binding. Unknown names are a no-op.
func (r *CommandRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.funcs, name)
}

// Names returns the registered command names, sorted.
func (r *CommandRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the handler for cmd and returns its result. An unregistered
// command yields the literal reply "unknown command,<name>" so the sender
// can tell a missing capability from a handler that returned nothing.
func (r *CommandRegistry) Dispatch(cmd Command) any {
	r.mu.RLock()
	fn, ok := r.funcs[cmd.Command]
	r.mu.RUnlock()
	if !ok {
		return fmt.Sprintf("unknown command,%s", cmd.Command)
	}
	return fn(cmd.Data)
}
