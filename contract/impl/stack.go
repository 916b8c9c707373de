package impl

import (
	"go.dedis.ch/clarity/contract/types"
)

const (
	// MaxContextDepth bounds nested let scopes.
	MaxContextDepth = 256
	// MaxCallStackDepth bounds nested function applications.
	MaxCallStackDepth = 128
)

// FunctionIdentifier names a defined function across contracts.
type FunctionIdentifier struct {
	Identifier string
}

// NewFunctionIdentifier returns the identifier of fn in contract.
func NewFunctionIdentifier(contract, fn string) FunctionIdentifier {
	return FunctionIdentifier{Identifier: contract + ":" + fn}
}

func (f FunctionIdentifier) String() string { return f.Identifier }

// CallStack is the chain of function applications in progress. Tracked
// entries are also kept in a set so recursion is found in constant time.
type CallStack struct {
	stack []FunctionIdentifier
	set   map[FunctionIdentifier]struct{}
}

// NewCallStack returns an empty stack.
func NewCallStack() *CallStack {
	return &CallStack{set: make(map[FunctionIdentifier]struct{})}
}

func (c *CallStack) Depth() int { return len(c.stack) }

// Contains reports whether fn is a tracked entry of the stack.
func (c *CallStack) Contains(fn FunctionIdentifier) bool {
	_, ok := c.set[fn]
	return ok
}

func (c *CallStack) Insert(fn FunctionIdentifier, track bool) {
	c.stack = append(c.stack, fn)
	if track {
		c.set[fn] = struct{}{}
	}
}

// Remove pops the top of the stack, which must be fn. A tracked fn must
// also be in the tracked set. The top is popped even when it is not fn.
func (c *CallStack) Remove(fn FunctionIdentifier, tracked bool) error {
	if len(c.stack) == 0 {
		return interpreterErr(ErrInterpreter, "tried to remove %s from an empty call stack", fn)
	}
	top := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	if top != fn {
		return interpreterErr(ErrInterpreter, "tried to remove %s, but %s was at the top of the call stack", fn, top)
	}
	if tracked {
		if _, ok := c.set[fn]; !ok {
			return interpreterErr(ErrInterpreter, "tried to remove untracked function %s", fn)
		}
		delete(c.set, fn)
	}
	return nil
}

// MakeStackTrace returns a copy of the stack, outermost first.
func (c *CallStack) MakeStackTrace() []FunctionIdentifier {
	return append([]FunctionIdentifier(nil), c.stack...)
}

// LocalContext holds variables bound by function arguments and let.
type LocalContext struct {
	parent    *LocalContext
	Variables map[string]types.Value
	depth     int
}

// NewLocalContext returns a root scope.
func NewLocalContext() *LocalContext {
	return &LocalContext{Variables: make(map[string]types.Value)}
}

func (l *LocalContext) Depth() int { return l.depth }

// Extend opens a child scope.
func (l *LocalContext) Extend() (*LocalContext, error) {
	if l.depth >= MaxContextDepth {
		return nil, runtimeErr(ErrMaxContextDepth, "depth %d", l.depth)
	}
	return &LocalContext{
		parent:    l,
		Variables: make(map[string]types.Value),
		depth:     l.depth + 1,
	}, nil
}

// LookupVariable searches the scope chain, innermost first.
func (l *LocalContext) LookupVariable(name string) (types.Value, bool) {
	for ctx := l; ctx != nil; ctx = ctx.parent {
		if v, ok := ctx.Variables[name]; ok {
			return v, true
		}
	}
	return nil, false
}
