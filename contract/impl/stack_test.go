package impl

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/clarity/contract/types"
)

func TestCallStack_InsertRemove(t *testing.T) {
	stack := NewCallStack()
	f := NewFunctionIdentifier("c", "f")
	g := NewFunctionIdentifier("c", "g")

	stack.Insert(f, true)
	stack.Insert(g, false)
	require.Equal(t, 2, stack.Depth())
	require.True(t, stack.Contains(f))
	require.False(t, stack.Contains(g))
	require.Equal(t, []FunctionIdentifier{f, g}, stack.MakeStackTrace())

	require.NoError(t, stack.Remove(g, false))
	require.NoError(t, stack.Remove(f, true))
	require.Equal(t, 0, stack.Depth())
	require.False(t, stack.Contains(f))
	require.ErrorIs(t, stack.Remove(f, true), ErrInterpreter)
}

func TestCallStack_RemoveMismatchPops(t *testing.T) {
	stack := NewCallStack()
	f := NewFunctionIdentifier("c", "f")
	g := NewFunctionIdentifier("c", "g")
	stack.Insert(f, true)
	stack.Insert(g, true)

	// only the top may be removed, and a wrong removal still pops it
	require.ErrorIs(t, stack.Remove(f, true), ErrInterpreter)
	require.Equal(t, []FunctionIdentifier{f}, stack.MakeStackTrace())

	require.NoError(t, stack.Remove(f, true))
	require.Equal(t, 0, stack.Depth())
	require.False(t, stack.Contains(f))
}

func TestCallStack_RemoveUntracked(t *testing.T) {
	stack := NewCallStack()
	f := NewFunctionIdentifier("c", "f")
	stack.Insert(f, false)
	require.ErrorIs(t, stack.Remove(f, true), ErrInterpreter)
}

func TestLocalContext_Depth(t *testing.T) {
	ctx := NewLocalContext()
	ctx.Variables["a"] = types.NewInt(1)

	var err error
	inner := ctx
	for i := 0; i < MaxContextDepth; i++ {
		inner, err = inner.Extend()
		require.NoError(t, err)
	}
	require.Equal(t, MaxContextDepth, inner.Depth())

	v, ok := inner.LookupVariable("a")
	require.True(t, ok)
	require.Equal(t, "1", v.String())

	_, err = inner.Extend()
	require.ErrorIs(t, err, ErrMaxContextDepth)
}

func TestLocalContext_Shadowing(t *testing.T) {
	outer := NewLocalContext()
	outer.Variables["x"] = types.NewInt(1)
	inner, err := outer.Extend()
	require.NoError(t, err)
	inner.Variables["x"] = types.NewInt(2)

	v, _ := inner.LookupVariable("x")
	require.Equal(t, "2", v.String())
	v, _ = outer.LookupVariable("x")
	require.Equal(t, "1", v.String())

	_, ok := inner.LookupVariable("y")
	require.False(t, ok)
}
