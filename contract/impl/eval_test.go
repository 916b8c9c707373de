package impl_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/clarity/contract/impl"
	z "go.dedis.ch/clarity/internal/testing"
)

func evalRaw(t *testing.T, program string) (string, error) {
	vm := z.NewTestVM(t)
	v, err := vm.Env.EvalRaw(program)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

func requireEval(t *testing.T, program, expected string) {
	out, err := evalRaw(t, program)
	require.NoError(t, err, program)
	require.Equal(t, expected, out, program)
}

func requireEvalErr(t *testing.T, program string, kind error) {
	_, err := evalRaw(t, program)
	require.Error(t, err, program)
	require.True(t, errors.Is(err, kind), "%s: got %v", program, err)
}

func TestEval_Arithmetic(t *testing.T) {
	requireEval(t, "(+ 1 2 3)", "6")
	requireEval(t, "(- 10 4 3)", "3")
	requireEval(t, "(- 5)", "-5")
	requireEval(t, "(* 2 3 4)", "24")
	requireEval(t, "(/ 7 2)", "3")
	requireEval(t, "(/ -7 2)", "-3")
	requireEval(t, "(mod 7 3)", "1")
	requireEval(t, "(mod -7 3)", "-1")
	requireEval(t, "(pow 2 10)", "1024")
	requireEval(t, "(pow -1 3)", "-1")
	requireEval(t, "(pow 0 0)", "1")
	requireEval(t, "(pow 2 126)", "85070591730234615865843651857942052864")
}

func TestEval_ArithmeticErrors(t *testing.T) {
	requireEvalErr(t, "(/ 1 0)", impl.ErrDivisionByZero)
	requireEvalErr(t, "(mod 1 0)", impl.ErrDivisionByZero)
	requireEvalErr(t, "(pow 2 127)", impl.ErrArithmeticOverflow)
	requireEvalErr(t, "(pow 2 1000)", impl.ErrArithmeticOverflow)
	requireEvalErr(t, "(pow -2 129)", impl.ErrArithmeticUnderflow)
	requireEvalErr(t, "(pow 2 -1)", impl.ErrBadPower)
	requireEvalErr(t, "(+ 170141183460469231731687303715884105727 1)", impl.ErrArithmeticOverflow)
	requireEvalErr(t, "(- -170141183460469231731687303715884105728 1)", impl.ErrArithmeticUnderflow)
	requireEvalErr(t, "(+ 1 true)", impl.ErrTypeError)
	requireEvalErr(t, "(+)", impl.ErrIncorrectArgumentCount)
}

func TestEval_LogicAndComparison(t *testing.T) {
	requireEval(t, "(< 1 2)", "true")
	requireEval(t, "(>= 1 2)", "false")
	requireEval(t, "(eq? 1 1 1)", "true")
	requireEval(t, "(eq? 'ALICE 'BOB)", "false")
	requireEval(t, "(and true (> 2 1))", "true")
	requireEval(t, "(or false false)", "false")
	requireEval(t, "(not false)", "true")

	// short circuit: the undefined variable is never evaluated
	requireEval(t, "(and false undefined-thing)", "false")
	requireEval(t, "(or true undefined-thing)", "true")

	requireEvalErr(t, "(eq? 1 true)", impl.ErrTypeError)
	requireEvalErr(t, "(and 1)", impl.ErrTypeError)
}

func TestEval_ControlFlow(t *testing.T) {
	requireEval(t, "(if (> 3 2) 10 20)", "10")
	requireEval(t, "(let ((a 1) (b 2)) (+ a b))", "3")
	requireEval(t, "(let ((a 1)) (let ((b (+ a 1))) (* a b)))", "2")
	requireEval(t, "(begin 1 2 3)", "3")
	requireEval(t, "(print 7)", "7")
	requireEval(t, "(default-to 5 none)", "5")
	requireEval(t, "(default-to 5 (some 6))", "6")
	requireEval(t, "(is-none? none)", "true")
	requireEval(t, "(is-ok? (err 1))", "false")
	requireEval(t, "(expects! (some 4) 0)", "4")
	requireEval(t, "(expects! (ok 4) 0)", "4")
	requireEval(t, "(expects-err! (err 9) 0)", "9")

	// at the top level a failed expects! yields its thrown value
	requireEval(t, "(expects! none 42)", "42")

	requireEvalErr(t, "(if 1 2 3)", impl.ErrTypeError)
	requireEvalErr(t, "(let ((a 1) (a 2)) a)", impl.ErrNameAlreadyUsed)
	requireEvalErr(t, "(let ((+ 1)) 1)", impl.ErrReservedName)
	requireEvalErr(t, "undefined-thing", impl.ErrUndefinedVariable)
	requireEvalErr(t, "(undefined-fn 1)", impl.ErrUndefinedFunction)
	requireEvalErr(t, "()", impl.ErrInvalidArguments)
	requireEvalErr(t, "(define x 1)", impl.ErrBadDefinition)
	requireEvalErr(t, "tx-sender", impl.ErrNoSender)
	requireEvalErr(t, "", impl.ErrParse)
}

func TestEval_Values(t *testing.T) {
	requireEval(t, "'ALICE", "'ALICE")
	requireEval(t, "0x0a0b", "0x0a0b")
	requireEval(t, `"hi"`, "0x6869")
	requireEval(t, "(tuple (b 2) (a 1))", "(tuple (a 1) (b 2))")
	requireEval(t, "(get a (tuple (a 1)))", "1")
	requireEval(t, "(get a (some (tuple (a 1))))", "(some 1)")
	requireEval(t, "(get a none)", "none")
	requireEval(t, "(list 1 2 3)", "(1 2 3)")
	requireEval(t, "(len (list 1 2 3))", "3")
	requireEval(t, "(len 0x0102)", "2")
	requireEval(t, "block-height", "0")

	requireEvalErr(t, "(list 1 true)", impl.ErrTypeError)
	requireEvalErr(t, "(tuple (a 1) (a 2))", impl.ErrInvalidArguments)
	requireEvalErr(t, "(get b (tuple (a 1)))", impl.ErrInvalidArguments)
}

func TestEval_Sequences(t *testing.T) {
	requireEval(t, "(map not (list true false))", "(false true)")
	requireEval(t, "(filter not (list true false true))", "(false)")
	requireEval(t, "(fold + (list 1 2 3) 10)", "16")
	requireEval(t, "(fold - (list 1 2 3) 0)", "2")

	requireEvalErr(t, "(map if (list 1))", impl.ErrInvalidArguments)
	requireEvalErr(t, "(map nothing (list 1))", impl.ErrUndefinedFunction)
	requireEvalErr(t, "(filter + (list 1))", impl.ErrTypeError)
}

func TestEval_Hashes(t *testing.T) {
	requireEval(t, `(sha256 "abc")`, "0xba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad")
	requireEval(t, "(keccak256 0x)", "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470")
	requireEval(t, "(len (hash160 1))", "20")
	requireEval(t, "(eq? (sha256 0) (sha256 0x00000000000000000000000000000000))", "true")
	requireEval(t, "(eq? (sha256 -1) (sha256 0xffffffffffffffffffffffffffffffff))", "true")

	requireEvalErr(t, "(sha256 true)", impl.ErrTypeError)
}

func TestEval_BlockInfo(t *testing.T) {
	vm := z.NewTestVM(t, z.WithGenesisTime(1234))

	v, err := vm.Env.EvalRaw("(get-block-info time 0)")
	require.NoError(t, err)
	require.Equal(t, "1234", v.String())

	v, err = vm.Env.EvalRaw("(len (get-block-info header-hash 0))")
	require.NoError(t, err)
	require.Equal(t, "32", v.String())

	_, err = vm.Env.EvalRaw("(get-block-info time 1)")
	require.ErrorIs(t, err, impl.ErrBadBlockHeight)

	_, err = vm.Env.EvalRaw("(get-block-info color 0)")
	require.ErrorIs(t, err, impl.ErrInvalidArguments)
}

func TestArgumentValues(t *testing.T) {
	values, err := impl.ParseArguments([]string{"'ALICE", "10", "true", "none", "0x01"})
	require.NoError(t, err)
	require.Len(t, values, 5)
	require.Equal(t, "'ALICE", values[0].String())
	require.Equal(t, "10", values[1].String())
	require.Equal(t, "true", values[2].String())

	_, err = impl.ParseArguments([]string{"(+ 1 2)"})
	require.ErrorIs(t, err, impl.ErrInterpreter)

	_, err = impl.ParseArguments([]string{"1 2"})
	require.ErrorIs(t, err, impl.ErrParse)
}
