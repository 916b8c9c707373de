package impl_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/clarity/contract/impl"
	"go.dedis.ch/clarity/contract/types"
	z "go.dedis.ch/clarity/internal/testing"
)

const tokensContract = `
(define-map balances ((owner principal)) ((amount int)))
(define-token coin)
(define limit 100)

(define (credit (who principal) (n int))
  (set-entry! balances (tuple (owner who)) (tuple (amount n))))

(define-public (deposit (n int))
  (if (> n limit)
      (err 1)
      (begin (credit tx-sender n) (ok n))))

(define-public (deposit-then-fail (n int))
  (begin (credit tx-sender n) (err 2)))

(define-read-only (balance-of (who principal))
  (default-to 0 (get amount (fetch-entry balances (tuple (owner who))))))

(define-read-only (sneaky-write)
  (credit 'BOB 1))

(define-public (not-a-response) 5)

(define-public (whoami)
  (ok (tuple (sender tx-sender) (caller contract-caller))))

(define-public (as-self)
  (as-contract (ok tx-sender)))

(define-public (pay (to principal) (n int))
  (transfer-token! coin n tx-sender to))

(define-public (checked-pay (to principal) (n int))
  (begin (expects! (pay to n) (err 99)) (ok true)))

(mint-token! coin 50 'ALICE)
`

const callerContract = `
(define-public (relay)
  (contract-call! tokens whoami))

(define-public (relay-deposit (n int))
  (contract-call! tokens deposit n))
`

func newTokensVM(t *testing.T, opts ...z.Option) *z.TestVM {
	opts = append([]z.Option{z.WithContract("tokens", tokensContract)}, opts...)
	return z.NewTestVM(t, opts...)
}

func TestEnvironment_PublicFunctionCommits(t *testing.T) {
	vm := newTokensVM(t)

	require.Equal(t, "(ok 10)", vm.Execute(t, "ALICE", "tokens", "deposit", "10").String())
	require.Equal(t, "10", vm.Eval(t, "tokens", "(balance-of 'ALICE)").String())
	require.Equal(t, "0", vm.Eval(t, "tokens", "(balance-of 'BOB)").String())
}

func TestEnvironment_ErrResponseRollsBack(t *testing.T) {
	vm := newTokensVM(t)
	vm.Execute(t, "ALICE", "tokens", "deposit", "10")

	require.Equal(t, "(err 1)", vm.Execute(t, "ALICE", "tokens", "deposit", "1000").String())
	require.Equal(t, "(err 2)", vm.Execute(t, "ALICE", "tokens", "deposit-then-fail", "7").String())
	require.Equal(t, "10", vm.Eval(t, "tokens", "(balance-of 'ALICE)").String())
}

func TestEnvironment_TransactionErrors(t *testing.T) {
	vm := newTokensVM(t)

	_, err := vm.TryExecute("ALICE", "tokens", "not-a-response")
	require.ErrorIs(t, err, impl.ErrContractMustReturnResponse)

	_, err = vm.TryExecute("ALICE", "tokens", "sneaky-write")
	require.ErrorIs(t, err, impl.ErrWriteInReadOnly)

	_, err = vm.TryExecute("ALICE", "tokens", "credit", "'ALICE", "1")
	require.ErrorIs(t, err, impl.ErrNonPublicFunction)

	_, err = vm.TryExecute("ALICE", "tokens", "missing")
	require.ErrorIs(t, err, impl.ErrUndefinedFunction)

	_, err = vm.TryExecute("ALICE", "nowhere", "deposit", "1")
	require.ErrorIs(t, err, impl.ErrUndefinedContract)

	_, err = vm.TryExecute("ALICE", "tokens", "deposit", "true")
	require.ErrorIs(t, err, impl.ErrTypeError)

	_, err = vm.TryExecute("ALICE", "tokens", "deposit", "1", "2")
	require.ErrorIs(t, err, impl.ErrIncorrectArgumentCount)

	require.True(t, impl.IsClass(err, impl.Unchecked))

	// the environment is still usable after failures
	require.Equal(t, "(ok 3)", vm.Execute(t, "ALICE", "tokens", "deposit", "3").String())
	require.Equal(t, "0", vm.Eval(t, "tokens", "(balance-of 'BOB)").String())
}

func TestEnvironment_SenderAndCaller(t *testing.T) {
	vm := newTokensVM(t, z.WithContract("caller", callerContract))

	require.Equal(t, "(ok (tuple (caller 'BOB) (sender 'BOB)))",
		vm.Execute(t, "BOB", "tokens", "whoami").String())
	require.Equal(t, "(ok '.tokens)", vm.Execute(t, "BOB", "tokens", "as-self").String())
	require.Equal(t, "(ok (tuple (caller '.caller) (sender 'ALICE)))",
		vm.Execute(t, "ALICE", "caller", "relay").String())

	// the deposit is made by the original sender
	require.Equal(t, "(ok 4)", vm.Execute(t, "ALICE", "caller", "relay-deposit", "4").String())
	require.Equal(t, "4", vm.Eval(t, "tokens", "(balance-of 'ALICE)").String())
	require.Equal(t, "(err 1)", vm.Execute(t, "ALICE", "caller", "relay-deposit", "400").String())
}

func TestEnvironment_TokenTransfers(t *testing.T) {
	vm := newTokensVM(t)

	to := []types.Value{types.StandardPrincipal("BOB"), types.NewInt(20)}
	result, assets, err := vm.Env.ExecuteTransaction(types.StandardPrincipal("ALICE"), "tokens", "pay", to)
	require.NoError(t, err)
	require.Equal(t, "(ok true)", result.String())
	require.Equal(t, "['ALICE spent 20 tokens::coin\n]", assets.String())

	table := assets.ToTable()
	require.Len(t, table[types.StandardPrincipal("ALICE")], 1)

	require.Equal(t, "20", vm.Eval(t, "tokens", "(get-token-balance coin 'BOB)").String())
	require.Equal(t, "30", vm.Eval(t, "tokens", "(get-token-balance coin 'ALICE)").String())

	require.Equal(t, "(err 1)", vm.Execute(t, "ALICE", "tokens", "pay", "'BOB", "1000").String())
	require.Equal(t, "(err 2)", vm.Execute(t, "ALICE", "tokens", "pay", "'ALICE", "1").String())
	require.Equal(t, "(err 3)", vm.Execute(t, "ALICE", "tokens", "pay", "'BOB", "0").String())
	require.Equal(t, "(err 99)", vm.Execute(t, "ALICE", "tokens", "checked-pay", "'BOB", "1000").String())
	require.Equal(t, "(ok true)", vm.Execute(t, "ALICE", "tokens", "checked-pay", "'BOB", "5").String())
	require.Equal(t, "25", vm.Eval(t, "tokens", "(get-token-balance coin 'BOB)").String())
}

func TestEnvironment_EvalReadOnlyRollsBack(t *testing.T) {
	vm := newTokensVM(t)

	require.Equal(t, "5", vm.Eval(t, "tokens", "(begin (credit 'BOB 5) (balance-of 'BOB))").String())
	require.Equal(t, "0", vm.Eval(t, "tokens", "(balance-of 'BOB)").String())
	require.Equal(t, "100", vm.Eval(t, "tokens", "limit").String())

	_, err := vm.Env.EvalReadOnly("nowhere", "1")
	require.ErrorIs(t, err, impl.ErrUndefinedContract)
}

func TestEnvironment_InitializeContract(t *testing.T) {
	vm := newTokensVM(t)

	err := vm.Env.InitializeContract("tokens", tokensContract)
	require.ErrorIs(t, err, impl.ErrContractAlreadyExists)

	err = vm.Env.InitializeContract("broken", "(define-map m ((k int)) ((v int))) (define x (/ 1 0))")
	require.ErrorIs(t, err, impl.ErrDivisionByZero)
	found, err := vm.DB.HasContract("broken")
	require.NoError(t, err)
	require.False(t, found)

	err = vm.Env.InitializeContract("dup", "(define x 1) (define x 2)")
	require.ErrorIs(t, err, impl.ErrNameAlreadyUsed)

	err = vm.Env.InitializeContract("reserved", "(define (map (x int)) x)")
	require.ErrorIs(t, err, impl.ErrReservedName)

	err = vm.Env.InitializeContract("bad-parse", "(define x")
	require.ErrorIs(t, err, impl.ErrParse)
}

func TestEnvironment_RecursionDetected(t *testing.T) {
	vm := z.NewTestVM(t, z.WithContract("rec", `
(define-public (spin (n int)) (spin n))
(define (countdown (n int)) (if (> n 0) (countdown (- n 1)) 0))
(define-public (start) (ok (countdown 3)))
`))

	_, err := vm.TryExecute("ALICE", "rec", "spin", "1")
	require.ErrorIs(t, err, impl.ErrRecursionDetected)

	var vmErr *impl.Error
	require.True(t, errors.As(err, &vmErr))
	require.Equal(t, []impl.FunctionIdentifier{impl.NewFunctionIdentifier("rec", "spin")}, vmErr.Stack)

	_, err = vm.TryExecute("ALICE", "rec", "start")
	require.ErrorIs(t, err, impl.ErrRecursionDetected)
}

func TestEnvironment_BlockHeight(t *testing.T) {
	vm := newTokensVM(t)

	height, err := vm.DB.MineBlock(2000)
	require.NoError(t, err)
	require.Equal(t, uint64(1), height)

	require.Equal(t, "1", vm.Eval(t, "tokens", "block-height").String())
	require.Equal(t, "2000", vm.Eval(t, "tokens", "(get-block-info time block-height)").String())
	require.Equal(t, "false", vm.Eval(t, "tokens",
		"(eq? (get-block-info header-hash 0) (get-block-info header-hash 1))").String())
}

const entriesContract = `
(define-map entries ((k int)) ((v int)))

(define-public (insert (k int) (v int))
  (ok (insert-entry! entries (tuple (k k)) (tuple (v v)))))

(define-public (remove (k int))
  (ok (delete-entry! entries (tuple (k k)))))

(define-read-only (read (k int))
  (default-to 0 (get v (fetch-entry entries (tuple (k k))))))
`

func TestEnvironment_InsertAndDeleteEntries(t *testing.T) {
	vm := z.NewTestVM(t, z.WithContract("entries", entriesContract))

	require.Equal(t, "(ok true)", vm.Execute(t, "ALICE", "entries", "insert", "1", "10").String())
	require.Equal(t, "(ok false)", vm.Execute(t, "ALICE", "entries", "insert", "1", "20").String())
	require.Equal(t, "10", vm.Eval(t, "entries", "(read 1)").String())

	require.Equal(t, "(ok true)", vm.Execute(t, "ALICE", "entries", "remove", "1").String())
	require.Equal(t, "(ok false)", vm.Execute(t, "ALICE", "entries", "remove", "1").String())
	require.Equal(t, "0", vm.Eval(t, "entries", "(read 1)").String())

	// eval may write but keeps nothing
	require.Equal(t, "true", vm.Eval(t, "entries", "(insert-entry! entries (tuple (k 2)) (tuple (v 5)))").String())
	require.Equal(t, "0", vm.Eval(t, "entries", "(read 2)").String())
}

func TestEnvironment_ContractsOwnTheirMaps(t *testing.T) {
	vm := z.NewTestVM(t,
		z.WithContract("left", entriesContract),
		z.WithContract("right", entriesContract))

	vm.Execute(t, "ALICE", "left", "insert", "1", "100")
	require.Equal(t, "(ok true)", vm.Execute(t, "ALICE", "right", "insert", "1", "999").String())
	require.Equal(t, "100", vm.Eval(t, "left", "(read 1)").String())
	require.Equal(t, "999", vm.Eval(t, "right", "(read 1)").String())

	// names that could splice storage keys are refused
	err := vm.Env.InitializeContract("left::entries", entriesContract)
	require.ErrorIs(t, err, impl.ErrBadContractName)
	err = vm.Env.InitializeContract("other", "(define-map b::c ((k int)) ((v int)))")
	require.ErrorIs(t, err, impl.ErrParse)
	require.Equal(t, "100", vm.Eval(t, "left", "(read 1)").String())
}

func TestEnvironment_ContractNames(t *testing.T) {
	vm := z.NewTestVM(t)

	for _, name := range []string{"", "has space.dot", "a::b", "1st", "-dash", "'quoted", strings.Repeat("a", impl.MaxContractNameLength+1)} {
		err := vm.Env.InitializeContract(name, "(define-public (me) (as-contract (ok tx-sender)))")
		require.ErrorIs(t, err, impl.ErrBadContractName, "%q", name)

		exists, err := vm.DB.HasContract(name)
		require.NoError(t, err)
		require.False(t, exists, "%q", name)
	}

	for _, name := range []string{"a", "fungible-stx", "my_contract2", strings.Repeat("a", impl.MaxContractNameLength)} {
		require.NoError(t, vm.Env.InitializeContract(name, "(define-public (me) (as-contract (ok tx-sender)))"), name)
		result := vm.Execute(t, "ALICE", name, "me").(types.Response)
		p, err := types.ParsePrincipal(result.Data.String())
		require.NoError(t, err)
		require.Equal(t, types.ContractPrincipal(name), p)
	}
}

// chainOptions launches c0 ... c<n-1>, where each go calls the next one
// and the last returns (ok 1).
func chainOptions(n int) []z.Option {
	opts := make([]z.Option, n)
	for i := 0; i < n-1; i++ {
		source := fmt.Sprintf("(define-public (go) (contract-call! c%d go))", i+1)
		opts[i] = z.WithContract(fmt.Sprintf("c%d", i), source)
	}
	opts[n-1] = z.WithContract(fmt.Sprintf("c%d", n-1), "(define-public (go) (ok 1))")
	return opts
}

func TestEnvironment_CallStackDepth(t *testing.T) {
	vm := z.NewTestVM(t, chainOptions(impl.MaxCallStackDepth+1)...)

	// c1 to the last contract is exactly the maximum depth
	require.Equal(t, "(ok 1)", vm.Execute(t, "ALICE", "c1", "go").String())

	_, err := vm.TryExecute("ALICE", "c0", "go")
	require.ErrorIs(t, err, impl.ErrMaxStackDepth)
	require.True(t, impl.IsClass(err, impl.Runtime))

	var vmErr *impl.Error
	require.True(t, errors.As(err, &vmErr))
	require.Len(t, vmErr.Stack, impl.MaxCallStackDepth)
	require.Equal(t, impl.NewFunctionIdentifier("c0", "go"), vmErr.Stack[0])

	// the stack unwound completely
	require.Equal(t, "(ok 1)", vm.Execute(t, "ALICE", "c1", "go").String())
}
