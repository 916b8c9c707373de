package testing

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/clarity/contract/impl"
	"go.dedis.ch/clarity/contract/types"
	"go.dedis.ch/clarity/storage"
)

type namedSource struct {
	name   string
	source string
}

type configTemplate struct {
	kv          storage.KV
	cacheSize   int
	genesisTime uint64
	contracts   []namedSource
}

func newConfigTemplate() *configTemplate {
	return &configTemplate{
		kv:          storage.NewSimpleKV(),
		cacheSize:   16,
		genesisTime: 1000,
	}
}

// Option is the type of option when creating a test VM.
type Option func(*configTemplate)

// WithStore sets the world state the VM runs against.
func WithStore(kv storage.KV) Option {
	return func(ct *configTemplate) {
		ct.kv = kv
	}
}

// WithCacheSize sets how many loaded contracts are cached.
func WithCacheSize(size int) Option {
	return func(ct *configTemplate) {
		ct.cacheSize = size
	}
}

func WithGenesisTime(time uint64) Option {
	return func(ct *configTemplate) {
		ct.genesisTime = time
	}
}

// WithContract launches a contract once the VM is built.
func WithContract(name, source string) Option {
	return func(ct *configTemplate) {
		ct.contracts = append(ct.contracts, namedSource{name: name, source: source})
	}
}

// TestVM bundles a contract database and the environment running on it.
type TestVM struct {
	DB  *impl.ContractDatabase
	Env *impl.OwnedEnvironment
}

// NewTestVM builds a VM on an initialized chain. The root savepoint is
// rolled back when the test ends.
func NewTestVM(t *testing.T, opts ...Option) *TestVM {
	template := newConfigTemplate()
	for _, opt := range opts {
		opt(template)
	}

	db, err := impl.NewContractDatabase(template.kv, template.cacheSize)
	require.NoError(t, err)
	require.NoError(t, db.InitializeChain(template.genesisTime))

	env, err := impl.NewOwnedEnvironment(db)
	require.NoError(t, err)
	t.Cleanup(func() { env.Close() })

	for _, c := range template.contracts {
		require.NoError(t, env.InitializeContract(c.name, c.source), "launch %s", c.name)
	}
	return &TestVM{DB: db, Env: env}
}

// Eval runs a read-only program in a launched contract.
func (vm *TestVM) Eval(t *testing.T, contract, program string) types.Value {
	v, err := vm.Env.EvalReadOnly(contract, program)
	require.NoError(t, err, program)
	return v
}

// Execute calls a public function as sender. Arguments are given in
// source form.
func (vm *TestVM) Execute(t *testing.T, sender, contract, fn string, args ...string) types.Value {
	v, err := vm.TryExecute(sender, contract, fn, args...)
	require.NoError(t, err)
	return v
}

func (vm *TestVM) TryExecute(sender, contract, fn string, args ...string) (types.Value, error) {
	p, err := types.ParsePrincipal(sender)
	if err != nil {
		return nil, err
	}
	values, err := impl.ParseArguments(args)
	if err != nil {
		return nil, err
	}
	v, _, err := vm.Env.ExecuteTransaction(p, contract, fn, values)
	return v, err
}
