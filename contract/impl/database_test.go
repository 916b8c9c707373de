package impl_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/clarity/contract/impl"
	"go.dedis.ch/clarity/contract/types"
	z "go.dedis.ch/clarity/internal/testing"
	"go.dedis.ch/clarity/storage"
)

func TestContractDatabase_ReloadsContracts(t *testing.T) {
	kv := storage.NewSimpleKV()
	vm := z.NewTestVM(t, z.WithStore(kv), z.WithContract("tokens", tokensContract))
	vm.Execute(t, "ALICE", "tokens", "deposit", "10")

	// a second database over the same store sees only what was persisted
	db, err := impl.NewContractDatabase(kv, 1)
	require.NoError(t, err)

	contract, err := db.GetContract("tokens")
	require.NoError(t, err)
	require.Equal(t, "tokens", contract.ContractName())
	require.Equal(t, []string{"as-self", "balance-of", "checked-pay", "deposit", "deposit-then-fail",
		"not-a-response", "pay", "sneaky-write", "whoami"}, contract.PublicFunctions())
	require.Equal(t, "100", contract.Context.Variables["limit"].String())
	require.Contains(t, contract.String(), "| public (deposit (n int))")
	require.Contains(t, contract.String(), "| token coin")

	env, err := impl.NewOwnedEnvironment(db)
	require.NoError(t, err)
	defer env.Close()

	v, err := env.EvalReadOnly("tokens", "(list (balance-of 'ALICE) (get-token-balance coin 'ALICE))")
	require.NoError(t, err)
	require.Equal(t, "(10 50)", v.String())
}

func TestContractDatabase_Entries(t *testing.T) {
	db, err := impl.NewContractDatabase(storage.NewSimpleKV(), 2)
	require.NoError(t, err)

	key, err := types.NewTuple(types.NamedValue{Name: "owner", Value: types.StandardPrincipal("ALICE")})
	require.NoError(t, err)
	value, err := types.NewTuple(types.NamedValue{Name: "amount", Value: types.NewInt(3)})
	require.NoError(t, err)

	v, err := db.FetchEntry("c", "m", key)
	require.NoError(t, err)
	require.Nil(t, v)

	inserted, err := db.InsertEntry("c", "m", key, value)
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = db.InsertEntry("c", "m", key, value)
	require.NoError(t, err)
	require.False(t, inserted)

	v, err = db.FetchEntry("c", "m", key)
	require.NoError(t, err)
	require.True(t, types.Equal(value, v))

	deleted, err := db.DeleteEntry("c", "m", key)
	require.NoError(t, err)
	require.True(t, deleted)

	deleted, err = db.DeleteEntry("c", "m", key)
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestContractDatabase_SavepointsDropCache(t *testing.T) {
	kv := storage.NewSimpleKV()
	db, err := impl.NewContractDatabase(kv, 2)
	require.NoError(t, err)
	require.NoError(t, db.InitializeChain(1))

	env, err := impl.NewOwnedEnvironment(db)
	require.NoError(t, err)
	require.NoError(t, env.InitializeContract("temp", "(define x 1)"))

	require.NoError(t, db.Begin())
	_, err = db.GetContract("temp")
	require.NoError(t, err)
	require.NoError(t, db.Rollback())

	found, err := db.HasContract("temp")
	require.NoError(t, err)
	require.True(t, found)
	require.NoError(t, env.Close())

	// roll back the launch itself by undoing the root savepoint
	require.NoError(t, kv.Begin())
	env2, err := impl.NewOwnedEnvironment(db)
	require.NoError(t, err)
	require.NoError(t, env2.InitializeContract("gone", "(define y 2)"))
	_, err = db.GetContract("gone")
	require.NoError(t, err)
	require.NoError(t, env2.Close())
	require.NoError(t, db.Rollback())

	found, err = db.HasContract("gone")
	require.NoError(t, err)
	require.False(t, found)
}

func TestContractDatabase_Blocks(t *testing.T) {
	db, err := impl.NewContractDatabase(storage.NewSimpleKV(), 2)
	require.NoError(t, err)

	height, err := db.BlockHeight()
	require.NoError(t, err)
	require.Equal(t, uint64(0), height)

	_, err = db.BlockInfo(0)
	require.ErrorIs(t, err, impl.ErrBadBlockHeight)

	require.NoError(t, db.InitializeChain(100))
	genesis, err := db.BlockInfo(0)
	require.NoError(t, err)
	require.Len(t, genesis.HeaderHash, 32)

	// initializing twice keeps the genesis block
	require.NoError(t, db.InitializeChain(200))
	again, err := db.BlockInfo(0)
	require.NoError(t, err)
	require.Equal(t, genesis, again)

	for i := 1; i <= 3; i++ {
		height, err = db.MineBlock(uint64(100 + i))
		require.NoError(t, err)
		require.Equal(t, uint64(i), height)
	}
	info, err := db.BlockInfo(3)
	require.NoError(t, err)
	require.Equal(t, uint64(103), info.Time)
	require.NotEqual(t, info.HeaderHash, info.VRFSeed)
}
