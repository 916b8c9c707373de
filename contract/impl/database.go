package impl

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack"
	"go.dedis.ch/clarity/contract/types"
	"go.dedis.ch/clarity/logging"
	"go.dedis.ch/clarity/storage"
)

const blockHeightKey = "block-height"

func contractKey(name string) string { return "contract::" + name }

func mapEntryKey(contract, mapName string, key types.Value) string {
	return fmt.Sprintf("map::%s::%s::%s", contract, mapName, types.Key(key))
}

func tokenKey(contract, token string, p types.Principal) string {
	return fmt.Sprintf("token::%s::%s::%s", contract, token, p)
}

func blockKey(height uint64) string {
	return "block::" + strconv.FormatUint(height, 10)
}

// storedContract is the persisted form of a launched contract. Functions,
// maps and tokens are re-read from the source; variables keep the values
// computed at launch.
type storedContract struct {
	Source    string
	Variables map[string][]byte
}

// BlockInfo describes one simulated block.
type BlockInfo struct {
	Height              uint64
	Time                uint64
	HeaderHash          []byte
	BurnchainHeaderHash []byte
	VRFSeed             []byte
}

// ContractDatabase gives the VM typed access to the world state KV:
// launched contracts, map entries, token balances and simulated blocks.
type ContractDatabase struct {
	logger zerolog.Logger
	kv     storage.KV
	cache  *lru.Cache
}

// NewContractDatabase wraps kv. cacheSize bounds how many loaded
// contracts are kept in memory.
func NewContractDatabase(kv storage.KV, cacheSize int) (*ContractDatabase, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("contract cache: %w", err)
	}
	db := &ContractDatabase{kv: kv, cache: cache}
	db.logger = logging.RootLogger.With().Str("ContractDatabase", fmt.Sprintf("%p", kv)).Logger()
	return db, nil
}

// KV returns the underlying store.
func (db *ContractDatabase) KV() storage.KV { return db.kv }

func (db *ContractDatabase) Begin() error {
	if err := db.kv.Begin(); err != nil {
		return dbErr(err, "begin savepoint")
	}
	return nil
}

func (db *ContractDatabase) Commit() error {
	if err := db.kv.Commit(); err != nil {
		return dbErr(err, "commit savepoint")
	}
	return nil
}

// Rollback undoes the innermost savepoint. Cached contracts may have been
// loaded from the undone writes, so the cache is dropped.
func (db *ContractDatabase) Rollback() error {
	db.cache.Purge()
	if err := db.kv.Rollback(); err != nil {
		return dbErr(err, "rollback savepoint")
	}
	return nil
}

func (db *ContractDatabase) get(key string) ([]byte, bool, error) {
	data, err := db.kv.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, dbErr(err, "get %s", key)
	}
	return data, true, nil
}

func (db *ContractDatabase) put(key string, data []byte) error {
	if err := db.kv.Put(key, data); err != nil {
		return dbErr(err, "put %s", key)
	}
	return nil
}

// HasContract reports whether a contract called name was launched.
func (db *ContractDatabase) HasContract(name string) (bool, error) {
	if db.cache.Contains(name) {
		return true, nil
	}
	_, found, err := db.get(contractKey(name))
	return found, err
}

// GetContract loads a launched contract.
func (db *ContractDatabase) GetContract(name string) (*Contract, error) {
	if cached, ok := db.cache.Get(name); ok {
		return cached.(*Contract), nil
	}
	data, found, err := db.get(contractKey(name))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, uncheckedErr(ErrUndefinedContract, "%s", name)
	}

	var stored storedContract
	err = msgpack.Unmarshal(data, &stored)
	if err != nil {
		return nil, dbErr(err, "decode contract %s", name)
	}
	variables := make(map[string]types.Value, len(stored.Variables))
	for varName, raw := range stored.Variables {
		v, err := types.Unmarshal(raw)
		if err != nil {
			return nil, dbErr(err, "decode variable %s of %s", varName, name)
		}
		variables[varName] = v
	}
	contract, err := loadContract(name, stored.Source, variables)
	if err != nil {
		return nil, err
	}
	db.cache.Add(name, contract)
	db.logger.Debug().Str("contract", name).Msg("contract loaded")
	return contract, nil
}

// InsertContract persists a freshly initialized contract.
func (db *ContractDatabase) InsertContract(contract *Contract) error {
	exists, err := db.HasContract(contract.Name)
	if err != nil {
		return err
	}
	if exists {
		return uncheckedErr(ErrContractAlreadyExists, "%s", contract.Name)
	}
	stored := storedContract{
		Source:    contract.Source,
		Variables: make(map[string][]byte, len(contract.Context.Variables)),
	}
	for name, v := range contract.Context.Variables {
		raw, err := types.Marshal(v)
		if err != nil {
			return dbErr(err, "encode variable %s", name)
		}
		stored.Variables[name] = raw
	}
	data, err := msgpack.Marshal(&stored)
	if err != nil {
		return dbErr(err, "encode contract %s", contract.Name)
	}
	return db.put(contractKey(contract.Name), data)
}

// FetchEntry returns the value stored under key in a contract map, or
// nil when there is none.
func (db *ContractDatabase) FetchEntry(contract, mapName string, key types.Value) (types.Value, error) {
	data, found, err := db.get(mapEntryKey(contract, mapName, key))
	if err != nil || !found {
		return nil, err
	}
	v, err := types.Unmarshal(data)
	if err != nil {
		return nil, dbErr(err, "decode entry of %s.%s", contract, mapName)
	}
	return v, nil
}

func (db *ContractDatabase) SetEntry(contract, mapName string, key, value types.Value) error {
	data, err := types.Marshal(value)
	if err != nil {
		return dbErr(err, "encode entry of %s.%s", contract, mapName)
	}
	return db.put(mapEntryKey(contract, mapName, key), data)
}

// InsertEntry stores value unless key is already present.
func (db *ContractDatabase) InsertEntry(contract, mapName string, key, value types.Value) (bool, error) {
	existing, err := db.FetchEntry(contract, mapName, key)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}
	return true, db.SetEntry(contract, mapName, key, value)
}

// DeleteEntry removes key and reports whether it was present.
func (db *ContractDatabase) DeleteEntry(contract, mapName string, key types.Value) (bool, error) {
	err := db.kv.Del(mapEntryKey(contract, mapName, key))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, dbErr(err, "delete entry of %s.%s", contract, mapName)
	}
	return true, nil
}

// TokenBalance returns how much of a token p holds. Unknown holders have 0.
func (db *ContractDatabase) TokenBalance(contract, token string, p types.Principal) (types.Int, error) {
	data, found, err := db.get(tokenKey(contract, token, p))
	if err != nil || !found {
		return types.NewInt(0), err
	}
	v, err := types.Unmarshal(data)
	if err != nil {
		return types.Int{}, dbErr(err, "decode balance of %s", p)
	}
	balance, ok := v.(types.Int)
	if !ok {
		return types.Int{}, interpreterErr(ErrInterpreter, "balance of %s is %s", p, v)
	}
	return balance, nil
}

func (db *ContractDatabase) SetTokenBalance(contract, token string, p types.Principal, balance types.Int) error {
	data, err := types.Marshal(balance)
	if err != nil {
		return dbErr(err, "encode balance of %s", p)
	}
	return db.put(tokenKey(contract, token, p), data)
}

// BlockHeight returns the height of the last simulated block, 0 before
// the chain is initialized.
func (db *ContractDatabase) BlockHeight() (uint64, error) {
	data, found, err := db.get(blockHeightKey)
	if err != nil || !found {
		return 0, err
	}
	height, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return 0, dbErr(err, "decode block height")
	}
	return height, nil
}

// BlockInfo returns the simulated block at height.
func (db *ContractDatabase) BlockInfo(height uint64) (BlockInfo, error) {
	data, found, err := db.get(blockKey(height))
	if err != nil {
		return BlockInfo{}, err
	}
	if !found {
		return BlockInfo{}, runtimeErr(ErrBadBlockHeight, "no block at height %d", height)
	}
	var info BlockInfo
	err = msgpack.Unmarshal(data, &info)
	if err != nil {
		return BlockInfo{}, dbErr(err, "decode block %d", height)
	}
	return info, nil
}

// InitializeChain mines the genesis block unless it already exists.
func (db *ContractDatabase) InitializeChain(time uint64) error {
	_, found, err := db.get(blockKey(0))
	if err != nil || found {
		return err
	}
	return db.putBlock(newBlock(0, time, nil))
}

// MineBlock appends a simulated block and returns its height.
func (db *ContractDatabase) MineBlock(time uint64) (uint64, error) {
	height, err := db.BlockHeight()
	if err != nil {
		return 0, err
	}
	parent, err := db.BlockInfo(height)
	if err != nil {
		return 0, err
	}
	block := newBlock(height+1, time, parent.HeaderHash)
	err = db.putBlock(block)
	if err != nil {
		return 0, err
	}
	db.logger.Info().Uint64("height", block.Height).Uint64("time", time).Msg("block mined")
	return block.Height, nil
}

func (db *ContractDatabase) putBlock(block BlockInfo) error {
	data, err := msgpack.Marshal(&block)
	if err != nil {
		return dbErr(err, "encode block %d", block.Height)
	}
	err = db.put(blockKey(block.Height), data)
	if err != nil {
		return err
	}
	return db.put(blockHeightKey, []byte(strconv.FormatUint(block.Height, 10)))
}

func newBlock(height, time uint64, parentHash []byte) BlockInfo {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], height)
	binary.BigEndian.PutUint64(buf[8:], time)
	header := crypto.Keccak256(parentHash, buf[:])
	return BlockInfo{
		Height:              height,
		Time:                time,
		HeaderHash:          header,
		BurnchainHeaderHash: crypto.Keccak256([]byte("burnchain"), header),
		VRFSeed:             crypto.Keccak256([]byte("vrf-seed"), header),
	}
}
