package local

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"
	"go.dedis.ch/clarity/contract"
	"go.dedis.ch/clarity/contract/impl"
	"go.dedis.ch/clarity/contract/parser"
	"go.dedis.ch/clarity/contract/types"
	"go.dedis.ch/clarity/storage"
	"go.dedis.ch/clarity/storage/sqlite"
)

func (r *Runner) initialize(c *cli.Context) error {
	if c.NArg() != 1 {
		return usage(c)
	}
	path := c.Args().Get(0)
	exists, err := databaseExists(path)
	if err != nil {
		return err
	}
	if exists {
		return r.fail("Initialization error: ", fmt.Errorf("database %s already exists", path))
	}

	store, err := sqlite.Open(c.Context, path)
	if err != nil {
		return r.fail("Initialization error: ", err)
	}
	defer store.Close()
	db, err := impl.NewContractDatabase(store, r.Config.ContractCacheSize)
	if err != nil {
		return err
	}
	err = db.InitializeChain(uint64(r.Now().Unix()))
	if err != nil {
		return r.fail("Initialization error: ", err)
	}
	r.printf("Database created.\n")
	return nil
}

func (r *Runner) mineBlock(c *cli.Context) error {
	if c.NArg() != 2 {
		return usage(c)
	}
	blockTime, err := strconv.ParseUint(c.Args().Get(0), 10, 64)
	if err != nil {
		return fmt.Errorf("block time %q: %w", c.Args().Get(0), err)
	}
	store, db, err := r.openDatabase(c.Context, c.Args().Get(1))
	if err != nil {
		return err
	}
	defer store.Close()

	_, err = db.MineBlock(blockTime)
	if err != nil {
		return r.fail("Block mining error: ", err)
	}
	r.printf("Simulated block mine!\n")
	return nil
}

func (r *Runner) getBlockHeight(c *cli.Context) error {
	if c.NArg() != 1 {
		return usage(c)
	}
	store, db, err := r.openDatabase(c.Context, c.Args().Get(0))
	if err != nil {
		return err
	}
	defer store.Close()

	height, err := db.BlockHeight()
	if err != nil {
		return err
	}
	r.printf("Simulated block height: \n%d\n", height)
	return nil
}

func (r *Runner) check(c *cli.Context) error {
	if c.NArg() != 1 && c.NArg() != 2 {
		return usage(c)
	}
	source, err := r.readFile(c.Args().Get(0))
	if err != nil {
		return err
	}

	if c.Bool("ast") {
		program, err := parser.Parse(source)
		if err != nil {
			return r.fail("Check error: ", err)
		}
		r.printf("%s", parser.DisplayAST(program))
	}

	var db *impl.ContractDatabase
	if c.NArg() == 2 {
		var store *sqlite.Store
		store, db, err = r.openDatabase(c.Context, c.Args().Get(1))
		if err != nil {
			return err
		}
		defer store.Close()
	}
	err = impl.CheckContract(source, db)
	if err != nil {
		return r.fail("Check error: ", err)
	}
	r.printf("Checks passed.\n")
	return nil
}

func (r *Runner) launch(c *cli.Context) error {
	if c.NArg() != 3 {
		return usage(c)
	}
	name := c.Args().Get(0)
	err := impl.ValidateContractName(name)
	if err != nil {
		return r.fail("Contract initialization error: ", err)
	}
	source, err := r.readFile(c.Args().Get(1))
	if err != nil {
		return err
	}
	store, db, err := r.openDatabase(c.Context, c.Args().Get(2))
	if err != nil {
		return err
	}
	defer store.Close()

	err = impl.CheckContract(source, db)
	if err != nil {
		return r.fail("Contract initialization error: ", err)
	}
	env, err := impl.NewOwnedEnvironment(db)
	if err != nil {
		return err
	}
	defer env.Close()
	err = env.InitializeContract(name, source)
	if err != nil {
		return r.fail("Contract initialization error: ", err)
	}
	r.printf("Contract initialized!\n")
	return nil
}

// eval reads the program from a file when one is given, from stdin
// otherwise.
func (r *Runner) eval(c *cli.Context) error {
	var program, dbPath string
	var err error
	switch c.NArg() {
	case 2:
		dbPath = c.Args().Get(1)
		program, err = r.readStdin()
	case 3:
		dbPath = c.Args().Get(2)
		program, err = r.readFile(c.Args().Get(1))
	default:
		return usage(c)
	}
	if err != nil {
		return err
	}
	store, db, err := r.openDatabase(c.Context, dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	env, err := impl.NewOwnedEnvironment(db)
	if err != nil {
		return err
	}
	defer env.Close()
	result, err := env.EvalReadOnly(c.Args().Get(0), program)
	if err != nil {
		return r.fail("Program execution error: ", err)
	}
	r.printf("Program executed successfully! Output: \n%s\n", result)
	return nil
}

// memoryEnvironment runs on a fresh in-memory store.
func (r *Runner) memoryEnvironment() (*impl.OwnedEnvironment, error) {
	db, err := impl.NewContractDatabase(storage.NewSimpleKV(), r.Config.ContractCacheSize)
	if err != nil {
		return nil, err
	}
	err = db.InitializeChain(uint64(r.Now().Unix()))
	if err != nil {
		return nil, err
	}
	return impl.NewOwnedEnvironment(db)
}

func (r *Runner) evalRaw(c *cli.Context) error {
	if c.NArg() != 0 {
		return usage(c)
	}
	program, err := r.readStdin()
	if err != nil {
		return err
	}
	env, err := r.memoryEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	result, err := env.EvalRaw(program)
	if err != nil {
		return r.fail("Program execution error: ", err)
	}
	r.printf("Program executed successfully! Output: \n%s\n", result)
	return nil
}

// execute runs one transaction and records its receipt. A transaction
// that returns an err response is reported as aborted but is not a
// command failure. Read-only functions may return any value.
func (r *Runner) execute(c *cli.Context) error {
	if c.NArg() < 4 {
		return usage(c)
	}
	args := c.Args().Slice()
	dbPath, contractName, fnName := args[0], args[1], args[2]

	store, db, err := r.openDatabase(c.Context, dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	receipt := sqlite.Receipt{Contract: contractName, Function: fnName, Sender: args[3]}
	result, err := r.transact(db, args[3], contractName, fnName, args[4:])
	response, isResponse := result.(types.Response)

	switch {
	case err != nil:
		receipt.Status = sqlite.StatusError
		receipt.Result = err.Error()
	case !isResponse:
		receipt.Status = sqlite.StatusReadOnly
		receipt.Result = result.String()
	case response.Committed:
		receipt.Status = sqlite.StatusCommitted
		receipt.Result = response.String()
	default:
		receipt.Status = sqlite.StatusAborted
		receipt.Result = response.String()
	}
	height, heightErr := db.BlockHeight()
	if heightErr != nil {
		r.logger.Warn().Err(heightErr).Msg("block height of receipt unknown")
	}
	receipt.BlockHeight = height
	recorded, recordErr := store.RecordReceipt(receipt)
	if recordErr != nil {
		r.logger.Warn().Err(recordErr).Msg("receipt not recorded")
	} else {
		r.logger.Info().Str("tx", recorded.TxID).Str("status", recorded.Status).Msg("transaction")
	}

	switch {
	case err != nil:
		return r.fail("Transaction execution error: ", err)
	case !isResponse:
		r.printf("Read-only function returned: %s\n", result)
	case response.Committed:
		r.printf("Transaction executed and committed. Returned: %s\n", response)
	default:
		r.printf("Aborted: %s\n", response)
	}
	return nil
}

// transact runs the transaction and releases every savepoint before
// returning, so the receipt is written outside of it. Public functions
// always return a response; the VM rejects any other result.
func (r *Runner) transact(db *impl.ContractDatabase, sender, contractName, fnName string, rawArgs []string) (types.Value, error) {
	p, err := types.ParsePrincipal(sender)
	if err != nil {
		return nil, err
	}
	values, err := impl.ParseArguments(rawArgs)
	if err != nil {
		return nil, err
	}
	env, err := impl.NewOwnedEnvironment(db)
	if err != nil {
		return nil, err
	}
	defer env.Close()

	result, assets, err := env.ExecuteTransaction(p, contractName, fnName, values)
	if err != nil {
		return nil, err
	}
	if assets.Len() > 0 {
		r.logger.Info().Str("assets", assets.String()).Msg("assets spent")
	}
	return result, nil
}

func (r *Runner) receipts(c *cli.Context) error {
	if c.NArg() != 1 {
		return usage(c)
	}
	store, _, err := r.openDatabase(c.Context, c.Args().Get(0))
	if err != nil {
		return err
	}
	defer store.Close()

	receipts, err := store.Receipts()
	if err != nil {
		return err
	}
	if len(receipts) == 0 {
		r.printf("No receipts.\n")
		return nil
	}
	for _, receipt := range receipts {
		r.printf("%s %d %s %s.%s %s %s\n",
			receipt.TxID, receipt.BlockHeight, receipt.Status,
			receipt.Contract, receipt.Function, receipt.Sender,
			strings.ReplaceAll(receipt.Result, "\n", " "))
	}
	return nil
}

func (r *Runner) describe(c *cli.Context) error {
	if c.NArg() != 2 {
		return usage(c)
	}
	store, db, err := r.openDatabase(c.Context, c.Args().Get(1))
	if err != nil {
		return err
	}
	defer store.Close()

	var launched contract.SmartContract
	launched, err = db.GetContract(c.Args().Get(0))
	if err != nil {
		return r.fail("Contract lookup error: ", err)
	}
	r.printf("%s", launched.String())
	r.printf("Public functions: %s\n", strings.Join(launched.PublicFunctions(), " "))
	return nil
}
