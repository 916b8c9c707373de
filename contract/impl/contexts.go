package impl

import (
	"github.com/rs/zerolog"
	"go.dedis.ch/clarity/contract/parser"
	"go.dedis.ch/clarity/contract/types"
	"go.dedis.ch/clarity/logging"
)

// TransientContractName names the contract context raw programs run in.
const TransientContractName = ":transient:"

// GlobalContext is one savepoint of the database together with the
// assets spent under it.
type GlobalContext struct {
	Database *ContractDatabase

	logger    zerolog.Logger
	readOnly  bool
	assetMap  *AssetMap
	parentMap *AssetMap
}

// NewGlobalContext opens the root savepoint of a transaction.
func NewGlobalContext(db *ContractDatabase) (*GlobalContext, error) {
	err := db.Begin()
	if err != nil {
		return nil, err
	}
	return &GlobalContext{
		Database: db,
		logger:   logging.RootLogger.With().Str("GlobalContext", "root").Logger(),
		assetMap: NewAssetMap(),
	}, nil
}

func (g *GlobalContext) IsReadOnly() bool { return g.readOnly }

// AssetMap returns what was spent under this savepoint so far.
func (g *GlobalContext) AssetMap() *AssetMap { return g.assetMap }

// LogAssetTransfer records that sender spent amount of an asset.
func (g *GlobalContext) LogAssetTransfer(sender types.Principal, contract, asset string, amount types.Int) error {
	return g.assetMap.AddTransfer(sender, AssetIdentifier{ContractName: contract, AssetName: asset}, amount)
}

// Nest opens a child savepoint. It stays read-only if g is.
func (g *GlobalContext) Nest() (*GlobalContext, error) {
	return g.nest(g.readOnly)
}

// NestReadOnly opens a read-only child savepoint.
func (g *GlobalContext) NestReadOnly() (*GlobalContext, error) {
	return g.nest(true)
}

func (g *GlobalContext) nest(readOnly bool) (*GlobalContext, error) {
	err := g.Database.Begin()
	if err != nil {
		return nil, err
	}
	return &GlobalContext{
		Database:  g.Database,
		logger:    g.logger,
		readOnly:  readOnly,
		assetMap:  NewAssetMap(),
		parentMap: g.assetMap,
	}, nil
}

// Commit releases the savepoint and hands the asset map to the parent.
// The root context returns its map instead. If the parent map cannot
// take the child's transfers the savepoint is rolled back.
func (g *GlobalContext) Commit() (*AssetMap, error) {
	if g.parentMap == nil {
		err := g.Database.Commit()
		if err != nil {
			return nil, err
		}
		return g.assetMap, nil
	}
	err := g.parentMap.CommitOther(g.assetMap)
	if err != nil {
		rollbackErr := g.RollBack()
		if rollbackErr != nil {
			return nil, rollbackErr
		}
		return nil, err
	}
	return nil, g.Database.Commit()
}

// RollBack undoes every write of the savepoint.
func (g *GlobalContext) RollBack() error {
	return g.Database.Rollback()
}

// HandleTxResult commits on an ok response and rolls back otherwise. A
// result that is not a response is an error.
func (g *GlobalContext) HandleTxResult(result types.Value, err error) (types.Value, error) {
	if err != nil {
		rollbackErr := g.RollBack()
		if rollbackErr != nil {
			return nil, rollbackErr
		}
		return nil, err
	}
	response, ok := result.(types.Response)
	if !ok {
		rollbackErr := g.RollBack()
		if rollbackErr != nil {
			return nil, rollbackErr
		}
		return nil, uncheckedErr(ErrContractMustReturnResponse, "got %s", result)
	}
	if response.Committed {
		_, err = g.Commit()
	} else {
		err = g.RollBack()
	}
	if err != nil {
		return nil, err
	}
	return response, nil
}

// Environment is where an expression evaluates: the database savepoint,
// the contract whose definitions are in scope, the call stack, and who
// sent the transaction and who called the current contract.
type Environment struct {
	Global    *GlobalContext
	Contract  *ContractContext
	CallStack *CallStack
	// Sender and Caller are nil outside a transaction.
	Sender *types.Principal
	Caller *types.Principal
}

func NewEnvironment(global *GlobalContext, contract *ContractContext, stack *CallStack, sender, caller *types.Principal) *Environment {
	return &Environment{
		Global:    global,
		Contract:  contract,
		CallStack: stack,
		Sender:    sender,
		Caller:    caller,
	}
}

// NestAsPrincipal returns an environment where p is both sender and
// caller.
func (e *Environment) NestAsPrincipal(p types.Principal) *Environment {
	return NewEnvironment(e.Global, e.Contract, e.CallStack, &p, &p)
}

// NestWithCaller keeps the sender and replaces the caller.
func (e *Environment) NestWithCaller(caller types.Principal) *Environment {
	return NewEnvironment(e.Global, e.Contract, e.CallStack, e.Sender, &caller)
}

// EvalReadOnly evaluates the first expression of program in the context
// of a launched contract. Nothing it writes is kept.
func (e *Environment) EvalReadOnly(contractName, program string) (types.Value, error) {
	expr, err := parseSingle(program)
	if err != nil {
		return nil, err
	}
	contract, err := e.Global.Database.GetContract(contractName)
	if err != nil {
		return nil, err
	}
	nested, err := e.Global.Nest()
	if err != nil {
		return nil, err
	}
	env := NewEnvironment(nested, contract.Context, e.CallStack, e.Sender, e.Caller)
	result, err := evalTop(expr, env)
	rollbackErr := nested.RollBack()
	if err != nil {
		return nil, err
	}
	if rollbackErr != nil {
		return nil, rollbackErr
	}
	return result, nil
}

// EvalRaw evaluates the first expression of program in e.
func (e *Environment) EvalRaw(program string) (types.Value, error) {
	expr, err := parseSingle(program)
	if err != nil {
		return nil, err
	}
	return evalTop(expr, e)
}

func parseSingle(program string) (*parser.Expression, error) {
	parsed, err := parser.Parse(program)
	if err != nil {
		return nil, runtimeErr(ErrParse, "%v", err)
	}
	if len(parsed) < 1 {
		return nil, runtimeErr(ErrParse, "Expected a program of at least length 1")
	}
	return parsed[0], nil
}

// ExecuteContract calls a public function of a launched contract as a
// nested transaction.
func (e *Environment) ExecuteContract(contractName, fnName string, args []types.Value) (types.Value, error) {
	contract, err := e.Global.Database.GetContract(contractName)
	if err != nil {
		return nil, err
	}
	fn, ok := contract.Context.LookupFunction(fnName)
	if !ok {
		return nil, uncheckedErr(ErrUndefinedFunction, "%s in %s", fnName, contractName)
	}
	if !fn.IsPublic() {
		return nil, uncheckedErr(ErrNonPublicFunction, "%s in %s", fnName, contractName)
	}
	return e.ExecuteFunctionAsTransaction(fn, args, contract.Context)
}

// ExecuteFunctionAsTransaction applies fn under a new savepoint. Writes of
// a read-only function are always dropped; a public function keeps them
// only when it returns an ok response.
func (e *Environment) ExecuteFunctionAsTransaction(fn *DefinedFunction, args []types.Value, next *ContractContext) (types.Value, error) {
	var nested *GlobalContext
	var err error
	if fn.IsReadOnly() {
		nested, err = e.Global.NestReadOnly()
	} else {
		nested, err = e.Global.Nest()
	}
	if err != nil {
		return nil, err
	}
	if next == nil {
		next = e.Contract
	}
	env := NewEnvironment(nested, next, e.CallStack, e.Sender, e.Caller)
	result, err := env.applyTracked(fn, args)

	if fn.IsReadOnly() {
		rollbackErr := nested.RollBack()
		if err != nil {
			return nil, err
		}
		return result, rollbackErr
	}
	return nested.HandleTxResult(result, err)
}

// applyTracked pushes fn on the call stack while it runs.
func (e *Environment) applyTracked(fn *DefinedFunction, args []types.Value) (types.Value, error) {
	if e.CallStack.Contains(fn.Identifier) {
		return nil, e.withTrace(uncheckedErr(ErrRecursionDetected, "%s", fn.Identifier))
	}
	if e.CallStack.Depth() >= MaxCallStackDepth {
		return nil, e.withTrace(runtimeErr(ErrMaxStackDepth, "depth %d", e.CallStack.Depth()))
	}
	e.CallStack.Insert(fn.Identifier, true)
	result, err := fn.ExecuteApply(args, e)
	if err != nil {
		err = e.withTrace(err)
	}
	removeErr := e.CallStack.Remove(fn.Identifier, true)
	if err != nil {
		return nil, err
	}
	if removeErr != nil {
		return nil, removeErr
	}
	return result, nil
}

// withTrace attaches the current call stack to a VM error that has none.
func (e *Environment) withTrace(err error) error {
	if vmErr, ok := err.(*Error); ok && vmErr.Stack == nil {
		vmErr.Stack = e.CallStack.MakeStackTrace()
	}
	return err
}

// InitializeContract launches source as contractName. Either the whole
// top level runs and the contract is stored, or nothing is kept.
func (e *Environment) InitializeContract(contractName, source string) error {
	err := ValidateContractName(contractName)
	if err != nil {
		return err
	}
	nested, err := e.Global.Nest()
	if err != nil {
		return err
	}
	contract, err := initializeContract(contractName, source, nested)
	if err == nil {
		err = nested.Database.InsertContract(contract)
	}
	if err != nil {
		rollbackErr := nested.RollBack()
		if rollbackErr != nil {
			return rollbackErr
		}
		return err
	}
	_, err = nested.Commit()
	return err
}

// OwnedEnvironment is the entry point of the VM: it owns the root
// savepoint, a call stack and the transient contract raw programs use.
type OwnedEnvironment struct {
	context         *GlobalContext
	defaultContract *ContractContext
	callStack       *CallStack
}

// NewOwnedEnvironment opens a root savepoint on db.
func NewOwnedEnvironment(db *ContractDatabase) (*OwnedEnvironment, error) {
	global, err := NewGlobalContext(db)
	if err != nil {
		return nil, err
	}
	return &OwnedEnvironment{
		context:         global,
		defaultContract: NewContractContext(TransientContractName),
		callStack:       NewCallStack(),
	}, nil
}

// ExecEnvironment returns an environment in the transient contract.
// sender may be nil.
func (o *OwnedEnvironment) ExecEnvironment(sender *types.Principal) *Environment {
	return NewEnvironment(o.context, o.defaultContract, o.callStack, sender, sender)
}

// InitializeContract launches a contract and commits the root savepoint.
func (o *OwnedEnvironment) InitializeContract(contractName, source string) error {
	err := o.ExecEnvironment(nil).InitializeContract(contractName, source)
	if err != nil {
		return o.fail(err)
	}
	_, err = o.Commit()
	return err
}

// ExecuteTransaction calls a public function as sender and commits the
// root savepoint. Aborted transactions commit nothing but still return
// their err response.
func (o *OwnedEnvironment) ExecuteTransaction(sender types.Principal, contractName, fnName string, args []types.Value) (types.Value, *AssetMap, error) {
	result, err := o.ExecEnvironment(&sender).ExecuteContract(contractName, fnName, args)
	if err != nil {
		return nil, nil, o.fail(err)
	}
	assets, err := o.Commit()
	if err != nil {
		return nil, nil, err
	}
	return result, assets, nil
}

// EvalReadOnly evaluates program in a launched contract and releases the
// root savepoint.
func (o *OwnedEnvironment) EvalReadOnly(contractName, program string) (types.Value, error) {
	result, err := o.ExecEnvironment(nil).EvalReadOnly(contractName, program)
	if err != nil {
		return nil, o.fail(err)
	}
	_, err = o.Commit()
	return result, err
}

// EvalRaw evaluates program in the transient contract and commits.
func (o *OwnedEnvironment) EvalRaw(program string) (types.Value, error) {
	result, err := o.ExecEnvironment(nil).EvalRaw(program)
	if err != nil {
		return nil, o.fail(err)
	}
	_, err = o.Commit()
	return result, err
}

// Commit releases the root savepoint and returns the assets spent. A new
// root savepoint is opened so the environment stays usable.
func (o *OwnedEnvironment) Commit() (*AssetMap, error) {
	assets, err := o.context.Commit()
	if err != nil {
		return nil, err
	}
	global, err := NewGlobalContext(o.context.Database)
	if err != nil {
		return nil, err
	}
	o.context = global
	return assets, nil
}

// Close rolls back whatever the root savepoint still holds.
func (o *OwnedEnvironment) Close() error {
	return o.context.RollBack()
}

func (o *OwnedEnvironment) fail(err error) error {
	rollbackErr := o.context.RollBack()
	if rollbackErr != nil {
		return rollbackErr
	}
	global, beginErr := NewGlobalContext(o.context.Database)
	if beginErr != nil {
		return beginErr
	}
	o.context = global
	return err
}
