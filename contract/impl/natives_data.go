package impl

import (
	"math/big"

	"go.dedis.ch/clarity/contract/parser"
	"go.dedis.ch/clarity/contract/types"
)

func nativeList(args []types.Value, _ *Environment) (types.Value, error) {
	for _, arg := range args[min(1, len(args)):] {
		if !sameType(args[0], arg) {
			return nil, typeError(typeName(args[0]), arg)
		}
	}
	return types.List{Items: append([]types.Value(nil), args...)}, nil
}

func nativeLen(args []types.Value, _ *Environment) (types.Value, error) {
	switch seq := args[0].(type) {
	case types.List:
		return types.NewInt(int64(len(seq.Items))), nil
	case types.Buffer:
		return types.NewInt(int64(len(seq))), nil
	}
	return nil, typeError("list or buffer", args[0])
}

// sequenceArgs resolves the function name and list of map, filter and
// fold.
func sequenceArgs(args []*parser.Expression, env *Environment, ctx *LocalContext) (string, types.List, error) {
	fn, err := atomArg(args[0], "function")
	if err != nil {
		return "", types.List{}, err
	}
	v, err := Eval(args[1], env, ctx)
	if err != nil {
		return "", types.List{}, err
	}
	list, ok := v.(types.List)
	if !ok {
		return "", types.List{}, typeError("list", v)
	}
	return fn, list, nil
}

func specialMap(args []*parser.Expression, env *Environment, ctx *LocalContext) (types.Value, error) {
	fn, list, err := sequenceArgs(args, env, ctx)
	if err != nil {
		return nil, err
	}
	mapped := make([]types.Value, len(list.Items))
	for i, item := range list.Items {
		mapped[i], err = applyValues(fn, []types.Value{item}, env)
		if err != nil {
			return nil, err
		}
	}
	return types.List{Items: mapped}, nil
}

func specialFilter(args []*parser.Expression, env *Environment, ctx *LocalContext) (types.Value, error) {
	fn, list, err := sequenceArgs(args, env, ctx)
	if err != nil {
		return nil, err
	}
	var kept []types.Value
	for _, item := range list.Items {
		v, err := applyValues(fn, []types.Value{item}, env)
		if err != nil {
			return nil, err
		}
		keep, err := asBool(v)
		if err != nil {
			return nil, err
		}
		if keep {
			kept = append(kept, item)
		}
	}
	return types.List{Items: kept}, nil
}

// specialFold computes (fn item acc) left to right, starting from the
// third argument.
func specialFold(args []*parser.Expression, env *Environment, ctx *LocalContext) (types.Value, error) {
	fn, list, err := sequenceArgs(args, env, ctx)
	if err != nil {
		return nil, err
	}
	acc, err := Eval(args[2], env, ctx)
	if err != nil {
		return nil, err
	}
	for _, item := range list.Items {
		acc, err = applyValues(fn, []types.Value{item, acc}, env)
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func specialTuple(args []*parser.Expression, env *Environment, ctx *LocalContext) (types.Value, error) {
	fields := make([]types.NamedValue, 0, len(args))
	for _, arg := range args {
		pair := arg.Items()
		if len(pair) != 2 {
			return nil, uncheckedErr(ErrInvalidArguments, "expected (name value) in tuple, got %s", arg)
		}
		name, err := atomArg(pair[0], "field")
		if err != nil {
			return nil, err
		}
		v, err := Eval(pair[1], env, ctx)
		if err != nil {
			return nil, err
		}
		fields = append(fields, types.NamedValue{Name: name, Value: v})
	}
	tuple, err := types.NewTuple(fields...)
	if err != nil {
		return nil, uncheckedErr(ErrInvalidArguments, "%v", err)
	}
	return tuple, nil
}

// specialGet reads a tuple field. On an optional tuple the field is
// returned as an optional.
func specialGet(args []*parser.Expression, env *Environment, ctx *LocalContext) (types.Value, error) {
	field, err := atomArg(args[0], "field")
	if err != nil {
		return nil, err
	}
	v, err := Eval(args[1], env, ctx)
	if err != nil {
		return nil, err
	}
	getField := func(v types.Value) (types.Value, error) {
		tuple, ok := v.(types.Tuple)
		if !ok {
			return nil, typeError("tuple", v)
		}
		fv, ok := tuple.Get(field)
		if !ok {
			return nil, uncheckedErr(ErrInvalidArguments, "no field %s in %s", field, tuple)
		}
		return fv, nil
	}
	if o, ok := v.(types.Optional); ok {
		if o.IsNone() {
			return types.None, nil
		}
		fv, err := getField(o.Inner)
		if err != nil {
			return nil, err
		}
		return types.Some(fv), nil
	}
	return getField(v)
}

func lookupMap(contract *ContractContext, expr *parser.Expression) (*MapDefinition, error) {
	name, err := atomArg(expr, "map")
	if err != nil {
		return nil, err
	}
	m, ok := contract.Maps[name]
	if !ok {
		return nil, uncheckedErr(ErrUndefinedMap, "%s in %s", name, contract.Name)
	}
	return m, nil
}

func evalMapKey(m *MapDefinition, expr *parser.Expression, env *Environment, ctx *LocalContext) (types.Value, error) {
	key, err := Eval(expr, env, ctx)
	if err != nil {
		return nil, err
	}
	if !m.Key.Admits(key) {
		return nil, uncheckedErr(ErrTypeError, "key of %s expects %s, got %s", m.Name, m.Key, key)
	}
	return key, nil
}

func evalMapValue(m *MapDefinition, expr *parser.Expression, env *Environment, ctx *LocalContext) (types.Value, error) {
	value, err := Eval(expr, env, ctx)
	if err != nil {
		return nil, err
	}
	if !m.Value.Admits(value) {
		return nil, uncheckedErr(ErrTypeError, "value of %s expects %s, got %s", m.Name, m.Value, value)
	}
	return value, nil
}

func checkWritable(env *Environment, op string) error {
	if env.Global.IsReadOnly() {
		return uncheckedErr(ErrWriteInReadOnly, "%s", op)
	}
	return nil
}

func fetchEntry(contract *ContractContext, args []*parser.Expression, env *Environment, ctx *LocalContext) (types.Value, error) {
	m, err := lookupMap(contract, args[0])
	if err != nil {
		return nil, err
	}
	key, err := evalMapKey(m, args[1], env, ctx)
	if err != nil {
		return nil, err
	}
	v, err := env.Global.Database.FetchEntry(contract.Name, m.Name, key)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return types.None, nil
	}
	return types.Some(v), nil
}

func specialFetchEntry(args []*parser.Expression, env *Environment, ctx *LocalContext) (types.Value, error) {
	return fetchEntry(env.Contract, args, env, ctx)
}

func specialFetchContractEntry(args []*parser.Expression, env *Environment, ctx *LocalContext) (types.Value, error) {
	name, err := contractArg(args[0])
	if err != nil {
		return nil, err
	}
	other, err := env.Global.Database.GetContract(name)
	if err != nil {
		return nil, err
	}
	return fetchEntry(other.Context, args[1:], env, ctx)
}

func specialSetEntry(args []*parser.Expression, env *Environment, ctx *LocalContext) (types.Value, error) {
	if err := checkWritable(env, "set-entry!"); err != nil {
		return nil, err
	}
	m, err := lookupMap(env.Contract, args[0])
	if err != nil {
		return nil, err
	}
	key, err := evalMapKey(m, args[1], env, ctx)
	if err != nil {
		return nil, err
	}
	value, err := evalMapValue(m, args[2], env, ctx)
	if err != nil {
		return nil, err
	}
	err = env.Global.Database.SetEntry(env.Contract.Name, m.Name, key, value)
	if err != nil {
		return nil, err
	}
	return types.Bool(true), nil
}

func specialInsertEntry(args []*parser.Expression, env *Environment, ctx *LocalContext) (types.Value, error) {
	if err := checkWritable(env, "insert-entry!"); err != nil {
		return nil, err
	}
	m, err := lookupMap(env.Contract, args[0])
	if err != nil {
		return nil, err
	}
	key, err := evalMapKey(m, args[1], env, ctx)
	if err != nil {
		return nil, err
	}
	value, err := evalMapValue(m, args[2], env, ctx)
	if err != nil {
		return nil, err
	}
	inserted, err := env.Global.Database.InsertEntry(env.Contract.Name, m.Name, key, value)
	if err != nil {
		return nil, err
	}
	return types.Bool(inserted), nil
}

func specialDeleteEntry(args []*parser.Expression, env *Environment, ctx *LocalContext) (types.Value, error) {
	if err := checkWritable(env, "delete-entry!"); err != nil {
		return nil, err
	}
	m, err := lookupMap(env.Contract, args[0])
	if err != nil {
		return nil, err
	}
	key, err := evalMapKey(m, args[1], env, ctx)
	if err != nil {
		return nil, err
	}
	deleted, err := env.Global.Database.DeleteEntry(env.Contract.Name, m.Name, key)
	if err != nil {
		return nil, err
	}
	return types.Bool(deleted), nil
}

func lookupToken(env *Environment, expr *parser.Expression) (string, error) {
	name, err := atomArg(expr, "token")
	if err != nil {
		return "", err
	}
	if _, ok := env.Contract.Tokens[name]; !ok {
		return "", uncheckedErr(ErrUndefinedToken, "%s in %s", name, env.Contract.Name)
	}
	return name, nil
}

// Error codes of the token natives.
const (
	tokenErrInsufficientBalance = 1
	tokenErrSenderIsRecipient   = 2
	tokenErrNonPositiveAmount   = 3
)

func tokenErr(code int64) types.Value {
	return types.Err(types.NewInt(code))
}

// specialMintToken creates amount new tokens for the recipient. Returns
// (ok true), or (err 3) when amount is not positive.
func specialMintToken(args []*parser.Expression, env *Environment, ctx *LocalContext) (types.Value, error) {
	if err := checkWritable(env, "mint-token!"); err != nil {
		return nil, err
	}
	token, err := lookupToken(env, args[0])
	if err != nil {
		return nil, err
	}
	values, err := evalAll(args[1:], env, ctx)
	if err != nil {
		return nil, err
	}
	amount, err := asInt(values[0])
	if err != nil {
		return nil, err
	}
	recipient, err := asPrincipal(values[1])
	if err != nil {
		return nil, err
	}
	if amount.Big().Sign() <= 0 {
		return tokenErr(tokenErrNonPositiveAmount), nil
	}

	db := env.Global.Database
	balance, err := db.TokenBalance(env.Contract.Name, token, recipient)
	if err != nil {
		return nil, err
	}
	updated, err := checked("mint-token!", new(big.Int).Add(balance.Big(), amount.Big()))
	if err != nil {
		return nil, err
	}
	err = db.SetTokenBalance(env.Contract.Name, token, recipient, updated)
	if err != nil {
		return nil, err
	}
	return types.Ok(types.Bool(true)), nil
}

// specialTransferToken moves amount from sender to recipient and records
// the spend. Returns (ok true) or (err 1|2|3).
func specialTransferToken(args []*parser.Expression, env *Environment, ctx *LocalContext) (types.Value, error) {
	if err := checkWritable(env, "transfer-token!"); err != nil {
		return nil, err
	}
	token, err := lookupToken(env, args[0])
	if err != nil {
		return nil, err
	}
	values, err := evalAll(args[1:], env, ctx)
	if err != nil {
		return nil, err
	}
	amount, err := asInt(values[0])
	if err != nil {
		return nil, err
	}
	sender, err := asPrincipal(values[1])
	if err != nil {
		return nil, err
	}
	recipient, err := asPrincipal(values[2])
	if err != nil {
		return nil, err
	}
	if amount.Big().Sign() <= 0 {
		return tokenErr(tokenErrNonPositiveAmount), nil
	}
	if sender == recipient {
		return tokenErr(tokenErrSenderIsRecipient), nil
	}

	db := env.Global.Database
	contract := env.Contract.Name
	senderBalance, err := db.TokenBalance(contract, token, sender)
	if err != nil {
		return nil, err
	}
	if senderBalance.Big().Cmp(amount.Big()) < 0 {
		return tokenErr(tokenErrInsufficientBalance), nil
	}
	recipientBalance, err := db.TokenBalance(contract, token, recipient)
	if err != nil {
		return nil, err
	}
	credited, err := checked("transfer-token!", new(big.Int).Add(recipientBalance.Big(), amount.Big()))
	if err != nil {
		return nil, err
	}
	debited, _ := types.IntFromBig(new(big.Int).Sub(senderBalance.Big(), amount.Big()))

	err = db.SetTokenBalance(contract, token, sender, debited)
	if err != nil {
		return nil, err
	}
	err = db.SetTokenBalance(contract, token, recipient, credited)
	if err != nil {
		return nil, err
	}
	err = env.Global.LogAssetTransfer(sender, contract, token, amount)
	if err != nil {
		return nil, err
	}
	return types.Ok(types.Bool(true)), nil
}

func specialGetTokenBalance(args []*parser.Expression, env *Environment, ctx *LocalContext) (types.Value, error) {
	token, err := lookupToken(env, args[0])
	if err != nil {
		return nil, err
	}
	v, err := Eval(args[1], env, ctx)
	if err != nil {
		return nil, err
	}
	owner, err := asPrincipal(v)
	if err != nil {
		return nil, err
	}
	return env.Global.Database.TokenBalance(env.Contract.Name, token, owner)
}
