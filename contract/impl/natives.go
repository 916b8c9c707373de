package impl

import (
	"reflect"

	"go.dedis.ch/clarity/contract/parser"
	"go.dedis.ch/clarity/contract/types"
)

type specialFunc func(args []*parser.Expression, env *Environment, ctx *LocalContext) (types.Value, error)

type simpleFunc func(args []types.Value, env *Environment) (types.Value, error)

// nativeFunction is a function built into the language. Special forms
// receive their arguments unevaluated; simple natives get values.
type nativeFunction struct {
	name    string
	minArgs int
	maxArgs int // negative: unbounded
	special specialFunc
	simple  simpleFunc
}

func (n *nativeFunction) checkArity(got int) error {
	if got < n.minArgs || (n.maxArgs >= 0 && got > n.maxArgs) {
		switch {
		case n.maxArgs < 0:
			return uncheckedErr(ErrIncorrectArgumentCount, "%s expects at least %d arguments, got %d", n.name, n.minArgs, got)
		case n.minArgs == n.maxArgs:
			return uncheckedErr(ErrIncorrectArgumentCount, "%s expects %d arguments, got %d", n.name, n.minArgs, got)
		default:
			return uncheckedErr(ErrIncorrectArgumentCount, "%s expects %d to %d arguments, got %d", n.name, n.minArgs, n.maxArgs, got)
		}
	}
	return nil
}

var natives map[string]*nativeFunction

func init() {
	natives = make(map[string]*nativeFunction)
	simple := func(name string, min, max int, fn simpleFunc) {
		natives[name] = &nativeFunction{name: name, minArgs: min, maxArgs: max, simple: fn}
	}
	special := func(name string, min, max int, fn specialFunc) {
		natives[name] = &nativeFunction{name: name, minArgs: min, maxArgs: max, special: fn}
	}

	// arithmetic
	simple("+", 1, -1, nativeAdd)
	simple("-", 1, -1, nativeSub)
	simple("*", 1, -1, nativeMul)
	simple("/", 2, -1, nativeDiv)
	simple("mod", 2, 2, nativeMod)
	simple("pow", 2, 2, nativePow)
	simple("<", 2, 2, compare("<", func(c int) bool { return c < 0 }))
	simple(">", 2, 2, compare(">", func(c int) bool { return c > 0 }))
	simple("<=", 2, 2, compare("<=", func(c int) bool { return c <= 0 }))
	simple(">=", 2, 2, compare(">=", func(c int) bool { return c >= 0 }))
	simple("eq?", 1, -1, nativeEq)

	// logic and control
	special("and", 1, -1, specialAnd)
	special("or", 1, -1, specialOr)
	simple("not", 1, 1, nativeNot)
	special("if", 3, 3, specialIf)
	special("let", 2, -1, specialLet)
	special("begin", 1, -1, specialBegin)
	simple("print", 1, 1, nativePrint)
	special("expects!", 2, 2, specialExpects)
	special("expects-err!", 2, 2, specialExpectsErr)
	simple("default-to", 2, 2, nativeDefaultTo)
	simple("is-none?", 1, 1, nativeIsNone)
	simple("is-ok?", 1, 1, nativeIsOk)
	simple("ok", 1, 1, func(args []types.Value, _ *Environment) (types.Value, error) { return types.Ok(args[0]), nil })
	simple("err", 1, 1, func(args []types.Value, _ *Environment) (types.Value, error) { return types.Err(args[0]), nil })
	simple("some", 1, 1, func(args []types.Value, _ *Environment) (types.Value, error) { return types.Some(args[0]), nil })

	// sequences and tuples
	simple("list", 0, -1, nativeList)
	special("map", 2, 2, specialMap)
	special("filter", 2, 2, specialFilter)
	special("fold", 3, 3, specialFold)
	simple("len", 1, 1, nativeLen)
	special("tuple", 1, -1, specialTuple)
	special("get", 2, 2, specialGet)

	// maps
	special("fetch-entry", 2, 2, specialFetchEntry)
	special("fetch-contract-entry", 3, 3, specialFetchContractEntry)
	special("set-entry!", 3, 3, specialSetEntry)
	special("insert-entry!", 3, 3, specialInsertEntry)
	special("delete-entry!", 2, 2, specialDeleteEntry)

	// tokens
	special("mint-token!", 3, 3, specialMintToken)
	special("transfer-token!", 4, 4, specialTransferToken)
	special("get-token-balance", 2, 2, specialGetTokenBalance)

	// chain
	special("contract-call!", 2, -1, specialContractCall)
	special("as-contract", 1, 1, specialAsContract)
	special("get-block-info", 2, 2, specialGetBlockInfo)
	simple("hash160", 1, 1, nativeHash160)
	simple("sha256", 1, 1, nativeSha256)
	simple("keccak256", 1, 1, nativeKeccak256)
}

func typeError(expected string, got types.Value) error {
	return uncheckedErr(ErrTypeError, "expected %s, got %s", expected, got)
}

func asInt(v types.Value) (types.Int, error) {
	i, ok := v.(types.Int)
	if !ok {
		return types.Int{}, typeError("int", v)
	}
	return i, nil
}

func asBool(v types.Value) (bool, error) {
	b, ok := v.(types.Bool)
	if !ok {
		return false, typeError("bool", v)
	}
	return bool(b), nil
}

func asPrincipal(v types.Value) (types.Principal, error) {
	p, ok := v.(types.Principal)
	if !ok {
		return types.Principal{}, typeError("principal", v)
	}
	return p, nil
}

func sameType(a, b types.Value) bool {
	return reflect.TypeOf(a) == reflect.TypeOf(b)
}

func atomArg(expr *parser.Expression, what string) (string, error) {
	name, ok := expr.AtomName()
	if !ok {
		return "", uncheckedErr(ErrInvalidArguments, "expected %s name, got %s", what, expr)
	}
	return name, nil
}
