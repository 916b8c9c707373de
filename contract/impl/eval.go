package impl

import (
	"encoding/hex"
	"math/big"
	"strings"

	"go.dedis.ch/clarity/contract/parser"
	"go.dedis.ch/clarity/contract/types"
)

// Eval evaluates expr in env with local variables from ctx.
func Eval(expr *parser.Expression, env *Environment, ctx *LocalContext) (types.Value, error) {
	if expr.IsLiteral() {
		return literalValue(expr)
	}
	if name, ok := expr.AtomName(); ok {
		return lookupVariable(name, env, ctx)
	}
	if !expr.IsList() {
		return nil, interpreterErr(ErrInterpreter, "empty expression")
	}

	items := expr.Items()
	if len(items) == 0 {
		return nil, uncheckedErr(ErrInvalidArguments, "cannot evaluate an empty list")
	}
	name, ok := items[0].AtomName()
	if !ok {
		return nil, uncheckedErr(ErrUndefinedFunction, "expected a function name, got %s", items[0])
	}
	return apply(name, items[1:], env, ctx)
}

// evalTop evaluates expr outside any function. A short return there
// yields the thrown value.
func evalTop(expr *parser.Expression, env *Environment) (types.Value, error) {
	v, err := Eval(expr, env, NewLocalContext())
	var short *shortReturn
	if asShortReturn(err, &short) {
		return short.Value, nil
	}
	return v, err
}

func apply(name string, args []*parser.Expression, env *Environment, ctx *LocalContext) (types.Value, error) {
	if native, ok := natives[name]; ok {
		if err := native.checkArity(len(args)); err != nil {
			return nil, err
		}
		if native.special != nil {
			return native.special(args, env, ctx)
		}
		values, err := evalAll(args, env, ctx)
		if err != nil {
			return nil, err
		}
		return native.simple(values, env)
	}
	if defineForms[name] {
		return nil, uncheckedErr(ErrBadDefinition, "%s is only allowed at the top level", name)
	}

	fn, ok := env.Contract.LookupFunction(name)
	if !ok {
		return nil, uncheckedErr(ErrUndefinedFunction, "%s", name)
	}
	values, err := evalAll(args, env, ctx)
	if err != nil {
		return nil, err
	}
	return env.applyTracked(fn, values)
}

// applyValues calls a function named in a higher-order native (map,
// filter, fold) on already evaluated arguments.
func applyValues(name string, args []types.Value, env *Environment) (types.Value, error) {
	if native, ok := natives[name]; ok {
		if native.simple == nil {
			return nil, uncheckedErr(ErrInvalidArguments, "%s cannot be passed as a function", name)
		}
		if err := native.checkArity(len(args)); err != nil {
			return nil, err
		}
		return native.simple(args, env)
	}
	fn, ok := env.Contract.LookupFunction(name)
	if !ok {
		return nil, uncheckedErr(ErrUndefinedFunction, "%s", name)
	}
	return env.applyTracked(fn, args)
}

func evalAll(args []*parser.Expression, env *Environment, ctx *LocalContext) ([]types.Value, error) {
	values := make([]types.Value, len(args))
	for i, arg := range args {
		v, err := Eval(arg, env, ctx)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func lookupVariable(name string, env *Environment, ctx *LocalContext) (types.Value, error) {
	if v, ok := ctx.LookupVariable(name); ok {
		return v, nil
	}
	if v, ok := env.Contract.LookupVariable(name); ok {
		return v, nil
	}
	switch name {
	case "tx-sender":
		if env.Sender == nil {
			return nil, uncheckedErr(ErrNoSender, "tx-sender")
		}
		return *env.Sender, nil
	case "contract-caller":
		if env.Caller == nil {
			return nil, uncheckedErr(ErrNoSender, "contract-caller")
		}
		return *env.Caller, nil
	case "block-height":
		height, err := env.Global.Database.BlockHeight()
		if err != nil {
			return nil, err
		}
		h, _ := types.IntFromBig(new(big.Int).SetUint64(height))
		return h, nil
	case "none":
		return types.None, nil
	case "true":
		return types.Bool(true), nil
	case "false":
		return types.Bool(false), nil
	}
	return nil, uncheckedErr(ErrUndefinedVariable, "%s", name)
}

// literalValue converts an int, buffer, string or principal literal.
func literalValue(expr *parser.Expression) (types.Value, error) {
	switch {
	case expr.Int != nil:
		b, ok := new(big.Int).SetString(*expr.Int, 10)
		if !ok {
			return nil, runtimeErr(ErrParse, "bad int literal %s", *expr.Int)
		}
		i, ok := types.IntFromBig(b)
		if !ok {
			return nil, runtimeErr(ErrArithmeticOverflow, "int literal %s", *expr.Int)
		}
		return i, nil
	case expr.Buffer != nil:
		raw := strings.TrimPrefix(*expr.Buffer, "0x")
		if len(raw)%2 == 1 {
			raw = "0" + raw
		}
		buf, err := hex.DecodeString(raw)
		if err != nil {
			return nil, runtimeErr(ErrParse, "bad buffer literal %s", *expr.Buffer)
		}
		return types.Buffer(buf), nil
	case expr.Str != nil:
		return types.Buffer(*expr.Str), nil
	case expr.Principal != nil:
		p, err := types.ParsePrincipal(*expr.Principal)
		if err != nil {
			return nil, runtimeErr(ErrParse, "%v", err)
		}
		return p, nil
	}
	return nil, interpreterErr(ErrInterpreter, "%s is not a literal", expr)
}

// ArgumentValue converts a transaction argument. Only literals and the
// true, false and none keywords are accepted.
func ArgumentValue(expr *parser.Expression) (types.Value, error) {
	if expr.IsLiteral() {
		return literalValue(expr)
	}
	if name, ok := expr.AtomName(); ok {
		switch name {
		case "true":
			return types.Bool(true), nil
		case "false":
			return types.Bool(false), nil
		case "none":
			return types.None, nil
		}
	}
	return nil, interpreterErr(ErrInterpreter, "passed non-value expression %s to a transaction", expr)
}

// ParseArguments parses each raw transaction argument into a value.
func ParseArguments(raw []string) ([]types.Value, error) {
	values := make([]types.Value, 0, len(raw))
	for _, arg := range raw {
		parsed, err := parser.Parse(arg)
		if err != nil {
			return nil, runtimeErr(ErrParse, "argument %q: %v", arg, err)
		}
		if len(parsed) != 1 {
			return nil, runtimeErr(ErrParse, "argument %q must be a single value", arg)
		}
		v, err := ArgumentValue(parsed[0])
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}
