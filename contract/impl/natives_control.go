package impl

import (
	"go.dedis.ch/clarity/contract/parser"
	"go.dedis.ch/clarity/contract/types"
)

func specialAnd(args []*parser.Expression, env *Environment, ctx *LocalContext) (types.Value, error) {
	for _, arg := range args {
		v, err := Eval(arg, env, ctx)
		if err != nil {
			return nil, err
		}
		b, err := asBool(v)
		if err != nil {
			return nil, err
		}
		if !b {
			return types.Bool(false), nil
		}
	}
	return types.Bool(true), nil
}

func specialOr(args []*parser.Expression, env *Environment, ctx *LocalContext) (types.Value, error) {
	for _, arg := range args {
		v, err := Eval(arg, env, ctx)
		if err != nil {
			return nil, err
		}
		b, err := asBool(v)
		if err != nil {
			return nil, err
		}
		if b {
			return types.Bool(true), nil
		}
	}
	return types.Bool(false), nil
}

func nativeNot(args []types.Value, _ *Environment) (types.Value, error) {
	b, err := asBool(args[0])
	if err != nil {
		return nil, err
	}
	return types.Bool(!b), nil
}

func specialIf(args []*parser.Expression, env *Environment, ctx *LocalContext) (types.Value, error) {
	v, err := Eval(args[0], env, ctx)
	if err != nil {
		return nil, err
	}
	cond, err := asBool(v)
	if err != nil {
		return nil, err
	}
	if cond {
		return Eval(args[1], env, ctx)
	}
	return Eval(args[2], env, ctx)
}

// specialLet evaluates every binding in the enclosing scope, then the
// body in a scope holding the bindings.
func specialLet(args []*parser.Expression, env *Environment, ctx *LocalContext) (types.Value, error) {
	if !args[0].IsList() {
		return nil, uncheckedErr(ErrInvalidArguments, "let expects a list of bindings, got %s", args[0])
	}
	inner, err := ctx.Extend()
	if err != nil {
		return nil, err
	}
	for _, binding := range args[0].Items() {
		pair := binding.Items()
		if len(pair) != 2 {
			return nil, uncheckedErr(ErrInvalidArguments, "expected (name value) binding, got %s", binding)
		}
		name, err := atomArg(pair[0], "binding")
		if err != nil {
			return nil, err
		}
		if isReserved(name) {
			return nil, uncheckedErr(ErrReservedName, "%s", name)
		}
		if _, dup := inner.Variables[name]; dup {
			return nil, uncheckedErr(ErrNameAlreadyUsed, "%s", name)
		}
		v, err := Eval(pair[1], env, ctx)
		if err != nil {
			return nil, err
		}
		inner.Variables[name] = v
	}
	return specialBegin(args[1:], env, inner)
}

func specialBegin(args []*parser.Expression, env *Environment, ctx *LocalContext) (types.Value, error) {
	var last types.Value
	for _, arg := range args {
		v, err := Eval(arg, env, ctx)
		if err != nil {
			return nil, err
		}
		last = v
	}
	return last, nil
}

func nativePrint(args []types.Value, env *Environment) (types.Value, error) {
	env.Global.logger.Info().Str("contract", env.Contract.Name).Msg(args[0].String())
	return args[0], nil
}

// specialExpects unwraps (some x) or (ok x). Otherwise the enclosing
// function returns the second argument.
func specialExpects(args []*parser.Expression, env *Environment, ctx *LocalContext) (types.Value, error) {
	v, err := Eval(args[0], env, ctx)
	if err != nil {
		return nil, err
	}
	switch input := v.(type) {
	case types.Optional:
		if !input.IsNone() {
			return input.Inner, nil
		}
	case types.Response:
		if input.Committed {
			return input.Data, nil
		}
	default:
		return nil, typeError("optional or response", v)
	}
	return nil, throw(args[1], env, ctx)
}

// specialExpectsErr unwraps (err x). Otherwise the enclosing function
// returns the second argument.
func specialExpectsErr(args []*parser.Expression, env *Environment, ctx *LocalContext) (types.Value, error) {
	v, err := Eval(args[0], env, ctx)
	if err != nil {
		return nil, err
	}
	input, ok := v.(types.Response)
	if !ok {
		return nil, typeError("response", v)
	}
	if !input.Committed {
		return input.Data, nil
	}
	return nil, throw(args[1], env, ctx)
}

func throw(expr *parser.Expression, env *Environment, ctx *LocalContext) error {
	thrown, err := Eval(expr, env, ctx)
	if err != nil {
		return err
	}
	return &shortReturn{Value: thrown}
}

func nativeDefaultTo(args []types.Value, _ *Environment) (types.Value, error) {
	o, ok := args[1].(types.Optional)
	if !ok {
		return nil, typeError("optional", args[1])
	}
	if o.IsNone() {
		return args[0], nil
	}
	return o.Inner, nil
}

func nativeIsNone(args []types.Value, _ *Environment) (types.Value, error) {
	o, ok := args[0].(types.Optional)
	if !ok {
		return nil, typeError("optional", args[0])
	}
	return types.Bool(o.IsNone()), nil
}

func nativeIsOk(args []types.Value, _ *Environment) (types.Value, error) {
	r, ok := args[0].(types.Response)
	if !ok {
		return nil, typeError("response", args[0])
	}
	return types.Bool(r.Committed), nil
}
