package impl

import (
	"go.dedis.ch/clarity/contract/parser"
	"go.dedis.ch/clarity/contract/types"
)

type defineKind int

const (
	defineVariable defineKind = iota
	defineFunction
	defineMap
	defineToken
)

// definition is a parsed top level define form.
type definition struct {
	kind defineKind
	name string
	expr *parser.Expression

	value    *parser.Expression // defineVariable source
	variable types.Value        // defineVariable value, once evaluated
	function *DefinedFunction
	mapDef   *MapDefinition
}

var defineForms = map[string]bool{
	"define":           true,
	"define-public":    true,
	"define-read-only": true,
	"define-map":       true,
	"define-token":     true,
}

var keywords = map[string]bool{
	"tx-sender":       true,
	"contract-caller": true,
	"block-height":    true,
	"none":            true,
	"true":            true,
	"false":           true,
}

// isReserved reports whether name belongs to the language.
func isReserved(name string) bool {
	_, native := natives[name]
	return native || defineForms[name] || keywords[name]
}

// parseDefinition returns the definition expr declares, or nil when expr is
// not a define form.
func parseDefinition(contract string, expr *parser.Expression) (*definition, error) {
	items := expr.Items()
	if len(items) == 0 {
		return nil, nil
	}
	head, ok := items[0].AtomName()
	if !ok || !defineForms[head] {
		return nil, nil
	}
	args := items[1:]

	switch head {
	case "define":
		if len(args) != 2 {
			return nil, uncheckedErr(ErrBadDefinition, "define expects a name and a value: %s", expr)
		}
		if name, ok := args[0].AtomName(); ok {
			if err := checkDefinedName(name); err != nil {
				return nil, err
			}
			return &definition{kind: defineVariable, name: name, expr: expr, value: args[1]}, nil
		}
		return parseFunction(contract, Private, args, expr)
	case "define-public":
		if len(args) != 2 {
			return nil, uncheckedErr(ErrBadDefinition, "define-public expects a signature and a body: %s", expr)
		}
		return parseFunction(contract, Public, args, expr)
	case "define-read-only":
		if len(args) != 2 {
			return nil, uncheckedErr(ErrBadDefinition, "define-read-only expects a signature and a body: %s", expr)
		}
		return parseFunction(contract, ReadOnly, args, expr)
	case "define-map":
		return parseMap(args, expr)
	default:
		if len(args) != 1 {
			return nil, uncheckedErr(ErrBadDefinition, "define-token expects a name: %s", expr)
		}
		name, ok := args[0].AtomName()
		if !ok {
			return nil, uncheckedErr(ErrBadDefinition, "expected a token name, got %s", args[0])
		}
		if err := checkDefinedName(name); err != nil {
			return nil, err
		}
		return &definition{kind: defineToken, name: name, expr: expr}, nil
	}
}

func checkDefinedName(name string) error {
	if isReserved(name) {
		return uncheckedErr(ErrReservedName, "%s", name)
	}
	return nil
}

// parseFunction reads `(name (arg type) ...) body`.
func parseFunction(contract string, define DefineType, args []*parser.Expression, expr *parser.Expression) (*definition, error) {
	signature := args[0].Items()
	if len(signature) == 0 {
		return nil, uncheckedErr(ErrBadDefinition, "expected a function signature, got %s", args[0])
	}
	name, ok := signature[0].AtomName()
	if !ok {
		return nil, uncheckedErr(ErrBadDefinition, "expected a function name, got %s", signature[0])
	}
	if err := checkDefinedName(name); err != nil {
		return nil, err
	}

	fn := &DefinedFunction{
		Identifier: NewFunctionIdentifier(contract, name),
		Name:       name,
		Body:       args[1],
		Define:     define,
	}
	seen := make(map[string]bool)
	for _, param := range signature[1:] {
		pair := param.Items()
		if len(pair) != 2 {
			return nil, uncheckedErr(ErrBadDefinition, "expected (name type) in %s, got %s", name, param)
		}
		argName, ok := pair[0].AtomName()
		if !ok {
			return nil, uncheckedErr(ErrBadDefinition, "expected an argument name in %s, got %s", name, pair[0])
		}
		if err := checkDefinedName(argName); err != nil {
			return nil, err
		}
		if seen[argName] {
			return nil, uncheckedErr(ErrNameAlreadyUsed, "argument %s of %s", argName, name)
		}
		seen[argName] = true
		sig, err := types.ParseTypeSignature(pair[1])
		if err != nil {
			return nil, uncheckedErr(ErrBadDefinition, "argument %s of %s: %v", argName, name, err)
		}
		fn.Args = append(fn.Args, FunctionArg{Name: argName, Type: sig})
	}
	return &definition{kind: defineFunction, name: name, expr: expr, function: fn}, nil
}

// parseMap reads `name key-type value-type`. Both types are tuples.
func parseMap(args []*parser.Expression, expr *parser.Expression) (*definition, error) {
	if len(args) != 3 {
		return nil, uncheckedErr(ErrBadDefinition, "define-map expects a name, a key type and a value type: %s", expr)
	}
	name, ok := args[0].AtomName()
	if !ok {
		return nil, uncheckedErr(ErrBadDefinition, "expected a map name, got %s", args[0])
	}
	if err := checkDefinedName(name); err != nil {
		return nil, err
	}
	key, err := parseTupleType(args[1])
	if err != nil {
		return nil, uncheckedErr(ErrBadDefinition, "key type of %s: %v", name, err)
	}
	value, err := parseTupleType(args[2])
	if err != nil {
		return nil, uncheckedErr(ErrBadDefinition, "value type of %s: %v", name, err)
	}
	return &definition{
		kind:   defineMap,
		name:   name,
		expr:   expr,
		mapDef: &MapDefinition{Name: name, Key: key, Value: value},
	}, nil
}

func parseTupleType(expr *parser.Expression) (types.TypeSignature, error) {
	sig, err := types.ParseTypeSignature(expr)
	if err != nil {
		return types.TypeSignature{}, err
	}
	if sig.Kind != types.TupleType {
		return types.TypeSignature{}, uncheckedErr(ErrTypeError, "expected a tuple type, got %s", sig)
	}
	return sig, nil
}

// register adds def to the contract. Every definition shares one name
// space.
func (c *ContractContext) register(def *definition) error {
	if c.isDefined(def.name) {
		return uncheckedErr(ErrNameAlreadyUsed, "%s", def.name)
	}
	switch def.kind {
	case defineVariable:
		c.Variables[def.name] = def.variable
	case defineFunction:
		c.Functions[def.name] = def.function
	case defineMap:
		c.Maps[def.name] = def.mapDef
	case defineToken:
		c.Tokens[def.name] = struct{}{}
	}
	return nil
}
