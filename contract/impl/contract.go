package impl

import (
	"regexp"
	"sort"
	"strings"

	"go.dedis.ch/clarity/contract/parser"
	"go.dedis.ch/clarity/contract/types"
)

// DefineType tells how a defined function may be called.
type DefineType int

const (
	Private DefineType = iota
	Public
	ReadOnly
)

func (d DefineType) String() string {
	switch d {
	case Public:
		return "public"
	case ReadOnly:
		return "read-only"
	}
	return "private"
}

// FunctionArg is a declared function parameter.
type FunctionArg struct {
	Name string
	Type types.TypeSignature
}

// DefinedFunction is a function written in a contract.
type DefinedFunction struct {
	Identifier FunctionIdentifier
	Name       string
	Args       []FunctionArg
	Body       *parser.Expression
	Define     DefineType
}

// IsPublic reports whether transactions may call the function.
func (f *DefinedFunction) IsPublic() bool {
	return f.Define == Public || f.Define == ReadOnly
}

func (f *DefinedFunction) IsReadOnly() bool {
	return f.Define == ReadOnly
}

// ExecuteApply runs the body with args bound. Args must already be
// evaluated. A short return from expects! becomes the result.
func (f *DefinedFunction) ExecuteApply(args []types.Value, env *Environment) (types.Value, error) {
	if len(args) != len(f.Args) {
		return nil, uncheckedErr(ErrIncorrectArgumentCount, "%s expects %d arguments, got %d", f.Name, len(f.Args), len(args))
	}
	ctx := NewLocalContext()
	for i, arg := range f.Args {
		if !arg.Type.Admits(args[i]) {
			return nil, uncheckedErr(ErrTypeError, "argument %s of %s expects %s, got %s", arg.Name, f.Name, arg.Type, args[i])
		}
		ctx.Variables[arg.Name] = args[i]
	}

	result, err := Eval(f.Body, env, ctx)
	var short *shortReturn
	if asShortReturn(err, &short) {
		return short.Value, nil
	}
	return result, err
}

func (f *DefinedFunction) signature() string {
	parts := make([]string, len(f.Args))
	for i, arg := range f.Args {
		parts[i] = "(" + arg.Name + " " + arg.Type.String() + ")"
	}
	if len(parts) == 0 {
		return "(" + f.Name + ")"
	}
	return "(" + f.Name + " " + strings.Join(parts, " ") + ")"
}

// MapDefinition is a contract map with tuple keys and values.
type MapDefinition struct {
	Name  string
	Key   types.TypeSignature
	Value types.TypeSignature
}

// ContractContext holds everything a contract defines.
type ContractContext struct {
	Name      string
	Variables map[string]types.Value
	Functions map[string]*DefinedFunction
	Maps      map[string]*MapDefinition
	Tokens    map[string]struct{}
}

func NewContractContext(name string) *ContractContext {
	return &ContractContext{
		Name:      name,
		Variables: make(map[string]types.Value),
		Functions: make(map[string]*DefinedFunction),
		Maps:      make(map[string]*MapDefinition),
		Tokens:    make(map[string]struct{}),
	}
}

func (c *ContractContext) LookupVariable(name string) (types.Value, bool) {
	v, ok := c.Variables[name]
	return v, ok
}

func (c *ContractContext) LookupFunction(name string) (*DefinedFunction, bool) {
	f, ok := c.Functions[name]
	return f, ok
}

func (c *ContractContext) isDefined(name string) bool {
	_, isVar := c.Variables[name]
	_, isFn := c.Functions[name]
	_, isMap := c.Maps[name]
	_, isToken := c.Tokens[name]
	return isVar || isFn || isMap || isToken
}

// MaxContractNameLength bounds the length of a launched contract's name.
const MaxContractNameLength = 128

var contractNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// ValidateContractName checks that name can be launched. Contract names
// appear in storage keys and in contract principals, so they are limited
// to letters, digits, `-` and `_`.
func ValidateContractName(name string) error {
	if len(name) > MaxContractNameLength {
		return uncheckedErr(ErrBadContractName, "%d characters, at most %d allowed", len(name), MaxContractNameLength)
	}
	if !contractNamePattern.MatchString(name) {
		return uncheckedErr(ErrBadContractName, "%q", name)
	}
	return nil
}

// Contract is a launched contract: its source and what it defines.
type Contract struct {
	Name    string
	Source  string
	Context *ContractContext
}

func (c *Contract) ContractName() string { return c.Name }

// PublicFunctions returns the public and read-only function names, sorted.
func (c *Contract) PublicFunctions() []string {
	var names []string
	for name, f := range c.Context.Functions {
		if f.IsPublic() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Contract.String() outputs the contract definitions in readable format
func (c *Contract) String() string {
	out := new(strings.Builder)

	out.WriteString("=================================\n")
	out.WriteString("| Contract: " + c.Name + "\n")
	out.WriteString("=================================\n")

	fnNames := make([]string, 0, len(c.Context.Functions))
	for name := range c.Context.Functions {
		fnNames = append(fnNames, name)
	}
	sort.Strings(fnNames)
	for _, name := range fnNames {
		f := c.Context.Functions[name]
		out.WriteString("| " + f.Define.String() + " " + f.signature() + "\n")
	}

	mapNames := make([]string, 0, len(c.Context.Maps))
	for name := range c.Context.Maps {
		mapNames = append(mapNames, name)
	}
	sort.Strings(mapNames)
	for _, name := range mapNames {
		m := c.Context.Maps[name]
		out.WriteString("| map " + name + " " + m.Key.String() + " -> " + m.Value.String() + "\n")
	}

	tokens := make([]string, 0, len(c.Context.Tokens))
	for name := range c.Context.Tokens {
		tokens = append(tokens, name)
	}
	sort.Strings(tokens)
	for _, name := range tokens {
		out.WriteString("| token " + name + "\n")
	}

	varNames := make([]string, 0, len(c.Context.Variables))
	for name := range c.Context.Variables {
		varNames = append(varNames, name)
	}
	sort.Strings(varNames)
	for _, name := range varNames {
		out.WriteString("| define " + name + " = " + c.Context.Variables[name].String() + "\n")
	}
	out.WriteString("=================================\n")
	return out.String()
}

// initializeContract parses source and runs its top level in global:
// definitions are registered in order, other expressions are evaluated
// for their side effects.
func initializeContract(name, source string, global *GlobalContext) (*Contract, error) {
	program, err := parser.Parse(source)
	if err != nil {
		return nil, runtimeErr(ErrParse, "%v", err)
	}
	ctx := NewContractContext(name)
	env := NewEnvironment(global, ctx, NewCallStack(), nil, nil)

	for _, expr := range program {
		def, err := parseDefinition(name, expr)
		if err != nil {
			return nil, err
		}
		if def == nil {
			_, err = evalTop(expr, env)
			if err != nil {
				return nil, err
			}
			continue
		}
		if def.kind == defineVariable {
			v, err := evalTop(def.value, env)
			if err != nil {
				return nil, err
			}
			def.variable = v
		}
		err = ctx.register(def)
		if err != nil {
			return nil, err
		}
	}
	return &Contract{Name: name, Source: source, Context: ctx}, nil
}

// loadContract rebuilds a launched contract from its source and the
// variable values computed at launch, without running the top level.
func loadContract(name, source string, variables map[string]types.Value) (*Contract, error) {
	program, err := parser.Parse(source)
	if err != nil {
		return nil, interpreterErr(ErrInterpreter, "stored contract %s does not parse: %v", name, err)
	}
	ctx := NewContractContext(name)
	for _, expr := range program {
		def, err := parseDefinition(name, expr)
		if err != nil {
			return nil, err
		}
		if def == nil {
			continue
		}
		if def.kind == defineVariable {
			v, ok := variables[def.name]
			if !ok {
				return nil, interpreterErr(ErrInterpreter, "stored contract %s lacks variable %s", name, def.name)
			}
			def.variable = v
		}
		err = ctx.register(def)
		if err != nil {
			return nil, err
		}
	}
	return &Contract{Name: name, Source: source, Context: ctx}, nil
}
