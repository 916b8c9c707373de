package impl

import (
	"sort"
	"strings"

	"go.dedis.ch/clarity/contract/parser"
	"go.dedis.ch/clarity/contract/types"
)

// scope is a set of names bound by function arguments or let.
type scope struct {
	parent *scope
	names  map[string]bool
}

func (s *scope) bind(name string) *scope {
	return &scope{parent: s, names: map[string]bool{name: true}}
}

func (s *scope) has(name string) bool {
	for sc := s; sc != nil; sc = sc.parent {
		if sc.names[name] {
			return true
		}
	}
	return false
}

// checker walks a contract without running it.
type checker struct {
	contract *ContractContext
	db       *ContractDatabase
	// names registered so far while walking the top level in order
	defined map[string]bool
	current string
	// uses maps a function to the contract names its body refers to
	uses map[string]map[string]bool
}

// CheckContract statically checks a contract source. When db is not nil,
// contract-call! and fetch-contract-entry must target launched contracts.
//
// Function bodies may refer to any definition. The top level runs in
// order at launch, so what it evaluates, including the functions it
// calls, may only use definitions that come before it.
func CheckContract(source string, db *ContractDatabase) error {
	program, err := parser.Parse(source)
	if err != nil {
		return checkErr(ErrParse, "%v", err)
	}

	c := &checker{
		contract: NewContractContext("check"),
		db:       db,
		defined:  make(map[string]bool),
		uses:     make(map[string]map[string]bool),
	}
	defs := make([]*definition, len(program))
	for i, expr := range program {
		def, err := parseDefinition(c.contract.Name, expr)
		if err != nil {
			return asCheck(err)
		}
		if def == nil {
			continue
		}
		if def.kind == defineVariable {
			def.variable = types.Bool(true)
		}
		err = c.contract.register(def)
		if err != nil {
			return asCheck(err)
		}
		defs[i] = def
	}

	for _, def := range defs {
		if def == nil || def.kind != defineFunction {
			continue
		}
		c.current = def.name
		var sc *scope
		for _, arg := range def.function.Args {
			sc = sc.bind(arg.Name)
		}
		err = c.expr(def.function.Body, sc)
		if err != nil {
			return asCheck(err)
		}
	}
	c.current = ""
	if err := c.recursion(); err != nil {
		return err
	}

	for i, expr := range program {
		def := defs[i]
		switch {
		case def == nil:
			err = c.expr(expr, nil)
		case def.kind == defineVariable:
			err = c.expr(def.value, nil)
		}
		if err != nil {
			return asCheck(err)
		}
		if def != nil {
			c.defined[def.name] = true
		}
	}
	return nil
}

// asCheck reports a VM error found while checking as a check error.
func asCheck(err error) error {
	if vmErr, ok := err.(*Error); ok {
		copied := *vmErr
		copied.Class = Check
		return &copied
	}
	return err
}

// use records that the current function refers to a contract definition.
// At the top level the definition, and everything a function uses, must
// already be registered.
func (c *checker) use(name string) error {
	if c.current != "" {
		if c.uses[c.current] == nil {
			c.uses[c.current] = make(map[string]bool)
		}
		c.uses[c.current][name] = true
		return nil
	}
	return c.reach(name, make(map[string]bool))
}

func (c *checker) reach(name string, seen map[string]bool) error {
	if seen[name] {
		return nil
	}
	seen[name] = true
	if !c.defined[name] {
		return checkErr(c.undefinedKind(name), "%s is used before it is defined", name)
	}
	for _, dep := range sortedKeys(c.uses[name]) {
		if err := c.reach(dep, seen); err != nil {
			return err
		}
	}
	return nil
}

func (c *checker) undefinedKind(name string) error {
	switch {
	case c.contract.Functions[name] != nil:
		return ErrUndefinedFunction
	case c.contract.Maps[name] != nil:
		return ErrUndefinedMap
	}
	if _, ok := c.contract.Tokens[name]; ok {
		return ErrUndefinedToken
	}
	return ErrUndefinedVariable
}

func (c *checker) all(exprs []*parser.Expression, sc *scope) error {
	for _, expr := range exprs {
		if err := c.expr(expr, sc); err != nil {
			return err
		}
	}
	return nil
}

func (c *checker) variable(name string, sc *scope) error {
	if sc.has(name) || keywords[name] {
		return nil
	}
	if _, ok := c.contract.Variables[name]; ok {
		return c.use(name)
	}
	return checkErr(ErrUndefinedVariable, "%s", name)
}

func (c *checker) expr(expr *parser.Expression, sc *scope) error {
	if expr.IsLiteral() {
		_, err := literalValue(expr)
		return err
	}
	if name, ok := expr.AtomName(); ok {
		return c.variable(name, sc)
	}
	items := expr.Items()
	if len(items) == 0 {
		return checkErr(ErrInvalidArguments, "cannot evaluate an empty list")
	}
	name, ok := items[0].AtomName()
	if !ok {
		return checkErr(ErrUndefinedFunction, "expected a function name, got %s", items[0])
	}
	args := items[1:]

	if defineForms[name] {
		return checkErr(ErrBadDefinition, "%s is only allowed at the top level", name)
	}
	native, ok := natives[name]
	if !ok {
		fn, ok := c.contract.Functions[name]
		if !ok {
			return checkErr(ErrUndefinedFunction, "%s", name)
		}
		if len(args) != len(fn.Args) {
			return checkErr(ErrIncorrectArgumentCount, "%s expects %d arguments, got %d", name, len(fn.Args), len(args))
		}
		if err := c.use(name); err != nil {
			return err
		}
		return c.all(args, sc)
	}
	if err := native.checkArity(len(args)); err != nil {
		return err
	}

	switch name {
	case "let":
		return c.let(args, sc)
	case "tuple":
		for _, arg := range args {
			pair := arg.Items()
			if len(pair) != 2 {
				return checkErr(ErrInvalidArguments, "expected (name value) in tuple, got %s", arg)
			}
			if _, err := atomArg(pair[0], "field"); err != nil {
				return err
			}
			if err := c.expr(pair[1], sc); err != nil {
				return err
			}
		}
		return nil
	case "get":
		if _, err := atomArg(args[0], "field"); err != nil {
			return err
		}
		return c.expr(args[1], sc)
	case "fetch-entry", "set-entry!", "insert-entry!", "delete-entry!":
		m, err := lookupMap(c.contract, args[0])
		if err != nil {
			return err
		}
		if err := c.use(m.Name); err != nil {
			return err
		}
		return c.all(args[1:], sc)
	case "fetch-contract-entry":
		if err := c.contractMap(args[0], args[1]); err != nil {
			return err
		}
		return c.all(args[2:], sc)
	case "mint-token!", "transfer-token!", "get-token-balance":
		token, err := atomArg(args[0], "token")
		if err != nil {
			return err
		}
		if _, ok := c.contract.Tokens[token]; !ok {
			return checkErr(ErrUndefinedToken, "%s", token)
		}
		if err := c.use(token); err != nil {
			return err
		}
		return c.all(args[1:], sc)
	case "map", "filter", "fold":
		fn, err := atomArg(args[0], "function")
		if err != nil {
			return err
		}
		if native, ok := natives[fn]; ok {
			if native.simple == nil {
				return checkErr(ErrInvalidArguments, "%s cannot be passed as a function", fn)
			}
		} else if _, ok := c.contract.Functions[fn]; ok {
			if err := c.use(fn); err != nil {
				return err
			}
		} else {
			return checkErr(ErrUndefinedFunction, "%s", fn)
		}
		return c.all(args[1:], sc)
	case "contract-call!":
		if err := c.contractCall(args[0], args[1]); err != nil {
			return err
		}
		return c.all(args[2:], sc)
	case "get-block-info":
		property, err := atomArg(args[0], "block property")
		if err != nil {
			return err
		}
		if !blockProperties[property] {
			return checkErr(ErrInvalidArguments, "unknown block property %s", property)
		}
		return c.expr(args[1], sc)
	}
	return c.all(args, sc)
}

func (c *checker) let(args []*parser.Expression, sc *scope) error {
	if !args[0].IsList() {
		return checkErr(ErrInvalidArguments, "let expects a list of bindings, got %s", args[0])
	}
	inner := sc
	seen := make(map[string]bool)
	for _, binding := range args[0].Items() {
		pair := binding.Items()
		if len(pair) != 2 {
			return checkErr(ErrInvalidArguments, "expected (name value) binding, got %s", binding)
		}
		name, err := atomArg(pair[0], "binding")
		if err != nil {
			return err
		}
		if isReserved(name) {
			return checkErr(ErrReservedName, "%s", name)
		}
		if seen[name] {
			return checkErr(ErrNameAlreadyUsed, "%s", name)
		}
		seen[name] = true
		if err := c.expr(pair[1], sc); err != nil {
			return err
		}
		inner = inner.bind(name)
	}
	return c.all(args[1:], inner)
}

func (c *checker) contractCall(target, fnExpr *parser.Expression) error {
	name, err := contractArg(target)
	if err != nil {
		return err
	}
	fnName, err := atomArg(fnExpr, "function")
	if err != nil {
		return err
	}
	if c.db == nil {
		return nil
	}
	other, err := c.db.GetContract(name)
	if err != nil {
		return err
	}
	fn, ok := other.Context.LookupFunction(fnName)
	if !ok {
		return checkErr(ErrUndefinedFunction, "%s in %s", fnName, name)
	}
	if !fn.IsPublic() {
		return checkErr(ErrNonPublicFunction, "%s in %s", fnName, name)
	}
	return nil
}

func (c *checker) contractMap(target, mapExpr *parser.Expression) error {
	name, err := contractArg(target)
	if err != nil {
		return err
	}
	if c.db == nil {
		_, err = atomArg(mapExpr, "map")
		return err
	}
	other, err := c.db.GetContract(name)
	if err != nil {
		return err
	}
	_, err = lookupMap(other.Context, mapExpr)
	return err
}

// recursion fails if the call graph of defined functions has a cycle.
func (c *checker) recursion() error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int)
	var path []string

	var visit func(fn string) error
	visit = func(fn string) error {
		switch state[fn] {
		case visiting:
			start := 0
			for i, name := range path {
				if name == fn {
					start = i
				}
			}
			cycle := append(append([]string(nil), path[start:]...), fn)
			return checkErr(ErrRecursionDetected, "%s", strings.Join(cycle, " -> "))
		case done:
			return nil
		}
		state[fn] = visiting
		path = append(path, fn)
		for _, callee := range sortedKeys(c.uses[fn]) {
			if c.contract.Functions[callee] == nil {
				continue
			}
			if err := visit(callee); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[fn] = done
		return nil
	}

	names := make([]string, 0, len(c.contract.Functions))
	for name := range c.contract.Functions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
