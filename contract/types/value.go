// Package types holds contract values and their type signatures.
package types

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"
	"strings"
)

var (
	// MaxInt and MinInt bound the signed 128-bit int range.
	MaxInt = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	MinInt = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
)

// Value is any value a contract can compute or store.
type Value interface {
	String() string
	value()
}

// Int is a signed 128-bit integer. The zero Int is 0.
type Int struct {
	v *big.Int
}

// NewInt wraps i.
func NewInt(i int64) Int {
	return Int{v: big.NewInt(i)}
}

// IntFromBig returns b as an Int, or false if b is out of range.
func IntFromBig(b *big.Int) (Int, bool) {
	if b.Cmp(MaxInt) > 0 || b.Cmp(MinInt) < 0 {
		return Int{}, false
	}
	return Int{v: new(big.Int).Set(b)}, true
}

// Big returns a copy of the integer.
func (i Int) Big() *big.Int {
	if i.v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(i.v)
}

// Int64 returns the integer truncated to int64, and whether it fit.
func (i Int) Int64() (int64, bool) {
	b := i.Big()
	return b.Int64(), b.IsInt64()
}

func (i Int) String() string { return i.Big().String() }

// Bool is a boolean value.
type Bool bool

func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}

// Buffer is a byte string. String literals evaluate to buffers.
type Buffer []byte

func (b Buffer) String() string { return "0x" + hex.EncodeToString(b) }

// Principal identifies an account ('ALICE) or a contract ('ALICE.tokens,
// or '.tokens for a contract launched without an issuer).
type Principal struct {
	Issuer   string
	Contract string
}

// StandardPrincipal returns the account principal named issuer.
func StandardPrincipal(issuer string) Principal {
	return Principal{Issuer: issuer}
}

// ContractPrincipal returns the principal of the contract called name.
func ContractPrincipal(name string) Principal {
	return Principal{Contract: name}
}

// ParsePrincipal parses `'ALICE`, `ALICE`, `'ALICE.c` or `'.c`.
func ParsePrincipal(s string) (Principal, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "'")
	if raw == "" {
		return Principal{}, fmt.Errorf("empty principal %q", s)
	}
	issuer, contract, found := strings.Cut(raw, ".")
	if found && contract == "" {
		return Principal{}, fmt.Errorf("principal %q has an empty contract name", s)
	}
	if !found && issuer == "" {
		return Principal{}, fmt.Errorf("empty principal %q", s)
	}
	return Principal{Issuer: issuer, Contract: contract}, nil
}

// IsContract reports whether p names a contract.
func (p Principal) IsContract() bool { return p.Contract != "" }

func (p Principal) String() string {
	if p.IsContract() {
		return "'" + p.Issuer + "." + p.Contract
	}
	return "'" + p.Issuer
}

// Tuple is a record of named fields. Field order is always by name.
type Tuple struct {
	names  []string
	fields map[string]Value
}

// NamedValue is one field of a tuple under construction.
type NamedValue struct {
	Name  string
	Value Value
}

// NewTuple builds a tuple. Names must be unique and non-empty.
func NewTuple(fields ...NamedValue) (Tuple, error) {
	t := Tuple{fields: make(map[string]Value, len(fields))}
	for _, f := range fields {
		if f.Name == "" {
			return Tuple{}, fmt.Errorf("tuple field name is empty")
		}
		if _, dup := t.fields[f.Name]; dup {
			return Tuple{}, fmt.Errorf("duplicate tuple field %q", f.Name)
		}
		t.fields[f.Name] = f.Value
		t.names = append(t.names, f.Name)
	}
	sort.Strings(t.names)
	return t, nil
}

// Get returns the named field.
func (t Tuple) Get(name string) (Value, bool) {
	v, ok := t.fields[name]
	return v, ok
}

// Names returns the field names in order.
func (t Tuple) Names() []string {
	return append([]string(nil), t.names...)
}

func (t Tuple) String() string {
	var sb strings.Builder
	sb.WriteString("(tuple")
	for _, name := range t.names {
		fmt.Fprintf(&sb, " (%s %s)", name, t.fields[name])
	}
	sb.WriteString(")")
	return sb.String()
}

// Optional is `none` when Inner is nil, `(some Inner)` otherwise.
type Optional struct {
	Inner Value
}

// None is the empty optional.
var None = Optional{}

// Some wraps v.
func Some(v Value) Optional { return Optional{Inner: v} }

// IsNone reports whether o is none.
func (o Optional) IsNone() bool { return o.Inner == nil }

func (o Optional) String() string {
	if o.IsNone() {
		return "none"
	}
	return "(some " + o.Inner.String() + ")"
}

// Response is the result of a public function: `(ok Data)` commits the
// transaction, `(err Data)` aborts it.
type Response struct {
	Committed bool
	Data      Value
}

// Ok returns a committed response.
func Ok(v Value) Response { return Response{Committed: true, Data: v} }

// Err returns an aborted response.
func Err(v Value) Response { return Response{Committed: false, Data: v} }

func (r Response) String() string {
	if r.Committed {
		return "(ok " + r.Data.String() + ")"
	}
	return "(err " + r.Data.String() + ")"
}

// List is an ordered sequence of values.
type List struct {
	Items []Value
}

func (l List) String() string {
	parts := make([]string, len(l.Items))
	for i, item := range l.Items {
		parts[i] = item.String()
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func (Int) value()       {}
func (Bool) value()      {}
func (Buffer) value()    {}
func (Principal) value() {}
func (Tuple) value()     {}
func (Optional) value()  {}
func (Response) value()  {}
func (List) value()      {}

// Equal reports whether a and b are the same value.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case Int:
		y, ok := b.(Int)
		return ok && x.Big().Cmp(y.Big()) == 0
	case Bool:
		y, ok := b.(Bool)
		return ok && x == y
	case Buffer:
		y, ok := b.(Buffer)
		return ok && bytes.Equal(x, y)
	case Principal:
		y, ok := b.(Principal)
		return ok && x == y
	case Tuple:
		y, ok := b.(Tuple)
		if !ok || len(x.names) != len(y.names) {
			return false
		}
		for i, name := range x.names {
			if y.names[i] != name || !Equal(x.fields[name], y.fields[name]) {
				return false
			}
		}
		return true
	case Optional:
		y, ok := b.(Optional)
		if !ok || x.IsNone() != y.IsNone() {
			return false
		}
		return x.IsNone() || Equal(x.Inner, y.Inner)
	case Response:
		y, ok := b.(Response)
		return ok && x.Committed == y.Committed && Equal(x.Data, y.Data)
	case List:
		y, ok := b.(List)
		if !ok || len(x.Items) != len(y.Items) {
			return false
		}
		for i := range x.Items {
			if !Equal(x.Items[i], y.Items[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Key renders v as a canonical string, used to address map entries.
func Key(v Value) string {
	return v.String()
}
