package types

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.dedis.ch/clarity/contract/parser"
)

// Kind is the outer shape of a type signature.
type Kind int

const (
	IntType Kind = iota
	BoolType
	BufferType
	PrincipalType
	TupleType
	OptionalType
	ResponseType
	ListType
)

// MaxValueSize caps declared buffer and list lengths.
const MaxValueSize = 1 << 20

// FieldType is one named field of a tuple signature.
type FieldType struct {
	Name string
	Type TypeSignature
}

// TypeSignature describes the values a function argument, map key or map
// value may hold.
type TypeSignature struct {
	Kind   Kind
	Length int            // buffer and list maximum length
	Elem   *TypeSignature // list element, optional inner, response ok
	Err    *TypeSignature // response err
	Fields []FieldType    // tuple fields, by name
}

func (t TypeSignature) String() string {
	switch t.Kind {
	case IntType:
		return "int"
	case BoolType:
		return "bool"
	case PrincipalType:
		return "principal"
	case BufferType:
		return fmt.Sprintf("(buffer %d)", t.Length)
	case ListType:
		return fmt.Sprintf("(list %s %d)", t.Elem, t.Length)
	case OptionalType:
		return fmt.Sprintf("(optional %s)", t.Elem)
	case ResponseType:
		return fmt.Sprintf("(response %s %s)", t.Elem, t.Err)
	case TupleType:
		parts := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			parts[i] = fmt.Sprintf("(%s %s)", f.Name, f.Type)
		}
		return "(tuple " + strings.Join(parts, " ") + ")"
	}
	return "<unknown>"
}

// Admits reports whether v is a value of type t.
func (t TypeSignature) Admits(v Value) bool {
	switch t.Kind {
	case IntType:
		_, ok := v.(Int)
		return ok
	case BoolType:
		_, ok := v.(Bool)
		return ok
	case PrincipalType:
		_, ok := v.(Principal)
		return ok
	case BufferType:
		b, ok := v.(Buffer)
		return ok && len(b) <= t.Length
	case ListType:
		l, ok := v.(List)
		if !ok || len(l.Items) > t.Length {
			return false
		}
		for _, item := range l.Items {
			if !t.Elem.Admits(item) {
				return false
			}
		}
		return true
	case OptionalType:
		o, ok := v.(Optional)
		return ok && (o.IsNone() || t.Elem.Admits(o.Inner))
	case ResponseType:
		r, ok := v.(Response)
		if !ok {
			return false
		}
		if r.Committed {
			return t.Elem.Admits(r.Data)
		}
		return t.Err.Admits(r.Data)
	case TupleType:
		tu, ok := v.(Tuple)
		if !ok || len(tu.names) != len(t.Fields) {
			return false
		}
		for _, f := range t.Fields {
			fv, ok := tu.Get(f.Name)
			if !ok || !f.Type.Admits(fv) {
				return false
			}
		}
		return true
	}
	return false
}

// ParseTypeSignature reads a type from its source form.
func ParseTypeSignature(expr *parser.Expression) (TypeSignature, error) {
	if name, ok := expr.AtomName(); ok {
		switch name {
		case "int":
			return TypeSignature{Kind: IntType}, nil
		case "bool":
			return TypeSignature{Kind: BoolType}, nil
		case "principal":
			return TypeSignature{Kind: PrincipalType}, nil
		}
		return TypeSignature{}, fmt.Errorf("unknown type name %q", name)
	}
	items := expr.Items()
	if len(items) == 0 {
		return TypeSignature{}, fmt.Errorf("invalid type signature %s", expr)
	}
	head, ok := items[0].AtomName()
	if !ok {
		// ((name type) ...) is shorthand for a tuple.
		return ParseTupleSignature(expr)
	}
	args := items[1:]
	switch head {
	case "buffer":
		if len(args) != 1 {
			return TypeSignature{}, fmt.Errorf("buffer type expects a length: %s", expr)
		}
		n, err := parseLength(args[0])
		if err != nil {
			return TypeSignature{}, err
		}
		return TypeSignature{Kind: BufferType, Length: n}, nil
	case "list":
		if len(args) != 2 {
			return TypeSignature{}, fmt.Errorf("list type expects an element type and a length: %s", expr)
		}
		elem, err := ParseTypeSignature(args[0])
		if err != nil {
			return TypeSignature{}, err
		}
		n, err := parseLength(args[1])
		if err != nil {
			return TypeSignature{}, err
		}
		return TypeSignature{Kind: ListType, Elem: &elem, Length: n}, nil
	case "optional":
		if len(args) != 1 {
			return TypeSignature{}, fmt.Errorf("optional type expects one type: %s", expr)
		}
		elem, err := ParseTypeSignature(args[0])
		if err != nil {
			return TypeSignature{}, err
		}
		return TypeSignature{Kind: OptionalType, Elem: &elem}, nil
	case "response":
		if len(args) != 2 {
			return TypeSignature{}, fmt.Errorf("response type expects ok and err types: %s", expr)
		}
		okType, err := ParseTypeSignature(args[0])
		if err != nil {
			return TypeSignature{}, err
		}
		errType, err := ParseTypeSignature(args[1])
		if err != nil {
			return TypeSignature{}, err
		}
		return TypeSignature{Kind: ResponseType, Elem: &okType, Err: &errType}, nil
	case "tuple":
		return parseFields(args, expr)
	}
	return TypeSignature{}, fmt.Errorf("unknown type %q", head)
}

// ParseTupleSignature reads `((name type) ...)`, the form map keys and
// values are declared with.
func ParseTupleSignature(expr *parser.Expression) (TypeSignature, error) {
	if !expr.IsList() {
		return TypeSignature{}, fmt.Errorf("expected a list of (name type) pairs, got %s", expr)
	}
	return parseFields(expr.Items(), expr)
}

func parseFields(pairs []*parser.Expression, expr *parser.Expression) (TypeSignature, error) {
	if len(pairs) == 0 {
		return TypeSignature{}, fmt.Errorf("tuple type needs at least one field: %s", expr)
	}
	seen := make(map[string]bool, len(pairs))
	fields := make([]FieldType, 0, len(pairs))
	for _, pair := range pairs {
		items := pair.Items()
		if len(items) != 2 {
			return TypeSignature{}, fmt.Errorf("expected (name type), got %s", pair)
		}
		name, ok := items[0].AtomName()
		if !ok {
			return TypeSignature{}, fmt.Errorf("expected a field name, got %s", items[0])
		}
		if seen[name] {
			return TypeSignature{}, fmt.Errorf("duplicate field %q", name)
		}
		seen[name] = true
		ft, err := ParseTypeSignature(items[1])
		if err != nil {
			return TypeSignature{}, err
		}
		fields = append(fields, FieldType{Name: name, Type: ft})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
	return TypeSignature{Kind: TupleType, Fields: fields}, nil
}

func parseLength(expr *parser.Expression) (int, error) {
	if expr.Int == nil {
		return 0, fmt.Errorf("expected a length, got %s", expr)
	}
	n, err := strconv.Atoi(*expr.Int)
	if err != nil || n <= 0 || n > MaxValueSize {
		return 0, fmt.Errorf("invalid length %s", *expr.Int)
	}
	return n, nil
}
