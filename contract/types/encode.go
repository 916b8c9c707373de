package types

import (
	"fmt"
	"math/big"

	"github.com/vmihailenco/msgpack"
)

// encoded is the persisted form of a Value.
type encoded struct {
	Kind     string    `msgpack:"k"`
	Int      string    `msgpack:"i,omitempty"`
	Bool     bool      `msgpack:"b,omitempty"`
	Bytes    []byte    `msgpack:"x,omitempty"`
	Issuer   string    `msgpack:"p,omitempty"`
	Contract string    `msgpack:"c,omitempty"`
	Names    []string  `msgpack:"n,omitempty"`
	Items    []encoded `msgpack:"v,omitempty"`
}

// Marshal serializes v for storage.
func Marshal(v Value) ([]byte, error) {
	e, err := toEncoded(v)
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(&e)
}

// Unmarshal decodes a value written by Marshal.
func Unmarshal(data []byte) (Value, error) {
	var e encoded
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return fromEncoded(e)
}

func toEncoded(v Value) (encoded, error) {
	switch x := v.(type) {
	case Int:
		return encoded{Kind: "int", Int: x.String()}, nil
	case Bool:
		return encoded{Kind: "bool", Bool: bool(x)}, nil
	case Buffer:
		return encoded{Kind: "buffer", Bytes: []byte(x)}, nil
	case Principal:
		return encoded{Kind: "principal", Issuer: x.Issuer, Contract: x.Contract}, nil
	case Tuple:
		e := encoded{Kind: "tuple", Names: x.Names()}
		for _, name := range e.Names {
			item, err := toEncoded(x.fields[name])
			if err != nil {
				return encoded{}, err
			}
			e.Items = append(e.Items, item)
		}
		return e, nil
	case Optional:
		if x.IsNone() {
			return encoded{Kind: "none"}, nil
		}
		inner, err := toEncoded(x.Inner)
		if err != nil {
			return encoded{}, err
		}
		return encoded{Kind: "some", Items: []encoded{inner}}, nil
	case Response:
		data, err := toEncoded(x.Data)
		if err != nil {
			return encoded{}, err
		}
		kind := "err"
		if x.Committed {
			kind = "ok"
		}
		return encoded{Kind: kind, Items: []encoded{data}}, nil
	case List:
		e := encoded{Kind: "list"}
		for _, item := range x.Items {
			ie, err := toEncoded(item)
			if err != nil {
				return encoded{}, err
			}
			e.Items = append(e.Items, ie)
		}
		return e, nil
	}
	return encoded{}, fmt.Errorf("cannot encode value of type %T", v)
}

func fromEncoded(e encoded) (Value, error) {
	switch e.Kind {
	case "int":
		b, ok := new(big.Int).SetString(e.Int, 10)
		if !ok {
			return nil, fmt.Errorf("decode value: bad int %q", e.Int)
		}
		i, ok := IntFromBig(b)
		if !ok {
			return nil, fmt.Errorf("decode value: int %q out of range", e.Int)
		}
		return i, nil
	case "bool":
		return Bool(e.Bool), nil
	case "buffer":
		return Buffer(append([]byte{}, e.Bytes...)), nil
	case "principal":
		return Principal{Issuer: e.Issuer, Contract: e.Contract}, nil
	case "tuple":
		if len(e.Names) != len(e.Items) {
			return nil, fmt.Errorf("decode value: tuple has %d names and %d values", len(e.Names), len(e.Items))
		}
		fields := make([]NamedValue, len(e.Names))
		for i, name := range e.Names {
			v, err := fromEncoded(e.Items[i])
			if err != nil {
				return nil, err
			}
			fields[i] = NamedValue{Name: name, Value: v}
		}
		return NewTuple(fields...)
	case "none":
		return None, nil
	case "some", "ok", "err":
		if len(e.Items) != 1 {
			return nil, fmt.Errorf("decode value: %s expects one value", e.Kind)
		}
		inner, err := fromEncoded(e.Items[0])
		if err != nil {
			return nil, err
		}
		switch e.Kind {
		case "some":
			return Some(inner), nil
		case "ok":
			return Ok(inner), nil
		}
		return Err(inner), nil
	case "list":
		items := make([]Value, len(e.Items))
		for i, ie := range e.Items {
			v, err := fromEncoded(ie)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return List{Items: items}, nil
	}
	return nil, fmt.Errorf("decode value: unknown kind %q", e.Kind)
}
