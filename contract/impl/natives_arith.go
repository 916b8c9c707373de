package impl

import (
	"math/big"

	"go.dedis.ch/clarity/contract/types"
)

func intArgs(args []types.Value) ([]*big.Int, error) {
	ints := make([]*big.Int, len(args))
	for i, arg := range args {
		v, err := asInt(arg)
		if err != nil {
			return nil, err
		}
		ints[i] = v.Big()
	}
	return ints, nil
}

// checked returns b as an Int, failing outside the 128-bit range.
func checked(op string, b *big.Int) (types.Int, error) {
	switch {
	case b.Cmp(types.MaxInt) > 0:
		return types.Int{}, runtimeErr(ErrArithmeticOverflow, "%s", op)
	case b.Cmp(types.MinInt) < 0:
		return types.Int{}, runtimeErr(ErrArithmeticUnderflow, "%s", op)
	}
	i, _ := types.IntFromBig(b)
	return i, nil
}

// foldInts applies step left to right, range checking every partial result.
func foldInts(op string, args []types.Value, step func(acc, x *big.Int) (*big.Int, error)) (types.Value, error) {
	ints, err := intArgs(args)
	if err != nil {
		return nil, err
	}
	acc := ints[0]
	for _, x := range ints[1:] {
		acc, err = step(acc, x)
		if err != nil {
			return nil, err
		}
		if _, err := checked(op, acc); err != nil {
			return nil, err
		}
	}
	return checked(op, acc)
}

func nativeAdd(args []types.Value, _ *Environment) (types.Value, error) {
	return foldInts("+", args, func(acc, x *big.Int) (*big.Int, error) {
		return acc.Add(acc, x), nil
	})
}

func nativeSub(args []types.Value, _ *Environment) (types.Value, error) {
	if len(args) == 1 {
		i, err := asInt(args[0])
		if err != nil {
			return nil, err
		}
		return checked("-", new(big.Int).Neg(i.Big()))
	}
	return foldInts("-", args, func(acc, x *big.Int) (*big.Int, error) {
		return acc.Sub(acc, x), nil
	})
}

func nativeMul(args []types.Value, _ *Environment) (types.Value, error) {
	return foldInts("*", args, func(acc, x *big.Int) (*big.Int, error) {
		return acc.Mul(acc, x), nil
	})
}

// nativeDiv truncates toward zero.
func nativeDiv(args []types.Value, _ *Environment) (types.Value, error) {
	return foldInts("/", args, func(acc, x *big.Int) (*big.Int, error) {
		if x.Sign() == 0 {
			return nil, runtimeErr(ErrDivisionByZero, "/")
		}
		return acc.Quo(acc, x), nil
	})
}

// nativeMod keeps the sign of the dividend.
func nativeMod(args []types.Value, _ *Environment) (types.Value, error) {
	return foldInts("mod", args, func(acc, x *big.Int) (*big.Int, error) {
		if x.Sign() == 0 {
			return nil, runtimeErr(ErrDivisionByZero, "mod")
		}
		return acc.Rem(acc, x), nil
	})
}

func nativePow(args []types.Value, _ *Environment) (types.Value, error) {
	ints, err := intArgs(args)
	if err != nil {
		return nil, err
	}
	base, exp := ints[0], ints[1]
	if exp.Sign() < 0 || !exp.IsUint64() || exp.Uint64() > 1<<32-1 {
		return nil, runtimeErr(ErrBadPower, "power argument to (pow ...) must be a u32 integer, got %s", exp)
	}
	// |base| >= 2 with an exponent of 128 or more can only leave the range.
	if new(big.Int).Abs(base).Cmp(big.NewInt(1)) > 0 && exp.Uint64() >= 128 {
		if base.Sign() < 0 && exp.Bit(0) == 1 {
			return nil, runtimeErr(ErrArithmeticUnderflow, "pow")
		}
		return nil, runtimeErr(ErrArithmeticOverflow, "pow")
	}
	if base.Sign() == 0 || base.CmpAbs(big.NewInt(1)) == 0 {
		// 0, 1 and -1 need only the parity of the exponent.
		if exp.Sign() == 0 {
			return types.NewInt(1), nil
		}
		if base.Sign() < 0 && exp.Bit(0) == 0 {
			return types.NewInt(1), nil
		}
		return checked("pow", base)
	}
	return checked("pow", new(big.Int).Exp(base, exp, nil))
}

func compare(op string, holds func(int) bool) simpleFunc {
	return func(args []types.Value, _ *Environment) (types.Value, error) {
		ints, err := intArgs(args)
		if err != nil {
			return nil, err
		}
		return types.Bool(holds(ints[0].Cmp(ints[1]))), nil
	}
}

// nativeEq compares values of one type.
func nativeEq(args []types.Value, _ *Environment) (types.Value, error) {
	first := args[0]
	equal := true
	for _, arg := range args[1:] {
		if !sameType(first, arg) {
			return nil, typeError(typeName(first), arg)
		}
		if !types.Equal(first, arg) {
			equal = false
		}
	}
	return types.Bool(equal), nil
}

func typeName(v types.Value) string {
	switch v.(type) {
	case types.Int:
		return "int"
	case types.Bool:
		return "bool"
	case types.Buffer:
		return "buffer"
	case types.Principal:
		return "principal"
	case types.Tuple:
		return "tuple"
	case types.Optional:
		return "optional"
	case types.Response:
		return "response"
	case types.List:
		return "list"
	}
	return "value"
}
