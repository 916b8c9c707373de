package impl

import (
	"crypto/sha256"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	"go.dedis.ch/clarity/contract/parser"
	"go.dedis.ch/clarity/contract/types"
	"golang.org/x/crypto/ripemd160"
)

// contractArg reads a contract name given as an atom or as a contract
// principal literal.
func contractArg(expr *parser.Expression) (string, error) {
	if name, ok := expr.AtomName(); ok {
		return name, nil
	}
	if expr.Principal != nil {
		p, err := types.ParsePrincipal(*expr.Principal)
		if err == nil && p.IsContract() {
			return p.Contract, nil
		}
	}
	return "", uncheckedErr(ErrInvalidArguments, "expected a contract name, got %s", expr)
}

// specialContractCall calls a public function of another contract. The
// sender is kept and the caller becomes the calling contract.
func specialContractCall(args []*parser.Expression, env *Environment, ctx *LocalContext) (types.Value, error) {
	contract, err := contractArg(args[0])
	if err != nil {
		return nil, err
	}
	fn, err := atomArg(args[1], "function")
	if err != nil {
		return nil, err
	}
	values, err := evalAll(args[2:], env, ctx)
	if err != nil {
		return nil, err
	}
	nested := env.NestWithCaller(types.ContractPrincipal(env.Contract.Name))
	return nested.ExecuteContract(contract, fn, values)
}

func specialAsContract(args []*parser.Expression, env *Environment, ctx *LocalContext) (types.Value, error) {
	nested := env.NestAsPrincipal(types.ContractPrincipal(env.Contract.Name))
	return Eval(args[0], nested, ctx)
}

func specialGetBlockInfo(args []*parser.Expression, env *Environment, ctx *LocalContext) (types.Value, error) {
	property, err := atomArg(args[0], "block property")
	if err != nil {
		return nil, err
	}
	if !blockProperties[property] {
		return nil, uncheckedErr(ErrInvalidArguments, "unknown block property %s", property)
	}
	v, err := Eval(args[1], env, ctx)
	if err != nil {
		return nil, err
	}
	height, err := asInt(v)
	if err != nil {
		return nil, err
	}
	h := height.Big()
	if h.Sign() < 0 || !h.IsUint64() {
		return nil, runtimeErr(ErrBadBlockHeight, "%s", height)
	}
	info, err := env.Global.Database.BlockInfo(h.Uint64())
	if err != nil {
		return nil, err
	}
	switch property {
	case "time":
		t, _ := types.IntFromBig(new(big.Int).SetUint64(info.Time))
		return t, nil
	case "header-hash":
		return types.Buffer(info.HeaderHash), nil
	case "burnchain-header-hash":
		return types.Buffer(info.BurnchainHeaderHash), nil
	default:
		return types.Buffer(info.VRFSeed), nil
	}
}

var blockProperties = map[string]bool{
	"time":                  true,
	"header-hash":           true,
	"burnchain-header-hash": true,
	"vrf-seed":              true,
}

// hashInput returns the bytes a hash native digests. Ints are hashed as
// 16 little-endian two's complement bytes.
func hashInput(v types.Value) ([]byte, error) {
	switch x := v.(type) {
	case types.Buffer:
		return x, nil
	case types.Int:
		b := x.Big()
		if b.Sign() < 0 {
			b.Add(b, new(big.Int).Lsh(big.NewInt(1), 128))
		}
		out := b.FillBytes(make([]byte, 16))
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
		return out, nil
	}
	return nil, typeError("buffer or int", v)
}

func nativeSha256(args []types.Value, _ *Environment) (types.Value, error) {
	data, err := hashInput(args[0])
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	return types.Buffer(sum[:]), nil
}

// nativeHash160 is ripemd160(sha256(x)).
func nativeHash160(args []types.Value, _ *Environment) (types.Value, error) {
	data, err := hashInput(args[0])
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	h := ripemd160.New()
	h.Write(sum[:])
	return types.Buffer(h.Sum(nil)), nil
}

func nativeKeccak256(args []types.Value, _ *Environment) (types.Value, error) {
	data, err := hashInput(args[0])
	if err != nil {
		return nil, err
	}
	return types.Buffer(crypto.Keccak256(data)), nil
}
