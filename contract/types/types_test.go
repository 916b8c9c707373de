package types

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/clarity/contract/parser"
)

func mustTuple(t *testing.T, fields ...NamedValue) Tuple {
	t.Helper()
	tu, err := NewTuple(fields...)
	require.NoError(t, err)
	return tu
}

func parseType(t *testing.T, src string) TypeSignature {
	t.Helper()
	exprs, err := parser.Parse(src)
	require.NoError(t, err)
	require.Len(t, exprs, 1)
	sig, err := ParseTypeSignature(exprs[0])
	require.NoError(t, err)
	return sig
}

func TestValue_String(t *testing.T) {
	tu := mustTuple(t,
		NamedValue{Name: "balance", Value: NewInt(10)},
		NamedValue{Name: "account", Value: StandardPrincipal("ALICE")},
	)
	require.Equal(t, "(tuple (account 'ALICE) (balance 10))", tu.String())
	require.Equal(t, "(ok true)", Ok(Bool(true)).String())
	require.Equal(t, "(err -1)", Err(NewInt(-1)).String())
	require.Equal(t, "none", None.String())
	require.Equal(t, "(some 0x6869)", Some(Buffer("hi")).String())
	require.Equal(t, "(1 2)", List{Items: []Value{NewInt(1), NewInt(2)}}.String())
	require.Equal(t, "'.fungible-stx", ContractPrincipal("fungible-stx").String())
}

func TestIntRange(t *testing.T) {
	_, ok := IntFromBig(MaxInt)
	require.True(t, ok)
	_, ok = IntFromBig(new(big.Int).Add(MaxInt, big.NewInt(1)))
	require.False(t, ok)
	_, ok = IntFromBig(new(big.Int).Sub(MinInt, big.NewInt(1)))
	require.False(t, ok)

	require.Equal(t, "0", Int{}.String())
}

func TestTuple_RejectsDuplicates(t *testing.T) {
	_, err := NewTuple(NamedValue{Name: "a", Value: NewInt(1)}, NamedValue{Name: "a", Value: NewInt(2)})
	require.Error(t, err)
}

func TestParsePrincipal(t *testing.T) {
	p, err := ParsePrincipal("ALICE")
	require.NoError(t, err)
	require.Equal(t, StandardPrincipal("ALICE"), p)

	p, err = ParsePrincipal("'ALICE.tokens")
	require.NoError(t, err)
	require.Equal(t, Principal{Issuer: "ALICE", Contract: "tokens"}, p)
	require.True(t, p.IsContract())

	p, err = ParsePrincipal("'.tokens")
	require.NoError(t, err)
	require.Equal(t, ContractPrincipal("tokens"), p)

	for _, bad := range []string{"", "'", "'ALICE.", "."} {
		_, err := ParsePrincipal(bad)
		require.Error(t, err, bad)
	}
}

func TestEqual(t *testing.T) {
	a := mustTuple(t, NamedValue{Name: "x", Value: Some(NewInt(1))})
	b := mustTuple(t, NamedValue{Name: "x", Value: Some(NewInt(1))})
	c := mustTuple(t, NamedValue{Name: "x", Value: None})

	require.True(t, Equal(a, b))
	require.False(t, Equal(a, c))
	require.False(t, Equal(NewInt(1), Bool(true)))
	require.False(t, Equal(Ok(NewInt(1)), Err(NewInt(1))))
}

func TestTypeSignature_Admits(t *testing.T) {
	balances := parseType(t, "((account principal))")
	require.Equal(t, "(tuple (account principal))", balances.String())
	require.True(t, balances.Admits(mustTuple(t, NamedValue{Name: "account", Value: StandardPrincipal("BOB")})))
	require.False(t, balances.Admits(mustTuple(t, NamedValue{Name: "account", Value: NewInt(1)})))
	require.False(t, balances.Admits(NewInt(1)))

	buf := parseType(t, "(buffer 2)")
	require.True(t, buf.Admits(Buffer("ab")))
	require.False(t, buf.Admits(Buffer("abc")))

	list := parseType(t, "(list (optional int) 2)")
	require.True(t, list.Admits(List{Items: []Value{None, Some(NewInt(3))}}))
	require.False(t, list.Admits(List{Items: []Value{None, None, None}}))

	resp := parseType(t, "(response int bool)")
	require.True(t, resp.Admits(Ok(NewInt(1))))
	require.True(t, resp.Admits(Err(Bool(false))))
	require.False(t, resp.Admits(Err(NewInt(1))))
}

func TestParseTypeSignature_Errors(t *testing.T) {
	for _, src := range []string{"float", "(buffer)", "(buffer 0)", "(list int)", "()", "((a int) (a int))", "(tuple)"} {
		exprs, err := parser.Parse(src)
		require.NoError(t, err)
		_, err = ParseTypeSignature(exprs[0])
		require.Error(t, err, src)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	smallest, ok := IntFromBig(MinInt)
	require.True(t, ok)
	v := List{Items: []Value{
		mustTuple(t,
			NamedValue{Name: "owner", Value: Principal{Issuer: "ALICE", Contract: "c"}},
			NamedValue{Name: "amount", Value: smallest},
		),
		Ok(Some(Buffer{0, 1})),
		Err(Bool(false)),
		None,
		List{},
	}}

	data, err := Marshal(v)
	require.NoError(t, err)
	back, err := Unmarshal(data)
	require.NoError(t, err)
	require.True(t, Equal(v, back), "%s != %s", v, back)

	_, err = Unmarshal([]byte{0xc1})
	require.Error(t, err)
}
