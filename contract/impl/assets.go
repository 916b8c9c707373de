package impl

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"go.dedis.ch/clarity/contract/types"
)

// AssetIdentifier names a fungible asset by its defining contract.
type AssetIdentifier struct {
	ContractName string
	AssetName    string
}

func (a AssetIdentifier) String() string {
	return a.ContractName + "::" + a.AssetName
}

// AssetAmount is one row of an asset table.
type AssetAmount struct {
	Asset  AssetIdentifier
	Amount types.Int
}

// AssetMap records how much of each asset each principal spent during a
// transaction.
type AssetMap struct {
	spent map[types.Principal]map[AssetIdentifier]*big.Int
}

// NewAssetMap returns an empty map.
func NewAssetMap() *AssetMap {
	return &AssetMap{spent: make(map[types.Principal]map[AssetIdentifier]*big.Int)}
}

func (m *AssetMap) current(p types.Principal, asset AssetIdentifier) *big.Int {
	if amount, ok := m.spent[p][asset]; ok {
		return amount
	}
	return new(big.Int)
}

// AddTransfer adds amount to what p spent of asset. The sum must stay in
// the int range.
func (m *AssetMap) AddTransfer(p types.Principal, asset AssetIdentifier, amount types.Int) error {
	sum := new(big.Int).Add(m.current(p, asset), amount.Big())
	if _, ok := types.IntFromBig(sum); !ok {
		return runtimeErr(ErrArithmeticOverflow, "%s spent by %s", asset, p)
	}
	m.set(p, asset, sum)
	return nil
}

func (m *AssetMap) set(p types.Principal, asset AssetIdentifier, amount *big.Int) {
	assets, ok := m.spent[p]
	if !ok {
		assets = make(map[AssetIdentifier]*big.Int)
		m.spent[p] = assets
	}
	assets[asset] = amount
}

// CommitOther merges other into m. Either every transfer is merged or,
// on overflow, m is left untouched.
func (m *AssetMap) CommitOther(other *AssetMap) error {
	type pending struct {
		p      types.Principal
		asset  AssetIdentifier
		amount *big.Int
	}
	var merged []pending
	for p, assets := range other.spent {
		for asset, amount := range assets {
			sum := new(big.Int).Add(m.current(p, asset), amount)
			if _, ok := types.IntFromBig(sum); !ok {
				return runtimeErr(ErrArithmeticOverflow, "%s spent by %s", asset, p)
			}
			merged = append(merged, pending{p: p, asset: asset, amount: sum})
		}
	}
	for _, entry := range merged {
		m.set(entry.p, entry.asset, entry.amount)
	}
	return nil
}

// ToTable returns the spent amounts per principal, assets in name order.
func (m *AssetMap) ToTable() map[types.Principal][]AssetAmount {
	table := make(map[types.Principal][]AssetAmount, len(m.spent))
	for p, assets := range m.spent {
		rows := make([]AssetAmount, 0, len(assets))
		for asset, amount := range assets {
			i, _ := types.IntFromBig(amount)
			rows = append(rows, AssetAmount{Asset: asset, Amount: i})
		}
		sort.Slice(rows, func(i, j int) bool {
			return rows[i].Asset.String() < rows[j].Asset.String()
		})
		table[p] = rows
	}
	return table
}

// Len returns the number of principals that spent something.
func (m *AssetMap) Len() int {
	return len(m.spent)
}

func (m *AssetMap) String() string {
	table := m.ToTable()
	principals := make([]types.Principal, 0, len(table))
	for p := range table {
		principals = append(principals, p)
	}
	sort.Slice(principals, func(i, j int) bool {
		return principals[i].String() < principals[j].String()
	})

	var sb strings.Builder
	sb.WriteString("[")
	for _, p := range principals {
		for _, row := range table[p] {
			fmt.Fprintf(&sb, "%s spent %s %s\n", p, row.Amount, row.Asset)
		}
	}
	sb.WriteString("]")
	return sb.String()
}
