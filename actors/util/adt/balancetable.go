package adt

import (
	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	cid "github.com/ipfs/go-cid"
	errors "github.com/pkg/errors"
)

// A specialization of a map of addresses to token amounts.
type BalanceTable Map

// Interprets a store as a balance table with root `r`.
func AsBalanceTable(s Store, r cid.Cid) *BalanceTable {
	return &BalanceTable{
		root:  r,
		store: s,
	}
}

// Returns the root cid of the underlying HAMT.
func (t *BalanceTable) Root() cid.Cid {
	return t.root
}

// Gets the balance for a key, which is zero if the key has never been added to.
func (t *BalanceTable) Get(key addr.Address) (abi.TokenAmount, error) {
	var value abi.TokenAmount
	found, err := (*Map)(t).Get(abi.AddrKey(key), &value)
	if err != nil {
		return big.Zero(), err // The errors from Map carry good information, no need to wrap here.
	}
	if !found {
		value = big.Zero()
	}
	return value, nil
}

// Has checks if the balance for a key exists.
func (t *BalanceTable) Has(key addr.Address) (bool, error) {
	var value abi.TokenAmount
	return (*Map)(t).Get(abi.AddrKey(key), &value)
}

// Adds an amount to a balance, creating the entry if it doesn't already exist.
func (t *BalanceTable) AddCreate(key addr.Address, value abi.TokenAmount) error {
	prev, err := t.Get(key)
	if err != nil {
		return err
	}
	sum := big.Add(prev, value)
	if sum.LessThan(big.Zero()) {
		return errors.Errorf("adding %v to balance %v of %v would make it negative", value, prev, key)
	}
	return (*Map)(t).Put(abi.AddrKey(key), &sum)
}

// Subtracts the full requested amount from a balance, failing if the balance
// would become negative. The table is unchanged on failure.
func (t *BalanceTable) MustSubtract(key addr.Address, req abi.TokenAmount) error {
	prev, err := t.Get(key)
	if err != nil {
		return err
	}
	if req.GreaterThan(prev) {
		return errors.Errorf("subtracting %v from balance %v of %v would make it negative", req, prev, key)
	}
	remainder := big.Sub(prev, req)
	return (*Map)(t).Put(abi.AddrKey(key), &remainder)
}

// Returns the total of all balances in the table.
func (t *BalanceTable) Total() (abi.TokenAmount, error) {
	total := big.Zero()
	var cur abi.TokenAmount
	err := (*Map)(t).ForEach(&cur, func(key string) error {
		total = big.Add(total, cur)
		return nil
	})
	return total, err
}
