package models

import (
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// Checkpoint records a value written during block Point
type Checkpoint struct {
	Point uint64   `json:"point"`
	Value *big.Int `json:"value"`
}

// Trace is an append-only checkpoint history ordered by point
type Trace []Checkpoint

// Push records value at point, overwriting a checkpoint already written at the same point
func (t Trace) Push(point uint64, value *big.Int) Trace {
	v := new(big.Int).Set(value)
	if n := len(t); n > 0 && t[n-1].Point == point {
		t[n-1].Value = v
		return t
	}
	return append(t, Checkpoint{Point: point, Value: v})
}

// Latest returns the most recent value, zero when empty
func (t Trace) Latest() *big.Int {
	if len(t) == 0 {
		return new(big.Int)
	}
	return new(big.Int).Set(t[len(t)-1].Value)
}

// At returns the value in force at the start of block point, that is the
// last checkpoint written strictly before point.
func (t Trace) At(point uint64) *big.Int {
	i := sort.Search(len(t), func(i int) bool { return t[i].Point >= point })
	if i == 0 {
		return new(big.Int)
	}
	return new(big.Int).Set(t[i-1].Value)
}

// Account is a token holder's balance, delegation and voting power history
type Account struct {
	Address  common.Address `json:"address"`
	Balance  *big.Int       `json:"balance"`
	Delegate common.Address `json:"delegate"`
	Votes    Trace          `json:"votes"`
}

func NewAccount(address common.Address) *Account {
	return &Account{Address: address, Balance: new(big.Int)}
}
