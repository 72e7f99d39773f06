package models

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Call is one (target, value, calldata) triple of a batch
type Call struct {
	Target common.Address `json:"target"`
	Value  *big.Int       `json:"value"`
	Data   hexutil.Bytes  `json:"data"`
}

// CheckValues rejects values that would wrap when packed as uint256. A nil
// value reads as zero.
func CheckValues(values []*big.Int) error {
	for i, v := range values {
		if v != nil && (v.Sign() < 0 || v.BitLen() > 256) {
			return fmt.Errorf("%w: value %d is %s", ErrValueOutOfRange, i, v)
		}
	}
	return nil
}

// CheckCallValues is CheckValues over the values of calls
func CheckCallValues(calls []Call) error {
	values := make([]*big.Int, len(calls))
	for i, c := range calls {
		values[i] = c.Value
	}
	return CheckValues(values)
}

// OperationState is the timelock view of an operation
type OperationState uint8

const (
	OperationUnset OperationState = iota
	OperationWaiting
	OperationReady
	OperationDone
)

func (s OperationState) String() string {
	switch s {
	case OperationUnset:
		return "Unset"
	case OperationWaiting:
		return "Waiting"
	case OperationReady:
		return "Ready"
	case OperationDone:
		return "Done"
	}
	return fmt.Sprintf("OperationState(%d)", uint8(s))
}

func (s OperationState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Pending is true for Waiting and Ready
func (s OperationState) Pending() bool {
	return s == OperationWaiting || s == OperationReady
}

// Operation is a scheduled timelock batch
type Operation struct {
	ID          common.Hash `json:"id"`
	Calls       []Call      `json:"calls"`
	Predecessor common.Hash `json:"predecessor"`
	Salt        common.Hash `json:"salt"`
	ReadyAt     time.Time   `json:"ready_at"`
	Done        bool        `json:"done"`
}

// StateAt evaluates the operation state against the clock
func (o *Operation) StateAt(now time.Time) OperationState {
	if o == nil {
		return OperationUnset
	}
	if o.Done {
		return OperationDone
	}
	if now.Before(o.ReadyAt) {
		return OperationWaiting
	}
	return OperationReady
}
