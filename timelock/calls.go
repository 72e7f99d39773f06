package timelock

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"governance-project/models"
	"governance-project/target"
)

const timelockABIJSON = `[
	{"type":"function","name":"updateDelay","stateMutability":"nonpayable","inputs":[{"name":"newDelay","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"grantRole","stateMutability":"nonpayable","inputs":[{"name":"role","type":"bytes32"},{"name":"account","type":"address"}],"outputs":[]},
	{"type":"function","name":"revokeRole","stateMutability":"nonpayable","inputs":[{"name":"role","type":"bytes32"},{"name":"account","type":"address"}],"outputs":[]}
]`

// ABI describes the timelock calls reachable from an executed batch
var ABI = target.MustParseABI(timelockABIJSON)

// maxDelaySeconds is the longest delay a time.Duration can hold
const maxDelaySeconds = math.MaxInt64 / int64(time.Second)

var _ target.Target = (*Timelock)(nil)

// EncodeUpdateDelay builds calldata for updateDelay, in whole seconds
func EncodeUpdateDelay(delay time.Duration) []byte {
	data, err := ABI.Pack("updateDelay", big.NewInt(int64(delay/time.Second)))
	if err != nil {
		panic(err)
	}
	return data
}

// EncodeGrantRole builds calldata for grantRole
func EncodeGrantRole(role models.Role, account common.Address) []byte {
	data, err := ABI.Pack("grantRole", [32]byte(role.ID()), account)
	if err != nil {
		panic(err)
	}
	return data
}

// EncodeRevokeRole builds calldata for revokeRole
func EncodeRevokeRole(role models.Role, account common.Address) []byte {
	data, err := ABI.Pack("revokeRole", [32]byte(role.ID()), account)
	if err != nil {
		panic(err)
	}
	return data
}

// Call dispatches calldata addressed to the timelock itself
func (t *Timelock) Call(ctx context.Context, caller common.Address, value *big.Int, data []byte) error {
	if err := target.RequireNoValue(value); err != nil {
		return err
	}
	name, args, err := target.Decode(ABI, data)
	if err != nil {
		return err
	}
	switch name {
	case "updateDelay":
		seconds := args[0].(*big.Int)
		if !seconds.IsInt64() || seconds.Int64() > maxDelaySeconds {
			return fmt.Errorf("%w: delay of %s seconds out of range", target.ErrInvalidCalldata, seconds)
		}
		return t.UpdateDelay(ctx, caller, time.Duration(seconds.Int64())*time.Second)
	case "grantRole", "revokeRole":
		role, ok := models.RoleByID(common.Hash(args[0].([32]byte)))
		if !ok {
			return ErrUnknownRole
		}
		account := args[1].(common.Address)
		if name == "grantRole" {
			return t.GrantRole(ctx, caller, role, account)
		}
		return t.RevokeRole(ctx, caller, role, account)
	}
	return fmt.Errorf("%w: %s", target.ErrInvalidCalldata, name)
}
