package governor

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"governance-project/target"
)

const governorABIJSON = `[
	{"type":"function","name":"setVotingDelay","stateMutability":"nonpayable","inputs":[{"name":"newVotingDelay","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"setVotingPeriod","stateMutability":"nonpayable","inputs":[{"name":"newVotingPeriod","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"setProposalThreshold","stateMutability":"nonpayable","inputs":[{"name":"newProposalThreshold","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"updateQuorumNumerator","stateMutability":"nonpayable","inputs":[{"name":"newQuorumNumerator","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"setQueueGracePeriod","stateMutability":"nonpayable","inputs":[{"name":"newGracePeriod","type":"uint256"}],"outputs":[]}
]`

// ABI describes the governance-only setters reachable from an executed proposal
var ABI = target.MustParseABI(governorABIJSON)

var _ target.Target = (*Governor)(nil)

// EncodeSetting builds calldata for one of the uint256 setters in ABI
func EncodeSetting(method string, value *big.Int) ([]byte, error) {
	return ABI.Pack(method, value)
}

// EncodeUpdateQuorumNumerator builds calldata for updateQuorumNumerator
func EncodeUpdateQuorumNumerator(numerator uint64) []byte {
	data, err := EncodeSetting("updateQuorumNumerator", new(big.Int).SetUint64(numerator))
	if err != nil {
		panic(err)
	}
	return data
}

// Call dispatches calldata addressed to the governor
func (g *Governor) Call(ctx context.Context, caller common.Address, value *big.Int, data []byte) error {
	if err := target.RequireNoValue(value); err != nil {
		return err
	}
	name, args, err := target.Decode(ABI, data)
	if err != nil {
		return err
	}
	arg := args[0].(*big.Int)
	if name == "setProposalThreshold" {
		return g.SetProposalThreshold(ctx, caller, arg)
	}
	if !arg.IsUint64() {
		return fmt.Errorf("%w: %s argument out of range", target.ErrInvalidCalldata, name)
	}
	n := arg.Uint64()
	switch name {
	case "setVotingDelay":
		return g.SetVotingDelay(ctx, caller, n)
	case "setVotingPeriod":
		return g.SetVotingPeriod(ctx, caller, n)
	case "updateQuorumNumerator":
		return g.UpdateQuorumNumerator(ctx, caller, n)
	case "setQueueGracePeriod":
		return g.SetQueueGracePeriod(ctx, caller, n)
	}
	return fmt.Errorf("%w: %s", target.ErrInvalidCalldata, name)
}
