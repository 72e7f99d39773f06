package timelock

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"governance-project/models"
)

var operationArgs = abi.Arguments{
	{Type: mustType("address[]")},
	{Type: mustType("uint256[]")},
	{Type: mustType("bytes[]")},
	{Type: mustType("bytes32")},
	{Type: mustType("bytes32")},
}

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

// HashOperation derives the id of a single-call operation
func HashOperation(call models.Call, predecessor, salt common.Hash) common.Hash {
	return HashOperationBatch([]models.Call{call}, predecessor, salt)
}

// HashOperationBatch derives an operation id from its calls, predecessor and salt:
// keccak256(abi.encode(targets, values, payloads, predecessor, salt)).
// Values outside uint256 wrap; callers check them with models.CheckCallValues.
func HashOperationBatch(calls []models.Call, predecessor, salt common.Hash) common.Hash {
	targets := make([]common.Address, len(calls))
	values := make([]*big.Int, len(calls))
	payloads := make([][]byte, len(calls))
	for i, c := range calls {
		targets[i] = c.Target
		values[i] = c.Value
		if values[i] == nil {
			values[i] = new(big.Int)
		}
		payloads[i] = c.Data
		if payloads[i] == nil {
			payloads[i] = []byte{}
		}
	}
	encoded, err := operationArgs.Pack(targets, values, payloads, [32]byte(predecessor), [32]byte(salt))
	if err != nil {
		// every argument is built with the exact packed type
		panic(err)
	}
	return crypto.Keccak256Hash(encoded)
}
