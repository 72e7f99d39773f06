package governor

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var proposalArgs = abi.Arguments{
	{Type: mustType("address[]")},
	{Type: mustType("uint256[]")},
	{Type: mustType("bytes[]")},
	{Type: mustType("bytes32")},
}

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

// HashDescription is keccak256 of the description text
func HashDescription(description string) common.Hash {
	return crypto.Keccak256Hash([]byte(description))
}

// HashProposal derives the proposal id:
// keccak256(abi.encode(targets, values, calldatas, descriptionHash)).
// Values outside uint256 wrap; callers check them with models.CheckValues.
func HashProposal(targets []common.Address, values []*big.Int, calldatas [][]byte, descriptionHash common.Hash) common.Hash {
	vals := make([]*big.Int, len(values))
	for i, v := range values {
		vals[i] = v
		if v == nil {
			vals[i] = new(big.Int)
		}
	}
	datas := make([][]byte, len(calldatas))
	for i, d := range calldatas {
		datas[i] = d
		if d == nil {
			datas[i] = []byte{}
		}
	}
	if targets == nil {
		targets = []common.Address{}
	}
	encoded, err := proposalArgs.Pack(targets, vals, datas, [32]byte(descriptionHash))
	if err != nil {
		panic(err)
	}
	return crypto.Keccak256Hash(encoded)
}

// timelockSalt is the governor address, left aligned, xor the description hash
func timelockSalt(governor common.Address, descriptionHash common.Hash) common.Hash {
	salt := descriptionHash
	for i, b := range governor {
		salt[i] ^= b
	}
	return salt
}
