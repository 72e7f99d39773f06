package ledger_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"governance-project/chain"
	"governance-project/db"
	"governance-project/ledger"
	"governance-project/models"
	"governance-project/repository"
)

var (
	minter = common.HexToAddress("0x0100")
	alice  = common.HexToAddress("0xa11ce")
	bob    = common.HexToAddress("0xb0b")
)

func newToken(t *testing.T) (*ledger.Token, *chain.Chain) {
	t.Helper()
	store, err := db.NewMemLevelDB()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	c, err := chain.New(store, time.Unix(0, 0), 12*time.Second, nil)
	require.NoError(t, err)
	token := ledger.NewToken(c, repository.NewRepository())
	require.NoError(t, token.Initialize(context.Background(), minter))
	return token, c
}

func mine(t *testing.T, c *chain.Chain, n uint64) {
	t.Helper()
	_, err := c.Mine(n)
	require.NoError(t, err)
}

func TestMintRequiresOwner(t *testing.T) {
	token, _ := newToken(t)
	ctx := context.Background()
	err := token.Mint(ctx, alice, alice, big.NewInt(1))
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	assert.ErrorIs(t, token.Mint(ctx, minter, alice, big.NewInt(0)), ledger.ErrInvalidAmount)
	assert.ErrorIs(t, token.Initialize(ctx, alice), ledger.ErrAlreadyInitialized)
}

func TestVotingPowerFollowsDelegation(t *testing.T) {
	token, c := newToken(t)
	ctx := context.Background()

	mine(t, c, 1)
	require.NoError(t, token.Mint(ctx, minter, alice, big.NewInt(100)))

	votes, err := token.GetVotes(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(0), votes.Int64(), "undelegated balance carries no votes")

	require.NoError(t, token.Delegate(ctx, alice, alice))
	votes, err = token.GetVotes(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(100), votes.Int64())

	mine(t, c, 1)
	require.NoError(t, token.Delegate(ctx, alice, bob))
	votes, err = token.GetVotes(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(100), votes.Int64())
	votes, err = token.GetVotes(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(0), votes.Int64())

	delegate, err := token.Delegates(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, bob, delegate)
}

func TestPastVotesAreImmutable(t *testing.T) {
	token, c := newToken(t)
	ctx := context.Background()

	mine(t, c, 1)
	require.NoError(t, token.Mint(ctx, minter, alice, big.NewInt(100)))
	require.NoError(t, token.Delegate(ctx, alice, alice))
	mine(t, c, 1) // block 2

	power, err := token.PowerOf(ctx, alice, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(100), power.Int64())

	// a transfer during block 2 does not rewrite the start of block 2
	require.NoError(t, token.Transfer(ctx, alice, bob, big.NewInt(60)))
	power, err = token.PowerOf(ctx, alice, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(100), power.Int64())

	mine(t, c, 1)
	power, err = token.PowerOf(ctx, alice, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(40), power.Int64())

	supply, err := token.TotalSupplyAt(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), supply.Int64())
	supply, err = token.TotalSupplyAt(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(100), supply.Int64())

	_, err = token.PowerOf(ctx, alice, 99)
	assert.ErrorIs(t, err, ledger.ErrFutureLookup)
	assert.Equal(t, uint64(3), token.CurrentPoint(ctx))
}

func TestTransferInsufficientBalance(t *testing.T) {
	token, _ := newToken(t)
	ctx := context.Background()
	require.NoError(t, token.Mint(ctx, minter, alice, big.NewInt(10)))

	err := token.Transfer(ctx, alice, bob, big.NewInt(11))
	assert.ErrorIs(t, err, models.ErrInsufficientBalance)

	require.NoError(t, token.Transfer(ctx, alice, bob, big.NewInt(4)))
	balance, err := token.BalanceOf(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(4), balance.Int64())
	total, err := token.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), total.Int64())
}
