package repository_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"governance-project/db"
	"governance-project/models"
	"governance-project/repository"
)

func txnContext(t *testing.T) (context.Context, *db.Txn) {
	t.Helper()
	store, err := db.NewMemLevelDB()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	txn := db.NewTxn(store)
	return db.WithTxn(context.Background(), txn), txn
}

func TestRequiresTransaction(t *testing.T) {
	repo := repository.NewRepository()
	_, err := repo.GetProposal(context.Background(), common.Hash{})
	assert.ErrorIs(t, err, repository.ErrNoTxn)
}

func TestProposalRoundTrip(t *testing.T) {
	ctx, _ := txnContext(t)
	repo := repository.NewRepository()
	id := common.HexToHash("0x01")

	got, err := repo.GetProposal(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)

	p := &models.Proposal{
		ID:        id,
		Targets:   []common.Address{common.HexToAddress("0xb0")},
		Values:    []*big.Int{big.NewInt(0)},
		Calldatas: []hexutil.Bytes{{0x01, 0x02}},
		Snapshot:  3,
		Deadline:  8,
		Tally:     models.NewTally(),
		Eta:       time.Unix(500, 0).UTC(),
	}
	p.Tally.Add(models.SupportFor, big.NewInt(9))
	require.NoError(t, repo.PutProposal(ctx, p))

	got, err = repo.GetProposal(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, uint64(8), got.Deadline)
	assert.Equal(t, int64(9), got.Tally.For.Int64())
	assert.True(t, got.Eta.Equal(p.Eta))
	assert.Equal(t, []byte{0x01, 0x02}, []byte(got.Calldatas[0]))

	all, err := repo.GetAllProposals(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestReceiptsScopedByProposal(t *testing.T) {
	ctx, _ := txnContext(t)
	repo := repository.NewRepository()
	p1, p2 := common.HexToHash("0x01"), common.HexToHash("0x02")
	voter := common.HexToAddress("0xaa")

	require.NoError(t, repo.PutReceipt(ctx, p1, &models.VoteReceipt{Voter: voter, HasVoted: true, Weight: big.NewInt(1)}))
	require.NoError(t, repo.PutReceipt(ctx, p2, &models.VoteReceipt{Voter: voter, HasVoted: true, Weight: big.NewInt(2)}))

	receipts, err := repo.GetReceipts(ctx, p1)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, int64(1), receipts[0].Weight.Int64())

	require.NoError(t, repo.DeleteReceipts(ctx, p1))
	r, err := repo.GetReceipt(ctx, p1, voter)
	require.NoError(t, err)
	assert.Nil(t, r)
	r, err = repo.GetReceipt(ctx, p2, voter)
	require.NoError(t, err)
	assert.NotNil(t, r)
}

func TestOperationDelete(t *testing.T) {
	ctx, _ := txnContext(t)
	repo := repository.NewRepository()
	op := &models.Operation{ID: common.HexToHash("0x0f"), ReadyAt: time.Unix(10, 0).UTC()}
	require.NoError(t, repo.PutOperation(ctx, op))

	got, err := repo.GetOperation(ctx, op.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	require.NoError(t, repo.DeleteOperation(ctx, op.ID))
	got, err = repo.GetOperation(ctx, op.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDefaultsForMissingRecords(t *testing.T) {
	ctx, _ := txnContext(t)
	repo := repository.NewRepository()

	table, err := repo.GetRoleTable(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), table.Version)

	account, err := repo.GetAccount(ctx, common.HexToAddress("0x01"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), account.Balance.Int64())

	supply, err := repo.GetSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), supply.Latest().Int64())

	var params struct{ X int }
	found, err := repo.GetParams(ctx, "missing", &params)
	require.NoError(t, err)
	assert.False(t, found)
}
