package chain_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"governance-project/chain"
	"governance-project/db"
)

var genesis = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newChain(t *testing.T) (*chain.Chain, db.Store) {
	t.Helper()
	store, err := db.NewMemLevelDB()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	c, err := chain.New(store, genesis, 12*time.Second, nil)
	require.NoError(t, err)
	return c, store
}

func TestMineAdvancesHead(t *testing.T) {
	c, _ := newChain(t)
	assert.Equal(t, uint64(0), c.Head().Number)

	head, err := c.Mine(3)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), head.Number)
	assert.Equal(t, genesis.Add(36*time.Second), head.Time)

	head, err = c.IncreaseTime(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), head.Number)
	assert.Equal(t, genesis.Add(36*time.Second+time.Hour), head.Time)

	_, err = c.MineAt(genesis)
	assert.ErrorIs(t, err, chain.ErrTimeNotMonotonic)
}

func TestMineRejectsOverflow(t *testing.T) {
	c, _ := newChain(t)
	before, err := c.Mine(5)
	require.NoError(t, err)

	_, err = c.Mine(math.MaxUint64)
	assert.ErrorIs(t, err, chain.ErrClockOverflow)

	// fits the block number but not the clock
	_, err = c.Mine(uint64(math.MaxInt64/int64(12*time.Second)) + 1)
	assert.ErrorIs(t, err, chain.ErrClockOverflow)

	assert.Equal(t, before, c.Head())
	head, err := c.Mine(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), head.Number)
}

func TestHeadSurvivesReopen(t *testing.T) {
	c, store := newChain(t)
	_, err := c.Mine(7)
	require.NoError(t, err)

	reopened, err := chain.New(store, time.Now(), 12*time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, c.Head(), reopened.Head())
}

func TestTransactCommitsOrDiscards(t *testing.T) {
	c, store := newChain(t)
	ctx := context.Background()

	err := c.Transact(ctx, func(ctx context.Context) error {
		return db.TxnFromContext(ctx).Put([]byte("a"), []byte("1"))
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = c.Transact(ctx, func(ctx context.Context) error {
		require.NoError(t, db.TxnFromContext(ctx).Put([]byte("b"), []byte("2")))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	v, err := store.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, "1", string(v))
	_, err = store.Get([]byte("b"))
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestNestedTransactJoinsOuter(t *testing.T) {
	c, store := newChain(t)

	err := c.Transact(context.Background(), func(ctx context.Context) error {
		outer := db.TxnFromContext(ctx)
		return c.Transact(ctx, func(ctx context.Context) error {
			assert.Same(t, outer, db.TxnFromContext(ctx))
			return db.TxnFromContext(ctx).Put([]byte("nested"), []byte("ok"))
		})
	})
	require.NoError(t, err)

	_, err = store.Get([]byte("nested"))
	assert.NoError(t, err)
}

func TestViewDiscardsWrites(t *testing.T) {
	c, store := newChain(t)
	err := c.View(context.Background(), func(ctx context.Context) error {
		return db.TxnFromContext(ctx).Put([]byte("v"), []byte("x"))
	})
	require.NoError(t, err)
	_, err = store.Get([]byte("v"))
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestProducerMinesAndStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	c, _ := newChain(t)
	p := chain.NewProducer(c, 5*time.Millisecond)
	p.Start()
	require.Eventually(t, func() bool {
		return c.Head().Number >= 2
	}, time.Second, 5*time.Millisecond)
	p.Stop()
	p.Stop()
}

func TestProducerStopWithoutStart(t *testing.T) {
	defer goleak.VerifyNone(t)

	c, _ := newChain(t)
	p := chain.NewProducer(c, time.Millisecond)
	p.Stop()
	assert.Equal(t, uint64(0), c.Head().Number)
}

func TestProducerConcurrentStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	c, _ := newChain(t)
	p := chain.NewProducer(c, time.Millisecond)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.Start()
	}()
	go func() {
		defer wg.Done()
		p.Stop()
	}()
	wg.Wait()
	p.Stop()
}
