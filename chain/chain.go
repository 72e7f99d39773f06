package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"governance-project/db"
	"governance-project/logger"
	"governance-project/metrics"
)

// ErrTimeNotMonotonic is returned when a block would not move time forward
var ErrTimeNotMonotonic = errors.New("block time must increase")

// ErrClockOverflow is returned when advancing would wrap the block number or time
var ErrClockOverflow = errors.New("block clock overflow")

const headKey = "chain:head"

// Block is a position in the global order
type Block struct {
	Number uint64    `json:"number"`
	Time   time.Time `json:"time"`
}

// Chain is the serial execution substrate. Every state change runs inside
// Transact, one at a time, against an overlay that is committed atomically
// or discarded. The head only moves under the same lock, so a transaction
// observes a single block.
type Chain struct {
	mu        sync.Mutex
	store     db.Store
	blockTime time.Duration
	head      atomic.Pointer[Block]
	metrics   *metrics.Metrics
}

// New loads the chain head from store, creating the genesis block at genesisTime if absent
func New(store db.Store, genesisTime time.Time, blockTime time.Duration, m *metrics.Metrics) (*Chain, error) {
	c := &Chain{store: store, blockTime: blockTime, metrics: m}

	data, err := store.Get([]byte(headKey))
	switch {
	case errors.Is(err, db.ErrNotFound):
		genesis := Block{Number: 0, Time: genesisTime.UTC().Truncate(time.Second)}
		if err := c.setHead(genesis); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		var head Block
		if err := json.Unmarshal(data, &head); err != nil {
			return nil, err
		}
		c.head.Store(&head)
		c.metrics.ChainHeight(head.Number)
	}
	return c, nil
}

// Head returns the current block
func (c *Chain) Head() Block {
	return *c.head.Load()
}

// BlockTime is the time added per mined block
func (c *Chain) BlockTime() time.Duration {
	return c.blockTime
}

// Transact runs fn as one atomic state transition. A call made with a
// context that already carries a transaction joins it instead.
func (c *Chain) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	if db.TxnFromContext(ctx) != nil {
		return fn(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	txn := db.NewTxn(c.store)
	if err := fn(db.WithTxn(ctx, txn)); err != nil {
		return err
	}
	return txn.Commit()
}

// View runs fn against a consistent snapshot and discards any writes
func (c *Chain) View(ctx context.Context, fn func(ctx context.Context) error) error {
	if db.TxnFromContext(ctx) != nil {
		return fn(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return fn(db.WithTxn(ctx, db.NewTxn(c.store)))
}

// Mine appends n blocks, each blockTime apart
func (c *Chain) Mine(n uint64) (Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	head := c.Head()
	if head.Number+n < head.Number {
		return Block{}, fmt.Errorf("%w: %d blocks past %d", ErrClockOverflow, n, head.Number)
	}
	if c.blockTime > 0 && n > uint64(math.MaxInt64/int64(c.blockTime)) {
		return Block{}, fmt.Errorf("%w: %d blocks of %s", ErrClockOverflow, n, c.blockTime)
	}
	next := head.Time.Add(time.Duration(n) * c.blockTime)
	if next.Before(head.Time) {
		return Block{}, fmt.Errorf("%w: %d blocks of %s", ErrClockOverflow, n, c.blockTime)
	}
	head.Number += n
	head.Time = next
	if err := c.setHead(head); err != nil {
		return Block{}, err
	}
	return head, nil
}

// MineAt appends one block stamped with t, which must be later than the head
func (c *Chain) MineAt(t time.Time) (Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	head := c.Head()
	t = t.UTC()
	if !t.After(head.Time) {
		return Block{}, ErrTimeNotMonotonic
	}
	if head.Number == math.MaxUint64 {
		return Block{}, fmt.Errorf("%w: block %d", ErrClockOverflow, head.Number)
	}
	head.Number++
	head.Time = t
	if err := c.setHead(head); err != nil {
		return Block{}, err
	}
	return head, nil
}

// IncreaseTime appends one block d after the head
func (c *Chain) IncreaseTime(d time.Duration) (Block, error) {
	return c.MineAt(c.Head().Time.Add(d))
}

func (c *Chain) setHead(head Block) error {
	data, err := json.Marshal(head)
	if err != nil {
		return err
	}
	if err := c.store.Put([]byte(headKey), data); err != nil {
		return err
	}
	c.head.Store(&head)
	c.metrics.ChainHeight(head.Number)
	logger.Logger.Debug("block mined",
		zap.Uint64("number", head.Number), zap.Time("time", head.Time))
	return nil
}
