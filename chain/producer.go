package chain

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"governance-project/logger"
)

// Producer mines a block every interval, stamped with the wall clock
type Producer struct {
	chain    *Chain
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
	start    sync.Once
	stop     sync.Once
	started  atomic.Bool
}

func NewProducer(c *Chain, interval time.Duration) *Producer {
	return &Producer{
		chain:    c,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func (p *Producer) Start() {
	p.start.Do(func() {
		p.started.Store(true)
		go p.run()
	})
}

// Stop halts the producer and waits for the loop to exit
func (p *Producer) Stop() {
	p.stop.Do(func() {
		close(p.stopCh)
	})
	if p.started.Load() {
		<-p.doneCh
	}
}

func (p *Producer) run() {
	defer close(p.doneCh)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case now := <-ticker.C:
			block, err := p.chain.MineAt(now.Truncate(time.Second))
			if errors.Is(err, ErrTimeNotMonotonic) {
				block, err = p.chain.Mine(1)
			}
			if err != nil {
				logger.Logger.Error("Failed to produce block", zap.Error(err))
				continue
			}
			logger.Logger.Debug("Produced block", zap.Uint64("number", block.Number))
		}
	}
}
