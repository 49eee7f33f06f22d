// Package tracer logs the throughput of the chain as blocks are committed.
package tracer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mosaicnetworks/warden/src/blockchain"
	"github.com/sirupsen/logrus"
)

// SubscriberID is the id of the tracer subscription.
const SubscriberID = "tracer"

// Tracer accumulates block statistics.
type Tracer struct {
	total    uint64
	lastSeen time.Time
	now      func() time.Time
	logger   *logrus.Entry
}

// New ...
func New(logger *logrus.Entry) *Tracer {
	return &Tracer{
		now:    time.Now,
		logger: logger,
	}
}

// Total is the number of transactions seen so far.
func (t *Tracer) Total() uint64 {
	return t.total
}

// Run subscribes to block events and logs them until the engine channel is
// closed, in which case it returns nil, or ctx is done.
func (t *Tracer) Run(ctx context.Context, sender *blockchain.RequestSender) error {
	recv, err := sender.Send(ctx, blockchain.SubscribeRequest{
		ID:     SubscriberID,
		Events: blockchain.EventBlock,
	})
	if err != nil {
		return t.exit(err)
	}

	t.lastSeen = t.now()

	for {
		msg, err := recv.Recv(ctx)
		if err != nil {
			return t.exit(err)
		}

		block, ok := msg.(blockchain.GetBlockResponse)
		if !ok {
			t.logger.WithField("type", fmt.Sprintf("%T", msg)).Debug("Ignoring message")
			continue
		}

		t.observe(block)
	}
}

func (t *Tracer) exit(err error) error {
	if errors.Is(err, blockchain.ErrChannelClosed) {
		t.logger.Debug("Block channel closed, tracer exiting")
		return nil
	}
	return err
}

func (t *Tracer) observe(block blockchain.GetBlockResponse) {
	now := t.now()
	count := uint64(len(block.Txs))
	t.total += count

	tps := 0.0
	if elapsed := now.Sub(t.lastSeen).Seconds(); elapsed > 0 {
		tps = float64(count) / elapsed
	}
	t.lastSeen = now

	t.logger.WithFields(logrus.Fields{
		"height": block.Block.Data.Height,
		"txs":    count,
		"total":  t.total,
		"tps":    fmt.Sprintf("%.2f", tps),
	}).Info("Block committed")
}
