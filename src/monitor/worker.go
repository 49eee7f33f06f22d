package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mosaicnetworks/warden/src/blockchain"
	"github.com/mosaicnetworks/warden/src/validator"
	"github.com/sirupsen/logrus"
)

// Config ...
type Config struct {
	// NodeID identifies the node towards the collector. It is the account id
	// of the node.
	NodeID string

	// Interval between two cycles.
	Interval time.Duration

	// Addr is the collector URL. Reports are not pushed when empty.
	Addr string

	// File is the path of the report file. No file is written when empty.
	File string

	// RequestTimeout bounds every request sent to the engine and every push.
	RequestTimeout time.Duration
}

// Worker periodically collects the node status from the block engine.
type Worker struct {
	conf   Config
	sender *blockchain.RequestSender

	// Validator, when set, decides the role reported for the node.
	Validator validator.Predicate

	metrics *Metrics
	pusher  *Pusher

	mu     sync.Mutex
	status Status

	logger *logrus.Entry
}

// NewWorker ...
func NewWorker(conf Config,
	initial Status,
	sender *blockchain.RequestSender,
	metrics *Metrics,
	logger *logrus.Entry) *Worker {

	w := &Worker{
		conf:    conf,
		sender:  sender,
		metrics: metrics,
		status:  initial,
		logger:  logger,
	}

	if conf.Addr != "" {
		w.pusher = NewPusher(conf.Addr, conf.RequestTimeout, logger)
	}

	return w
}

// Snapshot returns a copy of the last collected status.
func (w *Worker) Snapshot() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Run collects the status every interval. It returns nil when the engine
// channel is closed and ctx.Err() when ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.fetchNetwork(ctx); err != nil {
		return w.exit(ctx, err)
	}

	ticker := time.NewTicker(w.conf.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Cycle(ctx); err != nil {
				return w.exit(ctx, err)
			}
		}
	}
}

func (w *Worker) exit(ctx context.Context, err error) error {
	if errors.Is(err, blockchain.ErrChannelClosed) {
		w.logger.Info("Block channel closed, monitor exiting")
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (w *Worker) request(ctx context.Context, msg blockchain.Message) (blockchain.Message, error) {
	if w.conf.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.conf.RequestTimeout)
		defer cancel()
	}
	return w.sender.Request(ctx, msg)
}

func (w *Worker) fetchNetwork(ctx context.Context) error {
	msg, err := w.request(ctx, blockchain.GetNetworkIDRequest{})
	if err != nil {
		return err
	}

	res, ok := msg.(blockchain.GetNetworkIDResponse)
	if !ok {
		w.logger.WithField("reply", msg).Warn("Unexpected reply to network id request")
		return nil
	}

	w.mu.Lock()
	w.status.NwConfig.Name = res.Name
	w.mu.Unlock()

	return nil
}

// Cycle runs a single collection cycle. Only a closed engine channel or a
// cancelled context make it fail. Other problems are logged.
func (w *Worker) Cycle(ctx context.Context) error {
	if err := w.collect(ctx); err != nil {
		if errors.Is(err, blockchain.ErrChannelClosed) || ctx.Err() != nil {
			return err
		}
		w.logger.WithError(err).Warn("Monitor cycle skipped")
		return nil
	}

	snapshot := w.Snapshot()

	if w.metrics != nil {
		w.metrics.observe(&snapshot)
		w.metrics.Cycles.Inc()
	}

	if w.pusher != nil {
		report := Report{NodeID: w.conf.NodeID, Data: snapshot}
		if err := w.pusher.Push(ctx, report); err != nil {
			w.logger.WithError(err).Warn("Pushing status to collector")
			if w.metrics != nil {
				w.metrics.PushFailures.Inc()
			}
		}
	}

	if w.conf.File != "" {
		if err := saveReport(w.conf.File, &snapshot, w.conf.NodeID); err != nil {
			w.logger.WithError(err).Warn("Writing report file")
			if w.metrics != nil {
				w.metrics.ReportFailures.Inc()
			}
		}
	}

	return nil
}

func (w *Worker) collect(ctx context.Context) error {
	msg, err := w.request(ctx, blockchain.GetCoreStatsRequest{})
	if err != nil {
		return err
	}

	stats, ok := msg.(blockchain.GetCoreStatsResponse)
	if !ok {
		w.logger.WithField("reply", msg).Warn("Unexpected reply to core stats request")
	} else {
		w.mu.Lock()
		w.status.applyStats(stats)
		w.mu.Unlock()
	}

	msg, err = w.request(ctx, blockchain.GetSeedRequest{})
	if err != nil {
		return err
	}

	if seed, ok := msg.(blockchain.GetSeedResponse); ok {
		w.mu.Lock()
		w.status.Seed = seed.Seed
		w.mu.Unlock()
	} else {
		w.logger.WithField("reply", msg).Warn("Unexpected reply to seed request")
	}

	if w.Validator != nil {
		role := RoleOrdinary
		ok, err := w.Validator.IsValidator(w.conf.NodeID)
		if err != nil {
			w.logger.WithError(err).Debug("Evaluating node role")
		} else if ok {
			role = RoleValidator
		}
		w.mu.Lock()
		w.status.Role = role
		w.mu.Unlock()
	}

	return nil
}
