package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/mosaicnetworks/warden/src/blockchain"
	"github.com/mosaicnetworks/warden/src/common"
	"github.com/sirupsen/logrus"
)

// Outcome is the answer of the resolver.
type Outcome uint32

const (
	// Unestablished means the service account does not exist yet.
	Unestablished Outcome = iota
	// Established means the service account exists.
	Established
)

// String ...
func (o Outcome) String() string {
	switch o {
	case Established:
		return "Established"
	case Unestablished:
		return "Unestablished"
	default:
		return "Unknown"
	}
}

// SubscriberID is the id of the subscription used while waiting for the
// service account.
const SubscriberID = "bootstrap"

// ErrServiceAccountMissing is returned when blocks keep being committed without
// the service account appearing.
var ErrServiceAccountMissing = errors.New("service account still missing after genesis blocks")

// Resolve asks the engine whether the service account exists.
func Resolve(ctx context.Context, sender *blockchain.RequestSender) (Outcome, error) {
	msg, err := sender.Request(ctx, blockchain.GetAccountRequest{ID: blockchain.ServiceAccountID})
	if err != nil {
		return Unestablished, fmt.Errorf("resolving service account: %w", err)
	}

	switch m := msg.(type) {
	case blockchain.GetAccountResponse:
		return Established, nil
	case blockchain.Exception:
		if m.Err.Kind == common.ResourceNotFound {
			return Unestablished, nil
		}
		return Unestablished, fmt.Errorf("resolving service account: %w", m.Err)
	default:
		return Unestablished, fmt.Errorf("resolving service account: unexpected reply %T", msg)
	}
}

// WaitForServiceAccount blocks until a committed block leaves the service
// account in place. Blocks committed before the subscription count as well.
// It gives up with ErrServiceAccountMissing after maxBlocks blocks without the
// account. A non positive maxBlocks waits forever.
func WaitForServiceAccount(ctx context.Context,
	sender *blockchain.RequestSender,
	maxBlocks int,
	logger *logrus.Entry) error {

	recv, err := sender.Send(ctx, blockchain.SubscribeRequest{
		ID:     SubscriberID,
		Events: blockchain.EventBlock,
	})
	if err != nil {
		return fmt.Errorf("subscribing to blocks: %w", err)
	}

	defer func() {
		if _, err := sender.Send(ctx, blockchain.UnsubscribeRequest{
			ID:     SubscriberID,
			Events: blockchain.EventBlock,
		}); err != nil {
			logger.WithError(err).Debug("Unsubscribe failed")
		}
	}()

	seen := 0

	check := func(height uint64) (bool, error) {
		outcome, err := Resolve(ctx, sender)
		if err != nil {
			return false, err
		}

		if outcome == Established {
			logger.WithField("height", height).Info("Service account found")
			return true, nil
		}

		seen++
		logger.WithFields(logrus.Fields{
			"height": height,
			"seen":   seen,
		}).Warn("Block committed without service account")

		if maxBlocks > 0 && seen >= maxBlocks {
			return false, ErrServiceAccountMissing
		}

		return false, nil
	}

	msg, err := sender.Request(ctx, blockchain.GetCoreStatsRequest{})
	if err != nil {
		return fmt.Errorf("reading core stats: %w", err)
	}
	if stats, ok := msg.(blockchain.GetCoreStatsResponse); ok && stats.LastBlock != nil {
		done, err := check(stats.LastBlock.Data.Height)
		if err != nil || done {
			return err
		}
	}

	for {
		msg, err := recv.Recv(ctx)
		if err != nil {
			return fmt.Errorf("waiting for service account: %w", err)
		}

		block, ok := msg.(blockchain.GetBlockResponse)
		if !ok {
			logger.WithField("type", fmt.Sprintf("%T", msg)).Debug("Ignoring message")
			continue
		}

		done, err := check(block.Block.Data.Height)
		if err != nil || done {
			return err
		}
	}
}

// LoadSettingsFromService reads the network settings written by the service
// contract.
func LoadSettingsFromService(ctx context.Context, sender *blockchain.RequestSender) (blockchain.Settings, error) {
	var settings blockchain.Settings

	msg, err := sender.Request(ctx, blockchain.GetAccountRequest{
		ID:   blockchain.ServiceAccountID,
		Data: []string{blockchain.SettingsKey},
	})
	if err != nil {
		return settings, fmt.Errorf("loading settings from service: %w", err)
	}

	switch m := msg.(type) {
	case blockchain.GetAccountResponse:
		if len(m.Data) == 0 || m.Data[0] == nil {
			return settings, fmt.Errorf("loading settings from service: %s not set", blockchain.SettingsKey)
		}
		if err := settings.Unmarshal(m.Data[0]); err != nil {
			return settings, fmt.Errorf("loading settings from service: %w", err)
		}
		return settings, nil
	case blockchain.Exception:
		return settings, fmt.Errorf("loading settings from service: %w", m.Err)
	default:
		return settings, fmt.Errorf("loading settings from service: unexpected reply %T", msg)
	}
}
