package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// consecutiveFailures opens the breaker.
const consecutiveFailures = 3

// Pusher posts reports to the collector. Once the collector failed a few times
// in a row, pushes are refused without a request until the breaker timeout
// elapses.
type Pusher struct {
	addr    string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewPusher ...
func NewPusher(addr string, timeout time.Duration, logger *logrus.Entry) *Pusher {
	settings := gobreaker.Settings{
		Name:        "monitor-push",
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= consecutiveFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Collector breaker changed state")
		},
	}

	return &Pusher{
		addr:    addr,
		client:  &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Push sends the report as JSON.
func (p *Pusher) Push(ctx context.Context, report Report) error {
	body, err := json.Marshal(report)
	if err != nil {
		return err
	}

	_, err = p.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequest(http.MethodPost, p.addr, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req = req.WithContext(ctx)
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("collector replied %s", resp.Status)
		}

		return nil, nil
	})

	return err
}
