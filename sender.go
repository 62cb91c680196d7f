package oscbridge

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hashicorp/go-metrics"
)

// Sender transmits control values to pre-registered `(host, port,
// address)` targets, immediately and independently of any block timing.
// The same address may be bound to any number of distinct targets;
// sending to it fans out to all of them, best effort.
type Sender struct {
	logger *slog.Logger
	msink  metrics.MetricSink
	labels []metrics.Label

	mu      sync.Mutex
	targets []*sendTarget
	closed  bool
}

type sendTarget struct {
	host    string
	port    int
	address string
	client  *udpClient
}

func (t *sendTarget) is(host string, port int, address string) bool {
	return t.host == host && t.port == port && t.address == address
}

// NewSender returns a Sender with no targets.
func NewSender(opts ...Option) (*Sender, error) {
	cfg := defaultOptions()
	if err := cfg.apply(opts); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return &Sender{
		logger: cfg.logger(),
		msink:  cfg.sink(),
		labels: cfg.metricLabels,
	}, nil
}

// AddTarget registers a `(host, port, address)` destination. An empty
// host means local loopback. Registering the same triple twice fails
// with `ErrDuplicateTarget`.
func (tx *Sender) AddTarget(host string, port int, address string) error {
	if host == "" {
		host = "127.0.0.1"
	}
	if address == "" {
		return fmt.Errorf("%w: empty address", ErrInvalidConfig)
	}

	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.closed {
		return ErrClosed
	}
	for _, t := range tx.targets {
		if t.is(host, port, address) {
			return fmt.Errorf("%w: %s:%d %s", ErrDuplicateTarget, host, port, address)
		}
	}

	client, err := dialTarget(host, port)
	if err != nil {
		return err
	}
	tx.targets = append(tx.targets, &sendTarget{
		host:    host,
		port:    port,
		address: address,
		client:  client,
	})
	tx.logger.Debug("send target registered",
		LabelHost.L(host), LabelPort.L(port), LabelAddress.L(address))
	return nil
}

// DelTarget removes a previously registered destination.
func (tx *Sender) DelTarget(host string, port int, address string) error {
	if host == "" {
		host = "127.0.0.1"
	}

	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.closed {
		return ErrClosed
	}
	for i, t := range tx.targets {
		if t.is(host, port, address) {
			t.client.close()
			tx.targets = append(tx.targets[:i], tx.targets[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s:%d %s", ErrUnknownTarget, host, port, address)
}

// Addresses returns the distinct addresses currently bound to at least
// one target, in registration order.
func (tx *Sender) Addresses() []string {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	seen := make(map[string]struct{}, len(tx.targets))
	var out []string
	for _, t := range tx.targets {
		if _, dup := seen[t.address]; dup {
			continue
		}
		seen[t.address] = struct{}{}
		out = append(out, t.address)
	}
	return out
}

// Send formats and transmits `values` to every target bound to `address`,
// immediately. Values travel as OSC float32. Each target's failure is
// reported independently and never aborts the remaining fan-out; the
// joined errors are returned. Sending to an address with no target fails
// with `ErrUnknownTarget`.
func (tx *Sender) Send(address string, values ...float64) error {
	tx.mu.Lock()
	if tx.closed {
		tx.mu.Unlock()
		return ErrClosed
	}
	var dests []*sendTarget
	for _, t := range tx.targets {
		if t.address == address {
			dests = append(dests, t)
		}
	}
	tx.mu.Unlock()

	if len(dests) == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownTarget, address)
	}

	args := make([]any, len(values))
	for i, v := range values {
		args[i] = float32(v)
	}

	var errs []error
	for _, t := range dests {
		if err := t.client.send(address, args); err != nil {
			tx.msink.IncrCounterWithLabels(MetricTxErrorCount, 1, tx.labels)
			tx.logger.Warn("send failed",
				LabelHost.L(t.host), LabelPort.L(t.port),
				LabelAddress.L(address), LabelError.L(err))
			errs = append(errs, fmt.Errorf("%s:%d %s: %w", t.host, t.port, address, err))
			continue
		}
		tx.msink.IncrCounterWithLabels(MetricTxMessageCount, 1, tx.labels)
	}
	return errors.Join(errs...)
}

// Close releases every target connection. Idempotent.
func (tx *Sender) Close() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.closed {
		return nil
	}
	tx.closed = true
	var errs []error
	for _, t := range tx.targets {
		if err := t.client.close(); err != nil {
			errs = append(errs, err)
		}
	}
	tx.targets = nil
	return errors.Join(errs...)
}
