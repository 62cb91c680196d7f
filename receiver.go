package oscbridge

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-metrics"
)

// Receiver listens for OSC control messages on one UDP port and exposes
// the latest value of each registered address to a block-based consumer.
//
// The sampling methods belong to the render context: they never block on
// I/O or administrative changes, never allocate, and advance each slot's
// one-block ramp. The peek methods are side-effect free and can be called
// from anywhere.
type Receiver struct {
	logger *slog.Logger
	msink  metrics.MetricSink
	labels []metrics.Label

	reg    *registry
	ln     *listener
	interp atomic.Bool

	closeOnce sync.Once
	closed    atomic.Bool
}

// NewReceiver binds a UDP listener on `port` and returns a Receiver with
// an empty address registry. Port 0 binds an ephemeral port, see `Port`.
// Binding an occupied port fails with `ErrPortInUse`.
func NewReceiver(port int, opts ...Option) (*Receiver, error) {
	cfg := defaultOptions()
	if err := cfg.apply(opts); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	rx := &Receiver{
		logger: cfg.logger(),
		msink:  cfg.sink(),
		labels: cfg.metricLabels,
	}
	rx.interp.Store(cfg.interpolation)
	rx.reg = newRegistry(rx.logger, rx.msink, rx.labels)

	ln, err := newListener(port, rx.reg.dispatch, &cfg)
	if err != nil {
		return nil, err
	}
	rx.ln = ln

	rx.logger.Info("control receiver listening", LabelPort.L(ln.port()))
	return rx, nil
}

// Port returns the UDP port the receiver is bound to.
func (rx *Receiver) Port() int {
	return rx.ln.port()
}

// AddAddress registers a new control address. `width` is 1 for a scalar
// stream and N for a list-valued address whose messages must carry
// exactly N values; it is fixed until the address is removed. `mul` and
// `add` scale and offset every sampled value.
func (rx *Receiver) AddAddress(path string, width int, mul, add float64) error {
	if rx.closed.Load() {
		return ErrClosed
	}
	return rx.reg.add(path, width, mul, add)
}

// DelAddress removes an address and its slot. Messages already in flight
// for the removed address are dropped; re-adding the address later makes
// it live again for future messages only.
func (rx *Receiver) DelAddress(path string) error {
	if rx.closed.Load() {
		return ErrClosed
	}
	return rx.reg.remove(path)
}

// Addresses returns the registered addresses in insertion order.
func (rx *Receiver) Addresses() []string {
	return rx.reg.addresses()
}

// SetValue updates an address programmatically, with semantics identical
// to a network arrival: last-writer-wins within a block.
func (rx *Receiver) SetValue(path string, values ...float64) error {
	if rx.closed.Load() {
		return ErrClosed
	}
	return rx.reg.setValue(path, values)
}

// SetInterpolation activates or deactivates the one-block linear ramp.
// When deactivated, a new value steps immediately and holds for the whole
// block. Activated by default.
func (rx *Receiver) SetInterpolation(enabled bool) {
	rx.interp.Store(enabled)
}

// Sample fills dst with one render block of the scalar address `path`,
// advancing its ramp. Call it exactly once per block per address, from
// the render context.
func (rx *Receiver) Sample(path string, dst []float64) error {
	slot, has := rx.reg.lookup(path)
	if !has {
		return fmt.Errorf("%w: %s", ErrUnknownAddress, path)
	}
	if slot.width != 1 {
		return fmt.Errorf("%w: %s has width %d, use SampleVector",
			ErrArityMismatch, path, slot.width)
	}
	slot.sampleElement(0, dst, rx.interp.Load())
	return nil
}

// SampleVector fills dst[i] with one render block of element i of the
// list-valued address `path`. len(dst) must equal the address width.
func (rx *Receiver) SampleVector(path string, dst [][]float64) error {
	slot, has := rx.reg.lookup(path)
	if !has {
		return fmt.Errorf("%w: %s", ErrUnknownAddress, path)
	}
	if len(dst) != slot.width {
		return fmt.Errorf("%w: %s has width %d, got %d buffers",
			ErrArityMismatch, path, slot.width, len(dst))
	}
	interp := rx.interp.Load()
	for i := range dst {
		slot.sampleElement(i, dst[i], interp)
	}
	return nil
}

// SampleIndex fills dst with one render block of the element stream at
// flat ordinal `index`: address insertion order x width + element offset.
func (rx *Receiver) SampleIndex(index int, dst []float64) error {
	slot, elem, ok := rx.reg.table.Load().byIndex(index)
	if !ok {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	slot.sampleElement(elem, dst, rx.interp.Load())
	return nil
}

// Get peeks at the block-start value of the scalar address `path` as of
// the last sampled block. It never mutates ramp state.
func (rx *Receiver) Get(path string) (float64, error) {
	slot, has := rx.reg.lookup(path)
	if !has {
		return 0, fmt.Errorf("%w: %s", ErrUnknownAddress, path)
	}
	return slot.peekElement(0), nil
}

// GetVector peeks at the block-start values of a list-valued address.
func (rx *Receiver) GetVector(path string) ([]float64, error) {
	slot, has := rx.reg.lookup(path)
	if !has {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAddress, path)
	}
	out := make([]float64, slot.width)
	for i := range out {
		out[i] = slot.peekElement(i)
	}
	return out, nil
}

// GetIndex peeks at the element stream at flat ordinal `index`.
func (rx *Receiver) GetIndex(index int) (float64, error) {
	slot, elem, ok := rx.reg.table.Load().byIndex(index)
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	return slot.peekElement(elem), nil
}

// Close shuts the listener down with drain-and-join semantics: when it
// returns, no further delivery to any slot can occur. Idempotent.
func (rx *Receiver) Close() error {
	rx.closeOnce.Do(func() {
		rx.closed.Store(true)
		rx.ln.close()
		rx.logger.Info("control receiver closed", LabelPort.L(rx.Port()))
	})
	return nil
}
