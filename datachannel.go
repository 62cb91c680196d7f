package oscbridge

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-metrics"
)

// Handler receives one decoded data-path message: the destination address
// followed by the ordered typed values (int32, int64, float32, float64 or
// string, per the sender's signature).
type Handler func(address string, values ...any)

// DataReceiver is the receive side of the typed data path: mixed-type,
// arbitrary-arity messages delivered directly to one handler, with no
// sampling or interpolation in between.
//
// The handler is fixed at construction and invoked synchronously from the
// network context. A panic inside it is recovered at the delivery
// boundary so the listener survives; the fault is logged and counted.
type DataReceiver struct {
	logger  *slog.Logger
	msink   metrics.MetricSink
	labels  []metrics.Label
	handler Handler

	mu    sync.Mutex
	addrs atomic.Pointer[addrSet]
	ln    *listener

	closeOnce sync.Once
	closed    atomic.Bool
}

// addrSet is an immutable snapshot of the registered addresses, swapped
// copy-on-write so AddAddress/DelAddress never stall delivery.
type addrSet struct {
	members map[string]struct{}
	order   []string
}

var emptyAddrSet = &addrSet{members: map[string]struct{}{}}

// NewDataReceiver binds a UDP listener on `port` and delivers every
// message for a registered address to `handler`. There is exactly one
// handler per receiver, fixed for its lifetime.
func NewDataReceiver(port int, handler Handler, opts ...Option) (*DataReceiver, error) {
	if handler == nil {
		return nil, fmt.Errorf("%w: nil handler", ErrInvalidConfig)
	}
	cfg := defaultOptions()
	if err := cfg.apply(opts); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	rx := &DataReceiver{
		logger:  cfg.logger(),
		msink:   cfg.sink(),
		labels:  cfg.metricLabels,
		handler: handler,
	}
	rx.addrs.Store(emptyAddrSet)

	ln, err := newListener(port, rx.deliver, &cfg)
	if err != nil {
		return nil, err
	}
	rx.ln = ln

	rx.logger.Info("data receiver listening", LabelPort.L(ln.port()))
	return rx, nil
}

// Port returns the UDP port the receiver is bound to.
func (rx *DataReceiver) Port() int {
	return rx.ln.port()
}

// AddAddress registers an address on the live listener.
func (rx *DataReceiver) AddAddress(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty address", ErrInvalidConfig)
	}
	if rx.closed.Load() {
		return ErrClosed
	}

	rx.mu.Lock()
	defer rx.mu.Unlock()
	old := rx.addrs.Load()
	if _, has := old.members[path]; has {
		return fmt.Errorf("%w: %s", ErrDuplicateAddress, path)
	}

	next := &addrSet{
		members: make(map[string]struct{}, len(old.members)+1),
		order:   make([]string, len(old.order), len(old.order)+1),
	}
	for k := range old.members {
		next.members[k] = struct{}{}
	}
	copy(next.order, old.order)
	next.members[path] = struct{}{}
	next.order = append(next.order, path)

	rx.addrs.Store(next)
	return nil
}

// DelAddress removes an address without tearing down the listener.
func (rx *DataReceiver) DelAddress(path string) error {
	if rx.closed.Load() {
		return ErrClosed
	}

	rx.mu.Lock()
	defer rx.mu.Unlock()
	old := rx.addrs.Load()
	if _, has := old.members[path]; !has {
		return fmt.Errorf("%w: %s", ErrUnknownAddress, path)
	}

	next := &addrSet{
		members: make(map[string]struct{}, len(old.members)-1),
		order:   make([]string, 0, len(old.order)-1),
	}
	for _, p := range old.order {
		if p == path {
			continue
		}
		next.members[p] = struct{}{}
		next.order = append(next.order, p)
	}

	rx.addrs.Store(next)
	return nil
}

// Addresses returns the registered addresses in insertion order.
func (rx *DataReceiver) Addresses() []string {
	order := rx.addrs.Load().order
	out := make([]string, len(order))
	copy(out, order)
	return out
}

func (rx *DataReceiver) deliver(address string, args []any) {
	if _, has := rx.addrs.Load().members[address]; !has {
		// Unregistered addresses on the data path are benign.
		rx.msink.IncrCounterWithLabels(MetricRxDropUnknownAddrCount, 1, rx.labels)
		return
	}
	rx.invoke(address, args)
}

func (rx *DataReceiver) invoke(address string, args []any) {
	defer func() {
		if fault := recover(); fault != nil {
			rx.msink.IncrCounterWithLabels(MetricRxHandlerFaultCount, 1, rx.labels)
			rx.logger.Error("handler fault contained",
				LabelAddress.L(address), LabelError.L(fault))
		}
	}()
	rx.handler(address, args...)
}

// Close shuts the listener down. When it returns, the handler cannot be
// invoked again, even by datagrams in flight at close time. Idempotent.
func (rx *DataReceiver) Close() error {
	rx.closeOnce.Do(func() {
		rx.closed.Store(true)
		rx.ln.close()
		rx.logger.Info("data receiver closed", LabelPort.L(rx.Port()))
	})
	return nil
}

// DataSender is the send side of the typed data path. Each target binds
// one address to a `(host, port)` destination and a type signature that
// outgoing values are validated against.
type DataSender struct {
	logger *slog.Logger
	msink  metrics.MetricSink
	labels []metrics.Label

	signature string

	mu      sync.Mutex
	targets map[string]*dataTarget
	order   []string
	closed  bool
}

type dataTarget struct {
	signature string
	host      string
	port      int
	address   string
	client    *udpClient
}

// NewDataSender validates `signature` and returns a DataSender whose
// future targets default to that signature. A bad tag character refuses
// construction.
func NewDataSender(signature string, opts ...Option) (*DataSender, error) {
	if err := validateSignature(signature); err != nil {
		return nil, err
	}
	cfg := defaultOptions()
	if err := cfg.apply(opts); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return &DataSender{
		logger:    cfg.logger(),
		msink:     cfg.sink(),
		labels:    cfg.metricLabels,
		signature: signature,
		targets:   make(map[string]*dataTarget),
	}, nil
}

// AddTarget binds `address` to a destination. An empty signature inherits
// the sender's construction signature; an empty host means local
// loopback. One destination per address.
func (tx *DataSender) AddTarget(signature, host string, port int, address string) error {
	if signature == "" {
		signature = tx.signature
	} else if err := validateSignature(signature); err != nil {
		return err
	}
	if address == "" {
		return fmt.Errorf("%w: empty address", ErrInvalidConfig)
	}

	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.closed {
		return ErrClosed
	}
	if _, has := tx.targets[address]; has {
		return fmt.Errorf("%w: %s", ErrDuplicateTarget, address)
	}

	client, err := dialTarget(host, port)
	if err != nil {
		return err
	}
	tx.targets[address] = &dataTarget{
		signature: signature,
		host:      client.host,
		port:      port,
		address:   address,
		client:    client,
	}
	tx.order = append(tx.order, address)
	return nil
}

// DelTarget removes the destination bound to `address`.
func (tx *DataSender) DelTarget(address string) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.closed {
		return ErrClosed
	}
	t, has := tx.targets[address]
	if !has {
		return fmt.Errorf("%w: %s", ErrUnknownTarget, address)
	}
	t.client.close()
	delete(tx.targets, address)
	for i, p := range tx.order {
		if p == address {
			tx.order = append(tx.order[:i], tx.order[i+1:]...)
			break
		}
	}
	return nil
}

// Addresses returns the target addresses in registration order.
func (tx *DataSender) Addresses() []string {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	out := make([]string, len(tx.order))
	copy(out, tx.order)
	return out
}

// Send validates `values` against the target's signature and transmits
// immediately. An empty address broadcasts to every registered target;
// each target's failure (validation included) is reported independently
// and never aborts the remaining fan-out.
func (tx *DataSender) Send(values []any, address string) error {
	tx.mu.Lock()
	if tx.closed {
		tx.mu.Unlock()
		return ErrClosed
	}
	var dests []*dataTarget
	if address == "" {
		dests = make([]*dataTarget, 0, len(tx.order))
		for _, p := range tx.order {
			dests = append(dests, tx.targets[p])
		}
	} else if t, has := tx.targets[address]; has {
		dests = []*dataTarget{t}
	}
	tx.mu.Unlock()

	if len(dests) == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownTarget, address)
	}

	var errs []error
	for _, t := range dests {
		args, err := coerceToSignature(t.signature, values)
		if err != nil {
			tx.msink.IncrCounterWithLabels(MetricTxErrorCount, 1, tx.labels)
			tx.logger.Warn("send aborted",
				LabelAddress.L(t.address), LabelError.L(err))
			errs = append(errs, err)
			continue
		}
		if err := t.client.send(t.address, args); err != nil {
			tx.msink.IncrCounterWithLabels(MetricTxErrorCount, 1, tx.labels)
			tx.logger.Warn("send failed",
				LabelHost.L(t.host), LabelPort.L(t.port),
				LabelAddress.L(t.address), LabelError.L(err))
			errs = append(errs, fmt.Errorf("%s:%d %s: %w", t.host, t.port, t.address, err))
			continue
		}
		tx.msink.IncrCounterWithLabels(MetricTxMessageCount, 1, tx.labels)
	}
	return errors.Join(errs...)
}

// Close releases every target connection. Idempotent.
func (tx *DataSender) Close() error {
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
	tx.order = nil
	return errors.Join(errs...)
}
