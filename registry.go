package oscbridge

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-metrics"
)

// addressTable is an immutable snapshot of the address -> slot mapping.
// Administrative add/remove builds a fresh table and swaps the pointer, so
// neither the network context nor the render context ever waits on a
// table mutation.
type addressTable struct {
	slots map[string]*controlSlot
	order []tableEntry
	total int
}

type tableEntry struct {
	path string
	slot *controlSlot
	// base is the flat ordinal of the entry's first element stream:
	// insertion order x width, accumulated over preceding entries.
	base int
}

var emptyTable = &addressTable{slots: map[string]*controlSlot{}}

// byIndex resolves a flat ordinal to its slot and element offset.
func (t *addressTable) byIndex(i int) (*controlSlot, int, bool) {
	if i < 0 || i >= t.total {
		return nil, 0, false
	}
	for k := range t.order {
		ent := &t.order[k]
		if i < ent.base+ent.slot.width {
			return ent.slot, i - ent.base, true
		}
	}
	return nil, 0, false
}

// registry owns the address -> slot mapping of one Receiver. It routes
// inbound updates to slots and serializes administrative changes against
// each other; routing and sampling read the current snapshot and are
// never blocked by them.
type registry struct {
	logger *slog.Logger
	msink  metrics.MetricSink
	labels []metrics.Label

	mu    sync.Mutex
	table atomic.Pointer[addressTable]
}

func newRegistry(logger *slog.Logger, msink metrics.MetricSink, labels []metrics.Label) *registry {
	reg := &registry{
		logger: logger,
		msink:  msink,
		labels: labels,
	}
	reg.table.Store(emptyTable)
	return reg
}

func (r *registry) add(path string, width int, mul, add float64) error {
	if path == "" {
		return fmt.Errorf("%w: empty address", ErrInvalidConfig)
	}
	if width < 1 {
		return fmt.Errorf("%w: address %q: width %d", ErrInvalidConfig, path, width)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.table.Load()
	if _, has := old.slots[path]; has {
		return fmt.Errorf("%w: %s", ErrDuplicateAddress, path)
	}

	slot := newControlSlot(width, mul, add)
	next := &addressTable{
		slots: make(map[string]*controlSlot, len(old.slots)+1),
		order: make([]tableEntry, len(old.order), len(old.order)+1),
		total: old.total + width,
	}
	for k, v := range old.slots {
		next.slots[k] = v
	}
	copy(next.order, old.order)
	next.slots[path] = slot
	next.order = append(next.order, tableEntry{path: path, slot: slot, base: old.total})

	r.table.Store(next)
	r.msink.SetGaugeWithLabels(MetricRegistryAddressGauge, float32(len(next.order)), r.labels)
	r.logger.Debug("address registered", LabelAddress.L(path), LabelWidth.L(width))
	return nil
}

func (r *registry) remove(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.table.Load()
	slot, has := old.slots[path]
	if !has {
		return fmt.Errorf("%w: %s", ErrUnknownAddress, path)
	}

	next := &addressTable{
		slots: make(map[string]*controlSlot, len(old.slots)-1),
		order: make([]tableEntry, 0, len(old.order)-1),
	}
	for k, v := range old.slots {
		if k != path {
			next.slots[k] = v
		}
	}
	for _, ent := range old.order {
		if ent.path == path {
			continue
		}
		ent.base = next.total
		next.order = append(next.order, ent)
		next.total += ent.slot.width
	}

	r.table.Store(next)
	// Tombstone after the swap: deliveries racing on the old snapshot
	// find a dead slot and write nowhere.
	slot.kill()
	r.msink.SetGaugeWithLabels(MetricRegistryAddressGauge, float32(len(next.order)), r.labels)
	r.logger.Debug("address removed", LabelAddress.L(path))
	return nil
}

func (r *registry) lookup(path string) (*controlSlot, bool) {
	slot, has := r.table.Load().slots[path]
	return slot, has
}

func (r *registry) addresses() []string {
	tbl := r.table.Load()
	out := make([]string, len(tbl.order))
	for i, ent := range tbl.order {
		out[i] = ent.path
	}
	return out
}

// dispatch routes one decoded message from the network context. Unknown
// addresses are dropped silently (counted), arity mismatches are dropped
// and reported, and a known address overwrites the slot's pending target.
func (r *registry) dispatch(address string, args []any) {
	slot, has := r.table.Load().slots[address]
	if !has {
		r.msink.IncrCounterWithLabels(MetricRxDropUnknownAddrCount, 1, r.labels)
		return
	}

	values := make([]float64, slot.width)
	if len(args) != slot.width || !numericValues(args, values) {
		r.msink.IncrCounterWithLabels(MetricRxDropArityCount, 1, r.labels)
		r.logger.Warn("dropped control message",
			LabelAddress.L(address),
			LabelWidth.L(slot.width),
			LabelError.L(ErrArityMismatch),
			slog.Int("arity", len(args)),
		)
		return
	}

	_, coalesced := slot.store(values)
	if coalesced {
		r.msink.IncrCounterWithLabels(MetricRegistryCoalescedWrites, 1, r.labels)
	}
}

// setValue is the programmatic twin of dispatch: identical slot semantics,
// but an unknown path is reported to the caller instead of counted.
func (r *registry) setValue(path string, values []float64) error {
	slot, has := r.table.Load().slots[path]
	if !has {
		return fmt.Errorf("%w: %s", ErrUnknownAddress, path)
	}
	if len(values) != slot.width {
		return fmt.Errorf("%w: %s wants %d values, got %d",
			ErrArityMismatch, path, slot.width, len(values))
	}
	if _, coalesced := slot.store(values); coalesced {
		r.msink.IncrCounterWithLabels(MetricRegistryCoalescedWrites, 1, r.labels)
	}
	return nil
}
