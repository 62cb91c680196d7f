package oscbridge

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-metrics"
	"github.com/stretchr/testify/require"
)

func newTestSink(t *testing.T) *metrics.InmemSink {
	t.Helper()
	return metrics.NewInmemSink(10*time.Second, time.Minute)
}

func counterSum(sink *metrics.InmemSink, name []string) float64 {
	key := strings.Join(name, ".")
	var sum float64
	for _, interval := range sink.Data() {
		interval.RLock()
		if sample, has := interval.Counters[key]; has {
			sum += sample.Sum
		}
		interval.RUnlock()
	}
	return sum
}

func newTestRegistry(t *testing.T) (*registry, *metrics.InmemSink) {
	t.Helper()
	sink := newTestSink(t)
	return newRegistry(slog.Default(), sink, nil), sink
}

func TestRegistry_AddDuplicate(t *testing.T) {
	reg, _ := newTestRegistry(t)

	require.NoError(t, reg.add("/pitch", 1, 1, 0))
	err := reg.add("/pitch", 1, 1, 0)
	require.ErrorIs(t, err, ErrDuplicateAddress)
	require.Equal(t, []string{"/pitch"}, reg.addresses(), "duplicate add is a no-op")
}

func TestRegistry_RemoveUnknown(t *testing.T) {
	reg, _ := newTestRegistry(t)
	require.ErrorIs(t, reg.remove("/nope"), ErrUnknownAddress)
}

func TestRegistry_InvalidWidth(t *testing.T) {
	reg, _ := newTestRegistry(t)
	require.ErrorIs(t, reg.add("/v", 0, 1, 0), ErrInvalidConfig)
	require.ErrorIs(t, reg.add("", 1, 1, 0), ErrInvalidConfig)
}

func TestRegistry_DispatchUnknownIsSilentlyDropped(t *testing.T) {
	reg, sink := newTestRegistry(t)
	require.NoError(t, reg.add("/known", 1, 1, 0))

	reg.dispatch("/unknown", []any{float32(1)})
	require.Equal(t, float64(1), counterSum(sink, MetricRxDropUnknownAddrCount))
}

func TestRegistry_DispatchArityMismatchLeavesSlotUnchanged(t *testing.T) {
	reg, sink := newTestRegistry(t)
	require.NoError(t, reg.add("/v", 8, 1, 0))
	require.NoError(t, reg.setValue("/v", []float64{1, 1, 1, 1, 1, 1, 1, 1}))

	reg.dispatch("/v", []any{float32(9), float32(9), float32(9), float32(9)})
	require.Equal(t, float64(1), counterSum(sink, MetricRxDropArityCount))

	slot, has := reg.lookup("/v")
	require.True(t, has)
	block := make([]float64, 2)
	for i := 0; i < 8; i++ {
		slot.sampleElement(i, block, false)
		require.Equal(t, []float64{1, 1}, block, "prior value survives the dropped message")
	}
}

func TestRegistry_DispatchRejectsNonNumericControlValues(t *testing.T) {
	reg, sink := newTestRegistry(t)
	require.NoError(t, reg.add("/s", 1, 1, 0))

	reg.dispatch("/s", []any{"not a number"})
	require.Equal(t, float64(1), counterSum(sink, MetricRxDropArityCount))
}

func TestRegistry_SetValueMatchesNetworkSemantics(t *testing.T) {
	reg, sink := newTestRegistry(t)
	require.NoError(t, reg.add("/a", 1, 1, 0))

	require.ErrorIs(t, reg.setValue("/nope", []float64{1}), ErrUnknownAddress)
	require.ErrorIs(t, reg.setValue("/a", []float64{1, 2}), ErrArityMismatch)

	require.NoError(t, reg.setValue("/a", []float64{5}))
	require.NoError(t, reg.setValue("/a", []float64{7}))
	require.Equal(t, float64(1), counterSum(sink, MetricRegistryCoalescedWrites))

	slot, _ := reg.lookup("/a")
	block := make([]float64, 2)
	slot.sampleElement(0, block, false)
	require.Equal(t, []float64{7, 7}, block, "last writer wins")
}

func TestRegistry_FlatOrdinalIndex(t *testing.T) {
	reg, _ := newTestRegistry(t)
	require.NoError(t, reg.add("/a", 2, 1, 0))
	require.NoError(t, reg.add("/b", 3, 1, 0))

	tbl := reg.table.Load()
	require.Equal(t, 5, tbl.total)

	slotA, _ := reg.lookup("/a")
	slotB, _ := reg.lookup("/b")

	slot, elem, ok := tbl.byIndex(1)
	require.True(t, ok)
	require.Same(t, slotA, slot)
	require.Equal(t, 1, elem)

	slot, elem, ok = tbl.byIndex(2)
	require.True(t, ok)
	require.Same(t, slotB, slot)
	require.Equal(t, 0, elem)

	_, _, ok = tbl.byIndex(5)
	require.False(t, ok)
	_, _, ok = tbl.byIndex(-1)
	require.False(t, ok)
}

func TestRegistry_RemoveReindexesOrdinals(t *testing.T) {
	reg, _ := newTestRegistry(t)
	require.NoError(t, reg.add("/a", 2, 1, 0))
	require.NoError(t, reg.add("/b", 3, 1, 0))
	require.NoError(t, reg.remove("/a"))

	tbl := reg.table.Load()
	require.Equal(t, 3, tbl.total)

	slotB, _ := reg.lookup("/b")
	slot, elem, ok := tbl.byIndex(0)
	require.True(t, ok)
	require.Same(t, slotB, slot)
	require.Equal(t, 0, elem)
}

func TestRegistry_RemovedSlotIsTombstoned(t *testing.T) {
	reg, _ := newTestRegistry(t)
	require.NoError(t, reg.add("/x", 1, 1, 0))

	// A racing delivery may still hold the old snapshot.
	stale, _ := reg.lookup("/x")
	require.NoError(t, reg.remove("/x"))

	stored, _ := stale.store([]float64{9})
	require.False(t, stored, "no resurrection of a removed slot")

	// Re-adding makes the address live again, starting fresh.
	require.NoError(t, reg.add("/x", 1, 1, 0))
	fresh, has := reg.lookup("/x")
	require.True(t, has)
	require.NotSame(t, stale, fresh)
	require.Equal(t, float64(0), fresh.peekElement(0))
}
