package oscbridge

import (
	"log/slog"

	"github.com/hashicorp/go-metrics"
)

var (
	MetricRxMessageCount          = []string{"oscbridge", "rx", "message", "count"}
	MetricRxDropDecodeErrorCount  = []string{"oscbridge", "rx", "drop", "decode_error", "count"}
	MetricRxDropUnsupportedCount  = []string{"oscbridge", "rx", "drop", "unsupported_tag", "count"}
	MetricRxDropUnknownAddrCount  = []string{"oscbridge", "rx", "drop", "unknown_address", "count"}
	MetricRxDropArityCount        = []string{"oscbridge", "rx", "drop", "arity_mismatch", "count"}
	MetricRxHandlerFaultCount     = []string{"oscbridge", "rx", "handler", "fault", "count"}
	MetricTxMessageCount          = []string{"oscbridge", "tx", "message", "count"}
	MetricTxErrorCount            = []string{"oscbridge", "tx", "error", "count"}
	MetricRegistryAddressGauge    = []string{"oscbridge", "registry", "address", "gauge"}
	MetricRegistryCoalescedWrites = []string{"oscbridge", "registry", "coalesced", "writes", "count"}
)

type TelemetryLabel string

var (
	LabelError   TelemetryLabel = "error"
	LabelAddress TelemetryLabel = "address"
	LabelHost    TelemetryLabel = "host"
	LabelPort    TelemetryLabel = "port"
	LabelWidth   TelemetryLabel = "width"
)

func (lab TelemetryLabel) M(val string) metrics.Label {
	return metrics.Label{Name: string(lab), Value: val}
}

func (lab TelemetryLabel) L(val any) slog.Attr {
	return slog.Attr{
		Key:   string(lab),
		Value: slog.AnyValue(val),
	}
}
