package oscbridge

import (
	"log/slog"

	"github.com/hashicorp/go-metrics"
)

// Largest payload of a single OSC-over-UDP datagram.
const defaultReadBufferSize = 1 << 16

type config struct {
	logHandler     slog.Handler
	msink          metrics.MetricSink
	metricLabels   []metrics.Label
	readBufferSize int
	interpolation  bool
}

func defaultOptions() config {
	return config{
		readBufferSize: defaultReadBufferSize,
		interpolation:  true,
	}
}

// Option to pass to the constructors of this package.
type Option func(*config) error

// WithLogHandler specifies which `slog.Handler` to use. Defaults to the
// handler of `slog.Default()`.
func WithLogHandler(handler slog.Handler) Option {
	return func(c *config) error {
		c.logHandler = handler
		return nil
	}
}

// WithMetricSink allows you to chose how to collect the metrics emitted
// by this object. Defaults to `metrics.Default()`.
func WithMetricSink(ms metrics.MetricSink) Option {
	return func(c *config) error {
		if ms == nil {
			ms = &metrics.BlackholeSink{}
		}
		c.msink = ms
		return nil
	}
}

// WithMetricLabels adds static labels to all metrics produced by this
// object.
func WithMetricLabels(labels []metrics.Label) Option {
	return func(c *config) error {
		c.metricLabels = labels
		return nil
	}
}

// WithReadBufferSize controls the size of the datagram read buffer of a
// receive-side object. Datagrams larger than the buffer are truncated by
// the kernel and will fail to decode.
func WithReadBufferSize(size int) Option {
	return func(c *config) error {
		if size <= 0 {
			return ErrInvalidConfig
		}
		c.readBufferSize = size
		return nil
	}
}

// WithInterpolation activates or deactivates the one-block linear ramp of
// a `Receiver`'s control slots. Activated by default. It can be toggled
// later with `Receiver.SetInterpolation`.
func WithInterpolation(enabled bool) Option {
	return func(c *config) error {
		c.interpolation = enabled
		return nil
	}
}

func (c *config) apply(opts []Option) error {
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return err
		}
	}
	return nil
}

func (c *config) logger() *slog.Logger {
	if c.logHandler != nil {
		return slog.New(c.logHandler)
	}
	return slog.Default()
}

func (c *config) sink() metrics.MetricSink {
	if c.msink != nil {
		return c.msink
	}
	return metrics.Default()
}
