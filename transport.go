package oscbridge

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/chabad360/go-osc/osc"
	"github.com/hashicorp/go-metrics"
)

// listener owns the UDP socket of one receive-side object and multiplexes
// every address registered on that object. Decoded messages are handed to
// `deliver` synchronously from the read goroutine, so once `close`
// returns, no further delivery can happen.
type listener struct {
	logger *slog.Logger
	msink  metrics.MetricSink
	labels []metrics.Label

	conn    *net.UDPConn
	deliver func(address string, args []any)
	bufSize int

	wg        sync.WaitGroup
	closeOnce sync.Once
}

func newListener(port int, deliver func(string, []any), cfg *config) (*listener, error) {
	if port < 0 || port > 65535 {
		return nil, fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, port)
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPortInUse, err)
	}

	ln := &listener{
		logger:  cfg.logger(),
		msink:   cfg.sink(),
		labels:  cfg.metricLabels,
		conn:    conn,
		deliver: deliver,
		bufSize: cfg.readBufferSize,
	}

	ln.wg.Add(1)
	go ln.run()
	return ln, nil
}

// port returns the bound UDP port. Useful when the listener was created
// on port 0.
func (ln *listener) port() int {
	return ln.conn.LocalAddr().(*net.UDPAddr).Port
}

func (ln *listener) run() {
	defer ln.wg.Done()
	buf := make([]byte, ln.bufSize)
	for {
		n, _, err := ln.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			ln.logger.Warn("udp read failed", LabelError.L(err))
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		msg, err := osc.NewMessageFromData(data)
		if err != nil {
			ln.msink.IncrCounterWithLabels(MetricRxDropDecodeErrorCount, 1, ln.labels)
			ln.logger.Debug("dropped undecodable datagram", LabelError.L(err))
			continue
		}

		if !supportedArguments(msg.Arguments) {
			ln.msink.IncrCounterWithLabels(MetricRxDropUnsupportedCount, 1, ln.labels)
			ln.logger.Debug("dropped message outside supported tag set",
				LabelAddress.L(msg.Address), LabelError.L(ErrUnsupportedTypeTag))
			continue
		}

		ln.msink.IncrCounterWithLabels(MetricRxMessageCount, 1, ln.labels)
		ln.deliver(msg.Address, msg.Arguments)
	}
}

// close shuts the socket and joins the read goroutine. Idempotent.
func (ln *listener) close() {
	ln.closeOnce.Do(func() {
		ln.conn.Close()
		ln.wg.Wait()
	})
}

// udpClient wraps one cached outgoing OSC connection. Sends are
// independent and best-effort: a failure on one target never affects
// another.
type udpClient struct {
	host string
	port int
	cl   *osc.Client
}

func dialTarget(host string, port int) (*udpClient, error) {
	if host == "" {
		host = "127.0.0.1"
	}
	if port < 0 || port > 65535 {
		return nil, fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, port)
	}
	cl := osc.NewClient(host, port)
	return &udpClient{host: host, port: port, cl: cl}, nil
}

func (c *udpClient) send(address string, args []any) error {
	msg := osc.NewMessage(address, args...)
	return c.cl.Send(msg)
}

func (c *udpClient) close() error {
	// osc.Client holds no persistent socket; it dials per Send, so there
	// is nothing to release here.
	return nil
}
