package tsinject

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"

	"splicer/internal/logging"
	"splicer/internal/splice"
)

// Stats counts what an Injector has written.
type Stats struct {
	Sections uint64
	Packets  uint64
	Bytes    uint64
}

// Injector implements splice.Multiplexer on top of a byte sink. Each PID
// keeps its own continuity counter.
type Injector struct {
	target string
	logger *slog.Logger

	mu       sync.Mutex
	w        io.Writer
	closer   io.Closer
	chunk    int
	counters map[uint16]uint8
	stats    Stats
	closed   bool
}

// New wraps w. When w is an io.Closer, Close closes it.
func New(w io.Writer, logger *slog.Logger) *Injector {
	inj := &Injector{
		target:   "writer",
		logger:   logging.NewComponentLogger(logger, "tsinject"),
		w:        w,
		counters: make(map[uint16]uint8),
	}
	if c, ok := w.(io.Closer); ok {
		inj.closer = c
	}
	return inj
}

// Open builds an Injector for an output target: "-" for stdout,
// "udp://host:port" for datagrams of PacketsPerDatagram packets, or a file
// path opened for append.
func Open(target string, logger *slog.Logger) (*Injector, error) {
	target = strings.TrimSpace(target)
	var inj *Injector
	switch {
	case target == "" || target == "-":
		inj = New(nopCloser{os.Stdout}, logger)
	case strings.HasPrefix(target, "udp://"):
		addr := strings.TrimPrefix(target, "udp://")
		conn, err := net.Dial("udp", addr)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", target, err)
		}
		inj = New(conn, logger)
		inj.chunk = PacketsPerDatagram * PacketSize
	case strings.Contains(target, "://"):
		return nil, fmt.Errorf("output target %q: unsupported scheme", target)
	default:
		file, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open output %s: %w", target, err)
		}
		inj = New(file, logger)
	}
	inj.target = target
	return inj, nil
}

// InjectSection packetises one section onto pid and writes it.
func (i *Injector) InjectSection(data []byte, pid uint16) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return splice.ErrTargetUnavailable
	}

	packets, next, err := Packetize(data, pid, i.counters[pid])
	if err != nil {
		return fmt.Errorf("packetize section: %w", err)
	}
	if err := i.writeLocked(packets); err != nil {
		logging.WarnWithContext(i.logger, "section write failed", "ts_write_failed",
			logging.String("target_address", i.target),
			logging.PID(pid),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the output target is reachable and writable"),
			logging.String(logging.FieldImpact, "splice section lost"),
		)
		return fmt.Errorf("write %s: %w", i.target, err)
	}
	i.counters[pid] = next
	i.stats.Sections++
	i.stats.Packets += uint64(len(packets) / PacketSize)
	i.stats.Bytes += uint64(len(packets))
	return nil
}

func (i *Injector) writeLocked(buf []byte) error {
	if i.chunk <= 0 {
		_, err := i.w.Write(buf)
		return err
	}
	for len(buf) > 0 {
		n := min(i.chunk, len(buf))
		if _, err := i.w.Write(buf[:n]); err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}

// Target returns the configured output target.
func (i *Injector) Target() string { return i.target }

// Stats returns write counters.
func (i *Injector) Stats() Stats {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.stats
}

// Close releases the sink. Later injections fail with
// splice.ErrTargetUnavailable. Close is idempotent.
func (i *Injector) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil
	}
	i.closed = true
	if i.closer == nil {
		return nil
	}
	if err := i.closer.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("close %s: %w", i.target, err)
	}
	return nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
