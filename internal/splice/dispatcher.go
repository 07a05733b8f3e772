package splice

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"splicer/internal/logging"
)

// Multiplexer is the signaling-injection entry point of the external
// transport stream multiplexer.
type Multiplexer interface {
	InjectSection(data []byte, pid uint16) error
}

// Handle is a weak reference to a Multiplexer. The pipeline releases it on
// teardown; holders must resolve it at each point of use.
type Handle struct {
	mu  sync.RWMutex
	mux Multiplexer
}

// NewHandle wraps mux. A nil mux yields an already released handle.
func NewHandle(mux Multiplexer) *Handle {
	return &Handle{mux: mux}
}

// Resolve returns the multiplexer, or ErrTargetUnavailable once released.
func (h *Handle) Resolve() (Multiplexer, error) {
	if h == nil {
		return nil, ErrTargetUnavailable
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.mux == nil {
		return nil, ErrTargetUnavailable
	}
	return h.mux, nil
}

// Release drops the reference. Subsequent Resolve calls fail.
func (h *Handle) Release() {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.mux = nil
	h.mu.Unlock()
}

// Dispatcher hands encoded sections to the multiplexer on the signaling PID.
type Dispatcher struct {
	handle *Handle
	pid    uint16
	logger *slog.Logger
}

// NewDispatcher binds a dispatcher to a multiplexer handle and PID.
func NewDispatcher(handle *Handle, pid uint16, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		handle: handle,
		pid:    pid,
		logger: logging.NewComponentLogger(logger, "dispatcher"),
	}
}

// PID returns the signaling PID sections are injected on.
func (d *Dispatcher) PID() uint16 { return d.pid }

// Dispatch injects one section. A released handle, or a multiplexer that
// reports ErrTargetUnavailable, yields ErrTargetUnavailable; any other
// multiplexer failure is wrapped in ErrInjection.
func (d *Dispatcher) Dispatch(section Section) error {
	mux, err := d.handle.Resolve()
	if err != nil {
		return fmt.Errorf("dispatch %s %d: %w", section.Kind, section.ID, err)
	}
	if err := mux.InjectSection(section.Data, d.pid); err != nil {
		if errors.Is(err, ErrTargetUnavailable) {
			return fmt.Errorf("dispatch %s %d: %w", section.Kind, section.ID, err)
		}
		return fmt.Errorf("dispatch %s %d: %w: %w", section.Kind, section.ID, ErrInjection, err)
	}
	d.logger.Debug("section injected",
		logging.SpliceKind(section.Kind),
		logging.EventID(section.ID),
		logging.PID(d.pid),
		logging.Int("bytes", len(section.Data)),
	)
	return nil
}
