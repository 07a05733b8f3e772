package logging

import (
	"context"
	"log/slog"
	"time"
)

type Attr = slog.Attr

func Any(key string, value any) Attr { return slog.Any(key, value) }

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func Uint64(key string, value uint64) Attr { return slog.Uint64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

// EventID tags a record with the splice_event_id it concerns.
func EventID[T ~uint32](id T) Attr { return slog.Uint64(FieldEventID, uint64(id)) }

// PairedEventID names the splice-out a splice-in closes.
func PairedEventID[T ~uint32](id T) Attr { return slog.Uint64(FieldPairedEventID, uint64(id)) }

// SpliceKind records splice_out or splice_in.
func SpliceKind(kind interface{ String() string }) Attr {
	return slog.String(FieldSpliceKind, kind.String())
}

// PID is the transport stream PID sections are carried on.
func PID(pid uint16) Attr { return slog.Int(FieldPID, int(pid)) }

// RunningTime is the pipeline running time when the record was made.
func RunningTime(d time.Duration) Attr { return slog.Duration(FieldRunningTime, d) }

// SpliceTime is the running time a section takes effect at.
func SpliceTime(d time.Duration) Attr { return slog.Duration(FieldSpliceTime, d) }

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

func attrsToArgs(attrs []Attr) []any {
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return args
}

func NewNop() *slog.Logger {
	return slog.New(NoopHandler{})
}

// NewComponentLogger tags logger with a component name; nil starts from a
// no-op logger.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

func hasAttrKey(attrs []Attr, key string) bool {
	for _, a := range attrs {
		if a.Key == key {
			return true
		}
	}
	return false
}

// WarnWithContext logs a warning that always carries event_type, error_hint
// and impact so operators can tell what broke and what to do about it.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	defaults := [...]Attr{
		String(FieldEventType, eventType),
		String(FieldErrorHint, "check the splicer log for details"),
		String(FieldImpact, "signaling continued with warnings"),
	}
	for _, attr := range defaults {
		if !hasAttrKey(attrs, attr.Key) {
			attrs = append(attrs, attr)
		}
	}
	logger.Warn(msg, attrsToArgs(attrs)...)
}

// NoopHandler discards all log output.
type NoopHandler struct{}

func (NoopHandler) Enabled(context.Context, slog.Level) bool { return false }

func (NoopHandler) Handle(context.Context, slog.Record) error { return nil }

func (NoopHandler) WithAttrs([]slog.Attr) slog.Handler { return NoopHandler{} }

func (NoopHandler) WithGroup(string) slog.Handler { return NoopHandler{} }
