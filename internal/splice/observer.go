package splice

import "time"

// Record describes one dispatch attempt. Err is nil when the section reached
// the multiplexer.
type Record struct {
	Kind     Kind
	ID       EventID
	PairedID EventID
	Time     time.Duration
	Duration time.Duration
	Source   string
	Reason   string
	Err      error
	At       time.Time
}

// Observer is notified of every dispatch attempt. Observe runs while the
// scheduler holds its lock and must not block.
type Observer interface {
	Observe(Record)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Record)

func (f ObserverFunc) Observe(r Record) { f(r) }
