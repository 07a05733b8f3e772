package eventlog

import "time"

// RunInfo describes a daemon start.
type RunInfo struct {
	Target string
	Modes  []string
	PID    int
}

// Run is one daemon lifetime.
type Run struct {
	ID        string     `json:"id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Target    string     `json:"output_target"`
	Modes     []string   `json:"trigger_modes"`
	PID       int        `json:"pid"`
}

// Entry is one persisted dispatch attempt.
type Entry struct {
	Seq         int64         `json:"seq"`
	RunID       string        `json:"run_id"`
	Kind        string        `json:"kind"`
	EventID     uint32        `json:"event_id"`
	PairedID    uint32        `json:"paired_event_id,omitempty"`
	RunningTime time.Duration `json:"running_time"`
	Duration    time.Duration `json:"duration,omitempty"`
	Source      string        `json:"trigger_source,omitempty"`
	Reason      string        `json:"reason,omitempty"`
	Error       string        `json:"error,omitempty"`
	ErrorKind   string        `json:"error_kind,omitempty"`
	RecordedAt  time.Time     `json:"recorded_at"`
}

// Failed reports whether the section never reached the multiplexer.
func (e Entry) Failed() bool { return e.Error != "" }

// Filter narrows List results.
type Filter struct {
	RunID  string
	Limit  int
	Failed bool
}

// Summary counts a run's dispatch attempts.
type Summary struct {
	SpliceOuts int `json:"splice_outs"`
	SpliceIns  int `json:"splice_ins"`
	Failed     int `json:"failed"`
}
