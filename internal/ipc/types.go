package ipc

import "splicer/internal/eventlog"

// StartRequest starts signaling.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops signaling.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents the daemon, scheduler and output state.
type StatusResponse struct {
	Running         bool             `json:"running"`
	PID             int              `json:"pid"`
	RunID           string           `json:"run_id"`
	StartedAt       string           `json:"started_at"`
	LockPath        string           `json:"lock_path"`
	EventLogPath    string           `json:"event_log_path"`
	Target          string           `json:"output_target"`
	Triggers        []string         `json:"triggers"`
	ClockState      string           `json:"clock_state"`
	ClockAvailable  bool             `json:"clock_available"`
	RunningTimeMS   int64            `json:"running_time_ms"`
	Window          string           `json:"window"`
	WindowStartID   uint32           `json:"window_start_id"`
	WindowEndMS     int64            `json:"window_end_ms"`
	LastEventID     uint32           `json:"last_event_id"`
	SpliceInArmed   bool             `json:"splice_in_armed"`
	DroppedRequests uint64           `json:"dropped_requests"`
	DroppedRecords  uint64           `json:"dropped_records"`
	SectionsWritten uint64           `json:"sections_written"`
	PacketsWritten  uint64           `json:"packets_written"`
	BytesWritten    uint64           `json:"bytes_written"`
	Summary         eventlog.Summary `json:"summary"`
}

// TriggerRequest issues a manual splice-out. A zero duration uses the
// configured ad duration.
type TriggerRequest struct {
	LeadMillis     int64 `json:"lead_ms"`
	DurationMillis int64 `json:"duration_ms"`
}

// TriggerResponse reports whether the request was queued.
type TriggerResponse struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message"`
}

// MatchRequest reports a detector match.
type MatchRequest struct {
	Reference string `json:"reference"`
}

// MatchResponse reports whether the match was queued.
type MatchResponse struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message"`
}

// PipelineRequest changes the pipeline clock state: play, pause or stop.
type PipelineRequest struct {
	State string `json:"state"`
}

// PipelineResponse carries the resulting pipeline state.
type PipelineResponse struct {
	State string `json:"state"`
}

// EventsRequest lists persisted dispatch attempts.
type EventsRequest struct {
	Limit   int  `json:"limit"`
	Failed  bool `json:"failed"`
	AllRuns bool `json:"all_runs"`
}

// EventsResponse contains event log entries, newest first.
type EventsResponse struct {
	Events []eventlog.Entry `json:"events"`
}

// LogTailRequest asks for log lines from an offset.
type LogTailRequest struct {
	Offset     int64  `json:"offset"`
	Limit      int    `json:"limit"`
	Follow     bool   `json:"follow"`
	WaitMillis int    `json:"wait_millis"`
	Contains   string `json:"contains"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// DatabaseHealthRequest fetches event log diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports event log health information.
type DatabaseHealthResponse struct {
	DBPath        string `json:"db_path"`
	Exists        bool   `json:"exists"`
	SizeBytes     int64  `json:"size_bytes"`
	SchemaVersion int    `json:"schema_version"`
	IntegrityOK   bool   `json:"integrity_ok"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
