package trace

import "time"

// Session is one recorded client session.
type Session struct {
	ID        string     `json:"id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	RunCount  int        `json:"run_count"`
}

// RunRecord is the terminal record of one pipeline run.
type RunRecord struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Seq         uint64    `json:"seq"`
	StartedAt   time.Time `json:"started_at"`
	DurationMs  float64   `json:"duration_ms"`
	Transcript  string    `json:"transcript"`
	Reply       string    `json:"reply"`
	Status      string    `json:"status"`
	FailedStage string    `json:"failed_stage,omitempty"`
}
