package entity

import "time"

// ScanOutcome итог скана для счётчиков
type ScanOutcome string

const (
	OutcomeCompleted ScanOutcome = "completed"
	OutcomeFailed    ScanOutcome = "failed"
)

// ScanStats счётчики сканов с момента запуска процесса. Историю сканов не храним.
type ScanStats struct {
	Started       int         `json:"started"`
	Completed     int         `json:"completed"`
	Failed        int         `json:"failed"`
	Rejected      int         `json:"rejected"`
	LastScanID    string      `json:"last_scan_id,omitempty"`
	LastOutcome   ScanOutcome `json:"last_outcome,omitempty"`
	LastWeight    float64     `json:"last_weight_grams"`
	LastStartedAt time.Time   `json:"last_started_at,omitempty"`
	LastReject    string      `json:"last_reject_reason,omitempty"`
}
