package model

import "time"

// RunLog records one completed scoring run for auditability.
type RunLog struct {
	ID           string    `json:"id"`
	BatchID      string    `json:"batch_id"`
	Profile      string    `json:"profile"`
	ConfigHash   string    `json:"config_hash"`
	Source       string    `json:"source"`
	PartCount    int       `json:"part_count"`
	BoostedCount int       `json:"boosted_count"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}
