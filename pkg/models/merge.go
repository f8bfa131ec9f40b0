package models

import "time"

// Merge modes recorded in the audit log.
const (
	MergeModeAuto   = "auto"
	MergeModeManual = "manual"
)

// MergeAuditLog records one executed merge.
type MergeAuditLog struct {
	ID           int64     `json:"id" db:"id"`
	PrimaryID    int64     `json:"primary_id" db:"primary_id"`
	DuplicateID  int64     `json:"duplicate_id" db:"duplicate_id"`
	OverallScore float64   `json:"overall_score" db:"overall_score"`
	Mode         string    `json:"mode" db:"mode"`
	Actor        string    `json:"actor" db:"actor"`
	Reason       string    `json:"reason" db:"reason"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// MergeRequest describes a requested merge of duplicate into primary.
type MergeRequest struct {
	PrimaryID    int64
	DuplicateID  int64
	OverallScore float64
	Mode         string
	Actor        string
	Reason       string
}

// MergeResult describes an executed merge after root resolution.
type MergeResult struct {
	Primary     *Company
	DuplicateID int64
}
