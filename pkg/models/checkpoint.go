package models

import "time"

// ScanCheckpoint tracks batch scan progress for resumability.
// last_company_id is the highest id whose batch has been committed.
type ScanCheckpoint struct {
	JobName           string    `json:"job_name" db:"job_name"`
	LastCompanyID     int64     `json:"last_company_id" db:"last_company_id"`
	ScannedCount      int64     `json:"scanned_count" db:"scanned_count"`
	CandidatesCreated int64     `json:"candidates_created" db:"candidates_created"`
	StartedAt         time.Time `json:"started_at" db:"started_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// MatchIndexEntry is a company's row in the blocking index: normalized
// fields used to bound the comparison pool.
type MatchIndexEntry struct {
	CompanyID         int64     `json:"company_id" db:"company_id"`
	NormalizedName    string    `json:"normalized_name" db:"normalized_name"`
	NamePrefix        string    `json:"name_prefix" db:"name_prefix"`
	NormalizedCity    string    `json:"normalized_city" db:"normalized_city"`
	NormalizedPhone   string    `json:"normalized_phone" db:"normalized_phone"`
	NormalizedWebsite string    `json:"normalized_website" db:"normalized_website"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}
