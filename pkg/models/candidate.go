package models

import "time"

// Candidate status values. Transitions out of pending are terminal.
const (
	CandidateStatusPending   = "pending"
	CandidateStatusConfirmed = "confirmed"
	CandidateStatusRejected  = "rejected"
)

// DuplicateCandidate is a flagged company pair awaiting review.
// The pair is stored ordered, company_a_id < company_b_id.
type DuplicateCandidate struct {
	ID           int64      `json:"id" db:"id"`
	CompanyAID   int64      `json:"company_a_id" db:"company_a_id"`
	CompanyBID   int64      `json:"company_b_id" db:"company_b_id"`
	NameScore    float64    `json:"name_score" db:"name_score"`
	AddressScore float64    `json:"address_score" db:"address_score"`
	PhoneScore   float64    `json:"phone_score" db:"phone_score"`
	WebsiteScore float64    `json:"website_score" db:"website_score"`
	OverallScore float64    `json:"overall_score" db:"overall_score"`
	Status       string     `json:"status" db:"status"`
	ReviewedBy   string     `json:"reviewed_by" db:"reviewed_by"`
	ReviewedAt   *time.Time `json:"reviewed_at,omitempty" db:"reviewed_at"`
	Notes        string     `json:"notes" db:"notes"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// OrderPair returns the two company ids in storage order, lower first.
func OrderPair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}

// CandidateStats is the aggregate view over the candidate table.
type CandidateStats struct {
	Total      int64 `json:"total" db:"total"`
	Pending    int64 `json:"pending" db:"pending"`
	Confirmed  int64 `json:"confirmed" db:"confirmed"`
	Rejected   int64 `json:"rejected" db:"rejected"`
	AutoMerged int64 `json:"auto_merged" db:"auto_merged"`
}
