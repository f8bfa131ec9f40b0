package models

import (
	"strings"
	"time"
)

// Company is a business record produced by the ingestion pipeline.
type Company struct {
	ID            int64      `json:"id" db:"id"`
	Name          string     `json:"name" db:"name"`
	Street        string     `json:"street" db:"street"`
	PostalCode    string     `json:"postal_code" db:"postal_code"`
	City          string     `json:"city" db:"city"`
	State         string     `json:"state" db:"state"`
	Country       string     `json:"country" db:"country"`
	Email         string     `json:"email" db:"email"`
	Phone         string     `json:"phone" db:"phone"`
	Website       string     `json:"website" db:"website"`
	LegalForm     string     `json:"legal_form" db:"legal_form"`
	Industry      string     `json:"industry" db:"industry"`
	Description   string     `json:"description" db:"description"`
	Directors     StringList `json:"directors" db:"directors"`
	Services      StringList `json:"services" db:"services"`
	Technologies  StringList `json:"technologies" db:"technologies"`
	Sources       StringList `json:"sources" db:"sources"`
	IsDuplicate   bool       `json:"is_duplicate" db:"is_duplicate"`
	DuplicateOfID *int64     `json:"duplicate_of_id,omitempty" db:"duplicate_of_id"`
	IsActive      bool       `json:"is_active" db:"is_active"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// Address returns the full address as a single string for comparison.
func (c *Company) Address() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{c.Street, c.PostalCode, c.City} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// CompanyBrief is the reduced projection returned in candidate detail responses.
type CompanyBrief struct {
	ID          int64  `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	City        string `json:"city" db:"city"`
	Phone       string `json:"phone" db:"phone"`
	Website     string `json:"website" db:"website"`
	IsDuplicate bool   `json:"is_duplicate" db:"is_duplicate"`
	IsActive    bool   `json:"is_active" db:"is_active"`
}

// Brief returns the reduced projection of the company.
func (c *Company) Brief() CompanyBrief {
	return CompanyBrief{
		ID:          c.ID,
		Name:        c.Name,
		City:        c.City,
		Phone:       c.Phone,
		Website:     c.Website,
		IsDuplicate: c.IsDuplicate,
		IsActive:    c.IsActive,
	}
}
