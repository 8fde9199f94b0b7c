package model

import "time"

type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

// RejectionCategories are the accepted values for a rejected application.
var RejectionCategories = []string{
	"Incomplete Documents",
	"Invalid License",
	"Failed Background Check",
	"Vehicle Not Eligible",
	"Other",
}

type DriverApplication struct {
	ID                int64             `json:"application_id"`
	DriverID          int64             `json:"driver_user_id"`
	SponsorID         int64             `json:"sponsor_id"`
	Username          string            `json:"username,omitempty"`
	Email             string            `json:"email,omitempty"`
	Status            ApplicationStatus `json:"status"`
	LicenseNumber     string            `json:"license_number"`
	Vehicle           string            `json:"vehicle"`
	RejectionCategory *string           `json:"rejection_category,omitempty"`
	RejectionReason   *string           `json:"rejection_reason,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// APIErrorLog records an upstream API failure for a sponsor.
type APIErrorLog struct {
	ID         int64     `json:"id"`
	SponsorID  *int64    `json:"sponsor_id,omitempty"`
	Source     string    `json:"source"`
	Operation  string    `json:"operation"`
	StatusCode int       `json:"status_code"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}
