package models

import "time"

// ReportRecord is a single user report as stored in the user_reports table.
// Records are append-only; moderation status is always derived from the
// full set, never stored.
type ReportRecord struct {
	ID             string    `json:"id"`
	ReporterID     string    `json:"reporter_id"`
	ReportedUserID string    `json:"reported_user_id"`
	Reason         string    `json:"reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// SubmitReportRequest is the request body for reporting a user.
type SubmitReportRequest struct {
	ReportedUserID string `json:"reported_user_id"`
	Reason         string `json:"reason,omitempty"`
}

// ModerationStatus is the derived moderation view of a single user.
type ModerationStatus struct {
	UserID      string `json:"user_id"`
	ReportCount int    `json:"report_count"`
	Blocked     bool   `json:"blocked"`
	// Reported is true when the acting user has already reported this user
	Reported bool `json:"reported"`
}
