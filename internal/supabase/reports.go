package supabase

import (
	"fmt"

	"github.com/parley-chat/parley/backend/internal/models"
)

// ListReports retrieves every report record. Counting happens client-side;
// the table is small and append-only.
func (c *Client) ListReports() ([]models.ReportRecord, error) {
	var reports []models.ReportRecord
	if err := c.getList("user_reports?select=*", &reports); err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return reports, nil
}

// InsertReport appends a new report record.
func (c *Client) InsertReport(reporterID, reportedUserID, reason string) error {
	row := map[string]interface{}{
		"reporter_id":      reporterID,
		"reported_user_id": reportedUserID,
	}
	if reason != "" {
		row["reason"] = reason
	} else {
		row["reason"] = nil
	}
	if err := c.insertOne("user_reports", row, nil); err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}
