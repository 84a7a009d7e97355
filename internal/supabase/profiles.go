package supabase

import (
	"fmt"

	"github.com/parley-chat/parley/backend/internal/models"
)

// ListProfiles retrieves every profile except the acting user's, ordered
// by display name.
func (c *Client) ListProfiles(excludeUserID string) ([]models.Profile, error) {
	endpoint := fmt.Sprintf("profiles?user_id=neq.%s&order=name", excludeUserID)
	var profiles []models.Profile
	if err := c.getList(endpoint, &profiles); err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	return profiles, nil
}
