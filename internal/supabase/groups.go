package supabase

import (
	"fmt"

	"github.com/parley-chat/parley/backend/internal/models"
)

// ListGroups retrieves all groups visible to the client, newest first.
func (c *Client) ListGroups() ([]models.Group, error) {
	var groups []models.Group
	if err := c.getList("groups?select=*&order=created_at.desc", &groups); err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	return groups, nil
}

// ListGroupMembers retrieves the membership rows of a group.
func (c *Client) ListGroupMembers(groupID string) ([]models.GroupMember, error) {
	endpoint := fmt.Sprintf("group_members?group_id=eq.%s&select=*", groupID)
	var members []models.GroupMember
	if err := c.getList(endpoint, &members); err != nil {
		return nil, fmt.Errorf("failed to list group members: %w", err)
	}
	return members, nil
}

// InsertGroup creates a group and returns the created row.
func (c *Client) InsertGroup(name, createdBy string) (*models.Group, error) {
	row := map[string]interface{}{
		"name":       name,
		"created_by": createdBy,
	}
	var created []models.Group
	if err := c.insertOne("groups", row, &created); err != nil {
		return nil, fmt.Errorf("failed to insert group: %w", err)
	}
	if len(created) == 0 {
		return nil, fmt.Errorf("insert group returned no representation")
	}
	return &created[0], nil
}

// InsertGroupMember adds a single member to a group.
func (c *Client) InsertGroupMember(groupID, userID string) error {
	row := map[string]interface{}{
		"group_id": groupID,
		"user_id":  userID,
	}
	if err := c.insertOne("group_members", row, nil); err != nil {
		return fmt.Errorf("failed to insert group member: %w", err)
	}
	return nil
}

// InsertGroupMembers adds several members in one request.
func (c *Client) InsertGroupMembers(groupID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	rows := make([]map[string]interface{}, 0, len(userIDs))
	for _, id := range userIDs {
		rows = append(rows, map[string]interface{}{
			"group_id": groupID,
			"user_id":  id,
		})
	}
	if _, err := c.doRequest("POST", "group_members", rows); err != nil {
		return fmt.Errorf("failed to insert group members: %w", err)
	}
	return nil
}
