package supabase

import (
	"fmt"

	"github.com/parley-chat/parley/backend/internal/models"
)

// ListNotifications retrieves all notifications for a user, newest first.
func (c *Client) ListNotifications(userID string) ([]models.Notification, error) {
	endpoint := fmt.Sprintf("notifications?user_id=eq.%s&order=created_at.desc", userID)
	var notifications []models.Notification
	if err := c.getList(endpoint, &notifications); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

// InsertNotification creates a notification for a user. Used when adding
// members to a group so they learn about it.
func (c *Client) InsertNotification(userID, title, body string) error {
	row := map[string]interface{}{
		"user_id": userID,
		"title":   title,
		"message": body,
	}
	if err := c.insertOne("notifications", row, nil); err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// MarkNotificationRead flips is_read on a single notification.
func (c *Client) MarkNotificationRead(notificationID string) error {
	data := map[string]interface{}{"is_read": true}
	endpoint := fmt.Sprintf("notifications?id=eq.%s", notificationID)
	_, err := c.doRequest("PATCH", endpoint, data)
	return err
}

// MarkAllNotificationsRead flips is_read on every unread notification the
// user has.
func (c *Client) MarkAllNotificationsRead(userID string) error {
	data := map[string]interface{}{"is_read": true}
	endpoint := fmt.Sprintf("notifications?user_id=eq.%s&is_read=eq.false", userID)
	_, err := c.doRequest("PATCH", endpoint, data)
	return err
}
