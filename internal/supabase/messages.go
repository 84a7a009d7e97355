package supabase

import (
	"fmt"

	"github.com/parley-chat/parley/backend/internal/models"
)

// messageRow is the insert/update shape for the messages table. Pointers
// distinguish "send null" from "omit" so direct and group messages can
// share one shape.
type messageRow struct {
	SenderID   string  `json:"sender_id"`
	ReceiverID *string `json:"receiver_id"`
	GroupID    *string `json:"group_id"`
	Body       string  `json:"message"`
	FileURL    *string `json:"file_url,omitempty"`
	FileType   *string `json:"file_type,omitempty"`
	FileName   *string `json:"file_name,omitempty"`
}

// ListDirectMessages retrieves the full timeline of a direct conversation
// between two users, oldest first.
func (c *Client) ListDirectMessages(userID, otherUserID string) ([]models.Message, error) {
	endpoint := fmt.Sprintf(
		"messages?or=(and(sender_id.eq.%s,receiver_id.eq.%s),and(sender_id.eq.%s,receiver_id.eq.%s))&order=created_at.asc",
		userID, otherUserID, otherUserID, userID,
	)
	var messages []models.Message
	if err := c.getList(endpoint, &messages); err != nil {
		return nil, fmt.Errorf("failed to list direct messages: %w", err)
	}
	return messages, nil
}

// ListGroupMessages retrieves the full timeline of a group, oldest first.
func (c *Client) ListGroupMessages(groupID string) ([]models.Message, error) {
	endpoint := fmt.Sprintf("messages?group_id=eq.%s&order=created_at.asc", groupID)
	var messages []models.Message
	if err := c.getList(endpoint, &messages); err != nil {
		return nil, fmt.Errorf("failed to list group messages: %w", err)
	}
	return messages, nil
}

// ListUserMessages retrieves every direct message the user sent or
// received, newest first. Used to seed the last-message index.
func (c *Client) ListUserMessages(userID string) ([]models.Message, error) {
	endpoint := fmt.Sprintf(
		"messages?or=(sender_id.eq.%s,receiver_id.eq.%s)&order=created_at.desc",
		userID, userID,
	)
	var messages []models.Message
	if err := c.getList(endpoint, &messages); err != nil {
		return nil, fmt.Errorf("failed to list user messages: %w", err)
	}
	return messages, nil
}

// InsertMessage inserts a new message and returns the created row with its
// server-assigned id and timestamp.
func (c *Client) InsertMessage(msg models.Message) (*models.Message, error) {
	row := messageRow{
		SenderID: msg.SenderID,
		Body:     msg.Body,
	}
	if msg.ReceiverID != "" {
		row.ReceiverID = &msg.ReceiverID
	}
	if msg.GroupID != "" {
		row.GroupID = &msg.GroupID
	}
	if msg.HasAttachment() {
		row.FileURL = &msg.FileURL
		row.FileType = &msg.FileType
		row.FileName = &msg.FileName
	}

	var created []models.Message
	if err := c.insertOne("messages", row, &created); err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}
	if len(created) == 0 {
		return nil, fmt.Errorf("insert message returned no representation")
	}
	return &created[0], nil
}

// UpdateMessageBody edits a message's text. The sender_id filter repeats
// the local ownership check at the data layer so a stale client cannot
// edit someone else's message.
func (c *Client) UpdateMessageBody(messageID, senderID, body string) error {
	data := map[string]interface{}{"message": body}
	endpoint := fmt.Sprintf("messages?id=eq.%s&sender_id=eq.%s", messageID, senderID)
	_, err := c.doRequest("PATCH", endpoint, data)
	return err
}

// DeleteMessage removes a message, again scoped to its sender.
func (c *Client) DeleteMessage(messageID, senderID string) error {
	endpoint := fmt.Sprintf("messages?id=eq.%s&sender_id=eq.%s", messageID, senderID)
	_, err := c.doRequest("DELETE", endpoint, nil)
	return err
}

// MarkConversationSeen flips seen=true on every unseen message the receiver
// has from this sender. Fired when a direct conversation is opened.
func (c *Client) MarkConversationSeen(senderID, receiverID string) error {
	data := map[string]interface{}{"seen": true}
	endpoint := fmt.Sprintf(
		"messages?sender_id=eq.%s&receiver_id=eq.%s&seen=eq.false",
		senderID, receiverID,
	)
	_, err := c.doRequest("PATCH", endpoint, data)
	return err
}

// MarkMessageSeen flips seen=true on a single message. Fired when an insert
// event for the open conversation arrives and the actor is the receiver.
func (c *Client) MarkMessageSeen(messageID string) error {
	data := map[string]interface{}{"seen": true}
	endpoint := fmt.Sprintf("messages?id=eq.%s", messageID)
	_, err := c.doRequest("PATCH", endpoint, data)
	return err
}
