package models

import "time"

// Attachment kinds stored in the file_type column. The upload path derives
// them from the file's content type; the conversation list uses them to
// build preview labels for messages without text.
const (
	AttachmentImage = "image"
	AttachmentGif   = "gif"
	AttachmentFile  = "file"
)

// Message represents a single chat message as stored in the messages table.
// Exactly one of ReceiverID (direct message) or GroupID (group message) is
// set; together with the sender it identifies the conversation the message
// belongs to.
type Message struct {
	// ID is the server-assigned unique identifier
	ID string `json:"id"`

	// SenderID is the user who sent the message
	SenderID string `json:"sender_id"`

	// ReceiverID is set for direct messages, empty for group messages
	ReceiverID string `json:"receiver_id,omitempty"`

	// GroupID is set for group messages, empty for direct messages
	GroupID string `json:"group_id,omitempty"`

	// Body is the message text. May be empty when an attachment is present.
	Body string `json:"message"`

	// Seen marks a direct message as read by its receiver.
	// It only ever transitions false -> true.
	Seen bool `json:"seen"`

	// CreatedAt is server-assigned and is the primary ordering key
	CreatedAt time.Time `json:"created_at"`

	// Optional attachment resolved by the upload collaborator
	FileURL  string `json:"file_url,omitempty"`
	FileType string `json:"file_type,omitempty"`
	FileName string `json:"file_name,omitempty"`
}

// HasAttachment reports whether the message carries an uploaded file.
func (m Message) HasAttachment() bool {
	return m.FileURL != ""
}

// Before reports whether m sorts before other in a conversation timeline.
// Messages are totally ordered by (created_at, id); the id tie-break keeps
// the order stable when two messages share a timestamp.
func (m Message) Before(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}

// Attachment is the result of resolving a file upload: a public URL plus
// the derived kind and the original file name.
type Attachment struct {
	URL  string `json:"url"`
	Kind string `json:"kind"`
	Name string `json:"name"`
}

// SendMessageRequest is the request body for sending a message.
type SendMessageRequest struct {
	Body       string      `json:"message"`
	Attachment *Attachment `json:"attachment,omitempty"`
}

// EditMessageRequest is the request body for editing a message.
type EditMessageRequest struct {
	Body string `json:"message"`
}

// TimelineResponse is the response for fetching a conversation timeline.
type TimelineResponse struct {
	Messages []Message `json:"messages"`
}
