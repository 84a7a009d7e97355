package supabase

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/parley-chat/parley/backend/internal/models"
)

const (
	// chatFilesBucket is the storage bucket holding message attachments
	chatFilesBucket = "chat-files"

	// maxUploadSize caps attachment uploads at 10MB
	maxUploadSize = 10 * 1024 * 1024
)

// Upload stores an attachment in the chat-files bucket and returns its
// public URL plus the derived attachment kind. The object path is prefixed
// with the uploading user's ID, matching the bucket's layout.
func (c *Client) Upload(userID, filename, contentType string, data []byte) (*models.Attachment, error) {
	if len(data) > maxUploadSize {
		return nil, fmt.Errorf("file size exceeds %d bytes", maxUploadSize)
	}

	objectPath := fmt.Sprintf("%s/%d-%s%s",
		userID, time.Now().UnixMilli(), uuid.New().String()[:8], path.Ext(filename))

	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, chatFilesBucket, objectPath)
	req, err := http.NewRequest("POST", url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create upload request: %w", err)
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("storage error (status %d): %s", resp.StatusCode, string(body))
	}

	publicURL := fmt.Sprintf("%s/storage/v1/object/public/%s/%s",
		c.baseURL, chatFilesBucket, objectPath)

	return &models.Attachment{
		URL:  publicURL,
		Kind: attachmentKind(contentType),
		Name: filename,
	}, nil
}

// attachmentKind derives the attachment kind stored in file_type from the
// uploaded content type.
func attachmentKind(contentType string) string {
	switch {
	case contentType == "image/gif":
		return models.AttachmentGif
	case strings.HasPrefix(contentType, "image/"):
		return models.AttachmentImage
	default:
		return models.AttachmentFile
	}
}
