package layer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aradsms/sms_bridge/internal/sms_bridge_service/domain"
)

// UnnamedConversation stands in for conversations without a name.
const UnnamedConversation = "Unnamed Conversation"

type conversationResponse struct {
	ID       string                 `json:"id"`
	Metadata map[string]interface{} `json:"metadata"`
}

type messagePart struct {
	Body     string `json:"body"`
	MimeType string `json:"mime_type"`
}

type sendMessageRequest struct {
	SenderID     string        `json:"sender_id"`
	Parts        []messagePart `json:"parts"`
	Notification *notification `json:"notification,omitempty"`
}

type notification struct {
	Text  string `json:"text"`
	Sound string `json:"sound,omitempty"`
}

// ConversationName returns the conversationName metadata of a conversation,
// or UnnamedConversation.
func (c *Client) ConversationName(ctx context.Context, conversationID string) (string, error) {
	var resp conversationResponse
	endpoint := c.appPath("conversations", bareID(conversationID, conversationPrefix))
	if err := c.call(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return "", fmt.Errorf("fetching conversation %s: %w", conversationID, err)
	}
	if name, ok := resp.Metadata["conversationName"].(string); ok && name != "" {
		return name, nil
	}
	return UnnamedConversation, nil
}

// Introduce names the conversation msg belongs to.
func (c *Client) Introduce(ctx context.Context, msg domain.Message) (string, error) {
	name, err := c.ConversationName(ctx, msg.Conversation.ID)
	if err != nil {
		return "", err
	}
	return `You have new messages in Conversation "` + name + `"`, nil
}

// SendAsUser posts a plain text message into conversationID as userID.
func (c *Client) SendAsUser(ctx context.Context, conversationID, userID, text string) error {
	req := sendMessageRequest{
		SenderID: identityPrefix + bareID(userID, identityPrefix),
		Parts:    []messagePart{{Body: text, MimeType: domain.MimeTypeTextPlain}},
		Notification: &notification{
			Text:  text,
			Sound: "chime.aiff",
		},
	}
	endpoint := c.appPath("conversations", bareID(conversationID, conversationPrefix), "messages")
	if err := c.call(ctx, http.MethodPost, endpoint, req, nil); err != nil {
		return fmt.Errorf("posting message to %s: %w", conversationID, err)
	}
	return nil
}
