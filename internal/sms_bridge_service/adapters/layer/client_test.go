package layer

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aradsms/sms_bridge/internal/sms_bridge_service/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "app-1", "token", srv.Client(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClient_Resolve(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/apps/app-1/users/bob/identity", r.URL.Path)
		_, _ = io.WriteString(w, `{"user_id":"bob","display_name":"Bob","phone_number":"+15559999"}`)
	})

	identity, err := c.Resolve(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.Identity{UserID: "bob", DisplayName: "Bob", PhoneNumber: "+15559999"}, identity)
}

func TestClient_ResolveNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	_, err := c.Resolve(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_Introduce(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"named", `{"id":"layer:///conversations/c1","metadata":{"conversationName":"Team"}}`, `You have new messages in Conversation "Team"`},
		{"unnamed", `{"id":"layer:///conversations/c1","metadata":{}}`, `You have new messages in Conversation "Unnamed Conversation"`},
		{"no metadata", `{"id":"layer:///conversations/c1"}`, `You have new messages in Conversation "Unnamed Conversation"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/apps/app-1/conversations/c1", r.URL.Path)
				_, _ = io.WriteString(w, tt.body)
			})
			intro, err := c.Introduce(context.Background(), domain.Message{Conversation: domain.ConversationRef{ID: "layer:///conversations/c1"}})
			require.NoError(t, err)
			assert.Equal(t, tt.want, intro)
		})
	}
}

func TestClient_SendAsUser(t *testing.T) {
	var got sendMessageRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/apps/app-1/conversations/c1/messages", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	})

	require.NoError(t, c.SendAsUser(context.Background(), "layer:///conversations/c1", "bob", "sure"))
	assert.Equal(t, "layer:///identities/bob", got.SenderID)
	assert.Equal(t, []messagePart{{Body: "sure", MimeType: "text/plain"}}, got.Parts)
}

func TestClient_SendAsUserServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	err := c.SendAsUser(context.Background(), "c1", "bob", "sure")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestWebhookRegistrar_Register(t *testing.T) {
	hook := domain.NewReceiptHookConfig("", "", 5*time.Second, nil)
	var created map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/apps/app-1/webhooks", r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			_, _ = io.WriteString(w, `[{"id":"w0","target_url":"https://elsewhere/hook","status":"active"}]`)
		case http.MethodPost:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"id":"w1","status":"unverified"}`)
		}
	})

	err := NewWebhookRegistrar(c, "s3cret").Register(context.Background(), hook, "https://bridge.example.com/nexmo-new-message")
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "https://bridge.example.com/nexmo-new-message", created["target_url"])
	assert.Equal(t, "s3cret", created["secret"])
	config := created["config"].(map[string]interface{})
	assert.Equal(t, "Nexmo Integration", config["name"])
	assert.Equal(t, "5s", config["delay"])
}

func TestWebhookRegistrar_SkipsExisting(t *testing.T) {
	posted := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posted = true
		}
		_, _ = io.WriteString(w, `[{"id":"w0","target_url":"https://bridge.example.com/nexmo-new-message","status":"active"}]`)
	})

	hook := domain.NewReceiptHookConfig("", "", 0, nil)
	require.NoError(t, NewWebhookRegistrar(c, "s").Register(context.Background(), hook, "https://bridge.example.com/nexmo-new-message"))
	assert.False(t, posted)
}
