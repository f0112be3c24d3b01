package layer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the messaging platform's server API endpoint.
const DefaultBaseURL = "https://api.layer.com"

const (
	contentType        = "application/json"
	acceptHeader       = "application/vnd.layer+json; version=2.0"
	conversationPrefix = "layer:///conversations/"
	identityPrefix     = "layer:///identities/"
)

// ErrNotFound is returned when the platform reports an unknown resource.
var ErrNotFound = errors.New("layer: not found")

// Client calls the platform server API on behalf of one application.
type Client struct {
	baseURL    string
	appID      string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client. An empty baseURL selects DefaultBaseURL and a nil
// httpClient a client with a 10s timeout.
func NewClient(baseURL, appID, token string, httpClient *http.Client, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		appID:      appID,
		token:      token,
		httpClient: httpClient,
		logger:     logger.With("adapter", "layer"),
	}
}

func (c *Client) appPath(segments ...string) string {
	escaped := make([]string, 0, len(segments)+2)
	escaped = append(escaped, "apps", url.PathEscape(c.appID))
	for _, s := range segments {
		escaped = append(escaped, url.PathEscape(s))
	}
	return c.baseURL + "/" + strings.Join(escaped, "/")
}

func (c *Client) call(ctx context.Context, method, endpoint string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding layer request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("creating layer request: %w", err)
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Authorization", "Bearer "+c.token)
	if in != nil {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("layer %s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading layer response (status %d): %w", resp.StatusCode, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, req.URL.Path)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		c.logger.WarnContext(ctx, "Layer API error", "method", method, "path", req.URL.Path,
			"status_code", resp.StatusCode, "body", string(respBody))
		return fmt.Errorf("layer %s %s: status %d", method, req.URL.Path, resp.StatusCode)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decoding layer response: %w", err)
	}
	return nil
}

// bareID strips the layer:/// URI prefix the platform puts on resource IDs.
func bareID(id, prefix string) string {
	return strings.TrimPrefix(id, prefix)
}
