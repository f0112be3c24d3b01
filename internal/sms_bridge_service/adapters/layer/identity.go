package layer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aradsms/sms_bridge/internal/sms_bridge_service/domain"
)

type identityResponse struct {
	UserID       string `json:"user_id"`
	DisplayName  string `json:"display_name"`
	PhoneNumber  string `json:"phone_number"`
	EmailAddress string `json:"email_address"`
}

// Resolve fetches the identity of userID.
func (c *Client) Resolve(ctx context.Context, userID string) (domain.Identity, error) {
	var resp identityResponse
	if err := c.call(ctx, http.MethodGet, c.appPath("users", bareID(userID, identityPrefix), "identity"), nil, &resp); err != nil {
		return domain.Identity{}, fmt.Errorf("fetching identity of %s: %w", userID, err)
	}
	id := resp.UserID
	if id == "" {
		id = userID
	}
	return domain.Identity{
		UserID:       id,
		DisplayName:  resp.DisplayName,
		PhoneNumber:  resp.PhoneNumber,
		EmailAddress: resp.EmailAddress,
	}, nil
}
