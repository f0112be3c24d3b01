package nexmo

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aradsms/sms_bridge/internal/sms_bridge_service/domain"
)

const numbersPageSize = 100

type numbersResponse struct {
	Count   int             `json:"count"`
	Numbers []accountNumber `json:"numbers"`
}

type accountNumber struct {
	Country   string `json:"country"`
	MSISDN    string `json:"msisdn"`
	MoHTTPURL string `json:"moHttpUrl"`
}

type updateResponse struct {
	ErrorCode      string `json:"error-code"`
	ErrorCodeLabel string `json:"error-code-label"`
}

// ListNumbers returns every number rented on the account.
func (c *Client) ListNumbers(ctx context.Context) ([]domain.GatewayNumber, error) {
	var numbers []domain.GatewayNumber
	for index := 1; ; index++ {
		q := c.credentials()
		q.Set("size", strconv.Itoa(numbersPageSize))
		q.Set("index", strconv.Itoa(index))

		var page numbersResponse
		if err := c.get(ctx, "/account/numbers", q, &page); err != nil {
			return nil, err
		}
		for _, n := range page.Numbers {
			numbers = append(numbers, domain.GatewayNumber{MSISDN: n.MSISDN, Country: n.Country, CallbackURL: n.MoHTTPURL})
		}
		if len(page.Numbers) < numbersPageSize || len(numbers) >= page.Count {
			return numbers, nil
		}
	}
}

// UpdateCallback points the number's inbound SMS webhook at callbackURL.
func (c *Client) UpdateCallback(ctx context.Context, number domain.GatewayNumber, callbackURL string) error {
	form := c.credentials()
	form.Set("country", number.Country)
	form.Set("msisdn", number.MSISDN)
	form.Set("moHttpUrl", callbackURL)

	var resp updateResponse
	if err := c.postForm(ctx, "/number/update", form, &resp); err != nil {
		return err
	}
	if resp.ErrorCode != "" && resp.ErrorCode != "200" {
		return fmt.Errorf("nexmo number update %s: %s %s", number.MSISDN, resp.ErrorCode, resp.ErrorCodeLabel)
	}
	return nil
}
