package messaging

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/acme/patient-notify/internal/config"
	apperrors "github.com/acme/patient-notify/pkg/errors"
)

// TwilioGateway sends messages through a Twilio-style REST API.
type TwilioGateway struct {
	client     *resty.Client
	accountSID string
	from       string
}

// NewTwilioGateway constructs the gateway from config.
func NewTwilioGateway(cfg config.MessagingConfig) *TwilioGateway {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.RequestTimeout).
		SetBasicAuth(cfg.AccountSID, cfg.AuthToken)

	return &TwilioGateway{
		client:     client,
		accountSID: cfg.AccountSID,
		from:       cfg.FromNumber,
	}
}

type twilioMessageResponse struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

// Send delivers the message and returns the provider message sid.
func (g *TwilioGateway) Send(ctx context.Context, phoneNumber, body string) (string, error) {
	var result twilioMessageResponse

	resp, err := g.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"From": g.from,
			"To":   phoneNumber,
			"Body": body,
		}).
		SetResult(&result).
		Post(fmt.Sprintf("/2010-04-01/Accounts/%s/Messages.json", g.accountSID))
	if err != nil {
		return "", &apperrors.GatewayError{Message: err.Error()}
	}

	if resp.IsError() {
		return "", &apperrors.GatewayError{
			StatusCode: resp.StatusCode(),
			Message:    string(resp.Body()),
		}
	}

	return result.SID, nil
}
