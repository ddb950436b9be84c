package notify

import (
	"context"
	"fmt"
	"time"

	"libreminder/internal/components/assert"
	"libreminder/internal/components/telemetry"

	"github.com/go-resty/resty/v2"
)

// WebhookNotifier posts the message as a JSON object to a chat webhook.
type WebhookNotifier struct {
	client     *resty.Client
	url        string
	payloadKey string
}

// NewWebhookNotifier creates a notifier posting {"<payloadKey>": message} to url,
// most chat services expect "text" (slack, mattermost) or "content" (discord).
func NewWebhookNotifier(url, payloadKey string, tel telemetry.API) WebhookNotifier {
	assert.NotEmptyStr(url)
	if payloadKey == "" {
		payloadKey = "text"
	}

	client := resty.New()
	client.SetTimeout(time.Second * 15)
	client.SetHeader("content-type", "application/json")
	telemetry.InstrumentResty(client, telemetry.NewScopedAPI("webhook", tel))

	return WebhookNotifier{
		client:     client,
		url:        url,
		payloadKey: payloadKey,
	}
}

func (n WebhookNotifier) Notify(ctx context.Context, message string) error {
	res, err := n.client.R().
		SetContext(ctx).
		SetBody(map[string]string{n.payloadKey: message}).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	if res.IsError() {
		return fmt.Errorf("post webhook: status %d: %s", res.StatusCode(), res.String())
	}
	return nil
}
