package secrets

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"libreminder/internal/components/telemetry"

	"github.com/go-resty/resty/v2"
)

// HTTPStore fetches secrets from a remote secret service with GET <base>/<name>,
// the response body is the value.
type HTTPStore struct {
	client *resty.Client
}

func NewHTTPStore(baseUrl, token string, tel telemetry.API) HTTPStore {
	client := resty.New()
	client.SetBaseURL(strings.TrimSuffix(baseUrl, "/"))
	client.SetTimeout(time.Second * 10)
	if token != "" {
		client.SetAuthToken(token)
	}
	telemetry.InstrumentResty(client, telemetry.NewScopedAPI("secrets", tel))
	return HTTPStore{client: client}
}

func (s HTTPStore) Secret(ctx context.Context, name string) (string, error) {
	res, err := s.client.R().
		SetContext(ctx).
		SetHeader("accept", "text/plain").
		Get("/" + url.PathEscape(name))
	if err != nil {
		return "", &SecretUnavailableError{Name: name, Err: err}
	}
	if res.StatusCode() == http.StatusNotFound {
		return "", notFound(name)
	}
	if res.IsError() {
		return "", &SecretUnavailableError{Name: name, Err: fmt.Errorf("status %d", res.StatusCode())}
	}

	value := strings.TrimSpace(res.String())
	if value == "" {
		return "", notFound(name)
	}
	return value, nil
}
