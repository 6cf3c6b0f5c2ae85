package msapi

import (
	"context"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/jonboulle/clockwork"
)

// Client represents a client to the MS Graph API messaging endpoints.
// All responses are fetched on behalf of the application itself using the
// client credentials flow; no user token is ever involved.
type Client struct {
	token    *tokenWithTTL
	client   *resty.Client
	baseURL  string
	maxPages int
}

// NewClient creates an MS Graph API client. The config is expected to be
// validated with CheckAndSetDefaults beforehand.
func NewClient(config Config) *Client {
	httpClient := &http.Client{
		Timeout: httpTimeout,
		Transport: &http.Transport{
			MaxConnsPerHost:     maxConns,
			MaxIdleConnsPerHost: maxConns,
		},
	}

	return &Client{
		token: &tokenWithTTL{
			config: config,
			client: resty.NewWithClient(httpClient),
			clock:  clockwork.NewRealClock(),
		},
		client: resty.NewWithClient(httpClient).
			SetHeader("Accept", "application/json"),
		baseURL:  config.GraphBaseURL,
		maxPages: config.MaxPages,
	}
}

// Bearer returns a valid bearer token for the Graph API.
func (c *Client) Bearer(ctx context.Context) (string, error) {
	return c.token.Bearer(ctx)
}

// ClearTokenCache drops the cached bearer token forcing a fresh exchange on
// the next call. Used for tests and operational reset.
func (c *Client) ClearTokenCache() {
	c.token.Clear()
}
