package msapi

import (
	"context"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

const (
	// grantType is the OAuth2 flow used to authenticate the service itself
	grantType = "client_credentials"
	// expiryMargin is subtracted from the reported token lifetime so a
	// token is never presented in its final moments of validity
	expiryMargin = time.Second * 300
	// defaultExpiresIn is assumed when the identity platform omits
	// expires_in from the token response
	defaultExpiresIn = 3600
)

// token is an issued bearer credential. It is replaced wholesale on refresh,
// never mutated in place.
type token struct {
	value     string
	expiresAt time.Time
}

// tokenWithTTL issues bearer tokens via the OAuth2 client credentials flow
// and caches the latest one until it is close to expiry. Safe for concurrent
// use; concurrent refreshes are collapsed into a single exchange.
type tokenWithTTL struct {
	config  Config
	client  *resty.Client
	clock   clockwork.Clock
	group   singleflight.Group
	mu      sync.Mutex
	current *token
}

// tokenResponse represents the identity platform token endpoint response
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Bearer returns a valid bearer token, using the cached one when it is still
// fresh and exchanging the client credentials otherwise.
func (t *tokenWithTTL) Bearer(ctx context.Context) (string, error) {
	t.mu.Lock()
	if t.current != nil && t.clock.Now().Before(t.current.expiresAt) {
		value := t.current.value
		t.mu.Unlock()
		return value, nil
	}
	t.mu.Unlock()

	value, err, _ := t.group.Do("bearer", func() (interface{}, error) {
		issued, err := t.exchange(ctx)
		if err != nil {
			return nil, trace.Wrap(err)
		}

		t.mu.Lock()
		t.current = issued
		t.mu.Unlock()

		return issued.value, nil
	})
	if err != nil {
		return "", trace.Wrap(err)
	}
	return value.(string), nil
}

// Clear resets the cache slot forcing the next Bearer call to exchange.
func (t *tokenWithTTL) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = nil
}

func (t *tokenWithTTL) exchange(ctx context.Context) (*token, error) {
	var result tokenResponse

	resp, err := t.client.NewRequest().
		SetContext(ctx).
		SetFormData(map[string]string{
			"client_id":     t.config.AppID,
			"client_secret": t.config.AppSecret,
			"scope":         t.config.Scope,
			"grant_type":    grantType,
		}).
		SetResult(&result).
		Post(t.config.TokenBaseURL + "/" + t.config.TenantID + "/oauth2/v2.0/token")
	if err != nil {
		return nil, &AuthError{Detail: err.Error(), cause: err}
	}
	if !resp.IsSuccess() {
		return nil, &AuthError{Status: resp.StatusCode(), Detail: errorDetail(resp.Body())}
	}

	expiresIn := result.ExpiresIn
	if expiresIn == 0 {
		expiresIn = defaultExpiresIn
	}

	return &token{
		value:     result.AccessToken,
		expiresAt: t.clock.Now().Add(time.Duration(expiresIn)*time.Second - expiryMargin),
	}, nil
}
