package msapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jonboulle/clockwork"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/require"
)

type fakeIdentity struct {
	srv *httptest.Server

	exchanges     int32
	status        int32
	omitExpiresIn bool
	hold          chan struct{}
}

func newFakeIdentity(t *testing.T) *fakeIdentity {
	f := &fakeIdentity{status: http.StatusOK}

	router := httprouter.New()
	router.POST("/:tenant/oauth2/v2.0/token", func(rw http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if ps.ByName("tenant") != "test-tenant" {
			http.Error(rw, "unknown tenant", http.StatusNotFound)
			return
		}
		panicIf(r.ParseForm())
		if r.PostFormValue("grant_type") != "client_credentials" ||
			r.PostFormValue("client_id") != "test-app" ||
			r.PostFormValue("client_secret") != "test-secret" {
			http.Error(rw, "bad exchange request", http.StatusBadRequest)
			return
		}

		if f.hold != nil {
			<-f.hold
		}

		n := atomic.AddInt32(&f.exchanges, 1)
		if status := int(atomic.LoadInt32(&f.status)); status != http.StatusOK {
			rw.Header().Set("Content-Type", "application/json")
			rw.WriteHeader(status)
			fmt.Fprint(rw, `{"error":"invalid_client","error_description":"secret is expired"}`)
			return
		}

		response := map[string]interface{}{
			"access_token": fmt.Sprintf("token-%v", n),
		}
		if !f.omitExpiresIn {
			response["expires_in"] = 3600
		}
		rw.Header().Set("Content-Type", "application/json")
		panicIf(json.NewEncoder(rw).Encode(response))
	})

	f.srv = httptest.NewServer(router)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeIdentity) exchangeCount() int {
	return int(atomic.LoadInt32(&f.exchanges))
}

func panicIf(err error) {
	if err != nil {
		panic(err)
	}
}

func newTestToken(f *fakeIdentity, clock clockwork.Clock) *tokenWithTTL {
	return &tokenWithTTL{
		config: Config{
			AppID:        "test-app",
			AppSecret:    "test-secret",
			TenantID:     "test-tenant",
			Scope:        "test-scope",
			TokenBaseURL: f.srv.URL,
		},
		client: resty.New(),
		clock:  clock,
	}
}

func TestBearerCachesToken(t *testing.T) {
	identity := newFakeIdentity(t)
	token := newTestToken(identity, clockwork.NewFakeClock())

	first, err := token.Bearer(context.Background())
	require.NoError(t, err)
	require.Equal(t, "token-1", first)

	second, err := token.Bearer(context.Background())
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, identity.exchangeCount())
}

func TestBearerExpiryBoundary(t *testing.T) {
	identity := newFakeIdentity(t)
	clock := clockwork.NewFakeClock()
	token := newTestToken(identity, clock)

	_, err := token.Bearer(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, identity.exchangeCount())

	// The token expires for cache purposes 300 seconds before its actual
	// lifetime of 3600 seconds.
	clock.Advance(3299 * time.Second)
	value, err := token.Bearer(context.Background())
	require.NoError(t, err)
	require.Equal(t, "token-1", value)
	require.Equal(t, 1, identity.exchangeCount())

	clock.Advance(2 * time.Second)
	value, err = token.Bearer(context.Background())
	require.NoError(t, err)
	require.Equal(t, "token-2", value)
	require.Equal(t, 2, identity.exchangeCount())
}

func TestBearerDefaultExpiry(t *testing.T) {
	identity := newFakeIdentity(t)
	identity.omitExpiresIn = true
	clock := clockwork.NewFakeClock()
	token := newTestToken(identity, clock)

	// An issued token without expires_in is assumed to live for an hour.
	_, err := token.Bearer(context.Background())
	require.NoError(t, err)

	clock.Advance(3299 * time.Second)
	_, err = token.Bearer(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, identity.exchangeCount())

	clock.Advance(2 * time.Second)
	_, err = token.Bearer(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, identity.exchangeCount())
}

func TestClearForcesExchange(t *testing.T) {
	identity := newFakeIdentity(t)
	token := newTestToken(identity, clockwork.NewFakeClock())

	_, err := token.Bearer(context.Background())
	require.NoError(t, err)

	token.Clear()

	value, err := token.Bearer(context.Background())
	require.NoError(t, err)
	require.Equal(t, "token-2", value)
	require.Equal(t, 2, identity.exchangeCount())
}

func TestBearerExchangeFailure(t *testing.T) {
	identity := newFakeIdentity(t)
	atomic.StoreInt32(&identity.status, http.StatusBadRequest)
	token := newTestToken(identity, clockwork.NewFakeClock())

	_, err := token.Bearer(context.Background())
	require.Error(t, err)
	require.True(t, IsAuthError(err))

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, http.StatusBadRequest, authErr.Status)
	require.Contains(t, authErr.Detail, "invalid_client")
}

func TestBearerTransportFailure(t *testing.T) {
	identity := newFakeIdentity(t)
	token := newTestToken(identity, clockwork.NewFakeClock())
	identity.srv.Close()

	_, err := token.Bearer(context.Background())
	require.Error(t, err)
	require.True(t, IsAuthError(err))
}

func TestBearerConcurrentExchanges(t *testing.T) {
	identity := newFakeIdentity(t)
	identity.hold = make(chan struct{})
	token := newTestToken(identity, clockwork.NewFakeClock())

	const callers = 8
	results := make([]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = token.Bearer(context.Background())
		}(i)
	}

	// Give the callers a chance to pile up on the in-flight exchange
	// before the identity endpoint responds.
	time.Sleep(100 * time.Millisecond)
	close(identity.hold)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, "token-1", results[i])
	}
	require.Equal(t, 1, identity.exchangeCount())
}
