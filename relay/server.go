package main

import (
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gravitational/trace"
	"github.com/julienschmidt/httprouter"
	limiter "github.com/sethvargo/go-limiter"
	"github.com/sethvargo/go-limiter/memorystore"

	"github.com/covalent-labs/teams-relay/lib"
	"github.com/covalent-labs/teams-relay/lib/logger"
	"github.com/covalent-labs/teams-relay/msapi"
)

// APIServer exposes the message relay over HTTP. It validates the request
// parameters, delegates to the Graph client and converts errors into
// structured JSON responses, switching on error kind rather than text.
type APIServer struct {
	http   *lib.HTTP
	client *msapi.Client
	rl     limiter.Store
}

// messageResponse is the success payload of the messages endpoints
type messageResponse struct {
	Count    int             `json:"count"`
	Messages []msapi.Message `json:"messages"`
}

// errorResponse is the failure payload of all the endpoints
type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// healthResponse is the liveness probe payload
type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// NewAPIServer initializes the HTTP server and registers the relay routes.
func NewAPIServer(conf Config, client *msapi.Client) (*APIServer, error) {
	httpSrv, err := lib.NewHTTP(conf.HTTP)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	srv := &APIServer{
		http:   httpSrv,
		client: client,
	}

	if conf.RateLimit.PerMinute > 0 {
		srv.rl, err = memorystore.New(&memorystore.Config{
			Tokens:   conf.RateLimit.PerMinute,
			Interval: time.Minute,
		})
		if err != nil {
			return nil, trace.Wrap(err)
		}
	}

	httpSrv.GET("/", srv.handleHealth)
	httpSrv.GET("/messages", srv.handleMessages)
	httpSrv.GET("/replies", srv.handleReplies)
	httpSrv.PanicHandler = func(rw http.ResponseWriter, r *http.Request, p interface{}) {
		logger.Standard().Errorf("Panic while serving %v: %v", r.URL.Path, p)
		respondJSON(rw, http.StatusInternalServerError, errorResponse{
			Error:  "Internal server error",
			Detail: "An unexpected error occurred. Please try again later.",
		})
	}

	return srv, nil
}

// ServiceJob returns a service job running the HTTP server.
func (s *APIServer) ServiceJob() lib.ServiceJob {
	return s.http.ServiceJob()
}

// EnsureCert checks the TLS certificate pair when TLS is configured.
func (s *APIServer) EnsureCert() error {
	return s.http.EnsureCert()
}

func (s *APIServer) handleHealth(rw http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	respondJSON(rw, http.StatusOK, healthResponse{
		Status:  "healthy",
		Service: appName,
		Version: Version,
	})
}

func (s *APIServer) handleMessages(rw http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if !s.allow(rw, r) {
		return
	}

	q := r.URL.Query()
	target := msapi.Target{
		TeamID:    q.Get("team_id"),
		ChannelID: q.Get("channel_id"),
		ChatID:    q.Get("chat_id"),
	}
	if err := target.Check(); err != nil {
		s.respondError(rw, r, err)
		return
	}

	since, err := parseSince(q.Get("since"))
	if err != nil {
		s.respondError(rw, r, err)
		return
	}

	result, err := s.client.GetMessages(r.Context(), target, since)
	if err != nil {
		s.respondError(rw, r, err)
		return
	}

	respondResult(rw, result)
}

func (s *APIServer) handleReplies(rw http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if !s.allow(rw, r) {
		return
	}

	q := r.URL.Query()
	result, err := s.client.GetMessageReplies(r.Context(), q.Get("team_id"), q.Get("channel_id"), q.Get("message_id"))
	if err != nil {
		s.respondError(rw, r, err)
		return
	}

	respondResult(rw, result)
}

// respondResult sends a fetch result making sure an empty aggregate is
// rendered as an empty array, not null.
func respondResult(rw http.ResponseWriter, result msapi.FetchResult) {
	messages := result.Messages
	if messages == nil {
		messages = []msapi.Message{}
	}
	respondJSON(rw, http.StatusOK, messageResponse{Count: result.Count, Messages: messages})
}

// allow applies the per-client rate limit. Returns false when the request
// was already responded to.
func (s *APIServer) allow(rw http.ResponseWriter, r *http.Request) bool {
	if s.rl == nil {
		return true
	}

	key, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		key = r.RemoteAddr
	}

	_, _, _, ok, err := s.rl.Take(r.Context(), key)
	if err != nil {
		s.respondError(rw, r, trace.Wrap(err))
		return false
	}
	if !ok {
		respondJSON(rw, http.StatusTooManyRequests, errorResponse{
			Error:  http.StatusText(http.StatusTooManyRequests),
			Detail: "client request rate limit exceeded",
		})
		return false
	}
	return true
}

func (s *APIServer) respondError(rw http.ResponseWriter, r *http.Request, err error) {
	log := logger.Get(r.Context())
	code := errorCode(err)

	if code >= http.StatusInternalServerError {
		log.WithError(err).Errorf("Failed to serve %v", r.URL.Path)
	} else {
		log.WithError(err).Debugf("Request to %v rejected", r.URL.Path)
	}
	log.Debugf("%v", trace.DebugReport(err))

	respondJSON(rw, code, errorResponse{
		Error:  http.StatusText(code),
		Detail: trace.UserMessage(err),
	})
}

// errorCode maps an error to an HTTP status code by its kind.
func errorCode(err error) int {
	switch {
	case trace.IsBadParameter(err):
		return http.StatusBadRequest
	case msapi.IsAuthError(err), msapi.IsUnauthorized(err):
		return http.StatusUnauthorized
	case trace.IsAccessDenied(err):
		return http.StatusForbidden
	case trace.IsNotFound(err):
		return http.StatusNotFound
	case lib.IsDeadline(err), lib.IsCanceled(err):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// parseSince parses the optional since query parameter. Accepts an RFC3339
// timestamp or a naive one without a zone designator, interpreted as UTC.
func parseSince(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", value, time.UTC); err == nil {
		return &t, nil
	}
	return nil, trace.BadParameter("invalid ISO 8601 timestamp format: %q", value)
}

func respondJSON(rw http.ResponseWriter, code int, payload interface{}) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)
	if err := json.NewEncoder(rw).Encode(payload); err != nil {
		logger.Standard().WithError(err).Error("Failed to encode a response")
	}
}
