package lib

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/gravitational/trace"
	"github.com/julienschmidt/httprouter"
	log "github.com/sirupsen/logrus"
)

// HTTPConfig stores configuration of an HTTP server.
type HTTPConfig struct {
	ListenAddr string              `toml:"listen_addr"`
	PublicAddr string              `toml:"public_addr"`
	KeyFile    string              `toml:"https_key_file"`
	CertFile   string              `toml:"https_cert_file"`
	BasicAuth  HTTPBasicAuthConfig `toml:"basic_auth"`

	Insecure bool `toml:"-"`
}

// HTTPBasicAuthConfig stores configuration of an HTTP server BasicAuth.
type HTTPBasicAuthConfig struct {
	Username string `toml:"user"`
	Password string `toml:"password"`
}

// HTTP is a tiny wrapper around standard net/http.
// It starts either insecure server or secure one with TLS, depending on the
// settings. It also adds a context to its handlers and the server itself has
// context too. So you are guaranteed that server will be closed when the
// context is canceled.
type HTTP struct {
	HTTPConfig
	baseURL *url.URL
	*httprouter.Router
	server http.Server
}

// HTTPBasicAuth wraps a http.Handler with HTTP Basic Auth check.
type HTTPBasicAuth struct {
	HTTPBasicAuthConfig
	handler http.Handler
}

// BaseURL builds a base url depending on "public_addr" setting.
func (conf *HTTPConfig) BaseURL() (*url.URL, error) {
	if addr := conf.PublicAddr; addr != "" {
		return AddrToURL(addr)
	}
	return &url.URL{}, nil
}

// Check validates the http server configuration.
func (conf *HTTPConfig) Check() error {
	baseURL, err := conf.BaseURL()
	if err != nil {
		return trace.Wrap(err)
	}
	if conf.KeyFile != "" && conf.CertFile == "" {
		return trace.BadParameter("https_cert_file is required when https_key_file is specified")
	}
	if conf.CertFile != "" && conf.KeyFile == "" {
		return trace.BadParameter("https_key_file is required when https_cert_file is specified")
	}
	if conf.BasicAuth.Password != "" && conf.BasicAuth.Username == "" {
		return trace.BadParameter("basic_auth.user is required when basic_auth.password is specified")
	}
	if conf.BasicAuth.Username != "" && baseURL != nil && baseURL.User != nil {
		return trace.BadParameter("passing credentials both in basic_auth section and public_addr parameter is not supported")
	}
	return nil
}

func (auth *HTTPBasicAuth) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	username, password, ok := r.BasicAuth()

	if ok && username == auth.Username && password == auth.Password {
		auth.handler.ServeHTTP(rw, r)
	} else {
		rw.Header().Set("WWW-Authenticate", "Basic realm=Restricted")
		http.Error(rw, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	}
}

// NewHTTP creates a new HTTP wrapper.
func NewHTTP(config HTTPConfig) (*HTTP, error) {
	baseURL, err := config.BaseURL()
	if err != nil {
		return nil, trace.Wrap(err)
	}
	router := httprouter.New()

	if userInfo := baseURL.User; userInfo != nil {
		password, _ := userInfo.Password()
		config.BasicAuth = HTTPBasicAuthConfig{Username: userInfo.Username(), Password: password}
	}

	var handler http.Handler
	handler = router
	if config.BasicAuth.Username != "" {
		handler = &HTTPBasicAuth{config.BasicAuth, handler}
	}

	config.Insecure = config.CertFile == "" && config.KeyFile == ""

	var tlsConfig *tls.Config
	if !config.Insecure {
		tlsConfig = &tls.Config{ClientAuth: tls.NoClientCert}
	}

	return &HTTP{
		config,
		baseURL,
		router,
		http.Server{Addr: config.ListenAddr, Handler: handler, TLSConfig: tlsConfig},
	}, nil
}

// ListenAndServe runs a http(s) server on a provided port.
func (h *HTTP) ListenAndServe(ctx context.Context) error {
	defer log.Debug("HTTP server terminated")

	h.server.BaseContext = func(_ net.Listener) context.Context {
		return ctx
	}
	go func() {
		<-ctx.Done()
		h.server.Close()
	}()

	var err error
	if h.Insecure {
		log.Debugf("Starting insecure HTTP server on %s", h.ListenAddr)
		err = h.server.ListenAndServe()
	} else {
		log.Debugf("Starting secure HTTPS server on %s", h.ListenAddr)
		err = h.server.ListenAndServeTLS(h.CertFile, h.KeyFile)
	}
	if err == http.ErrServerClosed {
		return nil
	}
	return trace.Wrap(err)
}

// Shutdown stops the server gracefully.
func (h *HTTP) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// ShutdownWithTimeout stops the server gracefully.
func (h *HTTP) ShutdownWithTimeout(ctx context.Context, duration time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	return h.Shutdown(ctx)
}

// ServiceJob creates a service job for the HTTP server. The job shuts the
// server down gracefully when the process is signaled to terminate.
func (h *HTTP) ServiceJob() ServiceJob {
	var job ServiceJob
	job = NewServiceJob(func(ctx context.Context) error {
		MustGetProcess(ctx).OnTerminate(func(ctx context.Context) {
			if err := h.ShutdownWithTimeout(ctx, time.Second*5); err != nil {
				log.Error("HTTP server graceful shutdown failed")
			}
		})
		job.SetReady(true)
		return h.ListenAndServe(ctx)
	})
	return job
}

// BaseURL returns an url on which the server is accessible externally.
func (h *HTTP) BaseURL() *url.URL {
	url := *h.baseURL
	return &url
}

// NewURL builds an external url for a specific path and query parameters.
func (h *HTTP) NewURL(subpath string, values url.Values) *url.URL {
	url := h.BaseURL()
	url.Path = path.Join(url.Path, subpath)

	if values != nil {
		url.RawQuery = values.Encode()
	}

	return url
}

// EnsureCert checks that the cert and key files are a consistent usable pair.
func (h *HTTP) EnsureCert() error {
	if h.Insecure {
		return nil
	}
	_, err := tls.LoadX509KeyPair(h.CertFile, h.KeyFile)
	return trace.Wrap(err)
}
