package msapi

import (
	"time"

	"github.com/gravitational/trace"
)

const (
	httpTimeout = time.Second * 30
	maxConns    = 100

	graphDefaultBaseURL = "https://graph.microsoft.com/v1.0"
	graphDefaultScope   = "https://graph.microsoft.com/.default"
	tokenDefaultBaseURL = "https://login.microsoftonline.com"
)

// Config represents MS Graph API credentials and endpoints
type Config struct {
	// AppID application (client) id
	AppID string `toml:"app_id"`
	// AppSecret application secret token
	AppSecret string `toml:"app_secret"`
	// TenantID ms tenant id
	TenantID string `toml:"tenant_id"`
	// Scope oauth2 scope requested for the graph token
	Scope string `toml:"scope"`
	// GraphBaseURL overrides the Graph API base url
	GraphBaseURL string `toml:"graph_base_url"`
	// TokenBaseURL overrides the identity platform base url
	TokenBaseURL string `toml:"token_base_url"`
	// MaxPages caps pagination per fetch, zero means unbounded
	MaxPages int `toml:"max_pages"`
}

// SetBaseURLs is used to point MS Graph API to test servers
func (c *Config) SetBaseURLs(token, graph string) {
	c.TokenBaseURL = token
	c.GraphBaseURL = graph
}

// CheckAndSetDefaults checks the credentials and fills in default endpoints.
func (c *Config) CheckAndSetDefaults() error {
	if c.TenantID == "" {
		return trace.BadParameter("missing required value msapi.tenant_id")
	}
	if c.AppID == "" {
		return trace.BadParameter("missing required value msapi.app_id")
	}
	if c.AppSecret == "" {
		return trace.BadParameter("missing required value msapi.app_secret")
	}
	if c.Scope == "" {
		c.Scope = graphDefaultScope
	}
	if c.GraphBaseURL == "" {
		c.GraphBaseURL = graphDefaultBaseURL
	}
	if c.TokenBaseURL == "" {
		c.TokenBaseURL = tokenDefaultBaseURL
	}
	if c.MaxPages < 0 {
		return trace.BadParameter("msapi.max_pages must not be negative")
	}
	return nil
}
