package main

import (
	"os"
	"strings"

	"github.com/gravitational/trace"
	"github.com/pelletier/go-toml"

	"github.com/covalent-labs/teams-relay/lib"
	"github.com/covalent-labs/teams-relay/lib/logger"
	"github.com/covalent-labs/teams-relay/msapi"
)

// Config represents the service configuration
type Config struct {
	MSAPI     msapi.Config    `toml:"msapi"`
	HTTP      lib.HTTPConfig  `toml:"http"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Log       logger.Config   `toml:"log"`
}

// RateLimitConfig represents the per-client request rate limit. A zero
// per_minute value disables limiting.
type RateLimitConfig struct {
	PerMinute uint64 `toml:"per_minute"`
}

const exampleConfig = `# example teams-relay configuration TOML file
[msapi]
tenant_id = "ff882432-09b0-437b-bd22-ca13c0037ded" # Azure AD tenant ID
app_id = "f2b3c8ed-5502-4449-b76f-dc3acea81f1c"    # Application (client) ID
app_secret = "/var/lib/teams-relay/app_secret"     # Client secret value, or a path to a file holding it
# scope = "https://graph.microsoft.com/.default"   # OAuth2 scope for the Graph token
# graph_base_url = "https://graph.microsoft.com/v1.0"
# token_base_url = "https://login.microsoftonline.com"
# max_pages = 0 # Pagination safety valve per fetch, 0 means unbounded

[http]
listen_addr = ":8443" # Network address in format [addr]:port on which the server listens
https_key_file = "/var/lib/teams-relay/server_key.pem"   # TLS private key; omit both files to serve plain HTTP
https_cert_file = "/var/lib/teams-relay/server_cert.pem" # TLS certificate

#[http.basic_auth]
#user = "user"
#password = "password" # Protect the relay endpoints with HTTP Basic Auth

[rate_limit]
per_minute = 0 # Requests allowed per client IP per minute, 0 disables limiting

[log]
output = "stderr" # Logger output. Could be "stdout", "stderr" or "/var/lib/teams-relay/relay.log"
severity = "INFO" # Logger severity. Could be "INFO", "ERROR", "DEBUG" or "WARN".
`

// LoadConfig reads the config file, initializes a new Config struct object,
// and returns it. Optionally returns an error if the file is not readable, or
// if file format is invalid.
func LoadConfig(filepath string) (*Config, error) {
	t, err := toml.LoadFile(filepath)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	conf := &Config{}
	if err := t.Unmarshal(conf); err != nil {
		return nil, trace.Wrap(err)
	}

	conf.applyEnv()

	// Azure secret format does not seem to support starting with a "/"
	if strings.HasPrefix(conf.MSAPI.AppSecret, "/") {
		conf.MSAPI.AppSecret, err = lib.ReadPassword(conf.MSAPI.AppSecret)
		if err != nil {
			return nil, trace.Wrap(err)
		}
	}

	if err := conf.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return conf, nil
}

// applyEnv overrides credentials from the environment so secrets can be kept
// out of the config file entirely.
func (c *Config) applyEnv() {
	if v := os.Getenv("TEAMS_RELAY_TENANT_ID"); v != "" {
		c.MSAPI.TenantID = v
	}
	if v := os.Getenv("TEAMS_RELAY_APP_ID"); v != "" {
		c.MSAPI.AppID = v
	}
	if v := os.Getenv("TEAMS_RELAY_APP_SECRET"); v != "" {
		c.MSAPI.AppSecret = v
	}
}

// CheckAndSetDefaults checks the config struct for any logical errors, and
// sets default values if some values are missing. If critical values are
// missing and we can't set defaults for them — this will return an error.
func (c *Config) CheckAndSetDefaults() error {
	if err := c.MSAPI.CheckAndSetDefaults(); err != nil {
		return trace.Wrap(err)
	}

	if c.HTTP.ListenAddr == "" {
		c.HTTP.ListenAddr = ":8000"
	}
	if err := c.HTTP.Check(); err != nil {
		return trace.Wrap(err)
	}

	if c.Log.Output == "" {
		c.Log.Output = "stderr"
	}
	if c.Log.Severity == "" {
		c.Log.Severity = "info"
	}

	return nil
}
