package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/texbridge/internal/flagx"
	"github.com/dmitrijs2005/texbridge/internal/timex"
)

// JsonConfig is the on-disk shape of the optional configuration file.
// Zero values leave the corresponding Config field untouched.
type JsonConfig struct {
	EndpointAddrHTTP    string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC    string         `json:"endpoint_addr_grpc"`
	DatabaseDSN         string         `json:"database_dsn"`
	LogLevel            string         `json:"log_level"`
	SessionSecret       string         `json:"session_secret"`
	SessionTTL          timex.Duration `json:"session_ttl"`
	SessionCookieName   string         `json:"session_cookie_name"`
	CookieSecure        *bool          `json:"cookie_secure"`
	UploadBackend       string         `json:"upload_backend"`
	UploadDir           string         `json:"upload_dir"`
	S3RootUser          string         `json:"s3_root_user"`
	S3RootPassword      string         `json:"s3_root_password"`
	S3Bucket            string         `json:"s3_bucket"`
	S3Region            string         `json:"s3_region"`
	S3BaseEndpoint      string         `json:"s3_base_endpoint"`
	MaxUploadBytes      int64          `json:"max_upload_bytes"`
	MaxPhotos           int            `json:"max_photos"`
	OrphanSweepInterval timex.Duration `json:"orphan_sweep_interval"`
	OrphanGracePeriod   timex.Duration `json:"orphan_grace_period"`
	OAuthClientID       string         `json:"oauth_client_id"`
	OAuthClientSecret   string         `json:"oauth_client_secret"`
	OAuthCallbackURL    string         `json:"oauth_callback_url"`
	PostRegisterURL     string         `json:"post_register_url"`
	PostLoginURL        string         `json:"post_login_url"`
	FailureURL          string         `json:"failure_url"`
	CORSOrigins         []string       `json:"cors_origins"`
}

// parseJson loads the file named by -c/-config, if any. An unreadable or
// malformed file is a startup error and panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}
	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.SessionSecret, c.SessionSecret)
	setString(&config.SessionCookieName, c.SessionCookieName)
	setString(&config.UploadBackend, c.UploadBackend)
	setString(&config.UploadDir, c.UploadDir)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.OAuthClientID, c.OAuthClientID)
	setString(&config.OAuthClientSecret, c.OAuthClientSecret)
	setString(&config.OAuthCallbackURL, c.OAuthCallbackURL)
	setString(&config.PostRegisterURL, c.PostRegisterURL)
	setString(&config.PostLoginURL, c.PostLoginURL)
	setString(&config.FailureURL, c.FailureURL)

	if c.SessionTTL.Duration > 0 {
		config.SessionTTL = c.SessionTTL.Duration
	}
	if c.OrphanSweepInterval.Duration > 0 {
		config.OrphanSweepInterval = c.OrphanSweepInterval.Duration
	}
	if c.OrphanGracePeriod.Duration > 0 {
		config.OrphanGracePeriod = c.OrphanGracePeriod.Duration
	}
	if c.CookieSecure != nil {
		config.CookieSecure = *c.CookieSecure
	}
	if c.MaxUploadBytes > 0 {
		config.MaxUploadBytes = c.MaxUploadBytes
	}
	if c.MaxPhotos > 0 {
		config.MaxPhotos = c.MaxPhotos
	}
	if len(c.CORSOrigins) > 0 {
		config.CORSOrigins = c.CORSOrigins
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
