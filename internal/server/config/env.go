package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/texbridge/internal/flagx"
	"github.com/joho/godotenv"
)

// readDotenv is a seam for tests.
var readDotenv = godotenv.Read

// parseEnv overlays values from the dotenv file named by -env (default
// ".env") and the process environment. Process variables win over the file,
// matching dotenv semantics. A missing file is not an error.
func parseEnv(config *Config) {
	file, err := readDotenv(flagx.EnvFileFlags())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}
	applyEnv(config, func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := file[key]
		return v, ok
	})
}

func applyEnv(config *Config, lookup func(string) (string, bool)) {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && strings.TrimSpace(v) != "" {
				*dst = strings.TrimSpace(v)
				return
			}
		}
	}
	dur := func(dst *time.Duration, key string) {
		if v, ok := lookup(key); ok {
			if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil && d > 0 {
				*dst = d
			}
		}
	}

	if v, ok := lookup("PORT"); ok && strings.TrimSpace(v) != "" {
		config.EndpointAddrHTTP = ":" + strings.TrimSpace(v)
	}
	str(&config.EndpointAddrHTTP, "TEXBRIDGE_HTTP_ADDR")
	str(&config.EndpointAddrGRPC, "TEXBRIDGE_GRPC_ADDR")
	str(&config.DatabaseDSN, "TEXBRIDGE_DATABASE_DSN", "DATABASE_URL")
	str(&config.LogLevel, "TEXBRIDGE_LOG_LEVEL")
	str(&config.SessionSecret, "TEXBRIDGE_SESSION_SECRET", "SESSION_SECRET")
	str(&config.SessionCookieName, "TEXBRIDGE_SESSION_COOKIE")
	str(&config.UploadBackend, "TEXBRIDGE_UPLOAD_BACKEND")
	str(&config.UploadDir, "TEXBRIDGE_UPLOAD_DIR")
	str(&config.S3RootUser, "TEXBRIDGE_S3_USER")
	str(&config.S3RootPassword, "TEXBRIDGE_S3_PASSWORD")
	str(&config.S3Bucket, "TEXBRIDGE_S3_BUCKET")
	str(&config.S3Region, "TEXBRIDGE_S3_REGION")
	str(&config.S3BaseEndpoint, "TEXBRIDGE_S3_ENDPOINT")
	str(&config.OAuthClientID, "GOOGLE_CLIENT_ID")
	str(&config.OAuthClientSecret, "GOOGLE_CLIENT_SECRET")
	str(&config.OAuthCallbackURL, "GOOGLE_CALLBACK_URL")
	str(&config.PostRegisterURL, "TEXBRIDGE_POST_REGISTER_URL")
	str(&config.FailureURL, "TEXBRIDGE_FAILURE_URL")

	if v, ok := lookup("FRONTEND_URL"); ok && strings.TrimSpace(v) != "" {
		config.PostLoginURL = strings.TrimSpace(v)
	}
	str(&config.PostLoginURL, "TEXBRIDGE_POST_LOGIN_URL")

	dur(&config.SessionTTL, "TEXBRIDGE_SESSION_TTL")
	dur(&config.OrphanSweepInterval, "TEXBRIDGE_ORPHAN_SWEEP_INTERVAL")
	dur(&config.OrphanGracePeriod, "TEXBRIDGE_ORPHAN_GRACE_PERIOD")

	if v, ok := lookup("TEXBRIDGE_COOKIE_SECURE"); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			config.CookieSecure = b
		}
	}
	if v, ok := lookup("TEXBRIDGE_MAX_UPLOAD_BYTES"); ok {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil && n > 0 {
			config.MaxUploadBytes = n
		}
	}
	if v, ok := lookup("TEXBRIDGE_MAX_PHOTOS"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			config.MaxPhotos = n
		}
	}
	if v, ok := lookup("TEXBRIDGE_CORS_ORIGINS"); ok && strings.TrimSpace(v) != "" {
		config.CORSOrigins = splitList(v)
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if o := strings.TrimRight(strings.TrimSpace(p), "/"); o != "" {
			out = append(out, o)
		}
	}
	return out
}
