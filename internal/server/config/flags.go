package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/texbridge/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-a string    HTTP bind address (e.g. ":3000")
//	-g string    gRPC health bind address
//	-d string    PostgreSQL DSN
//	-s string    session signing secret
//	-t int       session lifetime, minutes
//	-u string    local upload directory
//	-b string    upload backend ("local" or "s3")
//	-l string    log level
//
// Only these flags are read; os.Args is filtered with flagx.FilterArgs so the
// JSON and env layers can keep their own flags.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-g", "-d", "-s", "-t", "-u", "-b", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run HTTP server")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "address and port to run gRPC health server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SessionSecret, "s", config.SessionSecret, "session signing secret")
	sessionTTL := fs.Int("t", int(config.SessionTTL.Minutes()), "session lifetime (in minutes)")
	fs.StringVar(&config.UploadDir, "u", config.UploadDir, "local upload directory")
	fs.StringVar(&config.UploadBackend, "b", config.UploadBackend, "upload backend: local or s3")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SessionTTL = time.Duration(*sessionTTL) * time.Minute
}
