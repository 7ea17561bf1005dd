package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/eventpass/internal/flagx"
)

var ownFlags = []string{"-a", "-g", "-d", "-s", "-t", "-T", "-l", "-r", "-u", "-p", "-b", "-R", "-e", "-o"}

// parseFlags overrides config fields from command-line flags.
//
//	-a string     HTTP bind address (e.g. ":8080")
//	-g string     gRPC health bind address
//	-d string     database DSN (postgres://… or memory://)
//	-s string     JWT HMAC secret
//	-t duration   user access token validity
//	-T duration   admin access token validity
//	-l string     log level
//	-r string     Redis address for login throttling (empty disables it)
//	-u/-p string  S3 root user / password
//	-b string     S3 bucket
//	-R string     S3 region
//	-e string     S3 base endpoint
//	-o string     OTLP/HTTP trace endpoint (empty disables tracing)
//
// args are filtered first so flags owned by other parsers (-c) do not clash.
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("eventpass", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP address and port")
	fs.StringVar(&config.GRPCAddr, "g", config.GRPCAddr, "gRPC health address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "JWT secret key")
	fs.DurationVar(&config.AccessTokenValidityDuration, "t", config.AccessTokenValidityDuration, "access token validity")
	fs.DurationVar(&config.AdminTokenValidityDuration, "T", config.AdminTokenValidityDuration, "admin token validity")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "Redis address")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "R", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.OTelEndpoint, "o", config.OTelEndpoint, "OTLP trace endpoint")

	return fs.Parse(flagx.FilterArgs(args, ownFlags))
}
