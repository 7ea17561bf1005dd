package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/eventpass/internal/flagx"
	"github.com/dmitrijs2005/eventpass/internal/timex"
)

// JsonConfig is the on-disk shape of the optional config file. Interval
// fields use timex.Duration so both "15m" and integer nanoseconds parse.
type JsonConfig struct {
	HTTPAddr                    string         `json:"http_addr"`
	GRPCAddr                    string         `json:"grpc_addr"`
	DatabaseDSN                 string         `json:"database_dsn"`
	DBConnectAttempts           int            `json:"db_connect_attempts"`
	DBConnectDelay              timex.Duration `json:"db_connect_delay"`
	RequestTimeout              timex.Duration `json:"request_timeout"`
	LogLevel                    string         `json:"log_level"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	AdminTokenValidityDuration  timex.Duration `json:"admin_token_validity_duration"`
	BcryptCost                  int            `json:"bcrypt_cost"`
	RedisAddr                   string         `json:"redis_addr"`
	RedisPassword               string         `json:"redis_password"`
	LoginAttemptLimit           int            `json:"login_attempt_limit"`
	LoginAttemptWindow          timex.Duration `json:"login_attempt_window"`
	S3RootUser                  string         `json:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket"`
	S3Region                    string         `json:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint"`
	PresignValidityDuration     timex.Duration `json:"presign_validity_duration"`
	OTelEndpoint                string         `json:"otel_endpoint"`
	ServiceName                 string         `json:"service_name"`
}

// parseJson loads the file named by -c/-config in args, if any, and copies
// every non-zero field into config. Missing keys keep their current value.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return err
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCAddr, c.GRPCAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setInt(&config.DBConnectAttempts, c.DBConnectAttempts)
	setDuration(&config.DBConnectDelay, c.DBConnectDelay)
	setDuration(&config.RequestTimeout, c.RequestTimeout)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.AdminTokenValidityDuration, c.AdminTokenValidityDuration)
	setInt(&config.BcryptCost, c.BcryptCost)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	setInt(&config.LoginAttemptLimit, c.LoginAttemptLimit)
	setDuration(&config.LoginAttemptWindow, c.LoginAttemptWindow)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setDuration(&config.PresignValidityDuration, c.PresignValidityDuration)
	setString(&config.OTelEndpoint, c.OTelEndpoint)
	setString(&config.ServiceName, c.ServiceName)

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
