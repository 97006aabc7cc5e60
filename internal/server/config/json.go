package config

import (
	"encoding/json"
	"os"

	"github.com/aelouarti/partage/internal/flagx"
	"github.com/aelouarti/partage/internal/timex"
)

// JsonConfig is the intermediate DTO used only for reading JSON config
// files. Interval fields use timex.Duration so both string values such as
// "30s" and integer nanoseconds parse. After unmarshalling, its fields are
// copied into the runtime Config.
type JsonConfig struct {
	EndpointAddr                string         `json:"endpoint_addr"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	AllowedEmailDomain          string         `json:"allowed_email_domain"`
	TOTPIssuer                  string         `json:"totp_issuer"`
	MaxLoginAttempts            int            `json:"max_login_attempts"`
	LockoutDuration             timex.Duration `json:"lockout_duration"`
	S3AccessKey                 string         `json:"s3_access_key"`
	S3SecretKey                 string         `json:"s3_secret_key"`
	S3Bucket                    string         `json:"s3_bucket"`
	S3Region                    string         `json:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from the JSON file named by the -c or
// -config flags into the provided Config. When neither flag is set, nothing
// is loaded. An unreadable or invalid file panics: a half-applied config is
// worse than failing to start.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.EndpointAddr = c.EndpointAddr
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	config.AllowedEmailDomain = c.AllowedEmailDomain
	config.TOTPIssuer = c.TOTPIssuer
	config.MaxLoginAttempts = c.MaxLoginAttempts
	config.LockoutDuration = c.LockoutDuration.Duration
	config.S3AccessKey = c.S3AccessKey
	config.S3SecretKey = c.S3SecretKey
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
}
