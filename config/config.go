package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type Config struct {
	Mode   string `mapstructure:"mode"`
	Server struct {
		HTTPPort    string        `mapstructure:"HTTPPort"`
		MetricsPort string        `mapstructure:"metricsPort"`
		Timeout     time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	Repositories struct {
		Postgres struct {
			Host     string `mapstructure:"host"`
			Password string `mapstructure:"password"`
			Port     string `mapstructure:"port"`
			Username string `mapstructure:"username"`
			DB       string `mapstructure:"db"`
			SSLMode  string `mapstructure:"sslmode"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	JWT  JWTConfig  `mapstructure:"jwt"`
	Auth AuthConfig `mapstructure:"auth"`
	SMTP SMTPConfig `mapstructure:"smtp"`
}

// JWTConfig holds token issuing parameters. AccessTokenTTL is the fixed
// lifetime returned to clients as expires_in.
type JWTConfig struct {
	SecretKey      string        `mapstructure:"secretKey"`
	AccessTokenTTL time.Duration `mapstructure:"accessTokenTTL"`
	Issuer         string        `mapstructure:"issuer"`
	Audience       string        `mapstructure:"audience"`
}

// AuthConfig holds the account security policy knobs.
type AuthConfig struct {
	FailureThreshold    int           `mapstructure:"failureThreshold"`
	LockoutWindow       time.Duration `mapstructure:"lockoutWindow"`
	OTPLength           int           `mapstructure:"otpLength"`
	OTPTTL              time.Duration `mapstructure:"otpTTL"`
	AllowedEmailDomains []string      `mapstructure:"allowedEmailDomains"`
	PasswordMinLength   int           `mapstructure:"passwordMinLength"`
	PasswordMaxLength   int           `mapstructure:"passwordMaxLength"`
}

type SMTPConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	// Add file-based config paths
	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Secrets come from the environment, never from the yml file.
	v.SetEnvPrefix("STASHLY")
	v.AutomaticEnv()
	_ = v.BindEnv("jwt.secretKey", "STASHLY_JWT_SECRET")
	_ = v.BindEnv("repositories.postgres.password", "STASHLY_POSTGRES_PASSWORD")
	_ = v.BindEnv("smtp.password", "STASHLY_SMTP_PASSWORD")

	// Try to load file-based config
	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %s", err)
		}
	}

	// Unmarshal the config into the Config struct
	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %s", err)
	}
	return config, nil
}
