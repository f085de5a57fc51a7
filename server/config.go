package server

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	contractx "github.com/tanpawarit/odoo-assistant/agent/contract"
)

// Config is read without a prefix: HOST, PORT, API_TOKEN, ...
type Config struct {
	Host           string        `envconfig:"HOST" default:"0.0.0.0"`
	Port           int           `envconfig:"PORT" default:"8000"`
	APIToken       string        `envconfig:"API_TOKEN"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"60s"`
	RateLimitRPM   int           `envconfig:"RATE_LIMIT_RPM" default:"120"`
	RateLimitBurst int           `envconfig:"RATE_LIMIT_BURST" default:"20"`
	MaxUploadBytes int64         `envconfig:"MAX_UPLOAD_BYTES" default:"26214400"`
	AllowedOrigins []string      `envconfig:"ALLOWED_ORIGINS"`
}

func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port %d", contractx.ErrValidation, c.Port)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%w: request timeout must be positive", contractx.ErrValidation)
	}
	if c.RateLimitRPM < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("%w: rate limits must not be negative", contractx.ErrValidation)
	}
	return nil
}

func (c Config) Addr() string {
	return net.JoinHostPort(strings.TrimSpace(c.Host), strconv.Itoa(c.Port))
}

func (c Config) authEnabled() bool {
	return strings.TrimSpace(c.APIToken) != ""
}
