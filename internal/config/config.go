// Package config handles configuration for the server, including defaults,
// a .env / environment overlay and command-line flags.
package config

import "time"

// Config holds runtime settings for the PrivacyNet server.
//
// Fields:
//   - Addr: HTTP bind address.
//   - DatabaseURL: "postgres://..." or "sqlite://path".
//   - CORSOrigin: allowed browser origin.
//   - JWTSecret: HMAC secret used to verify bearer tokens (HS256).
//   - AdminToken: X-Admin-Token value; admin routes are disabled when empty.
//   - DetectorAPIKey / DetectorURL / DetectorModel: remote PII classifier. The
//     local regex detector is used when the key is empty.
//   - DetectorTimeout: per-call budget for the classifier; exceeding it counts
//     as the detector being unavailable.
//   - DetectorMinConfidence: spans below this confidence are ignored.
//   - MaxCommentLength: upper bound for comment text, in runes.
//   - AuditQueueSize: buffered audit events before new ones are dropped.
//   - CommentRateLimitRPS / CommentRateLimitBurst: per-IP comment submission limit.
type Config struct {
	Addr                  string
	DatabaseURL           string
	CORSOrigin            string
	JWTSecret             string
	AdminToken            string
	DetectorAPIKey        string
	DetectorURL           string
	DetectorModel         string
	DetectorTimeout       time.Duration
	DetectorMinConfidence float64
	MaxCommentLength      int
	AuditQueueSize        int
	CommentRateLimitRPS   float64
	CommentRateLimitBurst int
}

// LoadDefaults populates Config with development defaults.
// NOTE: JWTSecret must be overridden in production.
func (c *Config) LoadDefaults() {
	c.Addr = ":8080"
	c.DatabaseURL = "sqlite://privacynet.db"
	c.CORSOrigin = "*"
	c.JWTSecret = "privacynet-dev-secret"
	c.AdminToken = ""
	c.DetectorAPIKey = ""
	c.DetectorURL = "https://api.anthropic.com/v1/messages"
	c.DetectorModel = "claude-sonnet-4-20250514"
	c.DetectorTimeout = 8 * time.Second
	c.DetectorMinConfidence = 0
	c.MaxCommentLength = 2000
	c.AuditQueueSize = 256
	c.CommentRateLimitRPS = 1.0 / 3.0
	c.CommentRateLimitBurst = 3
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from .env and the environment and finally from command-line flags.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
