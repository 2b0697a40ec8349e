package notify

import (
	"errors"
	"time"

	"vitaremind/internal/domain"
)

var (
	ErrStopped        = errors.New("notifier stopped")
	ErrQueueFull      = errors.New("notifier queue full")
	ErrUnknownChannel = errors.New("unknown notification channel")

	// ErrBadAddress marks a destination that failed validation before any
	// send attempt was made.
	ErrBadAddress = errors.New("malformed destination address")

	// ErrMissingCredentials marks absent sender identity in the environment.
	ErrMissingCredentials = errors.New("missing channel credentials")
)

// Payload is the tagged unit of work handed to the dispatcher. It is baked
// into a scheduler job at registration time: message text is NOT recomputed
// at fire time, so edits must unload and reload the job.
type Payload struct {
	Channel     domain.Channel
	Destination string
	Subject     string // email only
	Message     string // plain text; email carries the rendered HTML body
}

// Environment variable names for channel credentials. Read once per send,
// never cached across the process lifetime.
const (
	EnvEmailName     = "VITAREMINDER_EMAIL_NAME"
	EnvEmailPassword = "VITAREMINDER_EMAIL_PASSWORD"
	EnvTextToken     = "TROPO_TOKEN_TEXT_MESSAGE"
	EnvVoiceToken    = "TROPO_TOKEN_VOICE_MESSAGE"
)

type Config struct {
	Workers     int
	QueueSize   int
	RatePerSec  int
	SendTimeout time.Duration

	Email   EmailConfig
	Gateway GatewayConfig
}

// EmailConfig selects the SMTP endpoint. Credentials come from the
// environment, not from config.
type EmailConfig struct {
	Host string
	Port int
}

// GatewayConfig selects the SMS/voice session gateway. Each launch is a
// token-authenticated POST; delivery failures past the gateway are reported
// asynchronously by the remote side and are out of our hands.
type GatewayConfig struct {
	SessionURL string
	Timeout    time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 3
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 15 * time.Second
	}
	if c.Email.Host == "" {
		c.Email.Host = "smtp.gmail.com"
	}
	if c.Email.Port <= 0 {
		c.Email.Port = 587
	}
	if c.Gateway.SessionURL == "" {
		c.Gateway.SessionURL = "https://api.tropo.com/1.0/sessions"
	}
	if c.Gateway.Timeout <= 0 {
		c.Gateway.Timeout = 10 * time.Second
	}
	return c
}

// FailureHandler is the local operator-facing error surface: called at most
// once per failed send. It must not block. Failures never propagate back
// into scheduling state and are never retried; the next day's fire attempts
// delivery again independently.
type FailureHandler func(p Payload, err error)
