package bridge

import (
	"time"

	"github.com/soyeahso/notebridge/internal/config"
	"github.com/soyeahso/notebridge/internal/domain"
	"github.com/soyeahso/notebridge/internal/logging"
	"github.com/soyeahso/notebridge/internal/status"
)

type options struct {
	log         *logging.Logger
	clock       status.Clock
	idle        string
	expiry      time.Duration
	sendTimeout time.Duration
	grace       time.Duration
	window      domain.WindowState
}

func defaultOptions() options {
	return options{
		log:         logging.Nop(),
		clock:       status.SystemClock{},
		idle:        config.DefaultIdleStatus,
		expiry:      config.DefaultExpiry,
		sendTimeout: config.DefaultSendTimeout,
		grace:       config.DefaultGrace,
		window:      domain.WindowState{Visible: true},
	}
}

// Option configures a Bridge.
type Option func(*options)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *logging.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithClock replaces the clock driving status expiry.
func WithClock(c status.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithIdleStatus sets the message the status line reverts to.
func WithIdleStatus(msg string) Option {
	return func(o *options) {
		if msg != "" {
			o.idle = msg
		}
	}
}

// WithStatusExpiry sets how long transient statuses stay up.
func WithStatusExpiry(d time.Duration) Option {
	return func(o *options) { o.expiry = d }
}

// WithSendTimeout bounds each outbound send.
func WithSendTimeout(d time.Duration) Option {
	return func(o *options) { o.sendTimeout = d }
}

// WithShutdownGrace bounds how long Shutdown waits for in-flight sends.
func WithShutdownGrace(d time.Duration) Option {
	return func(o *options) { o.grace = d }
}

// WithWindowState sets the initial window state.
func WithWindowState(w domain.WindowState) Option {
	return func(o *options) { o.window = w }
}

// FromConfig returns the options described by cfg.
func FromConfig(cfg *config.Config, log *logging.Logger) []Option {
	return []Option{
		WithLogger(log),
		WithIdleStatus(cfg.Status.Idle),
		WithStatusExpiry(cfg.Status.Expiry),
		WithSendTimeout(cfg.Transport.SendTimeout),
		WithShutdownGrace(cfg.Shutdown.Grace),
	}
}
