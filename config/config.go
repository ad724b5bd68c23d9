// Package config carries the engine's runtime configuration: a
// mapstructure-tagged Config struct that binds directly to viper and
// cobra flags in cmd/simplechat-node.
package config

import (
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default configuration values for the engine's periodic loops and
// socket bindings.
const (
	DefaultLogLevel = "debug"
	DefaultBindHost = "127.0.0.1"
	DefaultPort     = 9001

	DefaultAEInterval          = 2 * time.Second
	DefaultAckCheckInterval    = 1 * time.Second
	DefaultAckTimeout          = 2 * time.Second
	DefaultMaxRetries          = 3
	DefaultPeerHealthInterval  = 5 * time.Second
	DefaultPeerTimeout         = 15 * time.Second
	DefaultRouteRumorInterval  = 60 * time.Second
	DefaultRouteRumorFirstTick = 1 * time.Second
	DefaultHopLimit            = uint32(10)
)

// Config contains all the configuration properties of a SimpleChat node.
type Config struct {
	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// BindHost and Port identify the local UDP socket this node listens
	// on. Port doubles as the node's identity discriminator.
	BindHost string `mapstructure:"bind-host"`
	Port     int    `mapstructure:"port"`

	// SeedPeerPorts is the set of local ports discovered at startup via
	// an AE_REQUEST fan-out. It combines --peers and --connect, parsed
	// and merged by the CLI layer rather than bound directly by viper,
	// since both flags are raw CSV strings.
	SeedPeerPorts []int `mapstructure:"-"`

	// NoForward puts the node in rendezvous mode: it relays route rumors
	// but never delivers or forwards chat traffic.
	NoForward bool `mapstructure:"noforward"`

	// ServiceAddr is the address:port of the optional debug HTTP
	// service. Empty disables it.
	ServiceAddr string `mapstructure:"service-listen"`

	AEInterval          time.Duration `mapstructure:"ae-interval"`
	AckCheckInterval    time.Duration `mapstructure:"ack-check-interval"`
	AckTimeout          time.Duration `mapstructure:"ack-timeout"`
	MaxRetries          int           `mapstructure:"max-retries"`
	PeerHealthInterval  time.Duration `mapstructure:"peer-health-interval"`
	PeerTimeout         time.Duration `mapstructure:"peer-timeout"`
	RouteRumorInterval  time.Duration `mapstructure:"route-rumor-interval"`
	RouteRumorFirstTick time.Duration `mapstructure:"route-rumor-first-tick"`
	HopLimit            uint32        `mapstructure:"hop-limit"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with every default value set.
func NewDefaultConfig() *Config {
	return &Config{
		LogLevel:            DefaultLogLevel,
		BindHost:            DefaultBindHost,
		Port:                DefaultPort,
		AEInterval:          DefaultAEInterval,
		AckCheckInterval:    DefaultAckCheckInterval,
		AckTimeout:          DefaultAckTimeout,
		MaxRetries:          DefaultMaxRetries,
		PeerHealthInterval:  DefaultPeerHealthInterval,
		PeerTimeout:         DefaultPeerTimeout,
		RouteRumorInterval:  DefaultRouteRumorInterval,
		RouteRumorFirstTick: DefaultRouteRumorFirstTick,
		HopLimit:            DefaultHopLimit,
	}
}

// BindAddr renders the "host:port" string the transport binds to.
func (c *Config) BindAddr() string {
	return c.BindHost + ":" + strconv.Itoa(c.Port)
}

// Logger returns a formatted logrus Entry, with prefix set to
// "simplechat", constructing the underlying logger lazily on first use.
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)
	}
	return c.logger.WithField("prefix", "simplechat")
}

// LogLevel parses a string into a logrus level, defaulting to Debug for
// any unrecognized value.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
