// Package config defines the runtime configuration for lockstep and
// provides helpers for parsing tunnel specifications and player names.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	lserrors "lockstep/internal/errors"
)

// Config holds every tuneable for a single lockstep run.
type Config struct {
	// ── Server ───────────────────────────────────────────────────────
	Host       string
	Port       int
	Transport  string // "tcp" or "ws"
	WSPath     string
	Timeout    time.Duration
	NoDNS      bool
	NoGameInfo bool

	// ── Identity ─────────────────────────────────────────────────────
	PlayerName    string
	Password      string
	AskPassword   bool // prompt for the server password when required
	KeysDir       string
	KeyPassphrase string

	// ── Simulation driver ────────────────────────────────────────────
	TickRate     int
	PingInterval time.Duration
	ChatRate     float64 // outbound chat messages per second
	SnapshotOut  string  // write the received snapshot here when set

	// ── SSH tunnel ───────────────────────────────────────────────────
	TunnelSpec     string // raw user@host[:port] from -T
	TunnelEnabled  bool
	TunnelUser     string
	TunnelHost     string
	TunnelPort     int
	SSHKeyPath     string
	SSHPassword    bool // true → prompt interactively
	UseSSHAgent    bool
	StrictHostKey  bool
	KnownHostsPath string

	// ── Modes ────────────────────────────────────────────────────────
	Keygen      bool
	Fingerprint bool

	// ── Output ───────────────────────────────────────────────────────
	Verbose int
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Port:         DefaultPort,
		Transport:    TransportTCP,
		WSPath:       DefaultWSPath,
		Timeout:      DefaultConnTimeout,
		TickRate:     DefaultTickRate,
		PingInterval: DefaultPingInterval,
		ChatRate:     DefaultChatRate,
	}
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q – expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	if host == "" {
		return "", "", 0, fmt.Errorf("tunnel host is required")
	}
	return user, host, port, nil
}

// ── Player names ─────────────────────────────────────────────────────

var playerNameRe = regexp.MustCompile(`^[A-Za-z0-9 _.\-]+$`)

// ValidPlayerName reports whether name is acceptable as a player name.
// Names end up in key file names, so separators and control characters
// are refused.
func ValidPlayerName(name string) bool {
	if len(name) == 0 || len(name) > MaxPlayerNameLen {
		return false
	}
	if name == "." || name == ".." {
		return false
	}
	return playerNameRe.MatchString(name)
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Keygen && c.Fingerprint {
		return &lserrors.ConfigError{
			Field:   "keygen",
			Message: "--keygen and --fingerprint are mutually exclusive",
		}
	}

	if !ValidPlayerName(c.PlayerName) {
		var v interface{}
		if c.PlayerName != "" {
			v = c.PlayerName
		}
		return &lserrors.ConfigError{
			Field:   "name",
			Value:   v,
			Message: "a valid player name is required",
			Hint:    fmt.Sprintf("use up to %d letters, digits, spaces, '.', '_' or '-'", MaxPlayerNameLen),
		}
	}

	// Key-management modes need nothing else.
	if c.Keygen || c.Fingerprint {
		return nil
	}

	if c.Host == "" {
		return &lserrors.ConfigError{
			Field:   "server",
			Message: "server address is required",
			Hint:    "pass host[:port] as the first argument (use --help for usage)",
		}
	}
	if c.Port < 1 || c.Port > 65535 {
		return &lserrors.ConfigError{
			Field:   "port",
			Value:   c.Port,
			Message: "out of range 1-65535",
			Hint:    fmt.Sprintf("the default game port is %d", DefaultPort),
		}
	}

	switch c.Transport {
	case TransportTCP, TransportWS:
	default:
		return &lserrors.ConfigError{
			Field:   "transport",
			Value:   c.Transport,
			Message: "unknown transport",
			Hint:    "use \"tcp\" or \"ws\"",
		}
	}

	if c.TickRate < 1 || c.TickRate > MaxTickRate {
		return &lserrors.ConfigError{
			Field:   "tick-rate",
			Value:   c.TickRate,
			Message: fmt.Sprintf("must be between 1 and %d", MaxTickRate),
			Hint:    fmt.Sprintf("the simulation normally runs at %d ticks per second", DefaultTickRate),
		}
	}
	if c.Timeout < 0 {
		return &lserrors.ConfigError{
			Field:   "timeout",
			Value:   c.Timeout,
			Message: "must not be negative",
		}
	}
	if c.PingInterval < 0 {
		return &lserrors.ConfigError{
			Field:   "ping",
			Value:   c.PingInterval,
			Message: "must not be negative",
			Hint:    "use 0 to disable keepalive pings",
		}
	}
	if c.ChatRate <= 0 {
		return &lserrors.ConfigError{
			Field:   "chat-rate",
			Value:   c.ChatRate,
			Message: "must be positive",
		}
	}

	if c.TunnelEnabled {
		if c.TunnelHost == "" {
			return &lserrors.ConfigError{
				Field:   "tunnel",
				Value:   c.TunnelSpec,
				Message: "tunnel host is required",
				Hint:    "expected [user@]host[:port]",
			}
		}
		if c.Transport == TransportWS {
			return &lserrors.ConfigError{
				Field:   "transport",
				Value:   c.Transport,
				Message: "WebSocket transport is not supported through SSH tunnels",
				Hint:    "drop --transport or drop -T",
			}
		}
	}

	return nil
}

// ServerAddr returns "host:port" for logging.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
