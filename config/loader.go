package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the LOCKSTEP_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("LOCKSTEP_SERVER"); v != "" {
		cfg.Host = v
	}
	if v := envInt("LOCKSTEP_PORT"); v > 0 {
		cfg.Port = v
	}
	if v := os.Getenv("LOCKSTEP_TRANSPORT"); v != "" {
		cfg.Transport = strings.ToLower(v)
	}
	if v := os.Getenv("LOCKSTEP_WS_PATH"); v != "" {
		cfg.WSPath = v
	}
	if v := envInt("LOCKSTEP_TIMEOUT"); v > 0 {
		cfg.Timeout = secondsDuration(v)
	}
	if envBool("LOCKSTEP_NO_DNS") {
		cfg.NoDNS = true
	}
	if envBool("LOCKSTEP_NO_GAMEINFO") {
		cfg.NoGameInfo = true
	}

	// Identity
	if v := os.Getenv("LOCKSTEP_NAME"); v != "" {
		cfg.PlayerName = v
	}
	if v := os.Getenv("LOCKSTEP_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv("LOCKSTEP_KEYS_DIR"); v != "" {
		cfg.KeysDir = v
	}
	if v := os.Getenv("LOCKSTEP_KEY_PASSPHRASE"); v != "" {
		cfg.KeyPassphrase = v
	}

	// Driver
	if v := envInt("LOCKSTEP_TICK_RATE"); v > 0 {
		cfg.TickRate = v
	}
	if v := envInt("LOCKSTEP_PING"); v > 0 {
		cfg.PingInterval = secondsDuration(v)
	}
	if v := envFloat("LOCKSTEP_CHAT_RATE"); v > 0 {
		cfg.ChatRate = v
	}
	if v := os.Getenv("LOCKSTEP_SNAPSHOT_OUT"); v != "" {
		cfg.SnapshotOut = v
	}

	// SSH tunnel
	if v := os.Getenv("LOCKSTEP_TUNNEL"); v != "" {
		cfg.TunnelSpec = v
	}
	if v := os.Getenv("LOCKSTEP_SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool("LOCKSTEP_SSH_PASSWORD") {
		cfg.SSHPassword = true
	}
	if envBool("LOCKSTEP_SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("LOCKSTEP_STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := os.Getenv("LOCKSTEP_KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	// Output
	if v := envInt("LOCKSTEP_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envFloat(key string) float64 {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
