package core

import (
	"fmt"
	"net"
	"time"

	"lockstep/config"
	"lockstep/internal/identity"
	"lockstep/internal/metrics"
	"lockstep/internal/session"
	"lockstep/internal/transport"
	"lockstep/tunnel"
	"lockstep/util"
)

// Build constructs the appropriate Mode from the given configuration.
func Build(cfg *config.Config, logger *util.Logger) (Mode, error) {
	store, err := identity.NewStore(cfg.KeysDir, cfg.KeyPassphrase)
	if err != nil {
		return nil, err
	}

	switch {
	case cfg.Keygen:
		return &KeygenMode{Store: store, Player: cfg.PlayerName, Logger: logger}, nil
	case cfg.Fingerprint:
		return &FingerprintMode{Store: store, Player: cfg.PlayerName, Logger: logger}, nil
	default:
		return buildConnect(cfg, store, logger)
	}
}

// ── mode builders ────────────────────────────────────────────────────

func buildConnect(cfg *config.Config, store *identity.Store, logger *util.Logger) (Mode, error) {
	if cfg.NoDNS && !cfg.TunnelEnabled && net.ParseIP(cfg.Host) == nil {
		return nil, fmt.Errorf(
			"cannot parse %q as an IP address (DNS disabled with -n)",
			cfg.Host)
	}

	return &ConnectMode{
		Manager: session.NewManager(),
		Session: session.Options{
			Host:       cfg.Host,
			Port:       cfg.Port,
			Dialer:     buildDialer(cfg, logger),
			Timeout:    cfg.Timeout,
			NoDNS:      cfg.NoDNS,
			PlayerName: cfg.PlayerName,
			Store:      store,
			NoGameInfo: cfg.NoGameInfo,
			ChatRate:   cfg.ChatRate,
			ChatBurst:  config.DefaultChatBurst,
		},
		Sim:          &HeadlessSim{SnapshotOut: cfg.SnapshotOut, Logger: logger},
		TickRate:     cfg.TickRate,
		PingInterval: cfg.PingInterval,
		Password:     cfg.Password,
		AskPassword:  cfg.AskPassword,
		Logger:       logger,
		Metrics:      metrics.New(),
	}, nil
}

// ── shared helpers ───────────────────────────────────────────────────

// buildDialer creates the right transport.Dialer for the given config.
func buildDialer(cfg *config.Config, logger *util.Logger) transport.Dialer {
	if cfg.TunnelEnabled {
		return transport.NewSSHDialer(&tunnel.SSHConfig{
			User:          cfg.TunnelUser,
			Host:          cfg.TunnelHost,
			Port:          cfg.TunnelPort,
			KeyPath:       cfg.SSHKeyPath,
			PromptPass:    cfg.SSHPassword,
			UseAgent:      cfg.UseSSHAgent,
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
			ConnTimeout:   cfg.Timeout,
			KeepAlive:     config.DefaultKeepAliveInterval * time.Second,
		}, logger)
	}

	if cfg.Transport == config.TransportWS {
		return &transport.WSDialer{
			Path:    cfg.WSPath,
			Timeout: cfg.Timeout,
		}
	}

	return &transport.TCPDialer{Timeout: cfg.Timeout}
}
