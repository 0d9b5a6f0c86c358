// Package cmd wires up the CLI flags and dispatches to the core modes.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"lockstep/config"
	"lockstep/internal/core"
	"lockstep/tunnel"
	"lockstep/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X lockstep/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// passphrasePrompt reads the key passphrase for --ask-passphrase.
var passphrasePrompt tunnel.Prompter = tunnel.TerminalPrompt //nolint:gochecknoglobals

// Execute parses args and runs the selected lockstep mode.
func Execute(ctx context.Context, args []string) error {
	return execute(ctx, args, os.Stdout)
}

func execute(ctx context.Context, args []string, stdout io.Writer) error {
	cfg := config.New()
	config.LoadFromEnv(cfg)

	fs := flag.NewFlagSet("lockstep", flag.ContinueOnError)

	// ── server ───────────────────────────────────────────────────
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "Server port (when not given as host:port)")
	fs.StringVarP(&cfg.Transport, "transport", "t", cfg.Transport, `Transport: "tcp" or "ws"`)
	fs.StringVar(&cfg.WSPath, "ws-path", cfg.WSPath, "WebSocket endpoint path")
	fs.BoolVarP(&cfg.NoDNS, "no-dns", "n", cfg.NoDNS, "Numeric-only, no DNS resolution")
	fs.BoolVar(&cfg.NoGameInfo, "no-gameinfo", cfg.NoGameInfo, "Do not request server info on connect")

	timeoutSec := int(cfg.Timeout / time.Second)
	fs.IntVarP(&timeoutSec, "timeout", "w", timeoutSec, "Connect timeout in seconds (0 = none)")

	// ── identity ─────────────────────────────────────────────────
	fs.StringVarP(&cfg.PlayerName, "name", "N", cfg.PlayerName, "Player name")
	fs.StringVar(&cfg.Password, "password", cfg.Password, "Server password")
	fs.BoolVar(&cfg.AskPassword, "ask-password", cfg.AskPassword, "Prompt for the server password when required")
	fs.StringVar(&cfg.KeysDir, "keys-dir", cfg.KeysDir, "Directory holding player keys")
	fs.StringVar(&cfg.KeyPassphrase, "key-passphrase", cfg.KeyPassphrase, "Passphrase sealing the private key file")
	var askPassphrase bool
	fs.BoolVar(&askPassphrase, "ask-passphrase", false, "Prompt for the key passphrase")

	// ── simulation ───────────────────────────────────────────────
	fs.IntVar(&cfg.TickRate, "tick-rate", cfg.TickRate, "Frames per second of the driver loop")
	fs.DurationVar(&cfg.PingInterval, "ping", cfg.PingInterval, "Interval between pings (0 = off)")
	fs.Float64Var(&cfg.ChatRate, "chat-rate", cfg.ChatRate, "Chat messages per second")
	fs.StringVarP(&cfg.SnapshotOut, "save-snapshot", "o", cfg.SnapshotOut, "Write the received snapshot to this file")

	// ── SSH tunnel ───────────────────────────────────────────────
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "SSH tunnel via [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── modes ────────────────────────────────────────────────────
	fs.BoolVar(&cfg.Keygen, "keygen", false, "Generate the player's key pair if missing and exit")
	fs.BoolVar(&cfg.Fingerprint, "fingerprint", false, "Print the player's key fingerprint and exit")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")

	var showVersion, showHelp, dryRun bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")
	fs.BoolVar(&dryRun, "dry-run", false, "Validate the configuration and exit")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp || len(args) == 0 {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Fprintf(stdout, "lockstep %s\n", version)
		return nil
	}

	cfg.Timeout = time.Duration(timeoutSec) * time.Second

	// ── positional arguments ─────────────────────────────────────
	if err := parsePositional(cfg, fs.Args()); err != nil {
		return err
	}

	// ── tunnel spec ──────────────────────────────────────────────
	if cfg.TunnelSpec != "" {
		user, host, port, err := config.ParseTunnelSpec(cfg.TunnelSpec)
		if err != nil {
			return fmt.Errorf("tunnel: %w", err)
		}
		cfg.TunnelEnabled = true
		cfg.TunnelUser = user
		cfg.TunnelHost = host
		cfg.TunnelPort = port
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}

	if dryRun {
		printSummary(stdout, cfg)
		return nil
	}

	if askPassphrase {
		b, err := passphrasePrompt("Key passphrase: ")
		if err != nil {
			return fmt.Errorf("reading passphrase: %w", err)
		}
		cfg.KeyPassphrase = string(b)
	}

	// ── build and run ────────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)

	mode, err := core.Build(cfg, logger)
	if err != nil {
		return err
	}
	return mode.Run(ctx)
}

// ── helpers ──────────────────────────────────────────────────────────

// parsePositional takes the server as host[:port].  Key-management
// modes take no arguments.
func parsePositional(cfg *config.Config, remaining []string) error {
	if cfg.Keygen || cfg.Fingerprint {
		if len(remaining) > 0 {
			return fmt.Errorf("unexpected arguments for key management: %v", remaining)
		}
		return nil
	}

	switch len(remaining) {
	case 0:
		if cfg.Host == "" {
			return fmt.Errorf("server address required (use --help for usage)")
		}
		return nil
	case 1:
	default:
		return fmt.Errorf("too many arguments: %v", remaining)
	}

	host, port, err := util.SplitServerAddr(remaining[0], cfg.Port)
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}
	cfg.Host = host
	cfg.Port = port
	return nil
}

func printSummary(w io.Writer, cfg *config.Config) {
	switch {
	case cfg.Keygen:
		fmt.Fprintf(w, "mode:      keygen\n")
	case cfg.Fingerprint:
		fmt.Fprintf(w, "mode:      fingerprint\n")
	default:
		fmt.Fprintf(w, "mode:      connect\n")
		fmt.Fprintf(w, "server:    %s (%s)\n", util.FormatAddr(cfg.Host, cfg.Port), cfg.Transport)
		if cfg.TunnelEnabled {
			fmt.Fprintf(w, "tunnel:    %s@%s:%d\n", cfg.TunnelUser, cfg.TunnelHost, cfg.TunnelPort)
		}
		fmt.Fprintf(w, "tick rate: %d\n", cfg.TickRate)
	}
	fmt.Fprintf(w, "player:    %s\n", cfg.PlayerName)
	keys := cfg.KeysDir
	if keys == "" {
		keys = "(default)"
	}
	fmt.Fprintf(w, "keys:      %s\n", keys)
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `lockstep – headless multiplayer client v%s

Joins a lockstep game server, authenticates with the player's key pair,
downloads the world snapshot and follows the server's ticks.

Usage:
  lockstep [options] -N <name> <host>[:port]     Join a game
  lockstep -N <name> --keygen                    Create the player's key pair
  lockstep -N <name> --fingerprint               Show the player's key

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Environment:
  LOCKSTEP_SERVER, LOCKSTEP_PORT, LOCKSTEP_NAME, LOCKSTEP_PASSWORD,
  LOCKSTEP_KEYS_DIR, LOCKSTEP_KEY_PASSPHRASE, LOCKSTEP_TUNNEL, ...
  Flags take precedence over the environment.

Examples:
  lockstep -N alice play.example.com             Join on the default port
  lockstep -N alice -t ws play.example.com:8080  Join over WebSocket
  lockstep -N alice -T admin@bastion 10.0.0.5    Join through an SSH gateway
  lockstep -N alice -o world.bin -vv host        Save the snapshot, verbose
`)
}
