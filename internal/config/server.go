package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/AndreyRyab/mama-talk/internal/logging"
)

// Environments. Production serves the built web client and uses the
// production origin list.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

const (
	envVarPort            = "PORT"
	envVarNodeEnv         = "NODE_ENV"
	envVarListenAddr      = "MAMA_TALK_LISTEN_ADDR"
	envVarEnvironment     = "MAMA_TALK_ENV"
	envVarAllowedOrigins  = "MAMA_TALK_ALLOWED_ORIGINS"
	envVarStaticDir       = "MAMA_TALK_STATIC_DIR"
	envVarLogLevel        = "LOG_LEVEL"
	envVarLogFormat       = "MAMA_TALK_LOG_FORMAT"
	envVarShutdownTimeout = "MAMA_TALK_SHUTDOWN_TIMEOUT"
)

// Server defaults.
const (
	DefaultPort            = "3000"
	DefaultStaticDir       = "dist"
	DefaultShutdownTimeout = 15 * time.Second

	DefaultWSMaxMessageBytes = 64 * 1024 // 64 KB - enough for WebRTC SDP messages
	DefaultWSSendBuffer      = 256
	DefaultWSPongWait        = 60 * time.Second
)

var (
	DefaultDevOrigins  = []string{"http://localhost:5173", "http://localhost:3000"}
	DefaultProdOrigins = []string{"https://mama-talk.onrender.com"}
)

// ServerConfig holds the relay's runtime settings.
type ServerConfig struct {
	ListenAddr     string
	Environment    string
	AllowedOrigins []string

	// StaticDir holds the built web client. Only served in production.
	StaticDir string

	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	WSMaxMessageBytes int64
	WSSendBuffer      int
	WSPongWait        time.Duration
}

// ServerOptions carries command-line overrides. Empty fields fall through to
// the environment, then the config file, then defaults.
type ServerOptions struct {
	ConfigFile     string
	ListenAddr     string
	Environment    string
	AllowedOrigins []string
	StaticDir      string
	LogLevel       string
	LogFormat      string
}

// fileConfig mirrors the TOML config file.
type fileConfig struct {
	Server struct {
		ListenAddr      string   `toml:"listen_addr"`
		Environment     string   `toml:"environment"`
		AllowedOrigins  []string `toml:"allowed_origins"`
		StaticDir       string   `toml:"static_dir"`
		LogLevel        string   `toml:"log_level"`
		LogFormat       string   `toml:"log_format"`
		ShutdownTimeout duration `toml:"shutdown_timeout"`
	} `toml:"server"`
	WebSocket struct {
		MaxMessageBytes int64    `toml:"max_message_bytes"`
		SendBuffer      int      `toml:"send_buffer"`
		PongWait        duration `toml:"pong_wait"`
	} `toml:"websocket"`
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// LoadServer resolves the server configuration with the following priority:
// 1. Command-line flags (passed via ServerOptions) - highest priority
// 2. Environment variables
// 3. The TOML config file, when one is given
// 4. Defaults - lowest priority
func LoadServer(opts ServerOptions) (*ServerConfig, error) {
	return loadServer(os.LookupEnv, opts)
}

func loadServer(lookup func(string) (string, bool), opts ServerOptions) (*ServerConfig, error) {
	var file fileConfig
	if opts.ConfigFile != "" {
		if _, err := toml.DecodeFile(opts.ConfigFile, &file); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", opts.ConfigFile, err)
		}
	}

	cfg := &ServerConfig{
		WSMaxMessageBytes: DefaultWSMaxMessageBytes,
		WSSendBuffer:      DefaultWSSendBuffer,
		WSPongWait:        DefaultWSPongWait,
		ShutdownTimeout:   DefaultShutdownTimeout,
	}

	// Environment: flag > MAMA_TALK_ENV > NODE_ENV > file > development
	cfg.Environment = firstNonEmpty(
		opts.Environment,
		env(lookup, envVarEnvironment),
		env(lookup, envVarNodeEnv),
		file.Server.Environment,
		EnvDevelopment,
	)
	cfg.Environment = strings.ToLower(cfg.Environment)
	if cfg.Environment != EnvDevelopment && cfg.Environment != EnvProduction {
		return nil, fmt.Errorf("unknown environment %q (want %s or %s)", cfg.Environment, EnvDevelopment, EnvProduction)
	}

	// Listen address: flag > MAMA_TALK_LISTEN_ADDR > PORT > file > :3000
	var portAddr string
	if port := env(lookup, envVarPort); port != "" {
		portAddr = net.JoinHostPort("", port)
	}
	cfg.ListenAddr = firstNonEmpty(
		opts.ListenAddr,
		env(lookup, envVarListenAddr),
		portAddr,
		file.Server.ListenAddr,
		net.JoinHostPort("", DefaultPort),
	)
	if _, err := parsePort(cfg.ListenAddr); err != nil {
		return nil, fmt.Errorf("invalid listen address %q: %w", cfg.ListenAddr, err)
	}

	// Allowed origins: flag > env > file > per-environment defaults
	switch {
	case len(opts.AllowedOrigins) > 0:
		cfg.AllowedOrigins = opts.AllowedOrigins
	case env(lookup, envVarAllowedOrigins) != "":
		cfg.AllowedOrigins = splitList(env(lookup, envVarAllowedOrigins))
	case len(file.Server.AllowedOrigins) > 0:
		cfg.AllowedOrigins = file.Server.AllowedOrigins
	case cfg.Environment == EnvProduction:
		cfg.AllowedOrigins = DefaultProdOrigins
	default:
		cfg.AllowedOrigins = DefaultDevOrigins
	}

	cfg.StaticDir = firstNonEmpty(
		opts.StaticDir,
		env(lookup, envVarStaticDir),
		file.Server.StaticDir,
		DefaultStaticDir,
	)

	cfg.LogLevel = firstNonEmpty(opts.LogLevel, env(lookup, envVarLogLevel), file.Server.LogLevel, "info")
	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}

	defaultFormat := logging.FormatText
	if cfg.Environment == EnvProduction {
		defaultFormat = logging.FormatJSON
	}
	cfg.LogFormat = firstNonEmpty(opts.LogFormat, env(lookup, envVarLogFormat), file.Server.LogFormat, defaultFormat)
	if cfg.LogFormat != logging.FormatText && cfg.LogFormat != logging.FormatJSON {
		return nil, fmt.Errorf("unsupported log format %q", cfg.LogFormat)
	}

	if raw := env(lookup, envVarShutdownTimeout); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", envVarShutdownTimeout, raw, err)
		}
		cfg.ShutdownTimeout = d
	} else if file.Server.ShutdownTimeout.Duration != 0 {
		cfg.ShutdownTimeout = file.Server.ShutdownTimeout.Duration
	}
	if cfg.ShutdownTimeout <= 0 {
		return nil, errors.New("shutdown timeout must be positive")
	}

	if file.WebSocket.MaxMessageBytes > 0 {
		cfg.WSMaxMessageBytes = file.WebSocket.MaxMessageBytes
	}
	if file.WebSocket.SendBuffer > 0 {
		cfg.WSSendBuffer = file.WebSocket.SendBuffer
	}
	if file.WebSocket.PongWait.Duration > 0 {
		cfg.WSPongWait = file.WebSocket.PongWait.Duration
	}

	return cfg, nil
}

// IsProduction reports whether the built web client should be served.
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == EnvProduction
}

func env(lookup func(string) (string, bool), key string) string {
	v, _ := lookup(key)
	return strings.TrimSpace(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parsePort(addr string) (int, error) {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(port)
}
