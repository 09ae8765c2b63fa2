package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
)

// Default client configuration values
const (
	DefaultServer   = "http://localhost:3000"
	DefaultSTUN     = "stun:stun.l.google.com:19302"
	DefaultTURN     = "" // Optional, empty by default
	DefaultTURNUser = ""
	DefaultTURNPass = ""
)

// Config holds the terminal client's configuration
type Config struct {
	// ServerURL is the base HTTP(S) address of the relay
	ServerURL string

	// WebSocketURL is derived from ServerURL
	WebSocketURL string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// ForceRelay restricts ICE to TURN candidates
	ForceRelay bool
}

// Options for loading config with CLI flag overrides
type Options struct {
	ServerURL  string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	return load(os.LookupEnv, opts)
}

func load(lookup func(string) (string, bool), opts Options) (*Config, error) {
	// Server: CLI flag > env > default
	server := firstNonEmpty(opts.ServerURL, env(lookup, "MAMA_TALK_SERVER"), DefaultServer)
	wsURL, err := webSocketURL(server)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ServerURL:    strings.TrimRight(server, "/"),
		WebSocketURL: wsURL,
		STUNServer:   firstNonEmpty(opts.STUNServer, env(lookup, "STUN_SERVER"), DefaultSTUN),
		TURNServer:   firstNonEmpty(opts.TURNServer, env(lookup, "TURN_SERVER"), DefaultTURN),
		TURNUser:     firstNonEmpty(opts.TURNUser, env(lookup, "TURN_USERNAME"), DefaultTURNUser),
		TURNPass:     firstNonEmpty(opts.TURNPass, env(lookup, "TURN_PASSWORD"), DefaultTURNPass),
		ForceRelay:   opts.ForceRelay,
	}

	if cfg.ForceRelay && cfg.TURNServer == "" {
		return nil, fmt.Errorf("relay-only mode needs a TURN server")
	}
	return cfg, nil
}

// webSocketURL maps http(s)://host[/base] to ws(s)://host[/base]/ws.
func webSocketURL(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", server, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid server URL %q: unsupported scheme %q", server, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid server URL %q: missing host", server)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// Host returns the relay host without port.
func (c *Config) Host() string {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// GetRoomLink returns the web client URL for a room ID
func (c *Config) GetRoomLink(roomID string) string {
	return fmt.Sprintf("%s/room/%s", c.ServerURL, url.PathEscape(roomID))
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	host := strings.TrimPrefix(c.TURNServer, "turn:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}

// ShouldForceRelay checks if the system is likely behind a restrictive VPN or CGNAT
// and returns true if we should force TURN usage.
func ShouldForceRelay() bool {
	interfaces, err := net.Interfaces()
	if err != nil {
		return false
	}

	var addrs [][]net.Addr
	var names []string
	for _, iface := range interfaces {
		// Ignore loopback and down interfaces
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		a, _ := iface.Addrs()
		names = append(names, iface.Name)
		addrs = append(addrs, a)
	}
	return relayHeuristic(names, addrs)
}

// cgnatBlock is 100.64.0.0/10, used by Cloudflare WARP, Tailscale and carrier NATs.
var cgnatBlock = &net.IPNet{IP: net.IPv4(100, 64, 0, 0).To4(), Mask: net.CIDRMask(10, 32)}

var vpnNameHints = []string{"tun", "tap", "wg", "ppp", "warp"}

func relayHeuristic(names []string, addrs [][]net.Addr) bool {
	for i, name := range names {
		name = strings.ToLower(name)
		for _, hint := range vpnNameHints {
			if strings.Contains(name, hint) {
				return true
			}
		}

		for _, addr := range addrs[i] {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip != nil && cgnatBlock.Contains(ip) {
				return true
			}
		}
	}
	return false
}
