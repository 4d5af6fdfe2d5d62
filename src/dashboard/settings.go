package dashboard

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/katehuntsman/cintel-05-cintel/src/config"
)

const (
	// DefaultHost is the loopback interface used when no host override is provided.
	DefaultHost = config.DefaultHost
	// DefaultPort matches the port the hosted app used.
	DefaultPort = config.DefaultPort
	// DefaultReadTimeout guards hung clients.
	DefaultReadTimeout = 15 * time.Second
	// DefaultWriteTimeout bounds ordinary handler writes. The event stream
	// clears its own deadline.
	DefaultWriteTimeout = 15 * time.Second
	// DefaultIdleTimeout bounds keep-alive connections.
	DefaultIdleTimeout = 60 * time.Second
	// DefaultTitle heads the sidebar and the browser tab.
	DefaultTitle = "Continuous Intelligence: Live Data Example"
)

// Link is one sidebar link.
type Link struct {
	Label string
	URL   string
}

// Settings captures runtime configuration for the dashboard server.
type Settings struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	Title        string
	Links        []Link
}

// DefaultSettings returns loopback settings with default timeouts.
func DefaultSettings() Settings {
	s := Settings{Port: DefaultPort}
	s.normalize()
	return s
}

// SettingsFromConfig builds Settings from cintel.yaml values and environment overrides.
func SettingsFromConfig(cfg *config.Config) Settings {
	settings := Settings{
		Host:         DefaultHost,
		Port:         DefaultPort,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
		IdleTimeout:  DefaultIdleTimeout,
		Title:        DefaultTitle,
	}
	if cfg != nil {
		if host := strings.TrimSpace(cfg.Server.Host); host != "" {
			settings.Host = host
		}
		if isValidPort(cfg.Server.Port) {
			settings.Port = cfg.Server.Port
		}
		if title := strings.TrimSpace(cfg.Title); title != "" {
			settings.Title = title
		}
		for _, l := range cfg.Links {
			settings.Links = append(settings.Links, Link{Label: l.Label, URL: l.URL})
		}
	}
	settings.applyEnvOverrides()
	settings.normalize()
	return settings
}

func (s *Settings) applyEnvOverrides() {
	if s == nil {
		return
	}
	if host := strings.TrimSpace(os.Getenv("CINTEL_HOST")); host != "" {
		s.Host = host
	}
	if port := strings.TrimSpace(os.Getenv("CINTEL_PORT")); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil && isValidPort(parsed) {
			s.Port = parsed
		}
	}
}

func (s *Settings) normalize() {
	if s == nil {
		return
	}
	s.Host = strings.TrimSpace(s.Host)
	if s.Host == "" {
		s.Host = DefaultHost
	}
	// 0 asks the kernel for a free port (tests)
	if s.Port != 0 && !isValidPort(s.Port) {
		s.Port = DefaultPort
	}
	if s.ReadTimeout <= 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	if s.WriteTimeout <= 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.IdleTimeout <= 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
	if strings.TrimSpace(s.Title) == "" {
		s.Title = DefaultTitle
	}
}

// Address returns the TCP bind address in host:port form.
func (s Settings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// URL returns the HTTP base URL for the server.
func (s Settings) URL() string {
	return "http://" + s.Address()
}

func isValidPort(port int) bool {
	return port > 0 && port <= 65535
}
