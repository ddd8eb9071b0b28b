package settings

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/goliatone/go-enhance/internal/hydrate"
)

// Scalar fields are pointers so a layer can leave them unset; Merge fills
// unset fields from weaker layers.

// Settings is the application settings document persisted to settings.yaml.
type Settings struct {
	Engine   Engine   `yaml:"engine,omitempty"`
	Runtime  Runtime  `yaml:"runtime,omitempty"`
	Fetch    Fetch    `yaml:"fetch,omitempty"`
	Refresh  Refresh  `yaml:"refresh,omitempty"`
	Script   Script   `yaml:"script,omitempty"`
	Logging  Logging  `yaml:"logging,omitempty"`
	Shutdown Shutdown `yaml:"shutdown,omitempty"`
}

// Engine configures how the manager reaches the proxy engine.
type Engine struct {
	// ExternalController is the host:port of the engine control API.
	ExternalController *string `yaml:"external-controller,omitempty"`
	// Secret is the bearer token for the control API.
	Secret *string `yaml:"secret,omitempty"`
	// Binary is the engine executable used for config checks; empty skips
	// the binary check.
	Binary *string `yaml:"binary,omitempty"`
}

// Runtime holds the operational keys the final-adjustment layer forces
// into every rendered document. User layers can never disable these.
type Runtime struct {
	// MixedPort is the engine's combined HTTP/SOCKS listening port. Zero
	// leaves the document's own port untouched.
	MixedPort *int `yaml:"mixed-port,omitempty"`
	// TunEnabled toggles the engine's tunnel interface.
	TunEnabled *bool `yaml:"tun-enabled,omitempty"`
}

// Fetch configures remote profile downloads.
type Fetch struct {
	UserAgent *string           `yaml:"user-agent,omitempty"`
	ProxyURL  *string           `yaml:"proxy-url,omitempty"`
	Headers   map[string]string `yaml:"headers,omitempty"`
}

// Refresh configures the per-profile update timers.
type Refresh struct {
	Enabled *bool `yaml:"enabled,omitempty"`
}

// Script bounds sandboxed layer execution.
type Script struct {
	TimeoutMillis *int `yaml:"timeout-ms,omitempty"`
}

// Logging configures operational log output.
type Logging struct {
	Level *string `yaml:"level,omitempty"`
}

// Shutdown configures manager teardown behaviour.
type Shutdown struct {
	// DisableTun patches {tun: {enable: false}} to the engine on close so
	// the host is not left routing through a dead manager.
	DisableTun *bool `yaml:"disable-tun,omitempty"`
}

// Default returns the built-in settings with every field set.
func Default() Settings {
	return Settings{
		Engine: Engine{
			ExternalController: ptr("127.0.0.1:9090"),
			Secret:             ptr(""),
			Binary:             ptr(""),
		},
		Runtime: Runtime{
			MixedPort:  ptr(7890),
			TunEnabled: ptr(false),
		},
		Fetch: Fetch{
			UserAgent: ptr("enhance/1.0"),
			ProxyURL:  ptr(""),
		},
		Refresh:  Refresh{Enabled: ptr(true)},
		Script:   Script{TimeoutMillis: ptr(5000)},
		Logging:  Logging{Level: ptr("info")},
		Shutdown: Shutdown{DisableTun: ptr(true)},
	}
}

// Clone returns a deep copy of s.
func (s Settings) Clone() Settings {
	return Merge(s)
}

// ControllerAddress returns the engine control address, empty when unset.
func (s Settings) ControllerAddress() string {
	return deref(s.Engine.ExternalController)
}

// ControllerSecret returns the control API bearer token, empty when unset.
func (s Settings) ControllerSecret() string {
	return deref(s.Engine.Secret)
}

// EngineBinary returns the engine executable path, empty when unset.
func (s Settings) EngineBinary() string {
	return deref(s.Engine.Binary)
}

// MixedPort returns the forced listening port, zero when unset.
func (s Settings) MixedPort() int {
	if s.Runtime.MixedPort == nil {
		return 0
	}
	return *s.Runtime.MixedPort
}

// TunEnabled reports whether the tunnel interface is forced on.
func (s Settings) TunEnabled() bool {
	if s.Runtime.TunEnabled == nil {
		return false
	}
	return *s.Runtime.TunEnabled
}

// FetchUserAgent returns the User-Agent for profile downloads.
func (s Settings) FetchUserAgent() string {
	return deref(s.Fetch.UserAgent)
}

// FetchProxyURL returns the proxy for profile downloads, empty when unset.
func (s Settings) FetchProxyURL() string {
	return deref(s.Fetch.ProxyURL)
}

// RefreshEnabled reports whether per-profile update timers run.
func (s Settings) RefreshEnabled() bool {
	if s.Refresh.Enabled == nil {
		return false
	}
	return *s.Refresh.Enabled
}

// ScriptTimeout returns the script execution bound, zero when unset.
func (s Settings) ScriptTimeout() time.Duration {
	if s.Script.TimeoutMillis == nil {
		return 0
	}
	return time.Duration(*s.Script.TimeoutMillis) * time.Millisecond
}

// LogLevel returns the configured log level, empty when unset.
func (s Settings) LogLevel() string {
	return deref(s.Logging.Level)
}

// DisableTunOnStop reports whether teardown patches tun mode off.
func (s Settings) DisableTunOnStop() bool {
	if s.Shutdown.DisableTun == nil {
		return false
	}
	return *s.Shutdown.DisableTun
}

var logLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

// Validate checks the set fields of s. Unset fields are fine: they fall
// back to weaker layers.
func (s Settings) Validate() error {
	var errs []error

	if addr := deref(s.Engine.ExternalController); s.Engine.ExternalController != nil && addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			errs = append(errs, fmt.Errorf("settings: engine.external-controller %q is not host:port: %w", addr, err))
		}
	}
	if s.Fetch.ProxyURL != nil && *s.Fetch.ProxyURL != "" {
		if _, err := url.Parse(*s.Fetch.ProxyURL); err != nil {
			errs = append(errs, fmt.Errorf("settings: fetch.proxy-url %q: %w", *s.Fetch.ProxyURL, err))
		}
	}
	if s.Runtime.MixedPort != nil {
		if port := *s.Runtime.MixedPort; port < 0 || port > 65535 {
			errs = append(errs, fmt.Errorf("settings: runtime.mixed-port %d is out of range", port))
		}
	}
	if s.Script.TimeoutMillis != nil && *s.Script.TimeoutMillis < 0 {
		errs = append(errs, fmt.Errorf("settings: script.timeout-ms must not be negative, got %d", *s.Script.TimeoutMillis))
	}
	if s.Logging.Level != nil && *s.Logging.Level != "" {
		if _, ok := logLevels[*s.Logging.Level]; !ok {
			errs = append(errs, fmt.Errorf("settings: logging.level %q is not one of debug, info, warn, error", *s.Logging.Level))
		}
	}

	return errors.Join(errs...)
}

var decoder = hydrate.NewDecoder[Settings](
	hydrate.WithKnownFields[Settings](),
	hydrate.WithPostHook[Settings](func(_ hydrate.Context, s *Settings) error {
		return s.Validate()
	}),
)

// FromDocument projects a parsed settings document onto Settings. Unknown
// keys and invalid values are rejected.
func FromDocument(source string, doc map[string]any) (Settings, error) {
	return decoder.Decode(hydrate.Context{Domain: "settings", Source: source}, doc)
}

func ptr[T any](v T) *T {
	return &v
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
