package server

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/janelia-flyem/omerotools/gateway"
	"github.com/janelia-flyem/omerotools/omero"
	"github.com/janelia-flyem/omerotools/storage"
)

const (
	// DefaultWebAddress is the default URL of the HTTP server.
	DefaultWebAddress = "localhost:8000"

	// DefaultRPCAddress is the default RPC address for command-line use of a remote server.
	DefaultRPCAddress = "localhost:8001"

	// DefaultReportRetention is how long reports are kept if not configured.
	DefaultReportRetention = 30 * 24 * time.Hour
)

// Config is the parsed TOML configuration of a script service.
type Config struct {
	Omero   omeroConfig
	Server  serverConfig
	Logging omero.LogConfig
	Export  storage.ExportConfig
	Reports storage.ReportsConfig
	Kafka   storage.KafkaConfig
	Auth    authConfig
}

type omeroConfig struct {
	WebURL     string `toml:"web_url"`
	Server     string
	Port       int
	User       string
	Password   string
	MinVersion string `toml:"min_version"`

	Timeout      int // seconds
	ImageCacheMB int `toml:"image_cache_mb"`
	ParentCache  int `toml:"parent_cache"` // entries
}

type serverConfig struct {
	Host            string
	HTTPAddress     string
	RPCAddress      string
	CorsDomains     []string
	AllowProfiling  bool
	Note            string
	ReportRetention int `toml:"report_retention"` // days
}

// DefaultConfig returns the configuration used when no TOML file is given.
func DefaultConfig() *Config {
	c := new(Config)
	c.Server.HTTPAddress = DefaultWebAddress
	c.Server.RPCAddress = DefaultRPCAddress
	return c
}

// Host returns the configured host name or the machine's name.
func (c *Config) Host() string {
	if c.Server.Host != "" {
		return c.Server.Host
	}
	host, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	return host
}

// HTTPAddress returns the address the web server listens on.
func (c *Config) HTTPAddress() string {
	if c.Server.HTTPAddress == "" {
		return DefaultWebAddress
	}
	return c.Server.HTTPAddress
}

// RPCAddress returns the address of the RPC command service.
func (c *Config) RPCAddress() string {
	if c.Server.RPCAddress == "" {
		return DefaultRPCAddress
	}
	return c.Server.RPCAddress
}

// ReportRetention returns how long stored reports are kept.
func (c *Config) ReportRetention() time.Duration {
	if c.Server.ReportRetention <= 0 {
		return DefaultReportRetention
	}
	return time.Duration(c.Server.ReportRetention) * 24 * time.Hour
}

// Dialer returns a dialer for the configured OMERO server.
func (c *Config) Dialer() *gateway.HTTPDialer {
	d := gateway.NewHTTPDialer(c.Omero.Server, c.Omero.Port)
	d.WebURL = c.Omero.WebURL
	d.MinVersion = c.Omero.MinVersion
	if c.Omero.Timeout > 0 {
		d.Timeout = time.Duration(c.Omero.Timeout) * time.Second
	}
	if c.Omero.ImageCacheMB > 0 {
		d.ImageCacheBytes = c.Omero.ImageCacheMB << 20
	}
	if c.Omero.ParentCache > 0 {
		d.ParentCacheEntries = c.Omero.ParentCache
	}
	return d
}

// convertPathsToAbsolute makes relative paths relative to the TOML file.
func (c *Config) convertPathsToAbsolute(configPath string) error {
	dir := filepath.Dir(configPath)
	fix := func(path *string) error {
		if *path == "" || filepath.IsAbs(*path) {
			return nil
		}
		abs, err := filepath.Abs(filepath.Join(dir, *path))
		if err != nil {
			return fmt.Errorf("error converting path %q to absolute path: %v", *path, err)
		}
		*path = abs
		return nil
	}
	for _, path := range []*string{&c.Logging.Logfile, &c.Reports.Path, &c.Auth.AuthFile} {
		if err := fix(path); err != nil {
			return err
		}
	}
	if storage.IsLocalLocation(c.Export.Location) {
		return fix(&c.Export.Location)
	}
	return nil
}

// LoadConfig loads the service configuration from a TOML file.
func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		return nil, fmt.Errorf("no server TOML configuration file provided")
	}
	c := DefaultConfig()
	if _, err := toml.DecodeFile(filename, c); err != nil {
		return nil, fmt.Errorf("could not decode TOML config %q: %v", filename, err)
	}
	if err := c.convertPathsToAbsolute(filename); err != nil {
		return nil, err
	}
	if c.Server.AllowProfiling && len(c.Server.CorsDomains) != 0 {
		omero.Warningf("Profiling endpoints are served to every CORS domain: %v", c.Server.CorsDomains)
	}
	return c, nil
}
