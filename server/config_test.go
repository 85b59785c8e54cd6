package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testConfig = `
[omero]
server = "omero.example.org"
port = 4065
web_url = "https://web.example.org"
user = "trainer-1"
password = "secret"
timeout = 5
image_cache_mb = 2

[server]
host = "test-host"
httpAddress = "localhost:9000"
rpcAddress = "localhost:9001"
corsdomains = ["https://example.org"]
note = "training server"
report_retention = 7

[logging]
logfile = "logs/omerotools.log"
max_log_size = 10
max_log_age = 2

[export]
location = "exports"
compression = "gzip"

[reports]
path = "/var/omerotools/reports"

[kafka]
servers = ["kafka:9092"]
topicActivity = "activity"

[auth]
secret_key = "key"
auth_file = "auth.json"
`

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(filename, []byte(testConfig), 0644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadConfig(filename)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	absDir, _ := filepath.Abs(dir)

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"host", c.Host(), "test-host"},
		{"http", c.HTTPAddress(), "localhost:9000"},
		{"rpc", c.RPCAddress(), "localhost:9001"},
		{"note", c.Server.Note, "training server"},
		{"retention", c.ReportRetention(), 7 * 24 * time.Hour},
		{"logfile", c.Logging.Logfile, filepath.Join(absDir, "logs", "omerotools.log")},
		{"log size", c.Logging.MaxSize, 10},
		{"export", c.Export.Location, filepath.Join(absDir, "exports")},
		{"export compression", c.Export.Compression, "gzip"},
		{"reports", c.Reports.Path, "/var/omerotools/reports"},
		{"auth file", c.Auth.AuthFile, filepath.Join(absDir, "auth.json")},
		{"secret", c.Auth.SecretKey, "key"},
		{"kafka topic", c.Kafka.TopicActivity, "activity"},
		{"omero user", c.Omero.User, "trainer-1"},
	}
	for _, tc := range tests {
		if tc.got != tc.expected {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.expected, tc.got)
		}
	}
	if len(c.Kafka.Servers) != 1 || c.Kafka.Servers[0] != "kafka:9092" {
		t.Errorf("bad kafka servers: %v", c.Kafka.Servers)
	}

	d := c.Dialer()
	if d.Server != "omero.example.org" || d.Port != 4065 || d.WebURL != "https://web.example.org" {
		t.Errorf("bad dialer: %+v", d)
	}
	if d.Timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %s", d.Timeout)
	}
	if d.ImageCacheBytes != 2<<20 {
		t.Errorf("expected 2 MB image cache, got %d", d.ImageCacheBytes)
	}
}

func TestConfigDefaults(t *testing.T) {
	c := DefaultConfig()
	if c.HTTPAddress() != DefaultWebAddress || c.RPCAddress() != DefaultRPCAddress {
		t.Errorf("bad default addresses: %s, %s", c.HTTPAddress(), c.RPCAddress())
	}
	if c.ReportRetention() != DefaultReportRetention {
		t.Errorf("bad default retention: %s", c.ReportRetention())
	}
	if c.Host() == "" {
		t.Errorf("expected a host name")
	}
	d := c.Dialer()
	if d.Server == "" || d.Port == 0 {
		t.Errorf("expected default OMERO server, got %+v", d)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(""); err == nil {
		t.Errorf("expected error for missing file name")
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Errorf("expected error for missing file")
	}
	bad := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(bad, []byte("[server\nhost ="), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(bad); err == nil {
		t.Errorf("expected error for malformed TOML")
	}
}
