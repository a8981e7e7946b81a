package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func TestSaveConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.yml")

	cfg := &Config{}
	cfg.Server.Port = "9090"
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Env = "prod"

	err := SaveConfig(cfg, configPath)
	require.NoError(t, err)

	// Check that file exists
	_, err = os.Stat(configPath)
	assert.NoError(t, err)

	// Load and check
	loadedCfg := &Config{}
	f, err := os.Open(configPath)
	require.NoError(t, err)
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	err = decoder.Decode(loadedCfg)
	require.NoError(t, err)

	assert.Equal(t, "9090", loadedCfg.Server.Port)
	assert.Equal(t, "127.0.0.1", loadedCfg.Server.Host)
	assert.Equal(t, "prod", loadedCfg.Server.Env)
}

func TestSaveConfig_WriteError(t *testing.T) {
	cfg := &Config{}
	configPath := "/nonexistent/path/test_config.yml"

	err := SaveConfig(cfg, configPath)
	assert.Error(t, err)
}

func TestParseStringSlice(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"simple", "a,b,c", []string{"a", "b", "c"}},
		{"with spaces", "a, b, c", []string{"a", "b", "c"}},
		{"empty", "", []string{}},
		{"single", "a", []string{"a"}},
		{"with empty parts", "a,,b", []string{"a", "b"}},
		{"whitespace only", "   ,  ,  ", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseStringSlice(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestValidatePort(t *testing.T) {
	tests := []struct {
		name    string
		portStr string
		wantErr bool
	}{
		{"valid", "8080", false},
		{"min valid", "1", false},
		{"max valid", "65535", false},
		{"too small", "0", true},
		{"negative", "-1", true},
		{"too large", "65536", true},
		{"invalid format", "abc", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePort(tt.portStr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateHost(t *testing.T) {
	tests := []struct {
		name    string
		host    string
		wantErr bool
	}{
		{"valid IPv4", "127.0.0.1", false},
		{"valid IPv6", "::1", false},
		{"valid hostname", "localhost", false},
		{"valid hostname with domain", "example.com", false},
		{"empty", "", true},
		{"too long", string(make([]byte, 254)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateHost(tt.host)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSetup_AcceptDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "server_config.yml")
	var out bytes.Buffer

	// every prompt answered with Enter
	cfg, err := Setup(configPath, strings.NewReader(strings.Repeat("\n", 16)), &out)
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "/", cfg.Server.WebSocket.Path)
	assert.False(t, cfg.Server.DTLS.Enabled)
	assert.Contains(t, out.String(), "Configuration saved successfully!")

	t.Setenv("PORT", "")
	loaded, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestSetup_CustomValues(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "server_config.yml")
	input := strings.Join([]string{
		"9000",                 // port
		"127.0.0.1",            // host
		"prod",                 // env
		"DEBUG",                // log level
		"/signal",              // ws path
		"0",                    // ping interval
		"https://a.example, b", // origins
		"y",                    // dtls
		"9001",                 // dtls port
		"files",                // cert mode
		"/etc/rdv",             // cert path
		"",                     // cert file
		"",                     // key file
		"",                     // ca
		"require_any_client_cert",
		"",        // cipher suites
		"require", // ems
		"1400",    // mtu
		"nope",    // replay window
	}, "\n") + "\n"
	var out bytes.Buffer

	cfg, err := Setup(configPath, strings.NewReader(input), &out)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "prod", cfg.Server.Env)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, "/signal", cfg.Server.WebSocket.Path)
	assert.Equal(t, "0", cfg.Server.Signaling.PingInterval)
	assert.Equal(t, []string{"https://a.example", "b"}, cfg.Server.WebSocket.AllowedOrigins)
	assert.True(t, cfg.Server.DTLS.Enabled)
	assert.Equal(t, "9001", cfg.Server.DTLS.Port)
	assert.Equal(t, "files", cfg.Server.DTLS.Certs.Mode)
	assert.Equal(t, "/etc/rdv", cfg.Server.DTLS.Certs.Path)
	assert.Equal(t, "server.crt", cfg.Server.DTLS.Certs.Cert)
	assert.Equal(t, "", cfg.Server.DTLS.Certs.CA)
	assert.Equal(t, "require_any_client_cert", cfg.Server.DTLS.Security.ClientAuth)
	assert.Equal(t, "require", cfg.Server.DTLS.Security.ExtendedMasterSecret)
	assert.Equal(t, 1400, cfg.Server.DTLS.Tuning.MTU)
	assert.Equal(t, 64, cfg.Server.DTLS.Tuning.ReplayProtectionWindow)
	assert.Contains(t, out.String(), "Invalid integer, using default 64")
}

func TestSetup_InvalidPortFallsBack(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "server_config.yml")
	var out bytes.Buffer

	cfg, err := Setup(configPath, strings.NewReader("99999\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Contains(t, out.String(), "using default 3000")
}

func TestSetup_InvalidPingInterval(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "server_config.yml")
	input := "\n\n\n\n\nsoon\n"

	_, err := Setup(configPath, strings.NewReader(input), &bytes.Buffer{})
	assert.Error(t, err)
	_, statErr := os.Stat(configPath)
	assert.True(t, os.IsNotExist(statErr))
}
