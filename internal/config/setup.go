// Package config provides interactive setup functionality.
package config

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"
)

// Setup runs an interactive setup on in/out, saves the result to path and returns it.
func Setup(path string, in io.Reader, out io.Writer) (*Config, error) {
	p := &prompter{r: bufio.NewReader(in), w: out}
	def := Default()

	fmt.Fprintln(out, "=== Signaling Server Configuration Setup ===")
	fmt.Fprintln(out)

	cfg := Default()

	// Server base configuration
	fmt.Fprintln(out, "--- Server Configuration ---")
	cfg.Server.Port = p.promptValidated("Port", def.Server.Port, validatePort)
	cfg.Server.Host = p.promptValidated("Host", def.Server.Host, validateHost)
	cfg.Server.Env = p.promptChoice("Environment", []string{"dev", "prod"}, def.Server.Env)
	cfg.Server.LogLevel = p.promptChoice("Log level", []string{"debug", "info", "warn", "error"}, def.Server.LogLevel)
	fmt.Fprintln(out)

	// Signaling
	fmt.Fprintln(out, "--- Signaling ---")
	cfg.Server.WebSocket.Path = p.promptString("WebSocket path", def.Server.WebSocket.Path)
	cfg.Server.Signaling.PingInterval = p.promptString("Keep-alive ping interval (0 disables)", def.Server.Signaling.PingInterval)
	origins := p.promptString("Allowed origins (comma-separated, press Enter to allow any)", "")
	if origins != "" {
		cfg.Server.WebSocket.AllowedOrigins = parseStringSlice(origins)
	}
	fmt.Fprintln(out)

	// DTLS
	fmt.Fprintln(out, "--- DTLS Listener ---")
	cfg.Server.DTLS.Enabled = p.promptBool("Enable DTLS listener (y/n)", false)
	if cfg.Server.DTLS.Enabled {
		cfg.Server.DTLS.Port = p.promptValidated("DTLS port", def.Server.DTLS.Port, validatePort)
		cfg.Server.DTLS.Certs.Mode = p.promptChoice("Certificate mode", []string{"self_signed", "files"}, "self_signed")

		if cfg.Server.DTLS.Certs.Mode == "files" {
			cfg.Server.DTLS.Certs.Path = p.promptString("Certificate path", def.Server.DTLS.Certs.Path)
			cfg.Server.DTLS.Certs.Cert = p.promptString("Certificate file", def.Server.DTLS.Certs.Cert)
			cfg.Server.DTLS.Certs.Key = p.promptString("Key file", def.Server.DTLS.Certs.Key)
			cfg.Server.DTLS.Certs.CA = p.promptString("CA file (optional, press Enter to skip)", "")
		}

		clientAuthChoices := []string{
			"no_client_cert",
			"request_client_cert",
			"require_any_client_cert",
			"verify_client_cert_if_given",
			"require_and_verify_client_cert",
		}
		cfg.Server.DTLS.Security.ClientAuth = p.promptChoice("Client authentication", clientAuthChoices, "no_client_cert")

		cipherSuitesInput := p.promptString("Cipher suites (comma-separated, optional, press Enter to skip)", "")
		if cipherSuitesInput != "" {
			cfg.Server.DTLS.Security.CipherSuites = parseStringSlice(cipherSuitesInput)
		}
		cfg.Server.DTLS.Security.ExtendedMasterSecret = p.promptChoice("Extended Master Secret", []string{"request", "require", "disable"}, "request")
		cfg.Server.DTLS.Tuning.MTU = p.promptInt("MTU", def.Server.DTLS.Tuning.MTU)
		cfg.Server.DTLS.Tuning.ReplayProtectionWindow = p.promptInt("Replay Protection Window", def.Server.DTLS.Tuning.ReplayProtectionWindow)
	}
	fmt.Fprintln(out)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	fmt.Fprintf(out, "Saving configuration to %s...\n", path)
	if err := SaveConfig(cfg, path); err != nil {
		return nil, fmt.Errorf("save config: %w", err)
	}
	fmt.Fprintln(out, "Configuration saved successfully!")

	return cfg, nil
}

// SaveConfig saves a Config to a YAML file.
func SaveConfig(cfg *Config, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := yaml.NewEncoder(f)
	defer encoder.Close()
	if err := encoder.Encode(cfg); err != nil {
		return err
	}
	return nil
}

type prompter struct {
	r *bufio.Reader
	w io.Writer
}

// readLine returns the trimmed next line, or "" on EOF.
func (p *prompter) readLine() string {
	input, err := p.r.ReadString('\n')
	if err != nil && input == "" {
		return ""
	}
	return strings.TrimSpace(input)
}

// promptString prompts for a string value with a default.
func (p *prompter) promptString(prompt string, defaultVal string) string {
	defaultText := ""
	if defaultVal != "" {
		defaultText = fmt.Sprintf(" [%s]", defaultVal)
	}
	fmt.Fprintf(p.w, "%s%s: ", prompt, defaultText)

	input := p.readLine()
	if input == "" {
		return defaultVal
	}
	return input
}

// promptValidated prompts like promptString and falls back to the default on invalid input.
func (p *prompter) promptValidated(prompt, defaultVal string, validate func(string) error) string {
	v := p.promptString(prompt, defaultVal)
	if err := validate(v); err != nil {
		fmt.Fprintf(p.w, "%v, using default %s\n", err, defaultVal)
		return defaultVal
	}
	return v
}

// promptInt prompts for an integer value with validation and a default.
func (p *prompter) promptInt(prompt string, defaultVal int) int {
	fmt.Fprintf(p.w, "%s [%d]: ", prompt, defaultVal)

	input := p.readLine()
	if input == "" {
		return defaultVal
	}

	val, err := strconv.Atoi(input)
	if err != nil {
		fmt.Fprintf(p.w, "Invalid integer, using default %d\n", defaultVal)
		return defaultVal
	}
	return val
}

// promptChoice prompts for a choice from a list of options with a default.
func (p *prompter) promptChoice(prompt string, choices []string, defaultVal string) string {
	fmt.Fprintf(p.w, "%s (%s) [%s]: ", prompt, strings.Join(choices, "/"), defaultVal)

	input := p.readLine()
	if input == "" {
		return defaultVal
	}

	for _, choice := range choices {
		if strings.EqualFold(input, choice) {
			return choice
		}
	}

	fmt.Fprintf(p.w, "Invalid choice, using default %s\n", defaultVal)
	return defaultVal
}

// promptBool prompts for a boolean value (y/n) with a default.
func (p *prompter) promptBool(prompt string, defaultVal bool) bool {
	defaultText := "n"
	if defaultVal {
		defaultText = "y"
	}
	fmt.Fprintf(p.w, "%s [%s]: ", prompt, defaultText)

	input := strings.ToLower(p.readLine())
	if input == "" {
		return defaultVal
	}
	return input == "y" || input == "yes"
}

// parseStringSlice parses a comma-separated string into a slice of strings.
func parseStringSlice(input string) []string {
	parts := strings.Split(input, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// validatePort validates a port number string.
func validatePort(portStr string) error {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port number: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	return nil
}

// validateHost validates a host string (IP address or hostname).
func validateHost(host string) error {
	if host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if ip := net.ParseIP(host); ip != nil {
		return nil
	}
	if len(host) > 253 {
		return fmt.Errorf("hostname too long")
	}
	return nil
}
