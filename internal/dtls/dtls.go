// Package dtls builds the pion DTLS configuration for the datagram listener.
package dtls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/auraspeak/rendezvous/internal/config"
	"github.com/pion/dtls/v3"
	"github.com/pion/dtls/v3/pkg/crypto/selfsign"
	log "github.com/sirupsen/logrus"
)

const (
	defaultMTU                    = 1200
	defaultReplayProtectionWindow = 64
)

var (
	cipherSuiteMap = map[string]dtls.CipherSuiteID{
		"TLS_ECDHE_ECDSA_WITH_AES_128_CCM":        dtls.TLS_ECDHE_ECDSA_WITH_AES_128_CCM,
		"TLS_ECDHE_ECDSA_WITH_AES_128_CCM_8":      dtls.TLS_ECDHE_ECDSA_WITH_AES_128_CCM_8,
		"TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256": dtls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		"TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256":   dtls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		"TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384": dtls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
		"TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384":   dtls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
		"TLS_ECDHE_ECDSA_WITH_AES_256_CBC_SHA":    dtls.TLS_ECDHE_ECDSA_WITH_AES_256_CBC_SHA,
		"TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA":      dtls.TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA,
		"TLS_PSK_WITH_AES_128_CCM":                dtls.TLS_PSK_WITH_AES_128_CCM,
		"TLS_PSK_WITH_AES_128_CCM_8":              dtls.TLS_PSK_WITH_AES_128_CCM_8,
		"TLS_PSK_WITH_AES_256_CCM_8":              dtls.TLS_PSK_WITH_AES_256_CCM_8,
		"TLS_PSK_WITH_AES_128_GCM_SHA256":         dtls.TLS_PSK_WITH_AES_128_GCM_SHA256,
		"TLS_PSK_WITH_AES_128_CBC_SHA256":         dtls.TLS_PSK_WITH_AES_128_CBC_SHA256,
		"TLS_ECDHE_PSK_WITH_AES_128_CBC_SHA256":   dtls.TLS_ECDHE_PSK_WITH_AES_128_CBC_SHA256,
	}

	clientAuthMap = map[string]dtls.ClientAuthType{
		"no_client_cert":                 dtls.NoClientCert,
		"request_client_cert":            dtls.RequestClientCert,
		"require_any_client_cert":        dtls.RequireAnyClientCert,
		"verify_client_cert_if_given":    dtls.VerifyClientCertIfGiven,
		"require_and_verify_client_cert": dtls.RequireAndVerifyClientCert,
	}

	extendedMasterSecretMap = map[string]dtls.ExtendedMasterSecretType{
		"request": dtls.RequestExtendedMasterSecret,
		"require": dtls.RequireExtendedMasterSecret,
		"disable": dtls.DisableExtendedMasterSecret,
	}
)

// NewConfig builds a pion DTLS config from the dtls section of cfg.
//
// An empty certs.mode means "self_signed" when env is "dev" and "files"
// otherwise. In "files" mode with env "dev", missing certificate files are
// generated first. cfg must not be nil.
func NewConfig(cfg *config.Config) (*dtls.Config, error) {
	d := &cfg.Server.DTLS

	clientAuth, err := resolveClientAuth(d.Security.ClientAuth)
	if err != nil {
		return nil, err
	}
	cipherSuites, err := resolveCipherSuites(d.Security.CipherSuites)
	if err != nil {
		return nil, err
	}

	var flightInterval time.Duration
	if d.Tuning.FlightInterval != "" {
		flightInterval, err = time.ParseDuration(d.Tuning.FlightInterval)
		if err != nil {
			return nil, fmt.Errorf("dtls.tuning: invalid flight_interval %q: %w", d.Tuning.FlightInterval, err)
		}
	}

	certs, clientCAs, err := loadCertificates(cfg, clientAuth)
	if err != nil {
		return nil, err
	}

	out := &dtls.Config{
		Certificates:            certs,
		ClientAuth:              clientAuth,
		ClientCAs:               clientCAs,
		CipherSuites:            cipherSuites,
		ExtendedMasterSecret:    resolveExtendedMasterSecret(d.Security.ExtendedMasterSecret),
		MTU:                     positiveOr(d.Tuning.MTU, defaultMTU),
		ReplayProtectionWindow:  positiveOr(d.Tuning.ReplayProtectionWindow, defaultReplayProtectionWindow),
		InsecureSkipVerifyHello: d.Tuning.InsecureSkipVerifyHello,
		LoggerFactory:           NewLoggerFactory(log.WithField("caller", "dtls")),
	}
	if flightInterval > 0 {
		out.FlightInterval = flightInterval
	}
	return out, nil
}

func certMode(cfg *config.Config) string {
	if m := cfg.Server.DTLS.Certs.Mode; m != "" {
		return m
	}
	if cfg.Server.Env == "dev" {
		return "self_signed"
	}
	return "files"
}

func loadCertificates(cfg *config.Config, clientAuth dtls.ClientAuthType) ([]tls.Certificate, *x509.CertPool, error) {
	c := &cfg.Server.DTLS.Certs

	switch mode := certMode(cfg); mode {
	case "self_signed":
		if clientAuth != dtls.NoClientCert {
			return nil, nil, fmt.Errorf("dtls.certs: in self_signed mode client_auth must be no_client_cert; use mode=files with ca for client verification")
		}
		cert, err := selfsign.GenerateSelfSigned()
		if err != nil {
			return nil, nil, fmt.Errorf("dtls.certs: self_signed: %w", err)
		}
		return []tls.Certificate{cert}, nil, nil

	case "files":
		if c.Path == "" || c.Cert == "" || c.Key == "" {
			return nil, nil, fmt.Errorf("dtls.certs: mode=files requires path, cert and key")
		}
		if cfg.Server.Env == "dev" {
			if err := config.GenerateCertificates(cfg); err != nil {
				return nil, nil, fmt.Errorf("dtls.certs: generate: %w", err)
			}
		}
		cert, err := tls.LoadX509KeyPair(filepath.Join(c.Path, c.Cert), filepath.Join(c.Path, c.Key))
		if err != nil {
			return nil, nil, fmt.Errorf("dtls.certs: load keypair: %w", err)
		}
		if clientAuth == dtls.NoClientCert {
			return []tls.Certificate{cert}, nil, nil
		}

		if c.CA == "" {
			return nil, nil, fmt.Errorf("dtls.certs: client_auth %q requires ca", cfg.Server.DTLS.Security.ClientAuth)
		}
		pem, err := os.ReadFile(filepath.Join(c.Path, c.CA))
		if err != nil {
			return nil, nil, fmt.Errorf("dtls.certs: read ca: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, nil, fmt.Errorf("dtls.certs: failed to append ca")
		}
		return []tls.Certificate{cert}, pool, nil

	default:
		return nil, nil, fmt.Errorf("dtls.certs: unknown mode %q", mode)
	}
}

func resolveClientAuth(s string) (dtls.ClientAuthType, error) {
	if s == "" {
		return dtls.NoClientCert, nil
	}
	v, ok := clientAuthMap[s]
	if !ok {
		return 0, fmt.Errorf("dtls.security: unknown client_auth %q", s)
	}
	return v, nil
}

func resolveCipherSuites(ids []string) ([]dtls.CipherSuiteID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	out := make([]dtls.CipherSuiteID, 0, len(ids))
	for _, id := range ids {
		v, ok := cipherSuiteMap[id]
		if !ok {
			return nil, fmt.Errorf("dtls.security: unknown cipher_suite %q", id)
		}
		out = append(out, v)
	}
	return out, nil
}

// resolveExtendedMasterSecret falls back to "request" for empty or unknown values.
func resolveExtendedMasterSecret(s string) dtls.ExtendedMasterSecretType {
	if v, ok := extendedMasterSecretMap[s]; ok {
		return v
	}
	return dtls.RequestExtendedMasterSecret
}

func positiveOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
