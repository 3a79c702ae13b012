package distributor

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"
)

var errNoCertificates = errors.New("no PEM certificates found")

// TLSVerify selects how server certificates are checked. The zero value
// verifies against the system trust store.
type TLSVerify struct {
	// Skip disables certificate verification entirely.
	Skip bool
	// CABundle is a PEM file used instead of the system roots.
	CABundle string
}

func (v TLSVerify) tlsConfig() (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if v.Skip {
		cfg.InsecureSkipVerify = true
		return cfg, nil
	}
	if v.CABundle == "" {
		return cfg, nil
	}

	pem, err := os.ReadFile(v.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca bundle: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("ca bundle %s: %w", v.CABundle, errNoCertificates)
	}
	cfg.RootCAs = pool
	return cfg, nil
}

// newClient builds a client with its own transport so no connection or
// cookie state is shared between calls. Callers must invoke the returned
// release func once the response body is closed.
func (d *Distributor) newClient(target string, timeout time.Duration, verify TLSVerify) (*http.Client, func(), error) {
	tlsCfg, err := verify.tlsConfig()
	if err != nil {
		return nil, nil, err
	}
	if verify.Skip && !d.cfg.SuppressInsecureWarning {
		d.logger.Warn("TLS certificate verification is disabled for request", "url", target)
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		TLSClientConfig:     tlsCfg,
		TLSHandshakeTimeout: timeout,
		DisableKeepAlives:   true,
	}
	client := &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
	return client, transport.CloseIdleConnections, nil
}
