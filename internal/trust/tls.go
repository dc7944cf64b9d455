package trust

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"time"
)

// Issuer holds the issuer fields of a leaf certificate.
type Issuer struct {
	Organization []string `json:"organization"`
	CommonName   string   `json:"common_name"`
	Country      []string `json:"country,omitempty"`
}

// TLSProbe retrieves the issuer of the certificate presented by host.
type TLSProbe interface {
	Probe(ctx context.Context, host string) (Issuer, error)
}

// ProbeError separates handshake and certificate failures from connection failures.
type ProbeError struct {
	Handshake bool
	Err       error
}

func (e *ProbeError) Error() string { return e.Err.Error() }

func (e *ProbeError) Unwrap() error { return e.Err }

// NetTLSProbe performs a verified TLS handshake on port 443.
type NetTLSProbe struct {
	Timeout time.Duration
	// RootCAs overrides the system pool; nil uses the host roots.
	RootCAs *x509.CertPool
	Port    string
}

// NewNetTLSProbe returns a probe with a 5 second connect and handshake budget.
func NewNetTLSProbe() *NetTLSProbe {
	return &NetTLSProbe{Timeout: 5 * time.Second, Port: "443"}
}

func (p *NetTLSProbe) Probe(ctx context.Context, host string) (Issuer, error) {
	port := p.Port
	if port == "" {
		port = "443"
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		return Issuer{}, &ProbeError{Err: err}
	}
	defer conn.Close()

	tlsConn := tls.Client(conn, &tls.Config{
		ServerName: host,
		RootCAs:    p.RootCAs,
		MinVersion: tls.VersionTLS12,
	})
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return Issuer{}, &ProbeError{Handshake: true, Err: err}
	}

	certs := tlsConn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return Issuer{}, &ProbeError{Handshake: true, Err: errors.New("no peer certificate")}
	}
	leaf := certs[0]
	return Issuer{
		Organization: leaf.Issuer.Organization,
		CommonName:   leaf.Issuer.CommonName,
		Country:      leaf.Issuer.Country,
	}, nil
}

// TLSCheck is the outcome of CheckTLS.
type TLSCheck struct {
	OK     bool
	Reason string
	Issuer Issuer
}

// CheckTLS probes host and treats a missing or organization-less issuer as a
// failure. Probe errors become failures with a reason; they never abort.
func CheckTLS(ctx context.Context, probe TLSProbe, host string) TLSCheck {
	if probe == nil {
		return TLSCheck{Reason: "Certificado TLS inválido ou ausente"}
	}
	issuer, err := probe.Probe(ctx, host)
	if err != nil {
		var perr *ProbeError
		if errors.As(err, &perr) && perr.Handshake {
			return TLSCheck{Reason: fmt.Sprintf("Erro SSL: %v", perr.Err)}
		}
		return TLSCheck{Reason: fmt.Sprintf("Erro ao conectar: %v", err)}
	}
	if len(issuer.Organization) == 0 || issuer.Organization[0] == "" {
		return TLSCheck{Reason: "Certificado suspeito ou autoassinado", Issuer: issuer}
	}
	return TLSCheck{OK: true, Issuer: issuer}
}
