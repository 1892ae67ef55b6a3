package serve

import (
	"crypto/tls"
	"net"
	"net/http"
	"strings"
	"sync"
)

// TrustList classifies an inbound request as coming from the appliance
// itself. In TLS mode, trust follows the client certificate's common
// name; in plain-HTTP mode (used in test/internal deployments), trust
// follows a configured set of remote hosts, matching the teacher's
// middleware pattern of checking the request against a configured
// allowlist before handing it further down the chain (http/server.go's
// CORS/auth middleware registration).
type TrustList struct {
	mu          sync.RWMutex
	trustedCNs  map[string]bool
	trustedHost map[string]bool
}

// NewTrustList builds a trust list from a set of trusted TLS common
// names and a set of trusted remote hosts (IP or hostname, as seen in
// r.RemoteAddr once stripped of its port).
func NewTrustList(trustedCNs, trustedHosts []string) *TrustList {
	t := &TrustList{
		trustedCNs:  make(map[string]bool, len(trustedCNs)),
		trustedHost: make(map[string]bool, len(trustedHosts)),
	}
	for _, cn := range trustedCNs {
		t.trustedCNs[cn] = true
	}
	for _, h := range trustedHosts {
		t.trustedHost[strings.ToLower(h)] = true
	}
	return t
}

// IsTrusted reports whether r originated from the appliance: via the
// client certificate's CN when the connection is TLS, or via the
// configured remote-host allowlist otherwise.
func (t *TrustList) IsTrusted(r *http.Request) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if r.TLS != nil {
		return t.trustedByCertificate(r.TLS)
	}
	return t.trustedByRemoteHost(r.RemoteAddr)
}

func (t *TrustList) trustedByCertificate(state *tls.ConnectionState) bool {
	for _, cert := range state.PeerCertificates {
		if t.trustedCNs[cert.Subject.CommonName] {
			return true
		}
	}
	return false
}

func (t *TrustList) trustedByRemoteHost(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	return t.trustedHost[strings.ToLower(host)]
}
