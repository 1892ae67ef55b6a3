package serve

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrustListTrustsConfiguredRemoteHost(t *testing.T) {
	trust := NewTrustList(nil, []string{"10.0.0.5"})

	r := httptest.NewRequest(http.MethodGet, "/doc", nil)
	r.RemoteAddr = "10.0.0.5:54321"

	assert.True(t, trust.IsTrusted(r))
}

func TestTrustListRejectsUnknownRemoteHost(t *testing.T) {
	trust := NewTrustList(nil, []string{"10.0.0.5"})

	r := httptest.NewRequest(http.MethodGet, "/doc", nil)
	r.RemoteAddr = "192.168.1.1:1111"

	assert.False(t, trust.IsTrusted(r))
}

func TestTrustListIsCaseInsensitiveOnHost(t *testing.T) {
	trust := NewTrustList(nil, []string{"Appliance.Example.Com"})

	r := httptest.NewRequest(http.MethodGet, "/doc", nil)
	r.RemoteAddr = "appliance.example.com:443"

	assert.True(t, trust.IsTrusted(r))
}
