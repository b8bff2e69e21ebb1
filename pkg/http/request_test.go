package http

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractClientIP_NoProxyUsesRemoteAddr(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.10:54321"
	// Spoofed headers from an untrusted source are ignored.
	req.Header.Set("X-Forwarded-For", "198.51.100.1")

	ip := ExtractClientIP(req, &IPConfig{})
	assert.Equal(t, "203.0.113.10", ip)
}

func TestExtractClientIP_TrustedProxyHonorsForwardedFor(t *testing.T) {
	config := &IPConfig{TrustedProxies: []string{"10.0.0.0/8"}}

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.5:443"
	req.Header.Set("X-Forwarded-For", "203.0.113.10, 10.0.0.5")

	ip := ExtractClientIP(req, config)
	assert.Equal(t, "203.0.113.10", ip)
}

func TestExtractClientIP_TrustedProxyFallsBackToRealIP(t *testing.T) {
	config := &IPConfig{TrustedProxies: []string{"10.0.0.0/8"}}

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.5:443"
	req.Header.Set("X-Real-IP", "203.0.113.10")

	ip := ExtractClientIP(req, config)
	assert.Equal(t, "203.0.113.10", ip)
}

func TestExtractClientIP_InvalidForwardedEntriesSkipped(t *testing.T) {
	config := &IPConfig{TrustedProxies: []string{"10.0.0.0/8"}}

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.5:443"
	req.Header.Set("X-Forwarded-For", "garbage, 203.0.113.10")

	ip := ExtractClientIP(req, config)
	assert.Equal(t, "203.0.113.10", ip)
}

func TestExtractClientIP_NilConfig(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.10:54321"

	ip := ExtractClientIP(req, nil)
	assert.Equal(t, "203.0.113.10", ip)
}
