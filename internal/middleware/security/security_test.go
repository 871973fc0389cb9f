package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractClientIP(t *testing.T) {
	d, err := NewDetector(nil, "100.64.0.0/10")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct client", "203.0.113.5:4000", "", "", "203.0.113.5"},
		{"untrusted peer ignores forwarding", "203.0.113.5:4000", "1.2.3.4", "", "203.0.113.5"},
		{"trusted proxy uses first forwarded", "10.0.0.2:80", "198.51.100.7, 10.0.0.9", "", "198.51.100.7"},
		{"trusted proxy falls back to real ip", "127.0.0.1:80", "garbage", "198.51.100.8", "198.51.100.8"},
		{"extra trusted range", "100.64.1.1:80", "198.51.100.9", "", "198.51.100.9"},
		{"trusted proxy without headers", "192.168.1.1:80", "", "", "192.168.1.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/balance", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := d.ExtractClientIP(r); got != tt.want {
				t.Errorf("ExtractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
	if d.GetMetrics().SpoofedForwarding != 1 {
		t.Errorf("spoofed = %d, want 1", d.GetMetrics().SpoofedForwarding)
	}
}

func TestNewDetector_InvalidCIDR(t *testing.T) {
	if _, err := NewDetector(nil, "not-a-cidr"); err == nil {
		t.Fatal("expected error")
	}
}

func TestIsSuspicious(t *testing.T) {
	d, _ := NewDetector(nil)
	tests := []struct {
		target string
		ua     string
		want   bool
	}{
		{"/balance", "saldo-client/1.0", false},
		{"/balance/close?limit=5", "", false},
		{"/.env", "", true},
		{"/x/../../etc/passwd", "", true},
		{"/balance", "sqlmap/1.7", true},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, tt.target, nil)
		r.Header.Set("User-Agent", tt.ua)
		if got := d.IsSuspicious(r); got != tt.want {
			t.Errorf("IsSuspicious(%q, %q) = %v, want %v", tt.target, tt.ua, got, tt.want)
		}
	}
}

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/balance", nil))
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" || rec.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("headers = %v", rec.Header())
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Fatal("HSTS sent over plain HTTP")
	}

	req := httptest.NewRequest(http.MethodGet, "/balance", nil)
	req.TLS = &tls.ConnectionState{}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Fatalf("HSTS = %q", got)
	}
}
