package security

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"

	"saldo/internal/log"
)

var defaultTrustedProxies = []string{
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"::1/128",
}

var suspiciousPatterns = []string{
	"../", "..\\", ".env", ".git", "wp-admin", "phpmyadmin",
	"etc/passwd", "<script", "union select", "cmd.exe",
}

var scannerAgents = []string{
	"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan",
}

// DetectionMetrics tracks security detection events
type DetectionMetrics struct {
	SuspiciousRequests int64
	SpoofedForwarding  int64
}

// Detector resolves client addresses behind trusted proxies and flags
// requests that look like scans.
type Detector struct {
	trustedProxies []*net.IPNet
	logger         *log.Logger
	suspicious     atomic.Int64
	spoofed        atomic.Int64
}

// NewDetector trusts loopback and private ranges plus any extra CIDRs.
func NewDetector(logger *log.Logger, extraTrusted ...string) (*Detector, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	d := &Detector{logger: logger.WithComponent(log.ComponentSecurity)}
	for _, cidr := range append(append([]string{}, defaultTrustedProxies...), extraTrusted...) {
		if err := d.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// AddTrustedProxy adds a trusted proxy network
func (d *Detector) AddTrustedProxy(cidr string) error {
	_, network, err := net.ParseCIDR(strings.TrimSpace(cidr))
	if err != nil {
		return fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}
	d.trustedProxies = append(d.trustedProxies, network)
	return nil
}

// ExtractClientIP returns the peer address, or the first forwarded address
// when the peer is a trusted proxy.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}
	parsed := net.ParseIP(directIP)
	if parsed == nil {
		return directIP
	}

	if !d.isTrustedProxy(parsed) {
		if r.Header.Get("X-Forwarded-For") != "" {
			d.spoofed.Add(1)
		}
		return directIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.SplitN(xff, ",", 2)[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return directIP
}

func (d *Detector) isTrustedProxy(ip net.IP) bool {
	for _, network := range d.trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// IsSuspicious reports whether the request path, query or user agent match
// common scanner patterns.
func (d *Detector) IsSuspicious(r *http.Request) bool {
	target := strings.ToLower(r.URL.Path + "?" + r.URL.RawQuery)
	for _, p := range suspiciousPatterns {
		if strings.Contains(target, p) {
			return true
		}
	}
	ua := strings.ToLower(r.UserAgent())
	for _, a := range scannerAgents {
		if strings.Contains(ua, a) {
			return true
		}
	}
	return r.Method == http.MethodTrace || len(r.URL.String()) > 2048
}

// Middleware logs suspicious requests and lets them through; routing and
// auth decide what they get.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if d.IsSuspicious(r) {
			d.suspicious.Add(1)
			d.logger.WarnContext(r.Context(), "Suspicious request",
				log.FieldClientIP, d.ExtractClientIP(r),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.UserAgent())
		}
		next.ServeHTTP(w, r)
	})
}

// GetMetrics returns current security metrics
func (d *Detector) GetMetrics() DetectionMetrics {
	return DetectionMetrics{
		SuspiciousRequests: d.suspicious.Load(),
		SpoofedForwarding:  d.spoofed.Load(),
	}
}
