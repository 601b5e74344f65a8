package security

import (
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"

	applog "finbits/internal/log"
	"finbits/internal/metrics"
)

// Reasons reported by Inspect.
const (
	ReasonProbePath  = "probe_path"
	ReasonInjection  = "injection"
	ReasonScanner    = "scanner_agent"
	ReasonMethod     = "unusual_method"
	ReasonLongURL    = "long_url"
	ReasonProxyChain = "proxy_chain"
)

const (
	maxURLLength     = 2048
	maxForwardedHops = 5
)

var (
	// Paths nobody calls on a JSON budgeting API.
	probePaths = []string{
		"../", "..\\", ".env", ".git", ".ssh", "wp-admin", "phpmyadmin",
		"admin.php", "config.php", "etc/passwd", "cmd.exe",
	}
	injectionMarkers = []string{"<script", "javascript:", "eval(", "union select", "' or '1'='1"}
	scannerAgents    = []string{"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan", "zgrab", "scanner"}
	unusualMethods   = map[string]bool{"TRACE": true, "TRACK": true, "DEBUG": true, "CONNECT": true}
)

// Detector flags requests that look like probing and resolves client
// addresses behind trusted proxies.
type Detector struct {
	trusted []netip.Prefix
}

// NewDetector trusts loopback and RFC 1918 peers to set forwarding headers.
func NewDetector(extraTrusted ...netip.Prefix) *Detector {
	return &Detector{trusted: append([]netip.Prefix{
		netip.MustParsePrefix("127.0.0.0/8"),
		netip.MustParsePrefix("::1/128"),
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("172.16.0.0/12"),
		netip.MustParsePrefix("192.168.0.0/16"),
	}, extraTrusted...)}
}

// Inspect returns the first rule the request trips, if any.
func (d *Detector) Inspect(r *http.Request) (string, bool) {
	path := strings.ToLower(r.URL.Path)
	query := r.URL.RawQuery
	if unescaped, err := url.QueryUnescape(query); err == nil {
		query = unescaped
	}
	query = strings.ToLower(query)

	switch {
	case containsAny(path, probePaths) || containsAny(query, probePaths):
		return ReasonProbePath, true
	case containsAny(path, injectionMarkers) || containsAny(query, injectionMarkers):
		return ReasonInjection, true
	case containsAny(strings.ToLower(r.UserAgent()), scannerAgents):
		return ReasonScanner, true
	case unusualMethods[r.Method]:
		return ReasonMethod, true
	case len(r.URL.String()) > maxURLLength:
		return ReasonLongURL, true
	case strings.Count(r.Header.Get("X-Forwarded-For"), ",") >= maxForwardedHops:
		return ReasonProxyChain, true
	}
	return "", false
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// ExtractClientIP honours X-Forwarded-For and X-Real-IP only when the
// direct peer is a trusted proxy.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer, err := netip.ParseAddr(host)
	if err != nil || !d.isTrusted(peer) {
		return host
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if addr, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
			return addr.String()
		}
	}
	if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return addr.String()
	}
	return host
}

func (d *Detector) isTrusted(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range d.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Middleware logs and counts suspicious requests. It never blocks them:
// authentication and rate limiting still apply downstream.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reason, ok := d.Inspect(r); ok {
			metrics.SuspiciousRequest(reason)
			applog.FromContext(r.Context()).WithComponent(applog.ComponentSecurity).WarnContext(r.Context(),
				"Suspicious request detected",
				applog.NewFields().
					WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent(), "").
					WithClientIP(d.ExtractClientIP(r)).
					WithReason(reason).
					ToSlice()...)
		}
		next.ServeHTTP(w, r)
	})
}
