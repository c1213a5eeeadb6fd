package middleware

import (
	"net"
	"net/http"
)

// TrustedCIDR lets through only requests whose X-Real-IP, or the peer
// address when the header is absent, falls inside cidr. An empty cidr
// allows everything. An invalid cidr panics; validate it at startup.
func TrustedCIDR(cidr string) func(http.Handler) http.Handler {
	var ipnet *net.IPNet
	if cidr != "" {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("invalid trusted subnet: " + err.Error())
		}
		ipnet = n
	}

	return func(next http.Handler) http.Handler {
		if ipnet == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if ip == nil || !ipnet.Contains(ip) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) net.IP {
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return net.ParseIP(realIP)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return net.ParseIP(host)
}
