package audio

import (
	"net"
	"net/url"
)

// IsSecureEndpoint reports whether endpoint would be allowed to capture audio
// in a browser-like secure context: TLS transports are always allowed, plain
// transports only when the host is a loopback address.
func IsSecureEndpoint(endpoint string) bool {
	u, err := url.Parse(endpoint)
	if err != nil {
		return false
	}

	switch u.Scheme {
	case "https", "wss":
		return true
	}

	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// AllSecureEndpoints reports whether every endpoint passes IsSecureEndpoint.
func AllSecureEndpoints(endpoints ...string) bool {
	for _, endpoint := range endpoints {
		if !IsSecureEndpoint(endpoint) {
			return false
		}
	}
	return true
}
