package hubclient

import (
	"fmt"
	"net"
	"net/url"
	"time"
)

// OutboundIP determines the primary local address used to reach the hub, by
// resolving a UDP "connection" towards it (no packet is sent). Best effort:
// callers treat an error as "identity unknown" and carry on.
func OutboundIP(hubURL string) (string, error) {
	u, err := url.Parse(hubURL)
	if err != nil {
		return "", fmt.Errorf("invalid hub url: %w", err)
	}

	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "443"
		if u.Scheme == "http" {
			port = "80"
		}
	}

	dialer := net.Dialer{Timeout: 2 * time.Second}
	conn, err := dialer.Dial("udp", net.JoinHostPort(host, port))
	if err != nil {
		return "", fmt.Errorf("failed to determine outbound address: %w", err)
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("unexpected local address type %T", conn.LocalAddr())
	}
	return addr.IP.String(), nil
}
