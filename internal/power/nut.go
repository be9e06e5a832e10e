package power

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"time"
)

// NUTSource queries a NUT daemon (upsd) directly over TCP instead of going
// through the hub. Protocol: one request line, one response line.
//
//	>> GET VAR <ups> ups.status
//	<< VAR <ups> ups.status "OB LB"
type NUTSource struct {
	addr    string
	ups     string
	timeout time.Duration
}

func NewNUTSource(addr, ups string, timeout time.Duration) *NUTSource {
	return &NUTSource{
		addr:    addr,
		ups:     ups,
		timeout: timeout,
	}
}

// Read fetches ups.status for the configured UPS. NUT readings are always
// real hardware, never simulated.
func (s *NUTSource) Read(ctx context.Context) (Reading, error) {
	dialer := net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return Reading{}, fmt.Errorf("connection failed: %w", err)
	}
	defer conn.Close()

	// Timeout setzen
	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetDeadline(deadline)

	if _, err := fmt.Fprintf(conn, "GET VAR %s ups.status\n", s.ups); err != nil {
		return Reading{}, fmt.Errorf("write failed: %w", err)
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return Reading{}, fmt.Errorf("read failed: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")

	status, err := parseVarResponse(line, s.ups)
	if err != nil {
		return Reading{}, err
	}

	// Abmelden, best effort
	fmt.Fprint(conn, "LOGOUT\n")

	return Reading{Status: status}, nil
}

func parseVarResponse(line, ups string) (string, error) {
	if strings.HasPrefix(line, "ERR ") {
		return "", fmt.Errorf("upsd error: %s", strings.TrimPrefix(line, "ERR "))
	}

	parts := strings.SplitN(line, " ", 4)
	if len(parts) != 4 || parts[0] != "VAR" || parts[2] != "ups.status" {
		return "", fmt.Errorf("unexpected upsd response: %q", line)
	}
	if parts[1] != ups {
		return "", fmt.Errorf("response for wrong ups: expected %q, got %q", ups, parts[1])
	}

	return strings.Trim(parts[3], "\""), nil
}
