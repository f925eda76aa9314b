package config

import (
	"fmt"
	"net"
	"strconv"
)

// normalizeListenAddr accepts a bare port ("3000") or a host:port address.
// A bare port must be in 1..65535; an explicit ":0" asks for any free port.
func normalizeListenAddr(addr string) (string, error) {
	if addr == "" {
		return "", fmt.Errorf("listen_addr must not be empty")
	}

	if _, err := strconv.Atoi(addr); err == nil {
		if err := validatePort(addr); err != nil {
			return "", err
		}
		return ":" + addr, nil
	}

	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("invalid listen_addr %q: %w", addr, err)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return "", fmt.Errorf("invalid port in listen_addr %q", addr)
	}
	return addr, nil
}

func validatePort(port string) error {
	n, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("port %q is not a number", port)
	}
	if n < 1 || n > 65535 {
		return fmt.Errorf("port %d out of range 1-65535", n)
	}
	return nil
}
