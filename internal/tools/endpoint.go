package tools

import (
	"fmt"
	"net"
	"strconv"
)

func splitEndpoint(endpoint string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		return "", 0, fmt.Errorf("endpoint %q is not host:port: %w", endpoint, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("endpoint %q has non-numeric port: %w", endpoint, err)
	}
	return host, port, nil
}
