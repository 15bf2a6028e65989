package hostagent

import (
	"fmt"
	"net"
	"strconv"
)

// findFreePort scans [start, end] for a bindable loopback port, skipping
// ports already assigned in this session. Returns the port as a string,
// the form backend processes and descriptors carry it in.
func findFreePort(start, end int, used map[string]bool) (string, error) {
	for p := start; p <= end; p++ {
		port := strconv.Itoa(p)
		if used[port] {
			continue
		}
		l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", port))
		if err != nil {
			continue
		}
		l.Close()
		return port, nil
	}
	return "", fmt.Errorf("no free port in %d-%d", start, end)
}
