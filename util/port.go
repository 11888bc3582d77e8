package util

import (
	"errors"
	"fmt"
	"net"
)

// GetFreeTcpPorts returns n distinct TCP ports that were free at the time of the
// call. All listeners are held open until every port is chosen so the same port is
// never handed out twice.
func GetFreeTcpPorts(n int) ([]int, error) {
	listeners := make([]net.Listener, 0, n)
	defer func() {
		for _, l := range listeners {
			_ = l.Close()
		}
	}()

	ports := make([]int, 0, n)
	for i := 0; i < n; i++ {
		l, err := net.Listen("tcp", ":0")
		if err != nil {
			return nil, fmt.Errorf("could not allocate free port: %w", err)
		}
		listeners = append(listeners, l)

		port := l.Addr().(*net.TCPAddr).Port
		if port == 0 {
			return nil, fmt.Errorf("could not resolve a port (got 0)")
		}
		ports = append(ports, port)
	}
	return ports, nil
}

func GetFreeTcpPort() (int, error) {
	ports, err := GetFreeTcpPorts(1)
	if err != nil {
		return 0, err
	}
	return ports[0], nil
}

// GetFreeTcpPortsFromRange returns up to n free ports from [low, high). Fewer
// ports are returned when the range is exhausted.
func GetFreeTcpPortsFromRange(n, low, high int) ([]int, error) {
	if low <= 0 || high <= low {
		return nil, errors.New("invalid port range")
	}

	listeners := make([]net.Listener, 0, n)
	defer func() {
		for _, l := range listeners {
			_ = l.Close()
		}
	}()

	ports := make([]int, 0, n)
	next := low
	for len(ports) < n && next < high {
		l, err := net.Listen("tcp", fmt.Sprintf(":%d", next))
		next++
		if err != nil {
			continue
		}
		listeners = append(listeners, l)
		ports = append(ports, l.Addr().(*net.TCPAddr).Port)
	}
	return ports, nil
}
