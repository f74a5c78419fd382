// Package discovery advertises a canvas server on the local network and finds one from a client.
package discovery

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hashicorp/mdns"
)

const ServiceType = "_collabcanvas._tcp"

// Advertise publishes the server's port over mDNS until Shutdown is called on the result.
func Advertise(port int, defaultRoom string) (*mdns.Server, error) {
	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("failed to get hostname: %w", err)
	}
	service, err := mdns.NewMDNSService(host, ServiceType, "", "", port, nil, []string{"path=/ws", "room=" + defaultRoom})
	if err != nil {
		return nil, fmt.Errorf("failed to create mdns service: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to start mdns server: %w", err)
	}
	slog.Info("advertising over mdns", "service", ServiceType, "host", host, "port", port)
	return server, nil
}

// Browse returns the first IPv4 "host:port" advertising the service within timeout.
func Browse(timeout time.Duration) (string, error) {
	entries := make(chan *mdns.ServiceEntry, 8)
	found := firstAddr(entries)

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true
	err := mdns.Query(params)
	close(entries)
	addr, ok := <-found
	if err != nil {
		return "", fmt.Errorf("failed to query mdns: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("no %s service found within %s", ServiceType, timeout)
	}
	return addr, nil
}

// firstAddr drains entries and yields the first usable IPv4 address once entries is closed. The
// returned channel is closed without a value when no entry qualified.
func firstAddr(entries <-chan *mdns.ServiceEntry) <-chan string {
	found := make(chan string, 1)
	go func() {
		defer close(found)
		addr := ""
		for e := range entries {
			if addr == "" && e.AddrV4 != nil && e.Port != 0 {
				addr = fmt.Sprintf("%s:%d", e.AddrV4.String(), e.Port)
			}
		}
		if addr != "" {
			found <- addr
		}
	}()
	return found
}
