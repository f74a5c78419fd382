package discovery

import (
	"net"
	"testing"

	"github.com/hashicorp/mdns"
	"github.com/stretchr/testify/assert"
)

func TestFirstAddr(t *testing.T) {
	entries := make(chan *mdns.ServiceEntry, 4)
	found := firstAddr(entries)
	entries <- &mdns.ServiceEntry{Name: "v6only", Port: 8080}
	entries <- &mdns.ServiceEntry{Name: "noport", AddrV4: net.IPv4(10, 0, 0, 1)}
	entries <- &mdns.ServiceEntry{Name: "good", AddrV4: net.IPv4(10, 0, 0, 2), Port: 8080}
	entries <- &mdns.ServiceEntry{Name: "late", AddrV4: net.IPv4(10, 0, 0, 3), Port: 9090}
	close(entries)

	addr, ok := <-found
	assert.True(t, ok)
	assert.Equal(t, "10.0.0.2:8080", addr)
	_, ok = <-found
	assert.False(t, ok)
}

func TestFirstAddr_NoneUsable(t *testing.T) {
	entries := make(chan *mdns.ServiceEntry, 1)
	found := firstAddr(entries)
	entries <- &mdns.ServiceEntry{Name: "noport", AddrV4: net.IPv4(10, 0, 0, 1)}
	close(entries)

	_, ok := <-found
	assert.False(t, ok)
}
