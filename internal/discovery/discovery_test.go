package discovery

import (
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
	"github.com/stretchr/testify/assert"
)

func entry(instance string, port int, ips ...string) *zeroconf.ServiceEntry {
	e := zeroconf.NewServiceEntry(instance, "_http._tcp", "local.")
	e.Port = port
	for _, ip := range ips {
		e.AddrIPv4 = append(e.AddrIPv4, net.ParseIP(ip))
	}
	return e
}

func TestFilterCandidates(t *testing.T) {

	assert := assert.New(t)

	candidates := FilterCandidates([]*zeroconf.ServiceEntry{
		entry("Pillbox-Kitchen", 80, "192.168.4.1"),
		entry("pillbox-bedroom", 8080, "192.168.1.50"),
		// duplicated announcement
		entry("Pillbox-Kitchen", 80, "192.168.4.1"),
		// no IPv4
		entry("pillbox-v6", 80),
		// other device
		entry("printer", 80, "192.168.1.2"),
		nil,
	}, "pillbox")

	assert.Equal([]Candidate{
		{Name: "Pillbox-Kitchen", Address: "192.168.4.1"},
		{Name: "pillbox-bedroom", Address: "192.168.1.50:8080"},
	}, candidates)
}

func TestFilterCandidatesEmpty(t *testing.T) {
	candidates := FilterCandidates(nil, "pillbox")
	assert.NotNil(t, candidates)
	assert.Empty(t, candidates)
}

func TestFilterCandidatesEmptyPrefix(t *testing.T) {
	candidates := FilterCandidates([]*zeroconf.ServiceEntry{
		entry("printer", 631, "192.168.1.2"),
	}, "")
	assert.Equal(t, []Candidate{{Name: "printer", Address: "192.168.1.2:631"}}, candidates)
}
