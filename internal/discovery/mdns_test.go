package discovery

import (
	"net"
	"testing"

	"circles/internal/models"

	"github.com/hashicorp/mdns"
	"github.com/stretchr/testify/assert"
)

func TestEntryToService(t *testing.T) {
	entry := &mdns.ServiceEntry{
		Name:       "home._circles-dir._tcp.local.",
		AddrV4:     net.ParseIP("192.168.1.20"),
		Port:       8750,
		InfoFields: []string{"v=1"},
	}

	svc, ok := entryToService(entry)
	assert.True(t, ok)
	assert.Equal(t, models.Service{Name: entry.Name, Host: "192.168.1.20", Port: 8750}, svc)
	assert.Equal(t, "http://192.168.1.20:8750", BaseURL(svc))
}

func TestEntryToService_Rejects(t *testing.T) {
	cases := map[string]*mdns.ServiceEntry{
		"nil":        nil,
		"no version": {AddrV4: net.ParseIP("10.0.0.1"), Port: 1},
		"no address": {Port: 1, InfoFields: []string{"v=1"}},
		"no port":    {AddrV4: net.ParseIP("10.0.0.1"), InfoFields: []string{"v=1"}},
	}
	for name, entry := range cases {
		_, ok := entryToService(entry)
		assert.False(t, ok, name)
	}
}

func TestEntryToService_IPv6(t *testing.T) {
	svc, ok := entryToService(&mdns.ServiceEntry{
		AddrV6:     net.ParseIP("fe80::1"),
		Port:       8750,
		InfoFields: []string{"v=1"},
	})
	assert.True(t, ok)
	assert.Equal(t, "http://[fe80::1]:8750", BaseURL(svc))
}

func TestShutdownNil(t *testing.T) {
	var a *Announcer
	assert.NoError(t, a.Shutdown())
}
