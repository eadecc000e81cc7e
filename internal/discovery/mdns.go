// Package discovery announces and finds the directory service over mDNS.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strings"
	"time"

	"circles/internal/models"

	"github.com/hashicorp/mdns"
)

func init() {
	// hashicorp/mdns logs every closed client through the std logger.
	log.SetOutput(io.Discard)
}

const (
	ServiceType = "_circles-dir._tcp"
	Domain      = "local."

	txtVersion = "v="
)

var ErrNotFound = errors.New("no directory service found on the local network")

type Announcer struct {
	server *mdns.Server
}

// Announce publishes a directory service instance listening on port.
func Announce(instance string, port int, version string) (*Announcer, error) {
	host, err := getOutboundIP()
	if err != nil {
		host = "127.0.0.1"
	}

	service, err := mdns.NewMDNSService(
		instance,
		ServiceType,
		Domain,
		"",
		port,
		[]net.IP{net.ParseIP(host)},
		[]string{txtVersion + version},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS server: %w", err)
	}

	return &Announcer{server: server}, nil
}

func (a *Announcer) Shutdown() error {
	if a == nil || a.server == nil {
		return nil
	}
	return a.server.Shutdown()
}

// Lookup queries once and returns the first directory service that answers.
func Lookup(ctx context.Context, timeout time.Duration) (models.Service, error) {
	entriesCh := make(chan *mdns.ServiceEntry, 8)
	found := make(chan models.Service, 1)

	go func() {
		for entry := range entriesCh {
			if svc, ok := entryToService(entry); ok {
				select {
				case found <- svc:
				default:
				}
			}
		}
	}()

	params := &mdns.QueryParam{
		Service:     ServiceType,
		Domain:      Domain,
		Timeout:     timeout,
		Entries:     entriesCh,
		DisableIPv6: true,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- mdns.Query(params)
		close(entriesCh)
	}()

	select {
	case svc := <-found:
		return svc, nil
	case err := <-errCh:
		select {
		case svc := <-found:
			return svc, nil
		default:
		}
		if err != nil && !strings.Contains(err.Error(), "not supported") {
			return models.Service{}, fmt.Errorf("mDNS query failed: %w", err)
		}
		return models.Service{}, ErrNotFound
	case <-ctx.Done():
		return models.Service{}, ctx.Err()
	}
}

func entryToService(entry *mdns.ServiceEntry) (models.Service, bool) {
	if entry == nil {
		return models.Service{}, false
	}

	var versioned bool
	for _, txt := range entry.InfoFields {
		if strings.HasPrefix(txt, txtVersion) {
			versioned = true
			break
		}
	}
	if !versioned {
		return models.Service{}, false
	}

	var host string
	if entry.AddrV4 != nil {
		host = entry.AddrV4.String()
	} else if entry.AddrV6 != nil {
		host = entry.AddrV6.String()
	}
	if host == "" || entry.Port == 0 {
		return models.Service{}, false
	}

	return models.Service{Name: entry.Name, Host: host, Port: entry.Port}, true
}

// BaseURL is the HTTP base address of svc.
func BaseURL(svc models.Service) string {
	return "http://" + net.JoinHostPort(svc.Host, fmt.Sprint(svc.Port))
}

func getOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String(), nil
}
