package server

import (
	"fmt"

	"github.com/grandcat/zeroconf"
)

// MDNSService is the DNS-SD service type the control server registers.
const MDNSService = "_g2link._tcp"

// Advertise registers the control server on the local network. The caller
// must Shutdown the returned server.
func Advertise(instance string, port int, mode string) (*zeroconf.Server, error) {
	txt := []string{
		"txtvers=1",
		"mode=" + mode,
		"path=/api",
		"ws=/ws",
	}
	srv, err := zeroconf.Register(instance, MDNSService, "local.", port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("mDNS registration failed: %w", err)
	}
	return srv, nil
}
