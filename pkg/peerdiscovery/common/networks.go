package common

import (
	"net"

	sliceutil "github.com/projectdiscovery/utils/slice"
	psnet "github.com/shirou/gopsutil/v3/net"
)

// interfaces is replaced in tests
var interfaces = psnet.Interfaces

// GetLocalNetworks24 returns the /24 of every private IPv4 address bound to an
// up, non-loopback interface
func GetLocalNetworks24() ([]*net.IPNet, error) {
	ifaces, err := interfaces()
	if err != nil {
		return nil, err
	}

	var networks []*net.IPNet
	seen := make(map[string]struct{})

	for _, iface := range ifaces {
		// Skip loopback and down interfaces
		if !sliceutil.Contains(iface.Flags, "up") || sliceutil.Contains(iface.Flags, "loopback") {
			continue
		}

		for _, addr := range iface.Addrs {
			// Addresses usually carry a prefix length, bare ones are accepted too
			ip, _, err := net.ParseCIDR(addr.Addr)
			if err != nil {
				ip = net.ParseIP(addr.Addr)
			}
			// Only private IPv4 ranges are scanned
			ip4 := ip.To4()
			if ip4 == nil || !ip4.IsPrivate() {
				continue
			}

			mask24 := net.CIDRMask(24, 32)
			network24 := &net.IPNet{
				IP:   ip4.Mask(mask24),
				Mask: mask24,
			}

			// Avoid duplicates
			key := network24.String()
			if _, exists := seen[key]; exists {
				continue
			}
			seen[key] = struct{}{}

			networks = append(networks, network24)
		}
	}

	return networks, nil
}
