package common

import (
	"bytes"
	"net"
	"sort"
)

// IsNetworkOrBroadcast checks if an IP is the network or broadcast address
// of an IPv4 network.
func IsNetworkOrBroadcast(ip net.IP, network *net.IPNet) bool {
	if network == nil {
		return false
	}
	if ip.Equal(network.IP) {
		return true
	}

	ip4 := ip.To4()
	base := network.IP.To4()
	if ip4 == nil || base == nil || len(network.Mask) != net.IPv4len {
		return false
	}
	broadcast := make(net.IP, net.IPv4len)
	for i := range broadcast {
		broadcast[i] = base[i] | ^network.Mask[i]
	}
	return ip4.Equal(broadcast)
}

// CompareIP orders two addresses numerically
func CompareIP(a, b net.IP) int {
	if a4, b4 := a.To4(), b.To4(); a4 != nil && b4 != nil {
		return bytes.Compare(a4, b4)
	}
	return bytes.Compare(a.To16(), b.To16())
}

// SortIPs sorts addresses in ascending numeric order
func SortIPs(ips []net.IP) {
	sort.SliceStable(ips, func(i, j int) bool {
		return CompareIP(ips[i], ips[j]) < 0
	})
}
