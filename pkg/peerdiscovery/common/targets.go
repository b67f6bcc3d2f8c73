package common

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/projectdiscovery/mapcidr"
)

var (
	// ErrInvalidSubnet is returned for an unparsable CIDR literal
	ErrInvalidSubnet = errors.New("invalid subnet")
	// ErrUnsupportedRange is returned when a start/end pair does not share its
	// first three octets or is reversed
	ErrUnsupportedRange = errors.New("unsupported address range")
	// ErrInvalidAddress is returned for an unparsable IPv4 literal
	ErrInvalidAddress = errors.New("invalid address")
	// ErrNoTargets is returned when a spec selects no mode
	ErrNoTargets = errors.New("no target mode selected")
	// ErrMultipleTargets is returned when a spec selects more than one mode
	ErrMultipleTargets = errors.New("more than one target mode selected")
)

// TargetMode is the way a TargetSpec selects addresses
type TargetMode int

const (
	ModeNone TargetMode = iota
	ModeSubnet
	ModeRange
	ModeSingle
	ModeLocal
)

func (m TargetMode) String() string {
	switch m {
	case ModeSubnet:
		return "subnet"
	case ModeRange:
		return "range"
	case ModeSingle:
		return "single"
	case ModeLocal:
		return "local"
	default:
		return "none"
	}
}

// TargetSpec describes the addresses of one scan
type TargetSpec struct {
	Subnet   string
	StartIP  string
	EndIP    string
	SingleIP string
	Local    bool
}

// Mode returns the single mode the spec selects
func (s TargetSpec) Mode() (TargetMode, error) {
	var modes []TargetMode
	if s.Subnet != "" {
		modes = append(modes, ModeSubnet)
	}
	if s.StartIP != "" || s.EndIP != "" {
		modes = append(modes, ModeRange)
	}
	if s.SingleIP != "" {
		modes = append(modes, ModeSingle)
	}
	if s.Local {
		modes = append(modes, ModeLocal)
	}

	switch len(modes) {
	case 0:
		return ModeNone, ErrNoTargets
	case 1:
		return modes[0], nil
	default:
		return ModeNone, ErrMultipleTargets
	}
}

func (s TargetSpec) String() string {
	mode, _ := s.Mode()
	switch mode {
	case ModeSubnet:
		return s.Subnet
	case ModeRange:
		return s.StartIP + "-" + s.EndIP
	case ModeSingle:
		return s.SingleIP
	case ModeLocal:
		return "local networks"
	default:
		return ""
	}
}

// Expand materializes the ascending address sequence selected by the spec
func Expand(spec TargetSpec) ([]net.IP, error) {
	mode, err := spec.Mode()
	if err != nil {
		return nil, err
	}

	switch mode {
	case ModeSubnet:
		return ExpandCIDR(spec.Subnet)
	case ModeRange:
		return ExpandRange(spec.StartIP, spec.EndIP)
	case ModeSingle:
		return ExpandSingle(spec.SingleIP)
	default:
		return ExpandLocal()
	}
}

// ExpandCIDR returns the usable host addresses of an IPv4 subnet in ascending
// order. Network and broadcast addresses are excluded except for /31 and /32.
func ExpandCIDR(cidr string) ([]net.IP, error) {
	_, network, err := net.ParseCIDR(strings.TrimSpace(cidr))
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidSubnet, cidr, err)
	}
	if network.IP.To4() == nil {
		return nil, fmt.Errorf("%w %q: only IPv4 is supported", ErrInvalidSubnet, cidr)
	}

	ones, bits := network.Mask.Size()
	hostBits := bits - ones

	cidrStr := network.String()
	addrs, err := mapcidr.IPAddresses(cidrStr)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidSubnet, cidr, err)
	}

	ips := make([]net.IP, 0, len(addrs))
	for _, addr := range addrs {
		ip := net.ParseIP(addr).To4()
		if ip == nil {
			continue
		}
		if hostBits > 1 && IsNetworkOrBroadcast(ip, network) {
			continue
		}
		ips = append(ips, ip)
	}
	SortIPs(ips)
	return ips, nil
}

// ExpandRange returns the inclusive sequence between start and end. Both
// addresses must share their first three octets.
func ExpandRange(start, end string) ([]net.IP, error) {
	startIP, err := parseIPv4(start)
	if err != nil {
		return nil, err
	}
	endIP, err := parseIPv4(end)
	if err != nil {
		return nil, err
	}

	if !bytes.Equal(startIP[:3], endIP[:3]) {
		return nil, fmt.Errorf("%w: %s and %s must share the first three octets", ErrUnsupportedRange, startIP, endIP)
	}
	if startIP[3] > endIP[3] {
		return nil, fmt.Errorf("%w: %s is after %s", ErrUnsupportedRange, startIP, endIP)
	}

	ips := make([]net.IP, 0, int(endIP[3])-int(startIP[3])+1)
	for last := int(startIP[3]); last <= int(endIP[3]); last++ {
		ips = append(ips, net.IPv4(startIP[0], startIP[1], startIP[2], byte(last)).To4())
	}
	return ips, nil
}

// ExpandSingle returns a one element sequence
func ExpandSingle(addr string) ([]net.IP, error) {
	ip, err := parseIPv4(addr)
	if err != nil {
		return nil, err
	}
	return []net.IP{ip}, nil
}

// ExpandLocal expands the /24 of every local private network
func ExpandLocal() ([]net.IP, error) {
	networks, err := GetLocalNetworks24()
	if err != nil {
		return nil, fmt.Errorf("could not enumerate local networks: %w", err)
	}

	var ips []net.IP
	for _, network := range networks {
		expanded, err := ExpandCIDR(network.String())
		if err != nil {
			return nil, err
		}
		ips = append(ips, expanded...)
	}
	SortIPs(ips)
	return ips, nil
}

func parseIPv4(addr string) (net.IP, error) {
	ip := net.ParseIP(strings.TrimSpace(addr)).To4()
	if ip == nil {
		return nil, fmt.Errorf("%w %q", ErrInvalidAddress, addr)
	}
	return ip, nil
}
