package arp

import (
	"bufio"
	"net"
	"strings"
)

const zeroMAC = "00:00:00:00:00:00"

// NormalizeMAC converts a colon or hyphen separated MAC into AA:BB:CC:DD:EE:FF.
// Octets may omit a leading zero as macOS prints them. Anything that is not six
// hex octets, and the all-zero address, is rejected.
func NormalizeMAC(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	// Windows uses hyphens, mixing both is invalid
	sep := ":"
	if strings.Contains(s, "-") {
		if strings.Contains(s, ":") {
			return "", false
		}
		sep = "-"
	}

	parts := strings.Split(s, sep)
	if len(parts) != 6 {
		return "", false
	}
	for i, part := range parts {
		if len(part) == 0 || len(part) > 2 || !isHex(part) {
			return "", false
		}
		// Pad single digit octets
		if len(part) == 1 {
			part = "0" + part
		}
		parts[i] = strings.ToUpper(part)
	}

	// Incomplete entries report the zero address
	mac := strings.Join(parts, ":")
	if mac == zeroMAC {
		return "", false
	}
	return mac, true
}

func isHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// parseIPNeighbor extracts the lladdr of an `ip neighbor show` entry
// Format: 192.168.1.1 dev eth0 lladdr aa:bb:cc:dd:ee:ff REACHABLE
func parseIPNeighbor(output string, ip net.IP) string {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		// Skip other hosts
		if len(fields) < 2 || !sameIP(fields[0], ip) {
			continue
		}
		// FAILED and INCOMPLETE entries have no lladdr
		for i := 1; i < len(fields)-1; i++ {
			if fields[i] != "lladdr" {
				continue
			}
			if mac, ok := NormalizeMAC(fields[i+1]); ok {
				return mac
			}
		}
	}
	return ""
}

// parseARPCommand returns the first MAC-shaped token of `arp -n` output
// Linux:  192.168.1.1  ether  aa:bb:cc:dd:ee:ff  C  eth0
// macOS:  ? (192.168.1.1) at aa:bb:cc:dd:ee:ff on en0 ifscope [ethernet]
func parseARPCommand(output string, _ net.IP) string {
	// The command was already scoped to ip
	for _, token := range strings.Fields(output) {
		if mac, ok := NormalizeMAC(token); ok {
			return mac
		}
	}
	return ""
}

// parseProcARP matches the address column of /proc/net/arp
// Format: IP address HW type Flags HW address Mask Device
func parseProcARP(data string, ip net.IP) string {
	scanner := bufio.NewScanner(strings.NewReader(data))

	// Skip header line
	if !scanner.Scan() {
		return ""
	}

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || !sameIP(fields[0], ip) {
			continue
		}
		// Skip incomplete entries
		if mac, ok := NormalizeMAC(fields[3]); ok {
			return mac
		}
	}
	return ""
}

// parseWindowsARP reads the entry for ip from `arp -a <ip>`
//
//	Interface: 192.168.1.100 --- 0xa
//	  Internet Address      Physical Address      Type
//	  192.168.1.1           aa-bb-cc-dd-ee-ff     dynamic
func parseWindowsARP(output string, ip net.IP) string {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		// Skip blank lines and interface banners
		if line == "" || strings.HasPrefix(line, "Interface:") {
			continue
		}
		// Column headers fail the address match
		fields := strings.Fields(line)
		if len(fields) < 2 || !sameIP(fields[0], ip) {
			continue
		}
		if mac, ok := NormalizeMAC(fields[1]); ok {
			return mac
		}
	}
	return ""
}

func sameIP(field string, ip net.IP) bool {
	parsed := net.ParseIP(field)
	return parsed != nil && parsed.Equal(ip)
}
