//go:build windows

package pingsweep

// IsPrivileged is always true on Windows, which has no datagram ICMP sockets.
// Opening the raw socket still fails without administrator rights, in which
// case the ping utility is used.
func IsPrivileged() bool {
	return true
}
