// Package arp resolves the MAC address of a host from the local neighbor
// table.
//
// Resolution never sends traffic of its own. It tries a list of strategies in
// order, stopping at the first that yields a valid non-zero MAC:
//   - ip neighbor show <ip> (Linux)
//   - arp -n <ip> (Linux, macOS)
//   - /proc/net/arp (Linux)
//   - arp -a <ip> (Windows)
//
// Every discovered MAC is normalized to upper-case colon separated form.
package arp
