// Package pingsweep checks whether a host answers ICMP echo requests.
//
// A probe first tries a native ICMP socket: a raw socket when running with
// root privileges, an unprivileged datagram ICMP socket otherwise. When no
// socket can be opened the system ping utility is invoked instead, which
// reports liveness through its exit status and cannot measure latency.
//
// Example usage:
//
//	prober := pingsweep.New(pingsweep.WithTimeout(2 * time.Second))
//	result := prober.Probe(ctx, net.ParseIP("192.168.1.1"))
//	if result.Alive {
//		fmt.Println(result.RTT)
//	}
//
// Limitations:
// - Hosts with ICMP disabled or firewalled are reported as down
// - Unprivileged ICMP sockets need net.ipv4.ping_group_range on Linux
package pingsweep
