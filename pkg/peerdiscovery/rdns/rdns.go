// Package rdns resolves host names for scanned addresses.
package rdns

import (
	"context"
	"net"
	"os/exec"
	"strings"
	"time"

	"github.com/projectdiscovery/gologger"
	osutils "github.com/projectdiscovery/utils/os"
)

const (
	// DefaultLookupTimeout bounds the reverse DNS query
	DefaultLookupTimeout = 3 * time.Second
	// DefaultFallbackTimeout bounds the neighbor table query
	DefaultFallbackTimeout = 3 * time.Second
)

// Resolver resolves names by reverse DNS, falling back to the neighbor table
type Resolver struct {
	lookupAddr func(ctx context.Context, addr string) ([]string, error)
	neighbor   func(ctx context.Context, ip string) ([]byte, error)
}

// New returns a resolver using the system resolver. The neighbor table
// fallback is only enabled on Linux.
func New() *Resolver {
	r := &Resolver{lookupAddr: net.DefaultResolver.LookupAddr}
	if osutils.IsLinux() {
		r.neighbor = arpTable
	}
	return r
}

// Resolve returns the lower-cased host name of ip or ""
func (r *Resolver) Resolve(ctx context.Context, ip net.IP) string {
	if name := r.reverse(ctx, ip); name != "" {
		return name
	}
	if r.neighbor == nil {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultFallbackTimeout)
	defer cancel()

	output, err := r.neighbor(ctx, ip.String())
	if err != nil {
		gologger.Debug().Msgf("%s: neighbor table name lookup failed: %s", ip, err)
		return ""
	}
	return parseNeighborName(string(output))
}

func (r *Resolver) reverse(ctx context.Context, ip net.IP) string {
	ctx, cancel := context.WithTimeout(ctx, DefaultLookupTimeout)
	defer cancel()

	names, err := r.lookupAddr(ctx, ip.String())
	if err != nil {
		gologger.Debug().Msgf("%s: reverse lookup failed: %s", ip, err)
		return ""
	}
	for _, name := range names {
		name = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(name), "."))
		if name != "" {
			return name
		}
	}
	return ""
}

func arpTable(ctx context.Context, ip string) ([]byte, error) {
	return exec.CommandContext(ctx, "arp", "-n", ip).Output()
}

// parseNeighborName returns the leading token of the first neighbor entry
// when it is a name rather than a placeholder or an address
func parseNeighborName(output string) string {
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 || fields[0] == "Address" {
			continue
		}
		token := fields[0]
		if token == "?" || strings.Contains(token, "(") || net.ParseIP(token) != nil {
			return ""
		}
		return strings.ToLower(token)
	}
	return ""
}
