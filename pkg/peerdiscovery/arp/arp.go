package arp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"time"

	"github.com/projectdiscovery/gologger"
)

// DefaultCommandTimeout bounds every neighbor table query
const DefaultCommandTimeout = 5 * time.Second

// ErrNotFound is returned by a strategy that has no entry for the address
var ErrNotFound = errors.New("no neighbor entry")

// Strategy is one way of looking up a neighbor entry
type Strategy interface {
	Name() string
	Lookup(ctx context.Context, ip net.IP) (string, error)
}

// Resolver tries its strategies in order
type Resolver struct {
	strategies []Strategy
}

// NewResolver returns a resolver using the platform strategies
func NewResolver() *Resolver {
	return &Resolver{strategies: defaultStrategies()}
}

// NewResolverWithStrategies returns a resolver using the given strategies
func NewResolverWithStrategies(strategies ...Strategy) *Resolver {
	return &Resolver{strategies: strategies}
}

// Strategies returns the names of the configured strategies
func (r *Resolver) Strategies() []string {
	names := make([]string, 0, len(r.strategies))
	for _, s := range r.strategies {
		names = append(names, s.Name())
	}
	return names
}

// Resolve returns the canonical MAC for ip or "" when no strategy found one
func (r *Resolver) Resolve(ctx context.Context, ip net.IP) string {
	for _, strategy := range r.strategies {
		if ctx.Err() != nil {
			return ""
		}
		raw, err := strategy.Lookup(ctx, ip)
		if err != nil {
			gologger.Debug().Msgf("%s: %s lookup failed: %s", ip, strategy.Name(), err)
			continue
		}
		if mac, ok := NormalizeMAC(raw); ok {
			return mac
		}
	}
	return ""
}

type commandFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultCommandTimeout)
	defer cancel()

	return exec.CommandContext(ctx, name, args...).Output()
}

// commandStrategy runs a system utility and parses its text output
type commandStrategy struct {
	name  string
	args  func(ip net.IP) []string
	parse func(output string, ip net.IP) string
	run   commandFunc
}

func (s *commandStrategy) Name() string {
	return s.name
}

func (s *commandStrategy) Lookup(ctx context.Context, ip net.IP) (string, error) {
	args := s.args(ip)
	output, err := s.run(ctx, args[0], args[1:]...)
	if err != nil {
		return "", fmt.Errorf("failed to execute %s: %w", s.name, err)
	}
	mac := s.parse(string(output), ip)
	if mac == "" {
		return "", ErrNotFound
	}
	return mac, nil
}

// tableFileStrategy reads a kernel neighbor table file
type tableFileStrategy struct {
	path     string
	readFile func(string) ([]byte, error)
}

func (s *tableFileStrategy) Name() string {
	return s.path
}

func (s *tableFileStrategy) Lookup(_ context.Context, ip net.IP) (string, error) {
	data, err := s.readFile(s.path)
	if err != nil {
		return "", err
	}
	mac := parseProcARP(string(data), ip)
	if mac == "" {
		return "", ErrNotFound
	}
	return mac, nil
}

// IPNeighborStrategy queries `ip neighbor show <ip>`
func IPNeighborStrategy() Strategy {
	return &commandStrategy{
		name:  "ip neighbor",
		args:  func(ip net.IP) []string { return []string{"ip", "neighbor", "show", ip.String()} },
		parse: parseIPNeighbor,
		run:   runCommand,
	}
}

// ARPCommandStrategy queries `arp -n <ip>`
func ARPCommandStrategy() Strategy {
	return &commandStrategy{
		name:  "arp -n",
		args:  func(ip net.IP) []string { return []string{"arp", "-n", ip.String()} },
		parse: parseARPCommand,
		run:   runCommand,
	}
}

// WindowsARPStrategy queries `arp -a <ip>`
func WindowsARPStrategy() Strategy {
	return &commandStrategy{
		name:  "arp -a",
		args:  func(ip net.IP) []string { return []string{"arp", "-a", ip.String()} },
		parse: parseWindowsARP,
		run:   runCommand,
	}
}

// ProcARPStrategy reads /proc/net/arp
func ProcARPStrategy() Strategy {
	return &tableFileStrategy{path: "/proc/net/arp", readFile: os.ReadFile}
}
