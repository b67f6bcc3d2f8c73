// Package nmapscan fingerprints open ports, services and the operating system
// of a host with the nmap binary.
package nmapscan

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Ullaakut/nmap/v3"
	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/netinventory/pkg/types"
)

// DefaultPorts are probed on every live host
var DefaultPorts = []int{22, 80, 135, 139, 443, 445, 3389}

// DefaultTimeout bounds a single host scan
const DefaultTimeout = 2 * time.Minute

const smbOSDiscovery = "smb-os-discovery"

type runFunc func(ctx context.Context, opts ...nmap.Option) (*nmap.Run, error)

// Scanner runs nmap against one host at a time
type Scanner struct {
	ports       []int
	timeout     time.Duration
	osDetection bool
	scripts     []string
	run         runFunc
}

// Option configures a Scanner
type Option func(*Scanner)

// WithPorts replaces the probed port set
func WithPorts(ports []int) Option {
	return func(s *Scanner) {
		if len(ports) > 0 {
			s.ports = ports
		}
	}
}

// WithTimeout bounds each host scan
func WithTimeout(timeout time.Duration) Option {
	return func(s *Scanner) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithOSDetection enables TCP/IP fingerprinting, which requires root
func WithOSDetection(enabled bool) Option {
	return func(s *Scanner) {
		s.osDetection = enabled
	}
}

// New returns a scanner for the default port set
func New(opts ...Option) *Scanner {
	s := &Scanner{
		ports:   DefaultPorts,
		timeout: DefaultTimeout,
		scripts: []string{smbOSDiscovery},
		run:     runNmap,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Available reports whether the nmap binary can be found
func Available(ctx context.Context) bool {
	_, err := nmap.NewScanner(ctx, nmap.WithTargets("127.0.0.1"), nmap.WithListScan())
	return err == nil
}

func (s *Scanner) Name() string {
	return "nmap"
}

func (s *Scanner) Source() types.Source {
	return types.SourcePortScan
}

// Enrich scans the target and reports open ports, services and OS
func (s *Scanner) Enrich(ctx context.Context, target types.Target) (*types.Findings, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ip := target.IP.String()
	opts := []nmap.Option{
		nmap.WithTargets(ip),
		nmap.WithPorts(joinPorts(s.ports)),
		nmap.WithServiceInfo(),
		nmap.WithSkipHostDiscovery(),
	}
	if len(s.scripts) > 0 {
		opts = append(opts, nmap.WithScripts(s.scripts...))
	}
	if s.osDetection {
		opts = append(opts, nmap.WithOSDetection())
	}

	result, err := s.run(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	return extractFindings(result, ip), nil
}

func runNmap(ctx context.Context, opts ...nmap.Option) (*nmap.Run, error) {
	scanner, err := nmap.NewScanner(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create scanner: %w", err)
	}

	result, warnings, err := scanner.Run()
	if warnings != nil && len(*warnings) > 0 {
		gologger.Debug().Msgf("nmap warnings: %v", *warnings)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// extractFindings converts the nmap run of ip into findings
func extractFindings(result *nmap.Run, ip string) *types.Findings {
	findings := types.NewFindings()
	if result == nil {
		return findings
	}

	for _, host := range result.Hosts {
		if !hostHasAddress(host, ip) {
			continue
		}

		for _, port := range host.Ports {
			if port.State.State != "open" {
				continue
			}
			findings.OpenPorts = append(findings.OpenPorts, int(port.ID))
			// Nothing identified on this port
			if port.Service.Name == "" && port.Service.Product == "" {
				continue
			}
			if findings.Services == nil {
				findings.Services = make(map[string]types.Service)
			}
			findings.Services[strconv.Itoa(int(port.ID))] = types.Service{
				Name:    port.Service.Name,
				Product: port.Service.Product,
				Version: port.Service.Version,
			}
		}

		// Use first (best) match
		if len(host.OS.Matches) > 0 {
			findings.Set(types.FieldOS, host.OS.Matches[0].Name)
		} else {
			findings.Set(types.FieldOS, smbOS(host))
		}
		break
	}
	return findings
}

// smbOS reads the operating system reported by the smb-os-discovery script
func smbOS(host nmap.Host) string {
	for _, script := range host.HostScripts {
		if script.ID != smbOSDiscovery {
			continue
		}
		for _, element := range script.Elements {
			if element.Key == "os" {
				return element.Value
			}
		}
		for _, line := range strings.Split(script.Output, "\n") {
			line = strings.TrimSpace(line)
			if value, ok := strings.CutPrefix(line, "OS:"); ok {
				return strings.TrimSpace(value)
			}
		}
	}
	return ""
}

func hostHasAddress(host nmap.Host, ip string) bool {
	for _, addr := range host.Addresses {
		if addr.Addr == ip {
			return true
		}
	}
	return false
}

func joinPorts(ports []int) string {
	parts := make([]string, 0, len(ports))
	for _, port := range ports {
		parts = append(parts, strconv.Itoa(port))
	}
	return strings.Join(parts, ",")
}
