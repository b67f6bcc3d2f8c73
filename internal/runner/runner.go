package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kr/pretty"
	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/netinventory/pkg/enrich/directory"
	"github.com/projectdiscovery/netinventory/pkg/enrich/nmapscan"
	"github.com/projectdiscovery/netinventory/pkg/enrich/remote"
	"github.com/projectdiscovery/netinventory/pkg/enrich/snmpquery"
	"github.com/projectdiscovery/netinventory/pkg/metrics"
	"github.com/projectdiscovery/netinventory/pkg/peerdiscovery/arp"
	"github.com/projectdiscovery/netinventory/pkg/peerdiscovery/common"
	"github.com/projectdiscovery/netinventory/pkg/peerdiscovery/pingsweep"
	"github.com/projectdiscovery/netinventory/pkg/peerdiscovery/prescan"
	"github.com/projectdiscovery/netinventory/pkg/peerdiscovery/rdns"
	"github.com/projectdiscovery/netinventory/pkg/pipeline"
	"github.com/projectdiscovery/netinventory/pkg/types"
	"github.com/projectdiscovery/netinventory/pkg/vendor"
)

const detectTimeout = 10 * time.Second

var nmapAvailable = nmapscan.Available

type scanner interface {
	Scan(ctx context.Context, spec common.TargetSpec) ([]*types.DeviceRecord, error)
}

// Runner contains the internal logic of the program
type Runner struct {
	options      *Options
	capabilities types.Capabilities
	scanner      scanner
	metrics      *metrics.Metrics
	stdout       io.Writer
}

// NewRunner wires the pipeline for options. Optional sources that are not
// usable now stay disabled for the whole run.
func NewRunner(options *Options) (*Runner, error) {
	r := &Runner{options: options, stdout: os.Stdout}
	if options.MetricsFile != "" {
		r.metrics = metrics.New()
	}

	vendors, err := vendor.New()
	if err != nil {
		return nil, err
	}
	if options.OUIFile != "" {
		if err := vendors.LoadFile(options.OUIFile); err != nil {
			return nil, fmt.Errorf("could not load vendor overrides: %w", err)
		}
	}
	gologger.Verbose().Msgf("Loaded %d vendor prefixes", vendors.Len())

	ctx, cancel := context.WithTimeout(context.Background(), detectTimeout)
	defer cancel()
	r.capabilities = detectCapabilities(ctx, options)
	logCapabilities(r.capabilities)

	privileged := pingsweep.IsPrivileged()
	neighbors := arp.NewResolver()
	gologger.Verbose().Msgf("Neighbor table strategies: %v", neighbors.Strategies())

	pipelineOptions := pipeline.Options{
		Prober: pingsweep.New(
			pingsweep.WithTimeout(options.Timeout),
			pingsweep.WithPrivileged(privileged),
		),
		Neighbors: neighbors,
		Names:     rdns.New(),
		Vendors:   vendors,
		Metrics:   r.metrics,
	}

	if r.capabilities.PortScan {
		ports, err := options.PortList()
		if err != nil {
			return nil, err
		}
		nmapOptions := []nmapscan.Option{nmapscan.WithOSDetection(privileged)}
		if len(ports) > 0 {
			nmapOptions = append(nmapOptions, nmapscan.WithPorts(ports))
		}
		pipelineOptions.PortScanner = nmapscan.New(nmapOptions...)
	}
	if r.capabilities.SNMP {
		pipelineOptions.SNMP = snmpquery.New(snmpquery.Config{Community: options.SNMPCommunity})
	}
	if r.capabilities.Directory {
		pipelineOptions.Directory = directory.New(options.directoryConfig())
	}
	if r.capabilities.Remote {
		cfg, err := options.remoteConfig()
		if err != nil {
			return nil, err
		}
		pipelineOptions.Remote = remote.New(cfg)
	}

	p, err := pipeline.New(pipelineOptions)
	if err != nil {
		return nil, err
	}
	r.scanner = pipeline.NewScanner(p,
		pipeline.WithConcurrency(options.Concurrency),
		pipeline.WithDeviceCallback(onDevice),
		pipeline.WithDispatchOrder(prescan.Order),
	)
	return r, nil
}

// Run scans the configured targets and writes the results. On a scan level
// error an empty array is still written before the error is returned.
func (r *Runner) Run(ctx context.Context) error {
	records, scanErr := r.scanner.Scan(ctx, r.options.TargetSpec())
	if scanErr != nil {
		records = []*types.DeviceRecord{}
	}

	if err := r.writeResults(records); err != nil {
		return err
	}
	if r.options.MetricsFile != "" {
		if err := r.metrics.WriteTextfile(r.options.MetricsFile); err != nil {
			gologger.Warning().Msgf("Could not write metrics to %s: %s", r.options.MetricsFile, err)
		}
	}
	if scanErr != nil {
		return fmt.Errorf("scan failed: %w", scanErr)
	}
	return nil
}

func (r *Runner) writeResults(records []*types.DeviceRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal results: %w", err)
	}
	data = append(data, '\n')

	if r.options.Output != "" {
		if err := os.WriteFile(r.options.Output, data, 0o644); err != nil {
			return fmt.Errorf("could not write results: %w", err)
		}
		gologger.Info().Msgf("Results written to %s", r.options.Output)
		return nil
	}
	_, err = r.stdout.Write(data)
	return err
}

func detectCapabilities(ctx context.Context, options *Options) types.Capabilities {
	caps := types.Capabilities{
		SNMP:      options.SNMPCommunity != "",
		Directory: options.directoryConfig().Configured(),
	}
	if cfg, err := options.remoteConfig(); err == nil {
		caps.Remote = cfg.Configured()
	}
	if !options.NoNmap {
		caps.PortScan = nmapAvailable(ctx)
		if !caps.PortScan {
			gologger.Warning().Msgf("nmap was not found, port and service scanning is disabled")
		}
	}
	return caps
}

func logCapabilities(caps types.Capabilities) {
	state := func(enabled bool) string {
		if enabled {
			return "enabled"
		}
		return "disabled"
	}
	gologger.Info().Msgf("Port scan: %s, SNMP: %s, directory: %s, remote inventory: %s",
		state(caps.PortScan), state(caps.SNMP), state(caps.Directory), state(caps.Remote))
}

func onDevice(record *types.DeviceRecord) {
	gologger.Info().Msgf("Found device: %s", record.IP)
	gologger.Verbose().Msgf("%s", pretty.Sprint(record))
}

func (options *Options) directoryConfig() directory.Config {
	return directory.Config{
		Server:   options.DomainServer,
		Username: options.DomainUser,
		Password: options.DomainPassword,
		UseTLS:   options.LDAPS,
	}
}

func (options *Options) remoteConfig() (remote.Config, error) {
	protocol, err := remote.ParseProtocol(options.RemoteProtocol)
	if err != nil {
		return remote.Config{}, err
	}
	return remote.Config{
		Username:       options.RemoteUser,
		Password:       options.RemotePassword,
		PrivateKeyFile: options.RemoteKeyFile,
		Protocol:       protocol,
		HTTPS:          options.WinRMHTTPS,
		Insecure:       options.WinRMInsecure,
	}, nil
}
