// Package pipeline enriches scanned addresses into device records.
//
// Pipeline.ScanIP runs the stages for one address in a fixed order:
// liveness, MAC and vendor, host name, then the optional enrichers (port
// scan, SNMP, directory, remote inventory). Every stage writes through
// types.DeviceRecord.Apply, which owns the merge precedence. A stage that
// fails or panics only loses its own fields.
//
// Scanner drives the pipeline over a common.TargetSpec with a bounded
// worker pool.
package pipeline

import (
	"context"
	"fmt"
	"net"

	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/netinventory/pkg/metrics"
	"github.com/projectdiscovery/netinventory/pkg/peerdiscovery/pingsweep"
	"github.com/projectdiscovery/netinventory/pkg/types"
)

// Prober checks liveness
type Prober interface {
	Probe(ctx context.Context, ip net.IP) pingsweep.Result
}

// NeighborResolver returns the canonical MAC of an address or ""
type NeighborResolver interface {
	Resolve(ctx context.Context, ip net.IP) string
}

// NameResolver returns the host name of an address or ""
type NameResolver interface {
	Resolve(ctx context.Context, ip net.IP) string
}

// VendorLookup maps a MAC to its vendor or ""
type VendorLookup interface {
	Lookup(mac string) string
}

// Enricher is an optional data source
type Enricher interface {
	Name() string
	Source() types.Source
	Enrich(ctx context.Context, target types.Target) (*types.Findings, error)
}

type nopEnricher struct {
	name   string
	source types.Source
}

// Nop returns an enricher that never reports anything. It stands in for a
// source that is unavailable for the run.
func Nop(name string, source types.Source) Enricher {
	return nopEnricher{name: name, source: source}
}

func (n nopEnricher) Name() string { return n.name }
func (n nopEnricher) Source() types.Source { return n.source }

func (n nopEnricher) Enrich(context.Context, types.Target) (*types.Findings, error) {
	return nil, nil
}

type nopResolver struct{}

func (nopResolver) Resolve(context.Context, net.IP) string { return "" }

type nopVendors struct{}

func (nopVendors) Lookup(string) string { return "" }

// Options wires the pipeline stages. Nil stages are replaced by no-ops,
// except Prober which is required.
type Options struct {
	Prober    Prober
	Neighbors NeighborResolver
	Names     NameResolver
	Vendors   VendorLookup

	PortScanner Enricher
	SNMP        Enricher
	Directory   Enricher
	Remote      Enricher

	Metrics *metrics.Metrics
}

// Pipeline enriches one address at a time. It is safe for concurrent use
// when its stages are.
type Pipeline struct {
	prober    Prober
	neighbors NeighborResolver
	names     NameResolver
	vendors   VendorLookup

	portScanner Enricher
	snmp        Enricher
	directory   Enricher
	remote      Enricher

	metrics *metrics.Metrics
}

// New builds a pipeline
func New(opts Options) (*Pipeline, error) {
	if opts.Prober == nil {
		return nil, fmt.Errorf("a liveness prober is required")
	}
	p := &Pipeline{
		prober:      opts.Prober,
		neighbors:   opts.Neighbors,
		names:       opts.Names,
		vendors:     opts.Vendors,
		portScanner: opts.PortScanner,
		snmp:        opts.SNMP,
		directory:   opts.Directory,
		remote:      opts.Remote,
		metrics:     opts.Metrics,
	}
	if p.neighbors == nil {
		p.neighbors = nopResolver{}
	}
	if p.names == nil {
		p.names = nopResolver{}
	}
	if p.vendors == nil {
		p.vendors = nopVendors{}
	}
	if p.portScanner == nil {
		p.portScanner = Nop("nmap", types.SourcePortScan)
	}
	if p.snmp == nil {
		p.snmp = Nop("snmp", types.SourceSNMP)
	}
	if p.directory == nil {
		p.directory = Nop("directory", types.SourceDirectory)
	}
	if p.remote == nil {
		p.remote = Nop("remote", types.SourceRemote)
	}
	return p, nil
}

// ScanIP probes ip and enriches the record of a live host
func (p *Pipeline) ScanIP(ctx context.Context, ip net.IP) *types.DeviceRecord {
	record := types.NewDeviceRecord(ip.String())
	p.metrics.HostScanned()

	result := p.prober.Probe(ctx, ip)
	if !result.Alive {
		return record
	}
	record.MarkAlive(result.RTTMillis())
	p.metrics.HostAlive(result.RTT, result.Measured)

	p.stage("neighbor", func() {
		mac := p.neighbors.Resolve(ctx, ip)
		p.apply(record, types.SourceNeighbor, types.FieldMAC, mac)
		if mac != "" {
			p.apply(record, types.SourceVendor, types.FieldVendor, p.vendors.Lookup(mac))
		}
	})

	p.stage("name", func() {
		p.apply(record, types.SourceName, types.FieldHostname, p.names.Resolve(ctx, ip))
	})

	target := types.Target{IP: ip, Hostname: record.Get(types.FieldHostname)}

	p.enrich(ctx, p.portScanner, target, record)
	target.OpenPorts = record.OpenPorts

	p.enrich(ctx, p.snmp, target, record)

	// directory and remote inventory address the host by name
	if target.Hostname != "" {
		p.enrich(ctx, p.directory, target, record)
		p.enrich(ctx, p.remote, target, record)
	}
	return record
}

func (p *Pipeline) apply(record *types.DeviceRecord, source types.Source, field types.Field, value string) {
	findings := types.NewFindings()
	findings.Set(field, value)
	record.Apply(source, findings)
}

func (p *Pipeline) enrich(ctx context.Context, e Enricher, target types.Target, record *types.DeviceRecord) {
	if ctx.Err() != nil {
		return
	}
	p.stage(e.Name(), func() {
		findings, err := e.Enrich(ctx, target)
		if err != nil {
			p.metrics.EnrichmentFailed(e.Name())
			gologger.Verbose().Msgf("%s: %s enrichment failed: %s", target.IP, e.Name(), err)
			return
		}
		if applied := record.Apply(e.Source(), findings); len(applied) > 0 {
			gologger.Debug().Msgf("%s: %s set %v", target.IP, e.Name(), applied)
		}
	})
}

// stage runs fn, turning a panic into a logged stage failure
func (p *Pipeline) stage(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.metrics.EnrichmentFailed(name)
			gologger.Warning().Msgf("%s stage panicked: %v", name, r)
		}
	}()
	fn()
}
