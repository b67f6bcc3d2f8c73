package types

import (
	"net"
	"sort"
	"strings"
)

// Service describes what answered on an open port
type Service struct {
	Name    string `json:"name"`
	Product string `json:"product"`
	Version string `json:"version"`
}

// DeviceRecord is the inventory record assembled for one scanned address
type DeviceRecord struct {
	// Required fields
	IP      string `json:"ip"`
	IsAlive bool   `json:"is_alive"`

	// Optional fields
	ResponseTime *float64           `json:"response_time,omitempty"` // milliseconds
	Hostname     *string            `json:"hostname,omitempty"`
	MAC          *string            `json:"mac,omitempty"`
	Vendor       *string            `json:"vendor,omitempty"`
	OS           *string            `json:"os,omitempty"`
	OSVersion    *string            `json:"os_version,omitempty"`
	CPU          *string            `json:"cpu,omitempty"`
	RAM          *string            `json:"ram,omitempty"`
	HDD          *string            `json:"hdd,omitempty"`
	Domain       *string            `json:"domain,omitempty"`
	Manufacturer *string            `json:"manufacturer,omitempty"`
	Model        *string            `json:"model,omitempty"`
	SerialNumber *string            `json:"serial_number,omitempty"`
	OpenPorts    []int              `json:"open_ports,omitempty"`
	Services     map[string]Service `json:"services,omitempty"`

	origin map[Field]Source
}

// NewDeviceRecord creates the minimal record for ip
func NewDeviceRecord(ip string) *DeviceRecord {
	return &DeviceRecord{
		IP:     ip,
		origin: make(map[Field]Source),
	}
}

// MarkAlive flags the record as reachable. rttMs is nil when the probe
// could not measure latency.
func (d *DeviceRecord) MarkAlive(rttMs *float64) {
	d.IsAlive = true
	d.ResponseTime = rttMs
}

// Origin returns the source that set field, or SourceNone
func (d *DeviceRecord) Origin(field Field) Source {
	if d.origin == nil {
		return SourceNone
	}
	return d.origin[field]
}

// Get returns the current value of a string field
func (d *DeviceRecord) Get(field Field) string {
	slot := d.slot(field)
	if slot == nil || *slot == nil {
		return ""
	}
	return **slot
}

// Apply merges findings produced by source into the record and returns the
// fields that were written. Dead records are never enriched.
func (d *DeviceRecord) Apply(source Source, findings *Findings) []Field {
	if !d.IsAlive || findings == nil {
		return nil
	}
	if d.origin == nil {
		d.origin = make(map[Field]Source)
	}

	var applied []Field
	fields := make([]Field, 0, len(findings.Values))
	for field := range findings.Values {
		fields = append(fields, field)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })

	for _, field := range fields {
		value := findings.Values[field]
		slot := d.slot(field)
		if slot == nil || value == "" || !d.canWrite(field, source) {
			continue
		}
		v := value
		*slot = &v
		d.origin[field] = source
		applied = append(applied, field)
	}

	if len(findings.OpenPorts) > 0 && d.canWrite(FieldOpenPorts, source) {
		ports := append([]int(nil), findings.OpenPorts...)
		sort.Ints(ports)
		d.OpenPorts = ports
		d.origin[FieldOpenPorts] = source
		applied = append(applied, FieldOpenPorts)
	}
	if len(findings.Services) > 0 && d.canWrite(FieldServices, source) {
		services := make(map[string]Service, len(findings.Services))
		for port, service := range findings.Services {
			services[port] = service
		}
		d.Services = services
		d.origin[FieldServices] = source
		applied = append(applied, FieldServices)
	}
	return applied
}

func (d *DeviceRecord) canWrite(field Field, source Source) bool {
	current := d.origin[field]
	return current == SourceNone || source.Rank() > current.Rank()
}

func (d *DeviceRecord) slot(field Field) **string {
	switch field {
	case FieldHostname:
		return &d.Hostname
	case FieldMAC:
		return &d.MAC
	case FieldVendor:
		return &d.Vendor
	case FieldOS:
		return &d.OS
	case FieldOSVersion:
		return &d.OSVersion
	case FieldCPU:
		return &d.CPU
	case FieldRAM:
		return &d.RAM
	case FieldHDD:
		return &d.HDD
	case FieldDomain:
		return &d.Domain
	case FieldManufacturer:
		return &d.Manufacturer
	case FieldModel:
		return &d.Model
	case FieldSerialNumber:
		return &d.SerialNumber
	default:
		return nil
	}
}

// Findings is what a single source reports about a host
type Findings struct {
	Values    map[Field]string
	OpenPorts []int
	Services  map[string]Service
}

// NewFindings returns an empty findings set
func NewFindings() *Findings {
	return &Findings{Values: make(map[Field]string)}
}

// Set records a value, ignoring blanks
func (f *Findings) Set(field Field, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	if f.Values == nil {
		f.Values = make(map[Field]string)
	}
	f.Values[field] = value
}

// Empty reports whether nothing was found
func (f *Findings) Empty() bool {
	return f == nil || (len(f.Values) == 0 && len(f.OpenPorts) == 0 && len(f.Services) == 0)
}

// Target is the context an enrichment source receives for one host
type Target struct {
	IP        net.IP
	Hostname  string
	OpenPorts []int
}

// HasPort reports whether port was seen open on the target
func (t Target) HasPort(port int) bool {
	for _, p := range t.OpenPorts {
		if p == port {
			return true
		}
	}
	return false
}

// Capabilities records which optional sources are usable for a run.
// It is computed once at startup and never re-evaluated.
type Capabilities struct {
	PortScan  bool
	SNMP      bool
	Directory bool
	Remote    bool
}
