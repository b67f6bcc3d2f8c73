package types

// Source identifies the stage that produced a device field.
type Source int

const (
	SourceNone Source = iota
	SourceProbe
	SourceNeighbor
	SourceVendor
	SourceName
	SourcePortScan
	SourceSNMP
	SourceRemote
	SourceDirectory
)

// AllSources lists every producing source, in pipeline order
var AllSources = []Source{
	SourceProbe,
	SourceNeighbor,
	SourceVendor,
	SourceName,
	SourcePortScan,
	SourceSNMP,
	SourceDirectory,
	SourceRemote,
}

func (s Source) String() string {
	switch s {
	case SourceNone:
		return "none"
	case SourceProbe:
		return "probe"
	case SourceNeighbor:
		return "neighbor"
	case SourceVendor:
		return "vendor"
	case SourceName:
		return "name"
	case SourcePortScan:
		return "portscan"
	case SourceSNMP:
		return "snmp"
	case SourceRemote:
		return "remote"
	case SourceDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// Rank is the merge precedence of a source. A value set by a source can only
// be replaced by a source with a strictly higher rank.
func (s Source) Rank() int {
	switch s {
	case SourceNone:
		return 0
	case SourceDirectory:
		return 2
	default:
		return 1
	}
}

// Field names a mergeable attribute of a DeviceRecord
type Field string

const (
	FieldHostname     Field = "hostname"
	FieldMAC          Field = "mac"
	FieldVendor       Field = "vendor"
	FieldOS           Field = "os"
	FieldOSVersion    Field = "os_version"
	FieldCPU          Field = "cpu"
	FieldRAM          Field = "ram"
	FieldHDD          Field = "hdd"
	FieldDomain       Field = "domain"
	FieldManufacturer Field = "manufacturer"
	FieldModel        Field = "model"
	FieldSerialNumber Field = "serial_number"
	FieldOpenPorts    Field = "open_ports"
	FieldServices     Field = "services"
)
