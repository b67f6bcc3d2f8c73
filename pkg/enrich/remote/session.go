package remote

import (
	"fmt"
	"strings"

	"github.com/projectdiscovery/netinventory/pkg/types"
)

// Protocol is the remote management transport
type Protocol uint8

const (
	// ProtocolAuto picks a transport from the ports seen open on the host
	ProtocolAuto Protocol = iota
	ProtocolWinRM
	ProtocolSSH
)

func (p Protocol) String() string {
	switch p {
	case ProtocolAuto:
		return "auto"
	case ProtocolWinRM:
		return "winrm"
	case ProtocolSSH:
		return "ssh"
	default:
		return "unknown"
	}
}

// ParseProtocol parses a protocol name
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ProtocolAuto, nil
	case "winrm":
		return ProtocolWinRM, nil
	case "ssh":
		return ProtocolSSH, nil
	default:
		return ProtocolAuto, fmt.Errorf("unsupported protocol: %s", s)
	}
}

// Authentication holds the credentials for one host
type Authentication struct {
	Protocol Protocol
	Username string
	Password string

	PrivateKeyFile string
}

// Host is a remote management endpoint
type Host struct {
	Address        string
	Port           int
	Authentication Authentication
}

var winrmPorts = []int{5985, 5986, 135, 445, 3389}

// SelectProtocol resolves ProtocolAuto against the open ports of a host.
// WinRM is used unless only SSH was seen.
func SelectProtocol(p Protocol, target types.Target) Protocol {
	if p != ProtocolAuto {
		return p
	}
	for _, port := range winrmPorts {
		if target.HasPort(port) {
			return ProtocolWinRM
		}
	}
	if target.HasPort(DefaultSSHPort) {
		return ProtocolSSH
	}
	return ProtocolWinRM
}
