//go:build !windows

package arp

import (
	osutils "github.com/projectdiscovery/utils/os"
)

func defaultStrategies() []Strategy {
	if osutils.IsLinux() {
		return []Strategy{IPNeighborStrategy(), ARPCommandStrategy(), ProcARPStrategy()}
	}
	return []Strategy{ARPCommandStrategy()}
}
