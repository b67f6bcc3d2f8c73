//go:build windows

package arp

func defaultStrategies() []Strategy {
	return []Strategy{WindowsARPStrategy()}
}
