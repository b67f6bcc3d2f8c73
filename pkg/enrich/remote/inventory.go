// Package remote collects hardware and operating system inventory over a
// remote management protocol: WinRM for Windows hosts, SSH for the rest.
//
// Each inventory item is a separate command. A failing command only loses
// its own fields.
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/netinventory/pkg/types"
)

const (
	DefaultWinRMPort      = 5985
	DefaultWinRMHTTPSPort = 5986
	DefaultSSHPort        = 22
	DefaultTimeout        = 30 * time.Second
)

var errNoInventory = errors.New("no inventory collected")

// Config holds the remote credentials and transport settings
type Config struct {
	Username       string
	Password       string
	PrivateKeyFile string
	Protocol       Protocol
	HTTPS          bool
	Insecure       bool
	Timeout        time.Duration
}

// Configured reports whether credentials are present
func (c Config) Configured() bool {
	return c.Username != "" && (c.Password != "" || c.PrivateKeyFile != "")
}

// Inventory queries hosts for hardware and OS details
type Inventory struct {
	cfg     Config
	connect connectFunc
}

// New returns an inventory collector for cfg
func New(cfg Config) *Inventory {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Inventory{cfg: cfg, connect: connect}
}

func (i *Inventory) Name() string {
	return "remote"
}

func (i *Inventory) Source() types.Source {
	return types.SourceRemote
}

// Host returns the endpoint used for target
func (i *Inventory) Host(target types.Target) Host {
	protocol := SelectProtocol(i.cfg.Protocol, target)
	port := DefaultWinRMPort
	switch {
	case protocol == ProtocolSSH:
		port = DefaultSSHPort
	case i.cfg.HTTPS:
		port = DefaultWinRMHTTPSPort
	}
	return Host{
		Address: target.Hostname,
		Port:    port,
		Authentication: Authentication{
			Protocol:       protocol,
			Username:       i.cfg.Username,
			Password:       i.cfg.Password,
			PrivateKeyFile: i.cfg.PrivateKeyFile,
		},
	}
}

// Enrich connects to the target by host name and runs every inventory query
func (i *Inventory) Enrich(ctx context.Context, target types.Target) (*types.Findings, error) {
	if target.Hostname == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, i.cfg.Timeout)
	defer cancel()

	host := i.Host(target)
	conn, err := i.connect(ctx, host, i.cfg)
	if err != nil {
		return nil, fmt.Errorf("could not connect to %s over %s: %w", host.Address, host.Authentication.Protocol, err)
	}
	defer func() {
		_ = conn.Close()
	}()

	findings := types.NewFindings()
	var lastErr error
	for _, q := range queriesFor(host.Authentication.Protocol) {
		output, err := conn.Run(ctx, q.command)
		if err == nil {
			err = q.parse(output, findings)
		}
		if err != nil {
			gologger.Debug().Msgf("%s: %s query failed: %s", target.Hostname, q.name, err)
			lastErr = err
		}
	}

	if findings.Empty() {
		if lastErr != nil {
			return nil, fmt.Errorf("%w: %v", errNoInventory, lastErr)
		}
		return nil, errNoInventory
	}
	return findings, nil
}
