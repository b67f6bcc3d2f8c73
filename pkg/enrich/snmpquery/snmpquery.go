// Package snmpquery reads the SNMP system group of a host.
package snmpquery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/projectdiscovery/netinventory/pkg/types"
)

const (
	oidSysDescr = ".1.3.6.1.2.1.1.1.0"
	oidSysName  = ".1.3.6.1.2.1.1.5.0"
)

// DefaultTimeout bounds a single SNMP request
const DefaultTimeout = 2 * time.Second

var errNoData = errors.New("no SNMP data returned")

// Config holds the SNMP v2c parameters
type Config struct {
	Community string
	Port      uint16
	Timeout   time.Duration
	Retries   int
}

type getFunc func(ctx context.Context, cfg Config, target string, oids []string) ([]gosnmp.SnmpPDU, error)

// Querier fetches sysName and sysDescr
type Querier struct {
	cfg Config
	get getFunc
}

// New returns a querier for cfg
func New(cfg Config) *Querier {
	if cfg.Port == 0 {
		cfg.Port = 161
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Querier{cfg: cfg, get: snmpGet}
}

func (q *Querier) Name() string {
	return "snmp"
}

func (q *Querier) Source() types.Source {
	return types.SourceSNMP
}

// Enrich queries the system group of the target
func (q *Querier) Enrich(ctx context.Context, target types.Target) (*types.Findings, error) {
	variables, err := q.get(ctx, q.cfg, target.IP.String(), []string{oidSysDescr, oidSysName})
	if err != nil {
		return nil, err
	}
	findings := findingsFromVariables(variables)
	if findings.Empty() {
		return nil, errNoData
	}
	return findings, nil
}

func snmpGet(ctx context.Context, cfg Config, target string, oids []string) ([]gosnmp.SnmpPDU, error) {
	client := &gosnmp.GoSNMP{
		Target:    target,
		Port:      cfg.Port,
		Community: cfg.Community,
		Version:   gosnmp.Version2c,
		Timeout:   cfg.Timeout,
		Retries:   cfg.Retries,
		MaxOids:   gosnmp.MaxOids,
		Context:   ctx,
	}
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("could not connect: %w", err)
	}
	defer func() {
		_ = client.Conn.Close()
	}()

	result, err := client.Get(oids)
	if err != nil {
		return nil, fmt.Errorf("SNMP Get failed: %w", err)
	}
	if result.Error != gosnmp.NoError {
		return nil, fmt.Errorf("SNMP error: %s", result.Error)
	}
	return result.Variables, nil
}

func findingsFromVariables(variables []gosnmp.SnmpPDU) *types.Findings {
	findings := types.NewFindings()
	for _, v := range variables {
		if v.Type != gosnmp.OctetString {
			continue
		}
		raw, ok := v.Value.([]byte)
		if !ok {
			continue
		}
		value := strings.TrimSpace(string(raw))

		switch v.Name {
		case oidSysDescr:
			// only the first line, the rest is usually build information
			line, _, _ := strings.Cut(value, "\n")
			findings.Set(types.FieldOS, strings.TrimSpace(line))
		case oidSysName:
			findings.Set(types.FieldHostname, strings.ToLower(value))
		}
	}
	return findings
}
