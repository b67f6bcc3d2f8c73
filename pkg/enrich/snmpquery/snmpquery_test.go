package snmpquery

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/gosnmp/gosnmp"
	"github.com/projectdiscovery/netinventory/pkg/types"
)

func TestEnrich(t *testing.T) {
	tests := []struct {
		name      string
		variables []gosnmp.SnmpPDU
		err       error
		wantErr   bool
		validate  func(t *testing.T, f *types.Findings)
	}{
		{
			name: "system group",
			variables: []gosnmp.SnmpPDU{
				{Name: oidSysDescr, Type: gosnmp.OctetString, Value: []byte("Cisco IOS Software, C2960 Software\r\nTechnical Support: http://www.cisco.com")},
				{Name: oidSysName, Type: gosnmp.OctetString, Value: []byte("SW-CORE-01")},
			},
			validate: func(t *testing.T, f *types.Findings) {
				if got := f.Values[types.FieldOS]; got != "Cisco IOS Software, C2960 Software" {
					t.Errorf("os = %q", got)
				}
				if got := f.Values[types.FieldHostname]; got != "sw-core-01" {
					t.Errorf("hostname = %q", got)
				}
			},
		},
		{
			name: "missing objects",
			variables: []gosnmp.SnmpPDU{
				{Name: oidSysDescr, Type: gosnmp.NoSuchObject},
				{Name: oidSysName, Type: gosnmp.NoSuchInstance},
			},
			wantErr: true,
		},
		{
			name:    "timeout",
			err:     errors.New("request timeout (after 1 retries)"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := New(Config{Community: "public"})
			q.get = func(_ context.Context, cfg Config, target string, oids []string) ([]gosnmp.SnmpPDU, error) {
				if cfg.Port != 161 || cfg.Community != "public" {
					t.Errorf("unexpected config %+v", cfg)
				}
				if target != "10.0.0.1" || len(oids) != 2 {
					t.Errorf("unexpected request %s %v", target, oids)
				}
				return tt.variables, tt.err
			}

			f, err := q.Enrich(context.Background(), types.Target{IP: net.ParseIP("10.0.0.1")})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.validate(t, f)
		})
	}
}
