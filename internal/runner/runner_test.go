package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/projectdiscovery/goflags"
	"github.com/projectdiscovery/netinventory/pkg/peerdiscovery/common"
	"github.com/projectdiscovery/netinventory/pkg/types"
)

type fakeScanner struct {
	records []*types.DeviceRecord
	err     error
	spec    common.TargetSpec
}

func (f *fakeScanner) Scan(_ context.Context, spec common.TargetSpec) ([]*types.DeviceRecord, error) {
	f.spec = spec
	if f.err != nil {
		return []*types.DeviceRecord{}, f.err
	}
	return f.records, nil
}

func TestValidateOptions(t *testing.T) {
	tests := []struct {
		name    string
		options Options
		wantErr error
		anyErr  bool
	}{
		{name: "subnet", options: Options{Subnet: "10.0.0.0/24"}},
		{name: "range", options: Options{StartIP: "10.0.0.1", EndIP: "10.0.0.9"}},
		{name: "local", options: Options{Local: true}},
		{name: "no mode", options: Options{}, wantErr: common.ErrNoTargets},
		{name: "two modes", options: Options{Subnet: "10.0.0.0/24", SingleIP: "10.0.0.1"}, wantErr: common.ErrMultipleTargets},
		{name: "half range", options: Options{StartIP: "10.0.0.1"}, wantErr: ErrRangeIncomplete},
		{name: "bad protocol", options: Options{SingleIP: "10.0.0.1", RemoteProtocol: "telnet"}, anyErr: true},
		{name: "bad port", options: Options{SingleIP: "10.0.0.1", Ports: goflags.StringSlice{"22", "http"}}, anyErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.options.validateOptions()
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("validateOptions() = %v, want %v", err, tt.wantErr)
				}
			case tt.anyErr:
				if err == nil {
					t.Error("validateOptions() = nil, want error")
				}
			case err != nil:
				t.Errorf("validateOptions() = %v", err)
			}
		})
	}
}

func TestLoadConfigFrom(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	config := `subnet: 192.168.1.0/24
domain-user: svc@corp.local
domain-password: secret
snmp-community: public
timeout: 3s
concurrency: 10
ports: ["22", "443"]
verbose: true
`
	if err := os.WriteFile(path, []byte(config), 0o600); err != nil {
		t.Fatal(err)
	}

	options := &Options{DomainUser: "admin@corp.local", Concurrency: 50}
	if err := options.loadConfigFrom(path); err != nil {
		t.Fatalf("loadConfigFrom() error = %v", err)
	}
	options.applyDefaults()

	want := Options{
		Subnet:         "192.168.1.0/24",
		DomainUser:     "admin@corp.local",
		DomainPassword: "secret",
		RemoteUser:     "admin@corp.local",
		RemotePassword: "secret",
		SNMPCommunity:  "public",
		Ports:          goflags.StringSlice{"22", "443"},
		Timeout:        3 * time.Second,
		Concurrency:    50,
		Verbose:        true,
	}
	if diff := cmp.Diff(want, *options); diff != "" {
		t.Errorf("options mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigFromMissingFile(t *testing.T) {
	options := &Options{}
	if err := options.loadConfigFrom(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("loadConfigFrom() = nil, want error")
	}
}

func TestApplyDefaults(t *testing.T) {
	options := &Options{RemoteUser: "root", DomainUser: "svc", DomainPassword: "pw"}
	options.applyDefaults()

	if options.Timeout != 2*time.Second {
		t.Errorf("Timeout = %s, want 2s", options.Timeout)
	}
	if options.Concurrency != 25 {
		t.Errorf("Concurrency = %d, want 25", options.Concurrency)
	}
	if options.RemoteUser != "root" || options.RemotePassword != "pw" {
		t.Errorf("remote credentials = %q/%q, want root/pw", options.RemoteUser, options.RemotePassword)
	}
}

func TestRun(t *testing.T) {
	hostname := "printer"
	alive := func(ip string) *types.DeviceRecord {
		record := types.NewDeviceRecord(ip)
		record.MarkAlive(nil)
		return record
	}
	named := alive("10.0.0.7")
	named.Hostname = &hostname

	tests := []struct {
		name     string
		scanner  *fakeScanner
		validate func(t *testing.T, output string, err error)
	}{
		{
			name:    "scan error writes empty array",
			scanner: &fakeScanner{err: common.ErrUnsupportedRange},
			validate: func(t *testing.T, output string, err error) {
				if !errors.Is(err, common.ErrUnsupportedRange) {
					t.Errorf("Run() error = %v, want %v", err, common.ErrUnsupportedRange)
				}
				if output != "[]\n" {
					t.Errorf("output = %q, want %q", output, "[]\n")
				}
			},
		},
		{
			name:    "no live hosts",
			scanner: &fakeScanner{records: []*types.DeviceRecord{}},
			validate: func(t *testing.T, output string, err error) {
				if err != nil {
					t.Fatalf("Run() error = %v", err)
				}
				if output != "[]\n" {
					t.Errorf("output = %q, want %q", output, "[]\n")
				}
			},
		},
		{
			name:    "records",
			scanner: &fakeScanner{records: []*types.DeviceRecord{alive("10.0.0.2"), named}},
			validate: func(t *testing.T, output string, err error) {
				if err != nil {
					t.Fatalf("Run() error = %v", err)
				}
				var got []map[string]any
				if err := json.Unmarshal([]byte(output), &got); err != nil {
					t.Fatalf("output is not json: %v", err)
				}
				want := []map[string]any{
					{"ip": "10.0.0.2", "is_alive": true},
					{"ip": "10.0.0.7", "is_alive": true, "hostname": "printer"},
				}
				if diff := cmp.Diff(want, got); diff != "" {
					t.Errorf("output mismatch (-want +got):\n%s", diff)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout bytes.Buffer
			r := &Runner{
				options: &Options{Subnet: "10.0.0.0/28"},
				scanner: tt.scanner,
				stdout:  &stdout,
			}
			err := r.Run(context.Background())
			if tt.scanner.spec.Subnet != "10.0.0.0/28" {
				t.Errorf("scanner got spec %+v", tt.scanner.spec)
			}
			tt.validate(t, stdout.String(), err)
		})
	}
}

func TestRunWritesOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hosts.json")
	var stdout bytes.Buffer
	r := &Runner{
		options: &Options{SingleIP: "10.0.0.1", Output: path},
		scanner: &fakeScanner{records: []*types.DeviceRecord{}},
		stdout:  &stdout,
	}
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stdout.Len() != 0 {
		t.Errorf("stdout = %q, want nothing", stdout.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[]\n" {
		t.Errorf("file = %q, want %q", data, "[]\n")
	}
}

func TestDetectCapabilities(t *testing.T) {
	original := nmapAvailable
	t.Cleanup(func() { nmapAvailable = original })

	tests := []struct {
		name    string
		options Options
		nmap    bool
		want    types.Capabilities
	}{
		{
			name:    "nothing configured",
			options: Options{},
			want:    types.Capabilities{},
		},
		{
			name:    "nmap found",
			options: Options{},
			nmap:    true,
			want:    types.Capabilities{PortScan: true},
		},
		{
			name:    "nmap disabled",
			options: Options{NoNmap: true},
			nmap:    true,
			want:    types.Capabilities{},
		},
		{
			name: "credentials and community",
			options: Options{
				SNMPCommunity:  "public",
				DomainServer:   "dc01.corp.local",
				DomainUser:     "svc@corp.local",
				DomainPassword: "secret",
				RemoteUser:     "svc@corp.local",
				RemotePassword: "secret",
			},
			want: types.Capabilities{SNMP: true, Directory: true, Remote: true},
		},
		{
			name:    "directory without server",
			options: Options{DomainUser: "svc", DomainPassword: "secret", RemoteUser: "svc", RemotePassword: "secret"},
			want:    types.Capabilities{Remote: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			nmapAvailable = func(context.Context) bool {
				called = true
				return tt.nmap
			}
			got := detectCapabilities(context.Background(), &tt.options)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("capabilities mismatch (-want +got):\n%s", diff)
			}
			if tt.options.NoNmap && called {
				t.Error("nmap lookup ran although it was disabled")
			}
		})
	}
}
